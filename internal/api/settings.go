package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	httperrors "github.com/wjlander/dash-free-display/internal/http/errors"
	"github.com/wjlander/dash-free-display/internal/store"
)

var defaultVisibleWidgets = []string{"clock", "weather", "calendar", "home_assistant"}

func defaultSettings(userID int64) store.UserSettings {
	return store.UserSettings{
		UserID:                userID,
		VisibleWidgets:        defaultVisibleWidgets,
		WidgetOrder:           defaultVisibleWidgets,
		ThemeVariant:          "dark",
		GoogleCalendarEnabled: true,
	}
}

// GetSettings returns the user's dashboard preferences, creating the default
// row on first access.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	settings, err := h.Store.Settings.Get(r.Context(), user.ID)
	if errors.Is(err, store.ErrNotFound) {
		settings, err = h.Store.Settings.Create(r.Context(), defaultSettings(user.ID))
		if isUniqueViolation(err) {
			// Lost the race with a concurrent first request.
			settings, err = h.Store.Settings.Get(r.Context(), user.ID)
		}
	}
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load settings")
		return
	}

	respondJSON(w, http.StatusOK, settingsResponse(settings))
}

type settingsRequest struct {
	VisibleWidgets          []string `json:"visibleWidgets"`
	WidgetOrder             []string `json:"widgetOrder"`
	ThemeVariant            string   `json:"themeVariant"`
	GoogleCalendarEnabled   bool     `json:"googleCalendarEnabled"`
	LocationTrackingEnabled bool     `json:"locationTrackingEnabled"`
	DisplayName             *string  `json:"displayName"`
}

// UpdateSettings replaces the user's dashboard preferences.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	var req settingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ThemeVariant != "dark" && req.ThemeVariant != "light" {
		respondError(w, http.StatusBadRequest, "themeVariant must be dark or light")
		return
	}

	settings, err := h.Store.Settings.Update(r.Context(), store.UserSettings{
		UserID:                  user.ID,
		VisibleWidgets:          req.VisibleWidgets,
		WidgetOrder:             req.WidgetOrder,
		ThemeVariant:            req.ThemeVariant,
		GoogleCalendarEnabled:   req.GoogleCalendarEnabled,
		LocationTrackingEnabled: req.LocationTrackingEnabled,
		DisplayName:             req.DisplayName,
	})
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "settings not found")
		return
	}
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to update settings")
		return
	}

	respondJSON(w, http.StatusOK, settingsResponse(settings))
}

func settingsResponse(s *store.UserSettings) map[string]any {
	return map[string]any{
		"visibleWidgets":          s.VisibleWidgets,
		"widgetOrder":             s.WidgetOrder,
		"themeVariant":            s.ThemeVariant,
		"googleCalendarEnabled":   s.GoogleCalendarEnabled,
		"locationTrackingEnabled": s.LocationTrackingEnabled,
		"displayName":             s.DisplayName,
		"updatedAt":               s.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
