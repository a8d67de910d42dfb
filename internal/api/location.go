package api

import (
	"errors"
	"net/http"

	httperrors "github.com/wjlander/dash-free-display/internal/http/errors"
	"github.com/wjlander/dash-free-display/internal/integration"
	"github.com/wjlander/dash-free-display/internal/store"
)

type locationRequest struct {
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	Accuracy     *float64 `json:"accuracy"`
	Address      *string  `json:"address"`
	LocationName *string  `json:"locationName"`
}

// SaveLocation records a position reported by the dashboard. Tracking must be
// enabled in the user's settings; the toggle is enforced here rather than
// trusted to the client.
func (h *Handler) SaveLocation(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	var req locationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 {
		respondError(w, http.StatusBadRequest, "latitude must be between -90 and 90")
		return
	}
	if req.Longitude < -180 || req.Longitude > 180 {
		respondError(w, http.StatusBadRequest, "longitude must be between -180 and 180")
		return
	}

	settings, err := h.Store.Settings.Get(r.Context(), user.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		httperrors.InternalError(w, r, err, "failed to load settings")
		return
	}
	// A missing settings row means the toggle was never switched on.
	if settings == nil || !settings.LocationTrackingEnabled {
		respondIntegrationError(w, r, &integration.ConfigurationError{
			Reason: "location tracking is disabled",
		})
		return
	}

	track, err := h.Store.Locations.Save(r.Context(), store.LocationTrack{
		UserID:       user.ID,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Accuracy:     req.Accuracy,
		Address:      req.Address,
		LocationName: req.LocationName,
	})
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to save location")
		return
	}

	respondJSON(w, http.StatusCreated, locationResponse(track))
}

// LatestLocation returns the most recently recorded position.
func (h *Handler) LatestLocation(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	track, err := h.Store.Locations.Latest(r.Context(), user.ID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no location recorded")
		return
	}
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load location")
		return
	}

	respondJSON(w, http.StatusOK, locationResponse(track))
}

func locationResponse(t *store.LocationTrack) map[string]any {
	return map[string]any{
		"id":           t.ID,
		"latitude":     t.Latitude,
		"longitude":    t.Longitude,
		"accuracy":     t.Accuracy,
		"address":      t.Address,
		"locationName": t.LocationName,
		"recordedAt":   t.RecordedAt,
	}
}
