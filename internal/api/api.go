// Package api implements the JSON endpoints consumed by the dashboard
// frontend and by kiosk displays.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wjlander/dash-free-display/internal/auth"
	"github.com/wjlander/dash-free-display/internal/config"
	"github.com/wjlander/dash-free-display/internal/google"
	"github.com/wjlander/dash-free-display/internal/homeassistant"
	httperrors "github.com/wjlander/dash-free-display/internal/http/errors"
	"github.com/wjlander/dash-free-display/internal/integration"
	"github.com/wjlander/dash-free-display/internal/screens"
	"github.com/wjlander/dash-free-display/internal/store"
)

const maxBodyBytes = 1 << 20

// Handler holds every dependency the JSON endpoints need. Constructed once in
// main and wired into the router.
type Handler struct {
	Cfg      *config.Config
	Store    *store.Store
	Auth     *auth.Service
	Screens  *screens.Service
	Calendar *google.CalendarClient
	OAuth    *google.OAuthFlow
	HA       *homeassistant.Manager
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// respondIntegrationError maps the shared integration error taxonomy onto
// HTTP statuses. Auth failures carry a reauthorize hint so the frontend can
// prompt the user to reconnect.
func respondIntegrationError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		cfgErr  *integration.ConfigurationError
		authErr *integration.AuthError
		apiErr  *integration.APIError
		netErr  *integration.NetworkError
		valErr  *integration.ValidationError
	)

	switch {
	case errors.As(err, &valErr):
		respondError(w, http.StatusBadRequest, valErr.Error())
	case errors.As(err, &cfgErr):
		respondError(w, http.StatusConflict, cfgErr.Error())
	case errors.As(err, &authErr):
		respondJSON(w, http.StatusUnauthorized, map[string]any{
			"error":       authErr.Error(),
			"reauthorize": true,
		})
	case errors.As(err, &apiErr):
		httperrors.LogError(r, "upstream api error", err)
		respondError(w, http.StatusBadGateway, "upstream service returned an error")
	case errors.As(err, &netErr):
		httperrors.LogError(r, "upstream network error", err)
		respondError(w, http.StatusBadGateway, "upstream service unreachable")
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	default:
		httperrors.InternalError(w, r, err, "internal error")
	}
}

func requestUser(r *http.Request) *store.User {
	user, _ := auth.UserFromContext(r.Context())
	return user
}
