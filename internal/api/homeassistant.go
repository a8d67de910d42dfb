package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wjlander/dash-free-display/internal/homeassistant"
	httperrors "github.com/wjlander/dash-free-display/internal/http/errors"
	"github.com/wjlander/dash-free-display/internal/integration"
	"github.com/wjlander/dash-free-display/internal/store"
)

type haConfigRequest struct {
	BaseURL        string `json:"baseUrl"`
	AccessToken    string `json:"accessToken"`
	ConnectionType string `json:"connectionType"`
}

// SaveHAConfig stores the instance config and brings up the live sync. The
// connection is verified against the instance before anything is persisted.
func (h *Handler) SaveHAConfig(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	var req haConfigRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ConnectionType == "" {
		req.ConnectionType = "local"
	}
	if req.ConnectionType != "local" && req.ConnectionType != "cloud" {
		respondError(w, http.StatusBadRequest, "connectionType must be local or cloud")
		return
	}
	if req.AccessToken == "" {
		respondError(w, http.StatusBadRequest, "accessToken is required")
		return
	}

	client, err := homeassistant.NewClient(req.BaseURL, req.AccessToken)
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	if !client.TestConnection(r.Context()) {
		respondIntegrationError(w, r, &integration.NetworkError{Err: errors.New("home assistant did not respond to a test request")})
		return
	}

	conn, err := h.Store.HomeAssistant.Save(r.Context(), store.HomeAssistantConnection{
		UserID:         user.ID,
		BaseURL:        client.BaseURL(),
		AccessToken:    req.AccessToken,
		ConnectionType: req.ConnectionType,
	})
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to store home assistant config")
		return
	}

	count, err := h.HA.Connect(r.Context(), user.ID, conn.BaseURL, conn.AccessToken)
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}

	now := time.Now()
	if err := h.Store.HomeAssistant.SetConnected(r.Context(), user.ID, true, &now); err != nil {
		httperrors.LogError(r, "failed to mark home assistant connected", err)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"connected":   true,
		"entityCount": count,
	})
}

// DisconnectHA tears down the live sync and removes the stored config.
func (h *Handler) DisconnectHA(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	h.HA.Disconnect(user.ID)
	if err := h.Store.HomeAssistant.Delete(r.Context(), user.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		httperrors.InternalError(w, r, err, "failed to delete home assistant config")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HAStatus reports connection state for the settings page: stored config plus
// the live sync client's view.
func (h *Handler) HAStatus(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	conn, err := h.Store.HomeAssistant.Get(r.Context(), user.ID)
	if errors.Is(err, store.ErrNotFound) {
		respondJSON(w, http.StatusOK, map[string]any{"configured": false})
		return
	}
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load home assistant config")
		return
	}

	resp := map[string]any{
		"configured":     true,
		"baseUrl":        conn.BaseURL,
		"connectionType": conn.ConnectionType,
		"lastSync":       conn.LastSync,
	}
	if status, ok := h.HA.Status(user.ID); ok {
		resp["syncState"] = string(status.State)
		resp["consecutiveFailures"] = status.ConsecutiveFailures
		resp["circuitOpen"] = status.CircuitOpen
		if status.LastError != "" {
			resp["lastError"] = status.LastError
		}
	} else {
		resp["syncState"] = string(homeassistant.StateDisconnected)
	}
	respondJSON(w, http.StatusOK, resp)
}

// ListEntities returns the in-memory entity snapshot for the user.
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	entities, ok := h.HA.Entities(user.ID)
	if !ok {
		respondIntegrationError(w, r, &integration.ConfigurationError{Reason: "home assistant is not connected"})
		return
	}
	respondJSON(w, http.StatusOK, entities)
}

// GetEntity returns one entity's current state.
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	entity, ok := h.HA.Entity(user.ID, chi.URLParam(r, "entityID"))
	if !ok {
		respondError(w, http.StatusNotFound, "entity not found")
		return
	}
	respondJSON(w, http.StatusOK, entity)
}

type callServiceRequest struct {
	Domain  string         `json:"domain"`
	Service string         `json:"service"`
	Target  map[string]any `json:"target"`
	Data    map[string]any `json:"data"`
}

// CallService forwards a service call (light.turn_on and the like) to the
// user's instance.
func (h *Handler) CallService(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	var req callServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Domain == "" || req.Service == "" {
		respondError(w, http.StatusBadRequest, "domain and service are required")
		return
	}

	if err := h.HA.CallService(r.Context(), user.ID, req.Domain, req.Service, req.Target, req.Data); err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListHAWidgets returns the entities the user pinned to the dashboard.
func (h *Handler) ListHAWidgets(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	items, err := h.Store.HAWidgets.ListByUser(r.Context(), user.ID)
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to list widget items")
		return
	}
	if items == nil {
		items = []store.HAWidgetItem{}
	}
	respondJSON(w, http.StatusOK, items)
}

type haWidgetRequest struct {
	EntityID    string  `json:"entityId"`
	DisplayName *string `json:"displayName"`
	Position    int     `json:"position"`
}

// UpsertHAWidget pins an entity to the dashboard or updates its placement.
func (h *Handler) UpsertHAWidget(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	var req haWidgetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EntityID == "" {
		respondError(w, http.StatusBadRequest, "entityId is required")
		return
	}

	item, err := h.Store.HAWidgets.Upsert(r.Context(), store.HAWidgetItem{
		UserID:      user.ID,
		EntityID:    req.EntityID,
		DisplayName: req.DisplayName,
		Position:    req.Position,
	})
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to save widget item")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// DeleteHAWidget unpins an entity from the dashboard.
func (h *Handler) DeleteHAWidget(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	if err := h.Store.HAWidgets.Delete(r.Context(), user.ID, chi.URLParam(r, "widgetID")); err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
