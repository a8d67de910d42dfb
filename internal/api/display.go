package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/wjlander/dash-free-display/internal/http/errors"
	"github.com/wjlander/dash-free-display/internal/store"
)

type displayTokenRequest struct {
	Label string `json:"label"`
}

// CreateDisplayToken mints a kiosk token. The plaintext appears in this
// response only; it cannot be recovered later.
func (h *Handler) CreateDisplayToken(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	var req displayTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Label == "" {
		respondError(w, http.StatusBadRequest, "label is required")
		return
	}

	plain, token, err := h.Auth.CreateDisplayToken(r.Context(), user.ID, req.Label)
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to create display token")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":        token.ID,
		"label":     token.Label,
		"token":     plain,
		"createdAt": token.CreatedAt,
	})
}

// ListDisplayTokens returns token metadata, never secrets.
func (h *Handler) ListDisplayTokens(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	tokens, err := h.Store.DisplayTokens.ListByUser(r.Context(), user.ID)
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to list display tokens")
		return
	}

	out := make([]map[string]any, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, map[string]any{
			"id":         t.ID,
			"label":      t.Label,
			"createdAt":  t.CreatedAt,
			"lastUsedAt": t.LastUsedAt,
			"revoked":    t.RevokedAt != nil,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// RevokeDisplayToken invalidates a kiosk token immediately.
func (h *Handler) RevokeDisplayToken(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	id, err := strconv.ParseInt(chi.URLParam(r, "tokenID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	token, err := h.Store.DisplayTokens.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && token.UserID != user.ID) {
		respondError(w, http.StatusNotFound, "token not found")
		return
	}
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load display token")
		return
	}

	if err := h.Store.DisplayTokens.Revoke(r.Context(), id); err != nil {
		httperrors.InternalError(w, r, err, "failed to revoke display token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DisplayActiveScreen serves the authenticated kiosk its owner's active
// screen. Authentication happens in RequireDisplayToken.
func (h *Handler) DisplayActiveScreen(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	screen, err := h.Screens.GetActive(r.Context(), user.ID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no active screen")
		return
	}
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load active screen")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"id":        screen.ID,
		"name":      screen.Name,
		"layout":    layoutOrEmpty(screen.Layout),
		"updatedAt": screen.UpdatedAt,
	})
}
