package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wjlander/dash-free-display/internal/screens"
	"github.com/wjlander/dash-free-display/internal/store"
)

type screenRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// ListScreens returns every screen the user owns, newest first.
func (h *Handler) ListScreens(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	list, err := h.Screens.List(r.Context(), user.ID)
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}

	out := make([]map[string]any, 0, len(list))
	for i := range list {
		out = append(out, screenResponse(h.Cfg.BaseURL, &list[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateScreen(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	var req screenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	screen, err := h.Screens.Create(r.Context(), user.ID, req.Name, req.Description)
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, screenResponse(h.Cfg.BaseURL, screen))
}

func (h *Handler) GetScreen(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	screen, err := h.Screens.Get(r.Context(), user.ID, chi.URLParam(r, "screenID"))
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, screenResponse(h.Cfg.BaseURL, screen))
}

func (h *Handler) UpdateScreen(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	var req screenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	screen, err := h.Screens.Update(r.Context(), user.ID, chi.URLParam(r, "screenID"), req.Name, req.Description)
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, screenResponse(h.Cfg.BaseURL, screen))
}

func (h *Handler) DeleteScreen(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	if err := h.Screens.Delete(r.Context(), user.ID, chi.URLParam(r, "screenID")); err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type layoutRequest struct {
	Layout []store.WidgetLayoutItem `json:"layout"`
}

// SaveScreenLayout replaces a screen's widget layout wholesale.
func (h *Handler) SaveScreenLayout(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	var req layoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.Screens.SaveLayout(r.Context(), user.ID, chi.URLParam(r, "screenID"), req.Layout); err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivateScreen makes the screen the user's single active one.
func (h *Handler) ActivateScreen(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	if err := h.Screens.Activate(r.Context(), user.ID, chi.URLParam(r, "screenID")); err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleScreenPublic flips anonymous read access. Enabling mints a fresh
// share token; disabling clears it so old links stop working.
func (h *Handler) ToggleScreenPublic(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	screen, err := h.Screens.TogglePublicAccess(r.Context(), user.ID, chi.URLParam(r, "screenID"))
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, screenResponse(h.Cfg.BaseURL, screen))
}

// GetPublicScreen serves a shared screen to anonymous viewers by token.
func (h *Handler) GetPublicScreen(w http.ResponseWriter, r *http.Request) {
	screen, err := h.Screens.LoadPublic(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}

	// Public viewers only need the layout, not ownership details.
	respondJSON(w, http.StatusOK, map[string]any{
		"id":     screen.ID,
		"name":   screen.Name,
		"layout": layoutOrEmpty(screen.Layout),
	})
}

func screenResponse(baseURL string, s *store.Screen) map[string]any {
	resp := map[string]any{
		"id":          s.ID,
		"name":        s.Name,
		"description": s.Description,
		"layout":      layoutOrEmpty(s.Layout),
		"isPublic":    s.IsPublic,
		"isActive":    s.IsActive,
		"createdAt":   s.CreatedAt,
		"updatedAt":   s.UpdatedAt,
	}
	if s.IsPublic {
		resp["publicUrl"] = screens.PublicURL(baseURL, s)
	}
	return resp
}

func layoutOrEmpty(layout []store.WidgetLayoutItem) []store.WidgetLayoutItem {
	if layout == nil {
		return []store.WidgetLayoutItem{}
	}
	return layout
}
