package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	httperrors "github.com/wjlander/dash-free-display/internal/http/errors"
	"github.com/wjlander/dash-free-display/internal/store"
)

const googleStateCookie = "dashdisplay_google_state"

// GoogleStatus reports whether the calendar integration is connected.
func (h *Handler) GoogleStatus(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	cred, err := h.Store.GoogleCredentials.Get(r.Context(), user.ID)
	if errors.Is(err, store.ErrNotFound) {
		respondJSON(w, http.StatusOK, map[string]any{"connected": false})
		return
	}
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load google credential")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"connected": cred.Connected,
		"scope":     cred.Scope,
		"expiresAt": cred.ExpiresAt,
	})
}

// GoogleConnect starts the consent flow with a server-side redirect. The
// browser lands back on GoogleCallback; no popup or client polling involved.
func (h *Handler) GoogleConnect(w http.ResponseWriter, r *http.Request) {
	if !h.OAuth.Configured() {
		respondError(w, http.StatusConflict, "google integration is not configured on this server")
		return
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		httperrors.InternalError(w, r, err, "failed to create oauth state")
		return
	}
	state := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     googleStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.OAuth.AuthorizationURL(state), http.StatusFound)
}

// GoogleCallback finishes the consent flow: verifies state, exchanges the
// code, and stores the token pair.
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		httperrors.LogInfo(r, "google consent denied: "+errParam)
		http.Redirect(w, r, "/settings?google=denied", http.StatusFound)
		return
	}

	cookie, err := r.Cookie(googleStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		respondError(w, http.StatusBadRequest, "oauth state mismatch")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: googleStateCookie, Value: "", Path: "/", MaxAge: -1})

	grant, err := h.OAuth.ExchangeCode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}

	_, err = h.Store.GoogleCredentials.Save(r.Context(), store.GoogleCredential{
		UserID:       user.ID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		Scope:        grant.Scope,
		ExpiresAt:    grant.Expiry,
		Connected:    true,
	})
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to store google credential")
		return
	}

	http.Redirect(w, r, "/settings?google=connected", http.StatusFound)
}

// GoogleDisconnect removes the stored credential entirely.
func (h *Handler) GoogleDisconnect(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	if err := h.Store.GoogleCredentials.Delete(r.Context(), user.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		httperrors.InternalError(w, r, err, "failed to delete google credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCalendars returns the user's calendar list from Google.
func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	calendars, err := h.Calendar.ListCalendars(r.Context(), user.ID)
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, calendars)
}

// ListEvents returns upcoming events for one calendar. timeMin/timeMax are
// optional RFC 3339 query parameters; omitted bounds default to a thirty-day
// window starting now.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	calendarID := r.URL.Query().Get("calendarId")
	if calendarID == "" {
		calendarID = "primary"
	}

	var timeMin, timeMax time.Time
	if raw := r.URL.Query().Get("timeMin"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "timeMin must be RFC 3339")
			return
		}
		timeMin = t
	}
	if raw := r.URL.Query().Get("timeMax"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "timeMax must be RFC 3339")
			return
		}
		timeMax = t
	}

	events, err := h.Calendar.ListEvents(r.Context(), user.ID, calendarID, timeMin, timeMax)
	if err != nil {
		respondIntegrationError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}
