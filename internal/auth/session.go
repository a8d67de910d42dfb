package auth

import (
	"crypto/sha256"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/wjlander/dash-free-display/internal/config"
)

// SessionTTL is how long a browser session stays valid.
const SessionTTL = 7 * 24 * time.Hour

// SessionManager encodes the session id into a tamper-proof cookie. The
// session itself lives in the database so it can be listed and revoked.
type SessionManager struct {
	cookieName string
	codec      *securecookie.SecureCookie
	secure     bool
}

func NewSessionManager(cfg *config.Config) *SessionManager {
	hash := sha256.Sum256([]byte(cfg.Session.Secret))
	hashKey := hash[:]

	// Derive an AES-256 sized block key to avoid invalid key length errors.
	blockKey := hash[:]
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(SessionTTL / time.Second))
	sc.SetSerializer(securecookie.JSONEncoder{})

	secure := true
	if base, err := url.Parse(cfg.BaseURL); err == nil && base.Scheme != "https" {
		secure = false
	}

	return &SessionManager{
		cookieName: "dashdisplay_session",
		codec:      sc,
		secure:     secure,
	}
}

// Issue sets the session cookie carrying the given session id.
func (m *SessionManager) Issue(w http.ResponseWriter, sessionID string) error {
	encoded, err := m.codec.Encode(m.cookieName, sessionID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  time.Now().Add(SessionTTL),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
	})
}

// SessionID extracts the session id from the request cookie if present.
func (m *SessionManager) SessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return "", false
	}

	var sessionID string
	if err := m.codec.Decode(m.cookieName, c.Value, &sessionID); err != nil {
		return "", false
	}
	return sessionID, sessionID != ""
}
