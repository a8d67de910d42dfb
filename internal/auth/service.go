package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/wjlander/dash-free-display/internal/config"
	httperrors "github.com/wjlander/dash-free-display/internal/http/errors"
	"github.com/wjlander/dash-free-display/internal/store"
)

const stateCookieName = "dashdisplay_login_state"

// Service encapsulates dashboard login (OIDC) and display token auth.
type Service struct {
	cfg      *config.Config
	store    *store.Store
	sessions *SessionManager
	verifier *oidc.IDTokenVerifier
	oauth    *oauth2.Config
	secure   bool
}

func NewService(ctx context.Context, cfg *config.Config, st *store.Store, sessions *SessionManager) (*Service, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OIDC.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.OIDC.ClientID,
		ClientSecret: cfg.OIDC.ClientSecret,
		RedirectURL:  cfg.OIDCRedirectURI(),
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	return &Service{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.OIDC.ClientID}),
		oauth:    oauthCfg,
		secure:   strings.HasPrefix(cfg.BaseURL, "https://"),
	}, nil
}

// BeginLogin redirects the browser to the OIDC provider with a random state
// nonce bound to a short-lived cookie.
func (s *Service) BeginLogin(w http.ResponseWriter, r *http.Request) {
	state, err := randomToken(16)
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to create login state")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback completes the login: state check, code exchange, id token
// verification, user upsert, session creation.
func (s *Service) HandleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		http.Error(w, "invalid login state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	token, err := s.oauth.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		httperrors.InternalError(w, r, err, "oidc code exchange failed")
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id token in response", http.StatusBadGateway)
		return
	}

	idToken, err := s.verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		httperrors.InternalError(w, r, err, "id token verification failed")
		return
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		httperrors.InternalError(w, r, err, "failed to parse id token claims")
		return
	}

	user, err := s.store.Users.UpsertOIDCUser(r.Context(), idToken.Subject, claims.Email)
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to persist user")
		return
	}

	if err := s.createSession(w, r, user.ID); err != nil {
		httperrors.InternalError(w, r, err, "failed to create session")
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Service) createSession(w http.ResponseWriter, r *http.Request, userID int64) error {
	sessionID := uuid.NewString()

	var userAgent, ipAddress *string
	if ua := r.UserAgent(); ua != "" {
		userAgent = &ua
	}
	if ip := r.RemoteAddr; ip != "" {
		ipAddress = &ip
	}

	err := s.store.Sessions.Create(r.Context(), store.Session{
		ID:        sessionID,
		UserID:    userID,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		ExpiresAt: time.Now().Add(SessionTTL),
	})
	if err != nil {
		return err
	}

	return s.sessions.Issue(w, sessionID)
}

// Logout deletes the session row and clears the cookie.
func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := SessionIDFromContext(r.Context()); sessionID != "" {
		if err := s.store.Sessions.Delete(r.Context(), sessionID); err != nil {
			httperrors.LogError(r, "failed to delete session", err)
		}
	}
	s.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// RequireSession loads the session user into the request context or rejects
// the request. API routes get a 401; everything else is sent to login.
func (s *Service) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, sessionID, err := s.sessionUser(r)
		if err != nil {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"authentication required"}`))
				return
			}
			http.Redirect(w, r, "/auth/login", http.StatusFound)
			return
		}

		if err := s.store.Sessions.TouchLastSeen(r.Context(), sessionID); err != nil {
			httperrors.LogError(r, "failed to touch session", err)
		}

		ctx := WithUser(r.Context(), user)
		ctx = WithSessionID(ctx, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var errNoSession = errors.New("no valid session")

func (s *Service) sessionUser(r *http.Request) (*store.User, string, error) {
	sessionID, ok := s.sessions.SessionID(r)
	if !ok {
		return nil, "", errNoSession
	}

	session, err := s.store.Sessions.GetByID(r.Context(), sessionID)
	if err != nil {
		return nil, "", errNoSession
	}
	if session.ExpiresAt.Before(time.Now()) {
		return nil, "", errNoSession
	}

	user, err := s.store.Users.GetByID(r.Context(), session.UserID)
	if err != nil {
		return nil, "", errNoSession
	}
	return user, sessionID, nil
}

// CreateDisplayToken mints a kiosk bearer token. The plaintext is returned
// exactly once; only the bcrypt hash is stored.
func (s *Service) CreateDisplayToken(ctx context.Context, userID int64, label string) (string, *store.DisplayToken, error) {
	secret, err := randomToken(32)
	if err != nil {
		return "", nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash display token: %w", err)
	}

	token, err := s.store.DisplayTokens.Create(ctx, store.DisplayToken{
		UserID:    userID,
		Label:     label,
		TokenHash: string(hash),
	})
	if err != nil {
		return "", nil, err
	}

	return fmt.Sprintf("%d.%s", token.ID, secret), token, nil
}

// RequireDisplayToken authenticates kiosk requests via Authorization: Bearer
// with a "<id>.<secret>" display token.
func (s *Service) RequireDisplayToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.validateDisplayToken(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "invalid display token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (s *Service) validateDisplayToken(r *http.Request) (*store.User, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, errors.New("missing bearer token")
	}

	idPart, secret, ok := strings.Cut(raw, ".")
	if !ok {
		return nil, errors.New("malformed display token")
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return nil, errors.New("malformed display token")
	}

	token, err := s.store.DisplayTokens.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if token.RevokedAt != nil {
		return nil, errors.New("display token revoked")
	}
	if token.ExpiresAt != nil && token.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("display token expired")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(token.TokenHash), []byte(secret)); err != nil {
		return nil, errors.New("display token mismatch")
	}

	if err := s.store.DisplayTokens.TouchLastUsed(r.Context(), token.ID); err != nil {
		httperrors.LogError(r, "failed to touch display token", err)
	}

	return s.store.Users.GetByID(r.Context(), token.UserID)
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
