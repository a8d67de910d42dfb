package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"

	"github.com/wjlander/dash-free-display/internal/integration"
)

func TestAuthorizationURLForcesOfflineConsent(t *testing.T) {
	f := NewOAuthFlow("client-id", "client-secret", "https://dash.example/api/integrations/google/callback")

	raw := f.AuthorizationURL("state-123")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}

	q := u.Query()
	if got := q.Get("access_type"); got != "offline" {
		t.Errorf("access_type = %q, want offline", got)
	}
	if got := q.Get("prompt"); got != "consent" {
		t.Errorf("prompt = %q, want consent", got)
	}
	if got := q.Get("state"); got != "state-123" {
		t.Errorf("state = %q, want state-123", got)
	}
	if got := q.Get("scope"); got != CalendarReadonlyScope {
		t.Errorf("scope = %q, want %q", got, CalendarReadonlyScope)
	}
	if u.Host != "accounts.google.com" {
		t.Errorf("host = %q, want accounts.google.com", u.Host)
	}
}

func TestExchangeCodeMissingRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	f := NewOAuthFlow("client-id", "client-secret", "https://dash.example/cb").
		WithEndpoint(oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"})

	_, err := f.ExchangeCode(context.Background(), "code")
	var authErr *integration.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError for missing refresh token", err)
	}
}

func TestExchangeCodeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.Form.Get("code"); got != "the-code" {
			t.Errorf("code = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600,"scope":"` + CalendarReadonlyScope + `"}`))
	}))
	defer srv.Close()

	f := NewOAuthFlow("client-id", "client-secret", "https://dash.example/cb").
		WithEndpoint(oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"})

	grant, err := f.ExchangeCode(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if grant.AccessToken != "at" || grant.RefreshToken != "rt" {
		t.Errorf("grant = %+v", grant)
	}
	if grant.Scope != CalendarReadonlyScope {
		t.Errorf("scope = %q", grant.Scope)
	}
	if grant.Expiry.IsZero() {
		t.Error("expiry not set")
	}
}

func TestExchangeCodeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	f := NewOAuthFlow("client-id", "client-secret", "https://dash.example/cb").
		WithEndpoint(oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"})

	_, err := f.ExchangeCode(context.Background(), "bad-code")
	var authErr *integration.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError", err)
	}
}

func TestExchangeCodeUnconfigured(t *testing.T) {
	f := NewOAuthFlow("", "", "")

	_, err := f.ExchangeCode(context.Background(), "code")
	var cfgErr *integration.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
}
