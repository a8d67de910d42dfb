package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wjlander/dash-free-display/internal/config"
)

func testHandler() http.Handler {
	cfg := &config.Config{BaseURL: "http://localhost:8080"}
	return Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func issuedToken(t *testing.T, handler http.Handler) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, c := range rec.Result().Cookies() {
		if c.Name == "dashdisplay_csrf" {
			return c
		}
	}
	t.Fatal("no csrf cookie issued")
	return nil
}

func TestGetIssuesTokenAndPasses(t *testing.T) {
	handler := testHandler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if c := issuedToken(t, handler); c.Value == "" {
		t.Error("empty csrf token")
	}
}

func TestPostWithoutTokenRejected(t *testing.T) {
	handler := testHandler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/screens", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestPostWithHeaderTokenAccepted(t *testing.T) {
	handler := testHandler()
	cookie := issuedToken(t, handler)

	req := httptest.NewRequest(http.MethodPost, "/api/screens", nil)
	req.AddCookie(cookie)
	req.Header.Set("X-CSRF-Token", cookie.Value)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestPostWithMismatchedTokenRejected(t *testing.T) {
	handler := testHandler()
	cookie := issuedToken(t, handler)

	req := httptest.NewRequest(http.MethodPost, "/api/screens", nil)
	req.AddCookie(cookie)
	req.Header.Set("X-CSRF-Token", "wrong")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
