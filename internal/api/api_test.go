package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wjlander/dash-free-display/internal/auth"
	"github.com/wjlander/dash-free-display/internal/integration"
	"github.com/wjlander/dash-free-display/internal/store"
)

func TestRespondIntegrationError(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		wantStatus      int
		wantReauthorize bool
	}{
		{
			name:       "validation error",
			err:        &integration.ValidationError{Field: "base_url", Reason: "must be an http(s) URL"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "configuration error",
			err:        &integration.ConfigurationError{Reason: "google calendar is not connected"},
			wantStatus: http.StatusConflict,
		},
		{
			name:            "auth error carries reauthorize hint",
			err:             &integration.AuthError{Reason: "token refresh rejected"},
			wantStatus:      http.StatusUnauthorized,
			wantReauthorize: true,
		},
		{
			name:       "api error",
			err:        &integration.APIError{Status: 500, Body: "boom"},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "network error",
			err:        &integration.NetworkError{Err: errors.New("connection refused")},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "not found",
			err:        store.ErrNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "wrapped not found",
			err:        errors.Join(errors.New("load screen"), store.ErrNotFound),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unknown error",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/test", nil)

			respondIntegrationError(rec, req, tc.err)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantReauthorize {
				var body map[string]any
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body["reauthorize"] != true {
					t.Errorf("body = %v, want reauthorize=true", body)
				}
			}
		})
	}
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
	rec := httptest.NewRecorder()

	var out struct{}
	if decodeJSON(rec, req, &out) {
		t.Error("decodeJSON accepted an empty body")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func withTestUser(r *http.Request, userID int64) *http.Request {
	return r.WithContext(auth.WithUser(r.Context(), &store.User{ID: userID}))
}
