package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wjlander/dash-free-display/internal/store"
)

type fakeSettingsRepo struct {
	settings map[int64]*store.UserSettings
	creates  int
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{settings: make(map[int64]*store.UserSettings)}
}

func (f *fakeSettingsRepo) Get(ctx context.Context, userID int64) (*store.UserSettings, error) {
	s, ok := f.settings[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeSettingsRepo) Create(ctx context.Context, s store.UserSettings) (*store.UserSettings, error) {
	f.creates++
	f.settings[s.UserID] = &s
	c := s
	return &c, nil
}

func (f *fakeSettingsRepo) Update(ctx context.Context, s store.UserSettings) (*store.UserSettings, error) {
	if _, ok := f.settings[s.UserID]; !ok {
		return nil, store.ErrNotFound
	}
	f.settings[s.UserID] = &s
	c := s
	return &c, nil
}

func TestGetSettingsCreatesDefaultsOnFirstAccess(t *testing.T) {
	repo := newFakeSettingsRepo()
	h := &Handler{Store: &store.Store{Settings: repo}}

	req := withTestUser(httptest.NewRequest(http.MethodGet, "/api/settings", nil), 1)
	rec := httptest.NewRecorder()
	h.GetSettings(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if repo.creates != 1 {
		t.Errorf("creates = %d, want 1", repo.creates)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["themeVariant"] != "dark" {
		t.Errorf("themeVariant = %v, want dark", body["themeVariant"])
	}

	// Second read serves the stored row without another create.
	rec2 := httptest.NewRecorder()
	h.GetSettings(rec2, withTestUser(httptest.NewRequest(http.MethodGet, "/api/settings", nil), 1))
	if repo.creates != 1 {
		t.Errorf("creates after second read = %d, want still 1", repo.creates)
	}
}

func TestUpdateSettings(t *testing.T) {
	repo := newFakeSettingsRepo()
	repo.settings[1] = &store.UserSettings{UserID: 1, ThemeVariant: "dark"}
	h := &Handler{Store: &store.Store{Settings: repo}}

	payload := `{"visibleWidgets":["clock"],"widgetOrder":["clock"],"themeVariant":"light","googleCalendarEnabled":false}`
	req := withTestUser(httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(payload)), 1)
	rec := httptest.NewRecorder()
	h.UpdateSettings(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if repo.settings[1].ThemeVariant != "light" {
		t.Errorf("stored theme = %q", repo.settings[1].ThemeVariant)
	}
	if len(repo.settings[1].VisibleWidgets) != 1 {
		t.Errorf("stored widgets = %v", repo.settings[1].VisibleWidgets)
	}
}

func TestUpdateSettingsRejectsUnknownTheme(t *testing.T) {
	h := &Handler{Store: &store.Store{Settings: newFakeSettingsRepo()}}

	payload := `{"themeVariant":"sepia"}`
	req := withTestUser(httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(payload)), 1)
	rec := httptest.NewRecorder()
	h.UpdateSettings(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
