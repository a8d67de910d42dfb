package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/wjlander/dash-free-display/internal/integration"
)

type staticTokenSource string

func (s staticTokenSource) AccessToken(ctx context.Context, userID int64) (string, error) {
	return string(s), nil
}

type failingTokenSource struct{ err error }

func (s failingTokenSource) AccessToken(ctx context.Context, userID int64) (string, error) {
	return "", s.err
}

func newCalendarServer(t *testing.T, body string, capture *url.Values) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want Bearer test-token", got)
		}
		if capture != nil {
			*capture = r.URL.Query()
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestListEventsDefaultWindow(t *testing.T) {
	var query url.Values
	srv := newCalendarServer(t, `{"items":[]}`, &query)
	defer srv.Close()

	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	c := NewCalendarClient(staticTokenSource("test-token"))
	c.BaseURL = srv.URL
	c.HTTPClient = srv.Client()
	c.Now = func() time.Time { return now }

	if _, err := c.ListEvents(context.Background(), 1, "", time.Time{}, time.Time{}); err != nil {
		t.Fatalf("ListEvents: %v", err)
	}

	if got := query.Get("timeMin"); got != now.Format(time.RFC3339) {
		t.Errorf("timeMin = %q, want %q", got, now.Format(time.RFC3339))
	}
	wantMax := now.Add(30 * 24 * time.Hour).Format(time.RFC3339)
	if got := query.Get("timeMax"); got != wantMax {
		t.Errorf("timeMax = %q, want %q", got, wantMax)
	}
	if got := query.Get("singleEvents"); got != "true" {
		t.Errorf("singleEvents = %q, want true", got)
	}
	if got := query.Get("orderBy"); got != "startTime" {
		t.Errorf("orderBy = %q, want startTime", got)
	}
	if got := query.Get("maxResults"); got != "50" {
		t.Errorf("maxResults = %q, want 50", got)
	}
}

func TestListEventsExplicitWindow(t *testing.T) {
	var query url.Values
	srv := newCalendarServer(t, `{"items":[]}`, &query)
	defer srv.Close()

	c := NewCalendarClient(staticTokenSource("test-token"))
	c.BaseURL = srv.URL
	c.HTTPClient = srv.Client()

	min := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	max := time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC)
	if _, err := c.ListEvents(context.Background(), 1, "primary", min, max); err != nil {
		t.Fatalf("ListEvents: %v", err)
	}

	if got := query.Get("timeMin"); got != "2026-09-10T00:00:00Z" {
		t.Errorf("timeMin = %q", got)
	}
	if got := query.Get("timeMax"); got != "2026-09-11T00:00:00Z" {
		t.Errorf("timeMax = %q", got)
	}
}

func TestNormalizeEvent(t *testing.T) {
	tests := []struct {
		name string
		raw  rawEvent
		want Event
	}{
		{
			name: "timed event with color",
			raw: rawEvent{
				ID:      "e1",
				Summary: "Standup",
				ColorID: "1",
				Start:   rawEventTime{DateTime: "2026-09-01T09:00:00Z"},
				End:     rawEventTime{DateTime: "2026-09-01T09:15:00Z"},
			},
			want: Event{
				ID:         "e1",
				Title:      "Standup",
				Start:      time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
				End:        time.Date(2026, 9, 1, 9, 15, 0, 0, time.UTC),
				AllDay:     false,
				CalendarID: "primary",
				Color:      "bg-blue-500",
			},
		},
		{
			name: "all-day event gets date-only start",
			raw: rawEvent{
				ID:    "e2",
				Start: rawEventTime{Date: "2026-09-02"},
				End:   rawEventTime{Date: "2026-09-03"},
			},
			want: Event{
				ID:         "e2",
				Title:      "Untitled Event",
				Start:      time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
				End:        time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC),
				AllDay:     true,
				CalendarID: "primary",
				Color:      "bg-primary",
			},
		},
		{
			name: "unknown color id falls back to default",
			raw: rawEvent{
				ID:      "e3",
				Summary: "Dentist",
				ColorID: "99",
				Start:   rawEventTime{DateTime: "2026-09-01T14:00:00Z"},
				End:     rawEventTime{DateTime: "2026-09-01T15:00:00Z"},
			},
			want: Event{
				ID:         "e3",
				Title:      "Dentist",
				Start:      time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC),
				End:        time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC),
				CalendarID: "primary",
				Color:      "bg-primary",
			},
		},
		{
			name: "pink is the last palette entry",
			raw: rawEvent{
				ID:      "e4",
				Summary: "Party",
				ColorID: "11",
				Start:   rawEventTime{DateTime: "2026-09-05T19:00:00Z"},
				End:     rawEventTime{DateTime: "2026-09-05T23:00:00Z"},
			},
			want: Event{
				ID:         "e4",
				Title:      "Party",
				Start:      time.Date(2026, 9, 5, 19, 0, 0, 0, time.UTC),
				End:        time.Date(2026, 9, 5, 23, 0, 0, 0, time.UTC),
				CalendarID: "primary",
				Color:      "bg-pink-500",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeEvent(tc.raw, "primary")
			if got.Title != tc.want.Title {
				t.Errorf("Title = %q, want %q", got.Title, tc.want.Title)
			}
			if !got.Start.Equal(tc.want.Start) {
				t.Errorf("Start = %v, want %v", got.Start, tc.want.Start)
			}
			if !got.End.Equal(tc.want.End) {
				t.Errorf("End = %v, want %v", got.End, tc.want.End)
			}
			if got.AllDay != tc.want.AllDay {
				t.Errorf("AllDay = %v, want %v", got.AllDay, tc.want.AllDay)
			}
			if got.Color != tc.want.Color {
				t.Errorf("Color = %q, want %q", got.Color, tc.want.Color)
			}
		})
	}
}

func TestListCalendars(t *testing.T) {
	srv := newCalendarServer(t, `{"items":[
		{"id":"primary","summary":"Personal","primary":true,"backgroundColor":"#9fe1e7"},
		{"id":"work@example.com","summary":"Work"}
	]}`, nil)
	defer srv.Close()

	c := NewCalendarClient(staticTokenSource("test-token"))
	c.BaseURL = srv.URL
	c.HTTPClient = srv.Client()

	calendars, err := c.ListCalendars(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListCalendars: %v", err)
	}
	if len(calendars) != 2 {
		t.Fatalf("len = %d, want 2", len(calendars))
	}
	if !calendars[0].Primary || calendars[0].Color != "#9fe1e7" {
		t.Errorf("unexpected first calendar: %+v", calendars[0])
	}
}

func TestCalendarAPIErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewCalendarClient(staticTokenSource("test-token"))
	c.BaseURL = srv.URL
	c.HTTPClient = srv.Client()

	_, err := c.ListCalendars(context.Background(), 1)
	var apiErr *integration.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", apiErr.Status)
	}
}

func TestCalendarTokenErrorPassthrough(t *testing.T) {
	wantErr := &integration.AuthError{Reason: "token refresh rejected"}
	c := NewCalendarClient(failingTokenSource{err: wantErr})

	_, err := c.ListCalendars(context.Background(), 1)
	var authErr *integration.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError passthrough", err)
	}
}
