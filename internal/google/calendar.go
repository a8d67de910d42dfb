package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/wjlander/dash-free-display/internal/integration"
)

const (
	defaultCalendarBaseURL = "https://www.googleapis.com/calendar/v3"
	defaultEventWindow     = 30 * 24 * time.Hour
	maxEventResults        = 50
	maxErrorBodyBytes      = 4096
)

// TokenSource yields a valid access token for a user; satisfied by
// *TokenProvider.
type TokenSource interface {
	AccessToken(ctx context.Context, userID int64) (string, error)
}

// CalendarClient issues authenticated Google Calendar API requests. It is an
// explicitly constructed, injected dependency scoped per server instance;
// per-user state lives in the credential store, never in the client.
type CalendarClient struct {
	tokens TokenSource

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// BaseURL defaults to the public Calendar v3 endpoint.
	BaseURL string
	// Now is the wall clock; replaceable in tests.
	Now func() time.Time
}

func NewCalendarClient(tokens TokenSource) *CalendarClient {
	return &CalendarClient{
		tokens:  tokens,
		BaseURL: defaultCalendarBaseURL,
		Now:     time.Now,
	}
}

// Calendar is one entry from the user's calendar list.
type Calendar struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Primary     bool   `json:"primary"`
	Color       string `json:"color,omitempty"`
}

// Event is the canonical normalized event shape served to widgets.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	AllDay      bool      `json:"allDay"`
	CalendarID  string    `json:"calendarId"`
	Color       string    `json:"color"`
}

// eventColors maps Google's integer color ids to the palette classes the
// dashboard widgets render with.
var eventColors = map[string]string{
	"1":  "bg-blue-500",
	"2":  "bg-green-500",
	"3":  "bg-purple-500",
	"4":  "bg-red-500",
	"5":  "bg-yellow-500",
	"6":  "bg-orange-500",
	"7":  "bg-cyan-500",
	"8":  "bg-gray-500",
	"9":  "bg-indigo-500",
	"10": "bg-emerald-500",
	"11": "bg-pink-500",
}

const defaultEventColor = "bg-primary"

// ListCalendars fetches the user's calendar list.
func (c *CalendarClient) ListCalendars(ctx context.Context, userID int64) ([]Calendar, error) {
	var payload struct {
		Items []struct {
			ID              string `json:"id"`
			Summary         string `json:"summary"`
			Description     string `json:"description"`
			Primary         bool   `json:"primary"`
			BackgroundColor string `json:"backgroundColor"`
		} `json:"items"`
	}

	if err := c.get(ctx, userID, "/users/me/calendarList", nil, &payload); err != nil {
		return nil, err
	}

	calendars := make([]Calendar, 0, len(payload.Items))
	for _, item := range payload.Items {
		calendars = append(calendars, Calendar{
			ID:          item.ID,
			Summary:     item.Summary,
			Description: item.Description,
			Primary:     item.Primary,
			Color:       item.BackgroundColor,
		})
	}
	return calendars, nil
}

// ListEvents fetches events in [timeMin, timeMax), expanding recurrences and
// ordering by start time. Zero bounds default to [now, now+30d).
func (c *CalendarClient) ListEvents(ctx context.Context, userID int64, calendarID string, timeMin, timeMax time.Time) ([]Event, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	if timeMin.IsZero() {
		timeMin = c.Now()
	}
	if timeMax.IsZero() {
		timeMax = timeMin.Add(defaultEventWindow)
	}

	params := url.Values{}
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	params.Set("maxResults", fmt.Sprint(maxEventResults))
	params.Set("timeMin", timeMin.Format(time.RFC3339))
	params.Set("timeMax", timeMax.Format(time.RFC3339))

	var payload struct {
		Items []rawEvent `json:"items"`
	}

	path := "/calendars/" + url.PathEscape(calendarID) + "/events"
	if err := c.get(ctx, userID, path, params, &payload); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(payload.Items))
	for _, item := range payload.Items {
		events = append(events, normalizeEvent(item, calendarID))
	}
	return events, nil
}

type rawEventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

type rawEvent struct {
	ID          string       `json:"id"`
	Summary     string       `json:"summary"`
	Location    string       `json:"location"`
	Description string       `json:"description"`
	ColorID     string       `json:"colorId"`
	Start       rawEventTime `json:"start"`
	End         rawEventTime `json:"end"`
}

func normalizeEvent(raw rawEvent, calendarID string) Event {
	title := raw.Summary
	if title == "" {
		title = "Untitled Event"
	}

	color := eventColors[raw.ColorID]
	if color == "" {
		color = defaultEventColor
	}

	return Event{
		ID:          raw.ID,
		Title:       title,
		Start:       parseEventTime(raw.Start),
		End:         parseEventTime(raw.End),
		Location:    raw.Location,
		Description: raw.Description,
		// A date-only start marks an all-day event.
		AllDay:     raw.Start.DateTime == "",
		CalendarID: calendarID,
		Color:      color,
	}
}

func parseEventTime(t rawEventTime) time.Time {
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed
		}
	}
	if t.Date != "" {
		if parsed, err := time.Parse("2006-01-02", t.Date); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func (c *CalendarClient) get(ctx context.Context, userID int64, path string, params url.Values, out any) error {
	token, err := c.tokens.AccessToken(ctx, userID)
	if err != nil {
		return err
	}

	u := c.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build calendar request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return &integration.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &integration.APIError{Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode calendar response: %w", err)
	}
	return nil
}
