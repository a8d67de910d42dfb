package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wjlander/dash-free-display/internal/integration"
)

const maxErrorBodyBytes = 4096

// Client is an authenticated REST client for one Home Assistant instance.
type Client struct {
	baseURL string
	token   string

	// HTTPClient defaults to a client with a 10 second timeout.
	HTTPClient *http.Client
}

// NewClient validates the instance URL and builds a client. The access token
// is a long-lived bearer credential; it never expires from our perspective.
func NewClient(baseURL, token string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &integration.ValidationError{Field: "base_url", Reason: "must be an http(s) URL"}
	}
	if token == "" {
		return nil, &integration.ValidationError{Field: "access_token", Reason: "must not be empty"}
	}

	return &Client{
		baseURL:    baseURL,
		token:      token,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// BaseURL returns the normalized instance URL.
func (c *Client) BaseURL() string { return c.baseURL }

// TestConnection issues a lightweight authenticated GET and reports success.
// It never returns an error: it is a non-committal pre-flight check used
// before persisting a configuration.
func (c *Client) TestConnection(ctx context.Context) bool {
	var out map[string]any
	return c.do(ctx, http.MethodGet, "/api/", nil, &out) == nil
}

// States fetches the full state snapshot of every entity.
func (c *Client) States(ctx context.Context) ([]Entity, error) {
	var entities []Entity
	if err := c.do(ctx, http.MethodGet, "/api/states", nil, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// State fetches a single entity's current state.
func (c *Client) State(ctx context.Context, entityID string) (*Entity, error) {
	var entity Entity
	if err := c.do(ctx, http.MethodGet, "/api/states/"+url.PathEscape(entityID), nil, &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}

// CallService dispatches a service call (e.g. light.toggle). Fire-and-forget:
// the new entity state arrives through the sync client's event stream, not
// through this call's response, so callers must not update local state here.
func (c *Client) CallService(ctx context.Context, domain, service string, target map[string]any, data map[string]any) error {
	body := make(map[string]any, len(target)+len(data))
	for k, v := range data {
		body[k] = v
	}
	for k, v := range target {
		body[k] = v
	}

	path := fmt.Sprintf("/api/services/%s/%s", url.PathEscape(domain), url.PathEscape(service))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return &integration.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &integration.AuthError{Reason: fmt.Sprintf("home assistant rejected the access token (status %d)", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &integration.APIError{Status: resp.StatusCode, Body: string(b)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
