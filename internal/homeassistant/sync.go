package homeassistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wjlander/dash-free-display/internal/integration"
	"github.com/wjlander/dash-free-display/internal/metrics"
)

// ConnState is the sync client's connection lifecycle state.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	// StateFailed means the client gave up: either the instance rejected the
	// token (fatal configuration error) or the circuit breaker tripped after
	// too many consecutive failures. A new Run is required to leave it.
	StateFailed ConnState = "failed"
)

// ErrAuthInvalid is returned when the instance rejects the access token
// during the WebSocket handshake. Fatal, not transient: reconnecting with the
// same token would fail identically.
var ErrAuthInvalid = &integration.AuthError{Reason: "home assistant rejected the websocket access token"}

// Status is a snapshot of the sync client's health, served to the UI.
type Status struct {
	State               ConnState `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	CircuitOpen         bool      `json:"circuit_open"`
	LastError           string    `json:"last_error,omitempty"`
}

// SyncOptions tunes the reconnect behavior.
type SyncOptions struct {
	BackoffMin       time.Duration // first reconnect delay, doubled per failure
	BackoffMax       time.Duration // delay ceiling
	FailureThreshold int           // consecutive failures before the circuit opens
}

func (o *SyncOptions) withDefaults() SyncOptions {
	out := SyncOptions{BackoffMin: time.Second, BackoffMax: 60 * time.Second, FailureThreshold: 10}
	if o == nil {
		return out
	}
	if o.BackoffMin > 0 {
		out.BackoffMin = o.BackoffMin
	}
	if o.BackoffMax >= out.BackoffMin {
		out.BackoffMax = o.BackoffMax
	}
	if o.FailureThreshold > 0 {
		out.FailureThreshold = o.FailureThreshold
	}
	return out
}

// SyncClient maintains a live WebSocket subscription to an instance's
// state_changed events, patching an EntitySet as they arrive. Events are
// applied strictly in arrival order by a single reader goroutine.
type SyncClient struct {
	wsURL string
	token string
	opts  SyncOptions

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	entities *EntitySet

	mu       sync.Mutex
	subs     map[string]func(Entity)
	onUpdate func(Entity)
	status   Status
	msgID    int64
}

// NewSyncClient builds a sync client for the given instance. The WebSocket
// endpoint is derived from the REST base URL (http -> ws, https -> wss).
func NewSyncClient(baseURL, token string, entities *EntitySet, opts *SyncOptions) *SyncClient {
	return &SyncClient{
		wsURL:    websocketURL(baseURL),
		token:    token,
		opts:     opts.withDefaults(),
		entities: entities,
		subs:     make(map[string]func(Entity)),
		status:   Status{State: StateDisconnected},
	}
}

func websocketURL(baseURL string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		baseURL = "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		baseURL = "ws://" + strings.TrimPrefix(baseURL, "http://")
	}
	return baseURL + "/api/websocket"
}

// OnUpdate registers the global callback fired for every applied event.
func (c *SyncClient) OnUpdate(fn func(Entity)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// Subscribe registers a per-entity callback, replacing any previous one for
// the same entity id.
func (c *SyncClient) Subscribe(entityID string, fn func(Entity)) {
	c.mu.Lock()
	c.subs[entityID] = fn
	c.mu.Unlock()
}

// Unsubscribe removes a per-entity callback.
func (c *SyncClient) Unsubscribe(entityID string) {
	c.mu.Lock()
	delete(c.subs, entityID)
	c.mu.Unlock()
}

// Status returns the current connection status snapshot.
func (c *SyncClient) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Run connects and keeps the subscription alive until ctx is cancelled, the
// instance rejects the token, or the circuit breaker trips. Each unexpected
// close triggers exactly one full reconnect (auth + subscribe handshake)
// after a capped exponential backoff delay.
//
// Cancelling ctx is the disconnect path: it closes the socket, stops the
// reconnect loop, and guarantees no further events are applied.
func (c *SyncClient) Run(ctx context.Context) error {
	failures := 0
	for {
		c.setStatus(StateConnecting, failures, false, nil)

		established, err := c.connectOnce(ctx)
		if established {
			// A completed handshake resets the failure budget; the close that
			// follows counts as the first failure of a new streak.
			failures = 0
		}

		if ctx.Err() != nil {
			c.setStatus(StateDisconnected, failures, false, nil)
			return ctx.Err()
		}
		if errors.Is(err, ErrAuthInvalid) {
			c.setStatus(StateFailed, failures, false, err)
			return err
		}

		failures++
		if failures >= c.opts.FailureThreshold {
			c.setStatus(StateFailed, failures, true, err)
			return err
		}
		c.setStatus(StateDisconnected, failures, false, err)

		metrics.SyncReconnectAttempted()
		select {
		case <-time.After(c.backoffDelay(failures)):
		case <-ctx.Done():
			c.setStatus(StateDisconnected, failures, false, nil)
			return ctx.Err()
		}
	}
}

func (c *SyncClient) backoffDelay(failures int) time.Duration {
	delay := c.opts.BackoffMin
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= c.opts.BackoffMax {
			return c.opts.BackoffMax
		}
	}
	if delay > c.opts.BackoffMax {
		return c.opts.BackoffMax
	}
	return delay
}

type authFrame struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

type subscribeFrame struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type"`
}

type serverFrame struct {
	ID      int64       `json:"id,omitempty"`
	Type    string      `json:"type"`
	Success *bool       `json:"success,omitempty"`
	Message string      `json:"message,omitempty"`
	Event   *eventFrame `json:"event,omitempty"`
}

type eventFrame struct {
	EventType string `json:"event_type"`
	Data      struct {
		EntityID string  `json:"entity_id"`
		NewState *Entity `json:"new_state"`
		OldState *Entity `json:"old_state"`
	} `json:"data"`
}

// connectOnce performs one full connection attempt: dial, auth handshake,
// subscription, then the read loop until the connection drops or ctx is
// cancelled. established reports whether the handshake completed, so the
// caller can distinguish a dropped session from a failed attempt.
func (c *SyncClient) connectOnce(ctx context.Context) (established bool, err error) {
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return false, &integration.NetworkError{Err: err}
	}

	// Close the socket when ctx is cancelled so the blocking reads below
	// return immediately.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	if err := c.handshake(conn); err != nil {
		return false, err
	}

	c.setStatus(StateConnected, 0, false, nil)
	metrics.SyncConnectionOpened()
	defer metrics.SyncConnectionClosed()

	for {
		var frame serverFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return true, &integration.NetworkError{Err: err}
		}
		c.handleFrame(frame)
	}
}

// handshake sends the auth frame and, once the server accepts it, the
// state_changed subscription. No subscription frame is ever sent when auth
// fails.
func (c *SyncClient) handshake(conn *websocket.Conn) error {
	if err := conn.WriteJSON(authFrame{Type: "auth", AccessToken: c.token}); err != nil {
		return &integration.NetworkError{Err: err}
	}

	for {
		var frame serverFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return &integration.NetworkError{Err: err}
		}

		switch frame.Type {
		case "auth_required":
			// Sent by the server on open; the auth frame is already in flight.
		case "auth_ok":
			sub := subscribeFrame{ID: c.nextID(), Type: "subscribe_events", EventType: "state_changed"}
			if err := conn.WriteJSON(sub); err != nil {
				return &integration.NetworkError{Err: err}
			}
			return nil
		case "auth_invalid":
			return ErrAuthInvalid
		default:
			// Ignore anything else before auth completes.
		}
	}
}

func (c *SyncClient) handleFrame(frame serverFrame) {
	if frame.Type != "event" || frame.Event == nil || frame.Event.EventType != "state_changed" {
		return
	}
	newState := frame.Event.Data.NewState
	if newState == nil || newState.EntityID == "" {
		// Entity removed; nothing to patch.
		return
	}

	c.entities.Patch(*newState)
	metrics.SyncEventApplied()

	c.mu.Lock()
	sub := c.subs[newState.EntityID]
	onUpdate := c.onUpdate
	c.mu.Unlock()

	if sub != nil {
		sub(*newState)
	}
	if onUpdate != nil {
		onUpdate(*newState)
	}
}

// nextID returns a monotonically increasing message id for client frames.
func (c *SyncClient) nextID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgID++
	return c.msgID
}

func (c *SyncClient) setStatus(state ConnState, failures int, circuitOpen bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.State = state
	c.status.ConsecutiveFailures = failures
	c.status.CircuitOpen = circuitOpen
	if err != nil {
		c.status.LastError = err.Error()
	} else if state == StateConnected {
		c.status.LastError = ""
	}
}
