package homeassistant

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Manager owns one sync session per connected user. Sessions live for the
// server's lifetime or until the user disconnects; a user's REST client,
// entity set, and WebSocket loop are torn down together.
type Manager struct {
	opts SyncOptions

	// OnSessionDown, when set, is invoked after a session's Run loop exits
	// for any reason other than an explicit Disconnect. Used to flip the
	// stored connection's connected flag.
	OnSessionDown func(userID int64, err error)

	mu       sync.Mutex
	sessions map[int64]*session
}

type session struct {
	client   *Client
	sync     *SyncClient
	entities *EntitySet
	cancel   context.CancelFunc
}

func NewManager(opts SyncOptions) *Manager {
	return &Manager{
		opts:     opts,
		sessions: make(map[int64]*session),
	}
}

// Connect establishes a session for the user: full REST snapshot first, then
// the WebSocket subscription in a background goroutine. An existing session
// for the same user is torn down first.
func (m *Manager) Connect(ctx context.Context, userID int64, baseURL, token string) (int, error) {
	client, err := NewClient(baseURL, token)
	if err != nil {
		return 0, err
	}

	entities := NewEntitySet()
	snapshot, err := client.States(ctx)
	if err != nil {
		return 0, fmt.Errorf("initial state fetch: %w", err)
	}
	entities.ReplaceAll(snapshot)

	syncClient := NewSyncClient(client.BaseURL(), token, entities, &m.opts)

	runCtx, cancel := context.WithCancel(context.Background())
	s := &session{client: client, sync: syncClient, entities: entities, cancel: cancel}

	m.mu.Lock()
	if prev, ok := m.sessions[userID]; ok {
		prev.cancel()
	}
	m.sessions[userID] = s
	m.mu.Unlock()

	go func() {
		err := syncClient.Run(runCtx)
		if runCtx.Err() != nil {
			// Explicit disconnect; nothing to report.
			return
		}
		log.Printf("[WARN] home assistant sync ended for user %d: %v", userID, err)
		if m.OnSessionDown != nil {
			m.OnSessionDown(userID, err)
		}
	}()

	return len(snapshot), nil
}

// Disconnect cancels the user's session. In-flight fetches and reconnect
// waits are aborted via context cancellation, so no stale result is applied
// afterwards.
func (m *Manager) Disconnect(userID int64) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()

	if ok {
		s.cancel()
	}
}

func (m *Manager) session(userID int64) (*session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Entities returns a snapshot of the user's entity set.
func (m *Manager) Entities(userID int64) ([]Entity, bool) {
	s, ok := m.session(userID)
	if !ok {
		return nil, false
	}
	return s.entities.Snapshot(), true
}

// Entity returns one entity from the user's set.
func (m *Manager) Entity(userID int64, entityID string) (Entity, bool) {
	s, ok := m.session(userID)
	if !ok {
		return Entity{}, false
	}
	return s.entities.Get(entityID)
}

// Status reports the user's sync connection status.
func (m *Manager) Status(userID int64) (Status, bool) {
	s, ok := m.session(userID)
	if !ok {
		return Status{State: StateDisconnected}, false
	}
	return s.sync.Status(), true
}

// CallService dispatches a service call over the user's session.
func (m *Manager) CallService(ctx context.Context, userID int64, domain, service string, target, data map[string]any) error {
	s, ok := m.session(userID)
	if !ok {
		return fmt.Errorf("no active home assistant session")
	}
	return s.client.CallService(ctx, domain, service, target, data)
}
