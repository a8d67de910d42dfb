// Package screens implements dashboard screen management: CRUD, layout
// persistence, single-active-screen switching, and public sharing via
// unguessable tokens.
package screens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/wjlander/dash-free-display/internal/integration"
	"github.com/wjlander/dash-free-display/internal/store"
)

// publicTokenBytes gives 128 bits of randomness, hex-encoded to 32 chars.
const publicTokenBytes = 16

type Service struct {
	screens store.ScreenRepository
}

func NewService(screens store.ScreenRepository) *Service {
	return &Service{screens: screens}
}

func (s *Service) Create(ctx context.Context, userID int64, name string, description *string) (*store.Screen, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &integration.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return s.screens.Create(ctx, store.Screen{UserID: userID, Name: name, Description: description})
}

func (s *Service) Get(ctx context.Context, userID int64, id string) (*store.Screen, error) {
	return s.screens.GetByID(ctx, userID, id)
}

func (s *Service) List(ctx context.Context, userID int64) ([]store.Screen, error) {
	return s.screens.ListByUser(ctx, userID)
}

func (s *Service) Update(ctx context.Context, userID int64, id, name string, description *string) (*store.Screen, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &integration.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return s.screens.Update(ctx, userID, id, name, description)
}

func (s *Service) Delete(ctx context.Context, userID int64, id string) error {
	return s.screens.Delete(ctx, userID, id)
}

func (s *Service) SaveLayout(ctx context.Context, userID int64, id string, layout []store.WidgetLayoutItem) error {
	return s.screens.SaveLayout(ctx, userID, id, layout)
}

// Activate makes the given screen the user's single active screen. The swap
// is one atomic statement in the repository, so concurrent activations can
// never leave zero or two screens active.
func (s *Service) Activate(ctx context.Context, userID int64, id string) error {
	return s.screens.Activate(ctx, userID, id)
}

func (s *Service) GetActive(ctx context.Context, userID int64) (*store.Screen, error) {
	return s.screens.GetActive(ctx, userID)
}

// TogglePublicAccess flips a screen's public visibility. Enabling always
// mints a fresh token, so a link revoked by toggling off stays dead forever;
// disabling clears the stored token rather than retaining it.
func (s *Service) TogglePublicAccess(ctx context.Context, userID int64, id string) (*store.Screen, error) {
	screen, err := s.screens.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if screen.IsPublic {
		return s.screens.SetPublicAccess(ctx, userID, id, false, nil)
	}

	token, err := generatePublicToken()
	if err != nil {
		return nil, err
	}
	return s.screens.SetPublicAccess(ctx, userID, id, true, &token)
}

// LoadPublic resolves a public token to its screen; only screens currently
// marked public are returned.
func (s *Service) LoadPublic(ctx context.Context, token string) (*store.Screen, error) {
	if token == "" {
		return nil, store.ErrNotFound
	}
	return s.screens.GetPublicByToken(ctx, token)
}

// PublicURL renders the anonymous share URL for a public screen, or "" when
// the screen is not shared.
func PublicURL(baseURL string, screen *store.Screen) string {
	if !screen.IsPublic || screen.PublicToken == nil {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/screen/" + *screen.PublicToken
}

func generatePublicToken() (string, error) {
	buf := make([]byte, publicTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate public token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
