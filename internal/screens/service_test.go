package screens

import (
	"context"
	"errors"
	"testing"

	"github.com/wjlander/dash-free-display/internal/integration"
	"github.com/wjlander/dash-free-display/internal/store"
)

// fakeScreenRepo keeps screens in memory and mirrors the SQL implementation's
// activation semantics: ownership is checked before any row changes, so a
// failed activation leaves every is_active flag as it was.
type fakeScreenRepo struct {
	screens map[string]*store.Screen
	nextID  int
}

func newFakeScreenRepo() *fakeScreenRepo {
	return &fakeScreenRepo{screens: make(map[string]*store.Screen)}
}

func (f *fakeScreenRepo) Create(ctx context.Context, screen store.Screen) (*store.Screen, error) {
	f.nextID++
	screen.ID = string(rune('a' + f.nextID - 1))
	f.screens[screen.ID] = &screen
	c := screen
	return &c, nil
}

func (f *fakeScreenRepo) GetByID(ctx context.Context, userID int64, id string) (*store.Screen, error) {
	s, ok := f.screens[id]
	if !ok || s.UserID != userID {
		return nil, store.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeScreenRepo) ListByUser(ctx context.Context, userID int64) ([]store.Screen, error) {
	var out []store.Screen
	for _, s := range f.screens {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeScreenRepo) Update(ctx context.Context, userID int64, id, name string, description *string) (*store.Screen, error) {
	s, ok := f.screens[id]
	if !ok || s.UserID != userID {
		return nil, store.ErrNotFound
	}
	s.Name = name
	s.Description = description
	c := *s
	return &c, nil
}

func (f *fakeScreenRepo) SaveLayout(ctx context.Context, userID int64, id string, layout []store.WidgetLayoutItem) error {
	s, ok := f.screens[id]
	if !ok || s.UserID != userID {
		return store.ErrNotFound
	}
	s.Layout = layout
	return nil
}

func (f *fakeScreenRepo) Delete(ctx context.Context, userID int64, id string) error {
	s, ok := f.screens[id]
	if !ok || s.UserID != userID {
		return store.ErrNotFound
	}
	delete(f.screens, id)
	return nil
}

func (f *fakeScreenRepo) Activate(ctx context.Context, userID int64, id string) error {
	target, ok := f.screens[id]
	if !ok || target.UserID != userID {
		return store.ErrNotFound
	}
	for _, s := range f.screens {
		if s.UserID == userID {
			s.IsActive = s.ID == id
		}
	}
	return nil
}

func (f *fakeScreenRepo) GetActive(ctx context.Context, userID int64) (*store.Screen, error) {
	for _, s := range f.screens {
		if s.UserID == userID && s.IsActive {
			c := *s
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeScreenRepo) SetPublicAccess(ctx context.Context, userID int64, id string, isPublic bool, token *string) (*store.Screen, error) {
	s, ok := f.screens[id]
	if !ok || s.UserID != userID {
		return nil, store.ErrNotFound
	}
	s.IsPublic = isPublic
	s.PublicToken = token
	c := *s
	return &c, nil
}

func (f *fakeScreenRepo) GetPublicByToken(ctx context.Context, token string) (*store.Screen, error) {
	for _, s := range f.screens {
		if s.IsPublic && s.PublicToken != nil && *s.PublicToken == token {
			c := *s
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func TestCreateRejectsBlankName(t *testing.T) {
	svc := NewService(newFakeScreenRepo())

	for _, name := range []string{"", "   ", "\t"} {
		_, err := svc.Create(context.Background(), 1, name, nil)
		var valErr *integration.ValidationError
		if !errors.As(err, &valErr) {
			t.Errorf("Create(%q) err = %v, want ValidationError", name, err)
		}
	}
}

func TestActivateIsExclusive(t *testing.T) {
	repo := newFakeScreenRepo()
	svc := NewService(repo)
	ctx := context.Background()

	first, _ := svc.Create(ctx, 1, "Morning", nil)
	second, _ := svc.Create(ctx, 1, "Evening", nil)

	if err := svc.Activate(ctx, 1, first.ID); err != nil {
		t.Fatalf("Activate first: %v", err)
	}
	if err := svc.Activate(ctx, 1, second.ID); err != nil {
		t.Fatalf("Activate second: %v", err)
	}

	active, err := svc.GetActive(ctx, 1)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active.ID != second.ID {
		t.Errorf("active = %s, want %s", active.ID, second.ID)
	}

	count := 0
	list, _ := svc.List(ctx, 1)
	for _, s := range list {
		if s.IsActive {
			count++
		}
	}
	if count != 1 {
		t.Errorf("active screens = %d, want exactly 1", count)
	}
}

func TestActivateForeignScreen(t *testing.T) {
	repo := newFakeScreenRepo()
	svc := NewService(repo)
	ctx := context.Background()

	mine, _ := svc.Create(ctx, 1, "Mine", nil)
	other, _ := svc.Create(ctx, 2, "Theirs", nil)

	if err := svc.Activate(ctx, 1, mine.ID); err != nil {
		t.Fatalf("Activate own screen: %v", err)
	}

	if err := svc.Activate(ctx, 1, other.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Activate foreign screen err = %v, want ErrNotFound", err)
	}
	if err := svc.Activate(ctx, 1, "no-such-id"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Activate unknown screen err = %v, want ErrNotFound", err)
	}

	// A failed activation must not disturb the currently active screen.
	active, err := svc.GetActive(ctx, 1)
	if err != nil {
		t.Fatalf("GetActive after failed activations: %v", err)
	}
	if active.ID != mine.ID {
		t.Errorf("active = %s, want %s", active.ID, mine.ID)
	}
}

func TestTogglePublicAccessLifecycle(t *testing.T) {
	repo := newFakeScreenRepo()
	svc := NewService(repo)
	ctx := context.Background()

	screen, _ := svc.Create(ctx, 1, "Shared", nil)

	// Enable: a token appears.
	enabled, err := svc.TogglePublicAccess(ctx, 1, screen.ID)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !enabled.IsPublic || enabled.PublicToken == nil {
		t.Fatalf("enabled = %+v, want public with token", enabled)
	}
	firstToken := *enabled.PublicToken
	if len(firstToken) != publicTokenBytes*2 {
		t.Errorf("token length = %d, want %d hex chars", len(firstToken), publicTokenBytes*2)
	}

	loaded, err := svc.LoadPublic(ctx, firstToken)
	if err != nil {
		t.Fatalf("LoadPublic: %v", err)
	}
	if loaded.ID != screen.ID {
		t.Errorf("loaded %s, want %s", loaded.ID, screen.ID)
	}

	// Disable: token cleared, link dead.
	disabled, err := svc.TogglePublicAccess(ctx, 1, screen.ID)
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if disabled.IsPublic || disabled.PublicToken != nil {
		t.Errorf("disabled = %+v, want private with no token", disabled)
	}
	if _, err := svc.LoadPublic(ctx, firstToken); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("old token still resolves after disable: %v", err)
	}

	// Re-enable: fresh token, old one stays dead.
	reenabled, err := svc.TogglePublicAccess(ctx, 1, screen.ID)
	if err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if reenabled.PublicToken == nil || *reenabled.PublicToken == firstToken {
		t.Error("re-enable reused the revoked token")
	}
	if _, err := svc.LoadPublic(ctx, firstToken); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("revoked token resolves after re-enable: %v", err)
	}
}

func TestLoadPublicEmptyToken(t *testing.T) {
	svc := NewService(newFakeScreenRepo())

	if _, err := svc.LoadPublic(context.Background(), ""); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPublicURL(t *testing.T) {
	token := "abc123"
	public := &store.Screen{IsPublic: true, PublicToken: &token}
	if got := PublicURL("https://dash.example/", public); got != "https://dash.example/screen/abc123" {
		t.Errorf("PublicURL = %q", got)
	}

	private := &store.Screen{}
	if got := PublicURL("https://dash.example", private); got != "" {
		t.Errorf("PublicURL of private screen = %q, want empty", got)
	}
}
