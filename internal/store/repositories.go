package store

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	UpsertOIDCUser(ctx context.Context, subject, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
}

// SessionRepository handles browser session rows.
type SessionRepository interface {
	Create(ctx context.Context, session Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	ListByUser(ctx context.Context, userID int64) ([]Session, error)
	TouchLastSeen(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) error
}

// GoogleCredentialRepository stores the per-user OAuth token pair.
type GoogleCredentialRepository interface {
	Get(ctx context.Context, userID int64) (*GoogleCredential, error)
	// Save inserts or wholesale-replaces the credential row for a user.
	Save(ctx context.Context, cred GoogleCredential) (*GoogleCredential, error)
	// UpdateTokens persists a refreshed access token and its new expiry. A
	// non-empty refreshToken replaces the stored one (providers may rotate it
	// on refresh); empty keeps the stored value.
	UpdateTokens(ctx context.Context, userID int64, accessToken, refreshToken string, expiresAt time.Time) error
	Delete(ctx context.Context, userID int64) error
}

// HomeAssistantRepository stores per-user instance connection config.
type HomeAssistantRepository interface {
	Get(ctx context.Context, userID int64) (*HomeAssistantConnection, error)
	// ListConnected returns every connection that was live before the last
	// shutdown, for resuming sync sessions at startup.
	ListConnected(ctx context.Context) ([]HomeAssistantConnection, error)
	Save(ctx context.Context, conn HomeAssistantConnection) (*HomeAssistantConnection, error)
	SetConnected(ctx context.Context, userID int64, connected bool, lastSync *time.Time) error
	Delete(ctx context.Context, userID int64) error
}

// ScreenRepository manages dashboard screens and their layouts.
type ScreenRepository interface {
	Create(ctx context.Context, screen Screen) (*Screen, error)
	GetByID(ctx context.Context, userID int64, id string) (*Screen, error)
	ListByUser(ctx context.Context, userID int64) ([]Screen, error)
	Update(ctx context.Context, userID int64, id, name string, description *string) (*Screen, error)
	SaveLayout(ctx context.Context, userID int64, id string, layout []WidgetLayoutItem) error
	Delete(ctx context.Context, userID int64, id string) error
	// Activate marks the given screen active and every other screen of the
	// user inactive in one statement, so concurrent activations cannot leave
	// zero or two active screens. An unknown or foreign id returns
	// ErrNotFound without modifying any row.
	Activate(ctx context.Context, userID int64, id string) error
	GetActive(ctx context.Context, userID int64) (*Screen, error)
	SetPublicAccess(ctx context.Context, userID int64, id string, isPublic bool, token *string) (*Screen, error)
	GetPublicByToken(ctx context.Context, token string) (*Screen, error)
}

// LocationRepository stores the position history behind the location widget.
type LocationRepository interface {
	Save(ctx context.Context, track LocationTrack) (*LocationTrack, error)
	// Latest returns the most recently recorded track for the user.
	Latest(ctx context.Context, userID int64) (*LocationTrack, error)
}

// SettingsRepository stores dashboard preferences.
type SettingsRepository interface {
	Get(ctx context.Context, userID int64) (*UserSettings, error)
	Create(ctx context.Context, settings UserSettings) (*UserSettings, error)
	Update(ctx context.Context, settings UserSettings) (*UserSettings, error)
}

// HAWidgetRepository stores which Home Assistant entities are shown.
type HAWidgetRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]HAWidgetItem, error)
	Upsert(ctx context.Context, item HAWidgetItem) (*HAWidgetItem, error)
	Delete(ctx context.Context, userID int64, id string) error
}

// DisplayTokenRepository handles kiosk bearer token storage.
type DisplayTokenRepository interface {
	Create(ctx context.Context, token DisplayToken) (*DisplayToken, error)
	FindValidByUser(ctx context.Context, userID int64) ([]DisplayToken, error)
	ListByUser(ctx context.Context, userID int64) ([]DisplayToken, error)
	GetByID(ctx context.Context, id int64) (*DisplayToken, error)
	Revoke(ctx context.Context, id int64) error
	TouchLastUsed(ctx context.Context, id int64) error
}
