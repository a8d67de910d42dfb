package store

import "time"

// User represents a person authenticated via the OIDC login provider.
type User struct {
	ID           int64
	OIDCSubject  string
	PrimaryEmail string
	DisplayName  *string
	CreatedAt    time.Time
	LastLoginAt  time.Time
}

// Session is a browser session row backing the session cookie.
type Session struct {
	ID         string
	UserID     int64
	UserAgent  *string
	IPAddress  *string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastSeenAt time.Time
}

// GoogleCredential is the stored OAuth token pair for the calendar
// integration, one row per user. ExpiresAt must be consulted before every
// authenticated call.
type GoogleCredential struct {
	UserID       int64
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresAt    time.Time
	Connected    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HomeAssistantConnection stores a user's Home Assistant instance URL and
// long-lived access token. The token is opaque and never expires from our
// perspective.
type HomeAssistantConnection struct {
	UserID         int64
	BaseURL        string
	AccessToken    string
	ConnectionType string // "local" or "cloud"
	Connected      bool
	LastSync       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WidgetPosition is a widget's grid placement inside a screen layout.
type WidgetPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// WidgetLayoutItem is one widget placed on a screen.
type WidgetLayoutItem struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Props    map[string]any `json:"props,omitempty"`
	Position WidgetPosition `json:"position"`
}

// Screen is a named dashboard layout. At most one screen per user is active;
// PublicToken grants anonymous read access while IsPublic is set.
type Screen struct {
	ID          string
	UserID      int64
	Name        string
	Description *string
	Layout      []WidgetLayoutItem
	IsPublic    bool
	PublicToken *string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserSettings holds per-user dashboard preferences.
type UserSettings struct {
	UserID                  int64
	VisibleWidgets          []string
	WidgetOrder             []string
	ThemeVariant            string
	GoogleCalendarEnabled   bool
	LocationTrackingEnabled bool
	DisplayName             *string
	UpdatedAt               time.Time
}

// HAWidgetItem pins one Home Assistant entity to the dashboard.
type HAWidgetItem struct {
	ID          string
	UserID      int64
	EntityID    string
	DisplayName *string
	Position    int
	CreatedAt   time.Time
}

// LocationTrack is one recorded position of the user, shown by the location
// widget. Address and LocationName come from the client's reverse geocoding.
type LocationTrack struct {
	ID           string
	UserID       int64
	Latitude     float64
	Longitude    float64
	Accuracy     *float64
	Address      *string
	LocationName *string
	RecordedAt   time.Time
}

// DisplayToken is a long-lived credential letting a kiosk display fetch its
// screen without a browser session. Only the bcrypt hash is stored.
type DisplayToken struct {
	ID         int64
	UserID     int64
	Label      string
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	RevokedAt  *time.Time
	LastUsedAt *time.Time
}
