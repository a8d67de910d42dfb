package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool

	Users             UserRepository
	Sessions          SessionRepository
	GoogleCredentials GoogleCredentialRepository
	HomeAssistant     HomeAssistantRepository
	Screens           ScreenRepository
	Settings          SettingsRepository
	HAWidgets         HAWidgetRepository
	DisplayTokens     DisplayTokenRepository
	Locations         LocationRepository
}

// New wires concrete repository implementations with a shared connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:              pool,
		Users:             &userRepo{pool: pool},
		Sessions:          &sessionRepo{pool: pool},
		GoogleCredentials: &googleCredentialRepo{pool: pool},
		HomeAssistant:     &homeAssistantRepo{pool: pool},
		Screens:           &screenRepo{pool: pool},
		Settings:          &settingsRepo{pool: pool},
		HAWidgets:         &haWidgetRepo{pool: pool},
		DisplayTokens:     &displayTokenRepo{pool: pool},
		Locations:         &locationRepo{pool: pool},
	}
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}
