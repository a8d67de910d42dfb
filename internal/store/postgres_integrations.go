package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// googleCredentialRepo implements GoogleCredentialRepository.
type googleCredentialRepo struct {
	pool *pgxpool.Pool
}

const googleCredentialColumns = `user_id, access_token, refresh_token, scope, expires_at, connected, created_at, updated_at`

func scanGoogleCredential(row interface{ Scan(...any) error }) (*GoogleCredential, error) {
	var c GoogleCredential
	err := row.Scan(&c.UserID, &c.AccessToken, &c.RefreshToken, &c.Scope,
		&c.ExpiresAt, &c.Connected, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &c, nil
}

func (r *googleCredentialRepo) Get(ctx context.Context, userID int64) (*GoogleCredential, error) {
	defer observeDB(ctx, "google_credentials.get")()

	q := `SELECT ` + googleCredentialColumns + ` FROM google_credentials WHERE user_id = $1`
	return scanGoogleCredential(r.pool.QueryRow(ctx, q, userID))
}

func (r *googleCredentialRepo) Save(ctx context.Context, cred GoogleCredential) (*GoogleCredential, error) {
	defer observeDB(ctx, "google_credentials.save")()

	q := `INSERT INTO google_credentials (user_id, access_token, refresh_token, scope, expires_at, connected)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE SET
    access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    scope = EXCLUDED.scope,
    expires_at = EXCLUDED.expires_at,
    connected = EXCLUDED.connected,
    updated_at = now()
RETURNING ` + googleCredentialColumns

	return scanGoogleCredential(r.pool.QueryRow(ctx, q,
		cred.UserID, cred.AccessToken, cred.RefreshToken, cred.Scope, cred.ExpiresAt, cred.Connected))
}

func (r *googleCredentialRepo) UpdateTokens(ctx context.Context, userID int64, accessToken, refreshToken string, expiresAt time.Time) error {
	defer observeDB(ctx, "google_credentials.update_tokens")()

	const q = `UPDATE google_credentials
SET access_token = $2,
    refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
    expires_at = $4,
    updated_at = now()
WHERE user_id = $1`

	tag, err := r.pool.Exec(ctx, q, userID, accessToken, refreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("update tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *googleCredentialRepo) Delete(ctx context.Context, userID int64) error {
	defer observeDB(ctx, "google_credentials.delete")()

	_, err := r.pool.Exec(ctx, `DELETE FROM google_credentials WHERE user_id = $1`, userID)
	return err
}

// homeAssistantRepo implements HomeAssistantRepository.
type homeAssistantRepo struct {
	pool *pgxpool.Pool
}

const haConnectionColumns = `user_id, base_url, access_token, connection_type, connected, last_sync, created_at, updated_at`

func scanHAConnection(row interface{ Scan(...any) error }) (*HomeAssistantConnection, error) {
	var c HomeAssistantConnection
	err := row.Scan(&c.UserID, &c.BaseURL, &c.AccessToken, &c.ConnectionType,
		&c.Connected, &c.LastSync, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &c, nil
}

func (r *homeAssistantRepo) Get(ctx context.Context, userID int64) (*HomeAssistantConnection, error) {
	defer observeDB(ctx, "home_assistant.get")()

	q := `SELECT ` + haConnectionColumns + ` FROM home_assistant_connections WHERE user_id = $1`
	return scanHAConnection(r.pool.QueryRow(ctx, q, userID))
}

func (r *homeAssistantRepo) ListConnected(ctx context.Context) ([]HomeAssistantConnection, error) {
	defer observeDB(ctx, "home_assistant.list_connected")()

	q := `SELECT ` + haConnectionColumns + ` FROM home_assistant_connections WHERE connected ORDER BY user_id`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list connected: %w", err)
	}
	defer rows.Close()

	var out []HomeAssistantConnection
	for rows.Next() {
		conn, err := scanHAConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *conn)
	}
	return out, rows.Err()
}

func (r *homeAssistantRepo) Save(ctx context.Context, conn HomeAssistantConnection) (*HomeAssistantConnection, error) {
	defer observeDB(ctx, "home_assistant.save")()

	q := `INSERT INTO home_assistant_connections (user_id, base_url, access_token, connection_type, connected, last_sync)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE SET
    base_url = EXCLUDED.base_url,
    access_token = EXCLUDED.access_token,
    connection_type = EXCLUDED.connection_type,
    connected = EXCLUDED.connected,
    last_sync = EXCLUDED.last_sync,
    updated_at = now()
RETURNING ` + haConnectionColumns

	return scanHAConnection(r.pool.QueryRow(ctx, q,
		conn.UserID, conn.BaseURL, conn.AccessToken, conn.ConnectionType, conn.Connected, conn.LastSync))
}

func (r *homeAssistantRepo) SetConnected(ctx context.Context, userID int64, connected bool, lastSync *time.Time) error {
	defer observeDB(ctx, "home_assistant.set_connected")()

	const q = `UPDATE home_assistant_connections
SET connected = $2, last_sync = COALESCE($3, last_sync), updated_at = now()
WHERE user_id = $1`

	tag, err := r.pool.Exec(ctx, q, userID, connected, lastSync)
	if err != nil {
		return fmt.Errorf("set connected: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *homeAssistantRepo) Delete(ctx context.Context, userID int64) error {
	defer observeDB(ctx, "home_assistant.delete")()

	_, err := r.pool.Exec(ctx, `DELETE FROM home_assistant_connections WHERE user_id = $1`, userID)
	return err
}
