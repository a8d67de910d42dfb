package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// userRepo implements UserRepository.
type userRepo struct {
	pool *pgxpool.Pool
}

func (r *userRepo) UpsertOIDCUser(ctx context.Context, subject, email string) (*User, error) {
	defer observeDB(ctx, "users.upsert")()

	const q = `INSERT INTO users (oidc_subject, primary_email)
VALUES ($1, $2)
ON CONFLICT (oidc_subject)
DO UPDATE SET primary_email = EXCLUDED.primary_email, last_login_at = now()
RETURNING id, oidc_subject, primary_email, display_name, created_at, last_login_at`

	var u User
	err := r.pool.QueryRow(ctx, q, subject, email).Scan(
		&u.ID, &u.OIDCSubject, &u.PrimaryEmail, &u.DisplayName, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	defer observeDB(ctx, "users.get")()

	const q = `SELECT id, oidc_subject, primary_email, display_name, created_at, last_login_at
FROM users WHERE id = $1`

	var u User
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.OIDCSubject, &u.PrimaryEmail, &u.DisplayName, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &u, nil
}

// sessionRepo implements SessionRepository.
type sessionRepo struct {
	pool *pgxpool.Pool
}

func (r *sessionRepo) Create(ctx context.Context, s Session) error {
	defer observeDB(ctx, "sessions.create")()

	const q = `INSERT INTO sessions (id, user_id, user_agent, ip_address, expires_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, q, s.ID, s.UserID, s.UserAgent, s.IPAddress, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*Session, error) {
	defer observeDB(ctx, "sessions.get")()

	const q = `SELECT id, user_id, user_agent, ip_address, created_at, expires_at, last_seen_at
FROM sessions WHERE id = $1`

	var s Session
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&s.ID, &s.UserID, &s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.ExpiresAt, &s.LastSeenAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &s, nil
}

func (r *sessionRepo) ListByUser(ctx context.Context, userID int64) ([]Session, error) {
	defer observeDB(ctx, "sessions.list")()

	const q = `SELECT id, user_id, user_agent, ip_address, created_at, expires_at, last_seen_at
FROM sessions WHERE user_id = $1 ORDER BY last_seen_at DESC`

	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.ExpiresAt, &s.LastSeenAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionRepo) TouchLastSeen(ctx context.Context, id string) error {
	defer observeDB(ctx, "sessions.touch")()

	_, err := r.pool.Exec(ctx, `UPDATE sessions SET last_seen_at = now() WHERE id = $1`, id)
	return err
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	defer observeDB(ctx, "sessions.delete")()

	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *sessionRepo) DeleteExpired(ctx context.Context) error {
	defer observeDB(ctx, "sessions.delete_expired")()

	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	return err
}
