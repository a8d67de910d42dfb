package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// settingsRepo implements SettingsRepository.
type settingsRepo struct {
	pool *pgxpool.Pool
}

const settingsColumns = `user_id, visible_widgets, widget_order, theme_variant, google_calendar_enabled, location_tracking_enabled, display_name, updated_at`

func scanSettings(row interface{ Scan(...any) error }) (*UserSettings, error) {
	var s UserSettings
	var visible, order []byte
	err := row.Scan(&s.UserID, &visible, &order, &s.ThemeVariant,
		&s.GoogleCalendarEnabled, &s.LocationTrackingEnabled, &s.DisplayName, &s.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	if err := json.Unmarshal(visible, &s.VisibleWidgets); err != nil {
		return nil, fmt.Errorf("decode visible widgets: %w", err)
	}
	if err := json.Unmarshal(order, &s.WidgetOrder); err != nil {
		return nil, fmt.Errorf("decode widget order: %w", err)
	}
	return &s, nil
}

func (r *settingsRepo) Get(ctx context.Context, userID int64) (*UserSettings, error) {
	defer observeDB(ctx, "settings.get")()

	q := `SELECT ` + settingsColumns + ` FROM user_settings WHERE user_id = $1`
	return scanSettings(r.pool.QueryRow(ctx, q, userID))
}

func (r *settingsRepo) Create(ctx context.Context, settings UserSettings) (*UserSettings, error) {
	defer observeDB(ctx, "settings.create")()

	visible, err := json.Marshal(settings.VisibleWidgets)
	if err != nil {
		return nil, fmt.Errorf("encode visible widgets: %w", err)
	}
	order, err := json.Marshal(settings.WidgetOrder)
	if err != nil {
		return nil, fmt.Errorf("encode widget order: %w", err)
	}

	q := `INSERT INTO user_settings (user_id, visible_widgets, widget_order, theme_variant, google_calendar_enabled, location_tracking_enabled, display_name)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + settingsColumns

	return scanSettings(r.pool.QueryRow(ctx, q, settings.UserID, visible, order,
		settings.ThemeVariant, settings.GoogleCalendarEnabled, settings.LocationTrackingEnabled, settings.DisplayName))
}

func (r *settingsRepo) Update(ctx context.Context, settings UserSettings) (*UserSettings, error) {
	defer observeDB(ctx, "settings.update")()

	visible, err := json.Marshal(settings.VisibleWidgets)
	if err != nil {
		return nil, fmt.Errorf("encode visible widgets: %w", err)
	}
	order, err := json.Marshal(settings.WidgetOrder)
	if err != nil {
		return nil, fmt.Errorf("encode widget order: %w", err)
	}

	q := `UPDATE user_settings SET
    visible_widgets = $2,
    widget_order = $3,
    theme_variant = $4,
    google_calendar_enabled = $5,
    location_tracking_enabled = $6,
    display_name = $7,
    updated_at = now()
WHERE user_id = $1
RETURNING ` + settingsColumns

	return scanSettings(r.pool.QueryRow(ctx, q, settings.UserID, visible, order,
		settings.ThemeVariant, settings.GoogleCalendarEnabled, settings.LocationTrackingEnabled, settings.DisplayName))
}

// haWidgetRepo implements HAWidgetRepository.
type haWidgetRepo struct {
	pool *pgxpool.Pool
}

func (r *haWidgetRepo) ListByUser(ctx context.Context, userID int64) ([]HAWidgetItem, error) {
	defer observeDB(ctx, "ha_widgets.list")()

	const q = `SELECT id, user_id, entity_id, display_name, position, created_at
FROM ha_widget_items WHERE user_id = $1 ORDER BY position, created_at`

	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list ha widgets: %w", err)
	}
	defer rows.Close()

	var items []HAWidgetItem
	for rows.Next() {
		var item HAWidgetItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.EntityID, &item.DisplayName, &item.Position, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *haWidgetRepo) Upsert(ctx context.Context, item HAWidgetItem) (*HAWidgetItem, error) {
	defer observeDB(ctx, "ha_widgets.upsert")()

	const q = `INSERT INTO ha_widget_items (user_id, entity_id, display_name, position)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, entity_id) DO UPDATE SET
    display_name = EXCLUDED.display_name,
    position = EXCLUDED.position
RETURNING id, user_id, entity_id, display_name, position, created_at`

	var out HAWidgetItem
	err := r.pool.QueryRow(ctx, q, item.UserID, item.EntityID, item.DisplayName, item.Position).Scan(
		&out.ID, &out.UserID, &out.EntityID, &out.DisplayName, &out.Position, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert ha widget: %w", err)
	}
	return &out, nil
}

func (r *haWidgetRepo) Delete(ctx context.Context, userID int64, id string) error {
	defer observeDB(ctx, "ha_widgets.delete")()

	tag, err := r.pool.Exec(ctx, `DELETE FROM ha_widget_items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete ha widget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// displayTokenRepo implements DisplayTokenRepository.
type displayTokenRepo struct {
	pool *pgxpool.Pool
}

const displayTokenColumns = `id, user_id, label, token_hash, created_at, expires_at, revoked_at, last_used_at`

func scanDisplayToken(row interface{ Scan(...any) error }) (*DisplayToken, error) {
	var t DisplayToken
	err := row.Scan(&t.ID, &t.UserID, &t.Label, &t.TokenHash,
		&t.CreatedAt, &t.ExpiresAt, &t.RevokedAt, &t.LastUsedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &t, nil
}

func (r *displayTokenRepo) Create(ctx context.Context, token DisplayToken) (*DisplayToken, error) {
	defer observeDB(ctx, "display_tokens.create")()

	q := `INSERT INTO display_tokens (user_id, label, token_hash, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING ` + displayTokenColumns

	return scanDisplayToken(r.pool.QueryRow(ctx, q, token.UserID, token.Label, token.TokenHash, token.ExpiresAt))
}

func (r *displayTokenRepo) FindValidByUser(ctx context.Context, userID int64) ([]DisplayToken, error) {
	defer observeDB(ctx, "display_tokens.find_valid")()

	q := `SELECT ` + displayTokenColumns + ` FROM display_tokens
WHERE user_id = $1 AND revoked_at IS NULL AND (expires_at IS NULL OR expires_at > now())`

	return r.queryTokens(ctx, q, userID)
}

func (r *displayTokenRepo) ListByUser(ctx context.Context, userID int64) ([]DisplayToken, error) {
	defer observeDB(ctx, "display_tokens.list")()

	q := `SELECT ` + displayTokenColumns + ` FROM display_tokens WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryTokens(ctx, q, userID)
}

func (r *displayTokenRepo) queryTokens(ctx context.Context, q string, args ...any) ([]DisplayToken, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query display tokens: %w", err)
	}
	defer rows.Close()

	var tokens []DisplayToken
	for rows.Next() {
		t, err := scanDisplayToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

func (r *displayTokenRepo) GetByID(ctx context.Context, id int64) (*DisplayToken, error) {
	defer observeDB(ctx, "display_tokens.get")()

	q := `SELECT ` + displayTokenColumns + ` FROM display_tokens WHERE id = $1`
	return scanDisplayToken(r.pool.QueryRow(ctx, q, id))
}

func (r *displayTokenRepo) Revoke(ctx context.Context, id int64) error {
	defer observeDB(ctx, "display_tokens.revoke")()

	tag, err := r.pool.Exec(ctx, `UPDATE display_tokens SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke display token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *displayTokenRepo) TouchLastUsed(ctx context.Context, id int64) error {
	defer observeDB(ctx, "display_tokens.touch")()

	_, err := r.pool.Exec(ctx, `UPDATE display_tokens SET last_used_at = now() WHERE id = $1`, id)
	return err
}
