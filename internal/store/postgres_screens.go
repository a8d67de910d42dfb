package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// screenRepo implements ScreenRepository.
type screenRepo struct {
	pool *pgxpool.Pool
}

const screenColumns = `id, user_id, name, description, layout, is_public, public_token, is_active, created_at, updated_at`

func scanScreen(row interface{ Scan(...any) error }) (*Screen, error) {
	var s Screen
	var layout []byte
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.Description, &layout,
		&s.IsPublic, &s.PublicToken, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	if len(layout) > 0 {
		if err := json.Unmarshal(layout, &s.Layout); err != nil {
			return nil, fmt.Errorf("decode screen layout: %w", err)
		}
	}
	if s.Layout == nil {
		s.Layout = []WidgetLayoutItem{}
	}
	return &s, nil
}

func marshalLayout(layout []WidgetLayoutItem) ([]byte, error) {
	if layout == nil {
		layout = []WidgetLayoutItem{}
	}
	data, err := json.Marshal(layout)
	if err != nil {
		return nil, fmt.Errorf("encode screen layout: %w", err)
	}
	return data, nil
}

func (r *screenRepo) Create(ctx context.Context, screen Screen) (*Screen, error) {
	defer observeDB(ctx, "screens.create")()

	layout, err := marshalLayout(screen.Layout)
	if err != nil {
		return nil, err
	}

	q := `INSERT INTO screens (user_id, name, description, layout, is_public)
VALUES ($1, $2, $3, $4, FALSE)
RETURNING ` + screenColumns

	return scanScreen(r.pool.QueryRow(ctx, q, screen.UserID, screen.Name, screen.Description, layout))
}

func (r *screenRepo) GetByID(ctx context.Context, userID int64, id string) (*Screen, error) {
	defer observeDB(ctx, "screens.get")()

	q := `SELECT ` + screenColumns + ` FROM screens WHERE id = $1 AND user_id = $2`
	return scanScreen(r.pool.QueryRow(ctx, q, id, userID))
}

func (r *screenRepo) ListByUser(ctx context.Context, userID int64) ([]Screen, error) {
	defer observeDB(ctx, "screens.list")()

	q := `SELECT ` + screenColumns + ` FROM screens WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list screens: %w", err)
	}
	defer rows.Close()

	var screens []Screen
	for rows.Next() {
		s, err := scanScreen(rows)
		if err != nil {
			return nil, err
		}
		screens = append(screens, *s)
	}
	return screens, rows.Err()
}

func (r *screenRepo) Update(ctx context.Context, userID int64, id, name string, description *string) (*Screen, error) {
	defer observeDB(ctx, "screens.update")()

	q := `UPDATE screens SET name = $3, description = $4, updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING ` + screenColumns

	return scanScreen(r.pool.QueryRow(ctx, q, id, userID, name, description))
}

func (r *screenRepo) SaveLayout(ctx context.Context, userID int64, id string, layout []WidgetLayoutItem) error {
	defer observeDB(ctx, "screens.save_layout")()

	data, err := marshalLayout(layout)
	if err != nil {
		return err
	}

	const q = `UPDATE screens SET layout = $3, updated_at = now() WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, q, id, userID, data)
	if err != nil {
		return fmt.Errorf("save layout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *screenRepo) Delete(ctx context.Context, userID int64, id string) error {
	defer observeDB(ctx, "screens.delete")()

	tag, err := r.pool.Exec(ctx, `DELETE FROM screens WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete screen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Activate flips is_active for all of the user's screens in a single
// statement. The target ends active, every other screen inactive, with no
// window where zero or two screens are active. The EXISTS guard makes the
// whole statement a no-op when the target id is unknown or belongs to another
// user, so a failed activation never disturbs the current active screen.
func (r *screenRepo) Activate(ctx context.Context, userID int64, id string) error {
	defer observeDB(ctx, "screens.activate")()

	const q = `UPDATE screens SET is_active = (id = $2), updated_at = CASE WHEN is_active <> (id = $2) THEN now() ELSE updated_at END
WHERE user_id = $1
  AND EXISTS (SELECT 1 FROM screens target WHERE target.id = $2 AND target.user_id = $1)`

	tag, err := r.pool.Exec(ctx, q, userID, id)
	if err != nil {
		return fmt.Errorf("activate screen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *screenRepo) GetActive(ctx context.Context, userID int64) (*Screen, error) {
	defer observeDB(ctx, "screens.get_active")()

	q := `SELECT ` + screenColumns + ` FROM screens WHERE user_id = $1 AND is_active LIMIT 1`
	return scanScreen(r.pool.QueryRow(ctx, q, userID))
}

func (r *screenRepo) SetPublicAccess(ctx context.Context, userID int64, id string, isPublic bool, token *string) (*Screen, error) {
	defer observeDB(ctx, "screens.set_public")()

	q := `UPDATE screens SET is_public = $3, public_token = $4, updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING ` + screenColumns

	return scanScreen(r.pool.QueryRow(ctx, q, id, userID, isPublic, token))
}

func (r *screenRepo) GetPublicByToken(ctx context.Context, token string) (*Screen, error) {
	defer observeDB(ctx, "screens.get_public")()

	q := `SELECT ` + screenColumns + ` FROM screens WHERE public_token = $1 AND is_public`
	return scanScreen(r.pool.QueryRow(ctx, q, token))
}
