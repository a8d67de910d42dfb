package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// locationRepo implements LocationRepository.
type locationRepo struct {
	pool *pgxpool.Pool
}

const locationTrackColumns = `id, user_id, latitude, longitude, accuracy, address, location_name, recorded_at`

func scanLocationTrack(row interface{ Scan(...any) error }) (*LocationTrack, error) {
	var t LocationTrack
	err := row.Scan(&t.ID, &t.UserID, &t.Latitude, &t.Longitude,
		&t.Accuracy, &t.Address, &t.LocationName, &t.RecordedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &t, nil
}

func (r *locationRepo) Save(ctx context.Context, track LocationTrack) (*LocationTrack, error) {
	defer observeDB(ctx, "location_tracks.save")()

	q := `INSERT INTO location_tracks (user_id, latitude, longitude, accuracy, address, location_name)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + locationTrackColumns

	t, err := scanLocationTrack(r.pool.QueryRow(ctx, q, track.UserID,
		track.Latitude, track.Longitude, track.Accuracy, track.Address, track.LocationName))
	if err != nil {
		return nil, fmt.Errorf("save location track: %w", err)
	}
	return t, nil
}

func (r *locationRepo) Latest(ctx context.Context, userID int64) (*LocationTrack, error) {
	defer observeDB(ctx, "location_tracks.latest")()

	q := `SELECT ` + locationTrackColumns + ` FROM location_tracks
WHERE user_id = $1 ORDER BY recorded_at DESC LIMIT 1`

	return scanLocationTrack(r.pool.QueryRow(ctx, q, userID))
}
