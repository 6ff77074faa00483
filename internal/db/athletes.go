package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AthleteRepository handles athlete database operations.
type AthleteRepository struct {
	pool *pgxpool.Pool
}

// Upsert creates or updates an athlete profile.
func (r *AthleteRepository) Upsert(ctx context.Context, athlete *Athlete) error {
	query := `
		INSERT INTO athletes (id, username, firstname, lastname, city, country, profile, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			firstname = EXCLUDED.firstname,
			lastname = EXCLUDED.lastname,
			city = EXCLUDED.city,
			country = EXCLUDED.country,
			profile = EXCLUDED.profile,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		athlete.ID,
		athlete.Username,
		athlete.Firstname,
		athlete.Lastname,
		athlete.City,
		athlete.Country,
		athlete.Profile,
	).Scan(&athlete.CreatedAt, &athlete.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: upserting athlete: %v", ErrUnavailable, err)
	}
	return nil
}

// Get retrieves an athlete by ID.
func (r *AthleteRepository) Get(ctx context.Context, id int64) (*Athlete, error) {
	query := `
		SELECT id, username, firstname, lastname, city, country, profile,
			created_at, updated_at, last_sync_at
		FROM athletes
		WHERE id = $1
	`
	var athlete Athlete
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&athlete.ID,
		&athlete.Username,
		&athlete.Firstname,
		&athlete.Lastname,
		&athlete.City,
		&athlete.Country,
		&athlete.Profile,
		&athlete.CreatedAt,
		&athlete.UpdatedAt,
		&athlete.LastSyncAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: querying athlete: %v", ErrUnavailable, err)
	}
	return &athlete, nil
}

// UpdateLastSync records the completion timestamp of a successful sync pass.
// Only the sync engine calls this, and only after the full commit.
func (r *AthleteRepository) UpdateLastSync(ctx context.Context, id int64, syncTime time.Time) error {
	query := `
		UPDATE athletes
		SET last_sync_at = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, syncTime)
	if err != nil {
		return fmt.Errorf("%w: updating last sync: %v", ErrUnavailable, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LastSync returns the athlete's sync marker, or nil if never synced.
func (r *AthleteRepository) LastSync(ctx context.Context, id int64) (*time.Time, error) {
	athlete, err := r.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return athlete.LastSyncAt, nil
}
