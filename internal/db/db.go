// Package db provides PostgreSQL storage for cached Strava data.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")

	// ErrUnavailable classifies storage failures: the backend cannot be
	// reached or an operation against it failed. Callers must surface it,
	// never treat it as "no data".
	ErrUnavailable = errors.New("storage unavailable")
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: creating connection pool: %v", ErrUnavailable, err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: pinging database: %v", ErrUnavailable, err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying connection pool for advanced operations.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Athletes returns an AthleteRepository.
func (db *DB) Athletes() *AthleteRepository {
	return &AthleteRepository{pool: db.pool}
}

// Activities returns an ActivityRepository.
func (db *DB) Activities() *ActivityRepository {
	return &ActivityRepository{pool: db.pool}
}

// Sessions returns a SessionRepository.
func (db *DB) Sessions() *SessionRepository {
	return &SessionRepository{pool: db.pool}
}

// ClearAthlete removes everything stored for an athlete: sessions, cached
// activities, and the profile row with its sync marker. Used on logout.
func (db *DB) ClearAthlete(ctx context.Context, athleteID int64) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, query := range []string{
		`DELETE FROM sessions WHERE athlete_id = $1`,
		`DELETE FROM activities WHERE athlete_id = $1`,
		`DELETE FROM athletes WHERE id = $1`,
	} {
		if _, err := tx.Exec(ctx, query, athleteID); err != nil {
			return fmt.Errorf("%w: clearing athlete data: %v", ErrUnavailable, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing clear: %v", ErrUnavailable, err)
	}
	return nil
}
