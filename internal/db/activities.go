package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityRepository handles activity database operations.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

const activityColumns = `id, athlete_id, name, type, sport_type, distance,
	moving_time, elapsed_time, elevation_gain, start_date, start_date_local,
	average_speed, max_speed, average_heartrate, max_heartrate,
	average_watts, kilojoules, suffer_score, created_at`

// UpsertBatch inserts or updates activities keyed by id. Records already in
// the cache are overwritten; nothing is ever deleted here, so a sync pass
// never removes previously cached activities.
func (r *ActivityRepository) UpsertBatch(ctx context.Context, activities []Activity) error {
	if len(activities) == 0 {
		return nil
	}

	query := `
		INSERT INTO activities (id, athlete_id, name, type, sport_type, distance,
			moving_time, elapsed_time, elevation_gain, start_date, start_date_local,
			average_speed, max_speed, average_heartrate, max_heartrate,
			average_watts, kilojoules, suffer_score, created_at)
		SELECT * FROM unnest(
			$1::bigint[], $2::bigint[], $3::text[], $4::text[], $5::text[],
			$6::float8[], $7::int[], $8::int[], $9::float8[], $10::timestamptz[],
			$11::timestamptz[], $12::float8[], $13::float8[], $14::float8[],
			$15::float8[], $16::float8[], $17::float8[], $18::float8[],
			$19::timestamptz[])
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			sport_type = EXCLUDED.sport_type,
			distance = EXCLUDED.distance,
			moving_time = EXCLUDED.moving_time,
			elapsed_time = EXCLUDED.elapsed_time,
			elevation_gain = EXCLUDED.elevation_gain,
			start_date = EXCLUDED.start_date,
			start_date_local = EXCLUDED.start_date_local,
			average_speed = EXCLUDED.average_speed,
			max_speed = EXCLUDED.max_speed,
			average_heartrate = EXCLUDED.average_heartrate,
			max_heartrate = EXCLUDED.max_heartrate,
			average_watts = EXCLUDED.average_watts,
			kilojoules = EXCLUDED.kilojoules,
			suffer_score = EXCLUDED.suffer_score
	`

	n := len(activities)
	ids := make([]int64, n)
	athleteIDs := make([]int64, n)
	names := make([]string, n)
	types := make([]string, n)
	sportTypes := make([]string, n)
	distances := make([]float64, n)
	movingTimes := make([]int, n)
	elapsedTimes := make([]int, n)
	elevations := make([]float64, n)
	startDates := make([]time.Time, n)
	startDatesLocal := make([]time.Time, n)
	avgSpeeds := make([]float64, n)
	maxSpeeds := make([]float64, n)
	avgHeartrates := make([]*float64, n)
	maxHeartrates := make([]*float64, n)
	avgWatts := make([]*float64, n)
	kilojoules := make([]*float64, n)
	sufferScores := make([]*float64, n)
	createdAts := make([]time.Time, n)

	now := time.Now()
	for i, a := range activities {
		ids[i] = a.ID
		athleteIDs[i] = a.AthleteID
		names[i] = a.Name
		types[i] = a.Type
		sportTypes[i] = a.SportType
		distances[i] = a.Distance
		movingTimes[i] = a.MovingTime
		elapsedTimes[i] = a.ElapsedTime
		elevations[i] = a.ElevationGain
		startDates[i] = a.StartDate
		startDatesLocal[i] = a.StartDateLocal
		avgSpeeds[i] = a.AverageSpeed
		maxSpeeds[i] = a.MaxSpeed
		avgHeartrates[i] = a.AverageHeartrate
		maxHeartrates[i] = a.MaxHeartrate
		avgWatts[i] = a.AverageWatts
		kilojoules[i] = a.Kilojoules
		sufferScores[i] = a.SufferScore
		createdAts[i] = now
	}

	_, err := r.pool.Exec(ctx, query,
		ids, athleteIDs, names, types, sportTypes, distances,
		movingTimes, elapsedTimes, elevations, startDates, startDatesLocal,
		avgSpeeds, maxSpeeds, avgHeartrates, maxHeartrates,
		avgWatts, kilojoules, sufferScores, createdAts,
	)
	if err != nil {
		return fmt.Errorf("%w: batch upserting activities: %v", ErrUnavailable, err)
	}
	return nil
}

// All retrieves an athlete's cached activities ordered by start date desc.
func (r *ActivityRepository) All(ctx context.Context, athleteID int64) ([]Activity, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE athlete_id = $1
		ORDER BY start_date DESC
	`
	rows, err := r.pool.Query(ctx, query, athleteID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying activities: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(
			&a.ID,
			&a.AthleteID,
			&a.Name,
			&a.Type,
			&a.SportType,
			&a.Distance,
			&a.MovingTime,
			&a.ElapsedTime,
			&a.ElevationGain,
			&a.StartDate,
			&a.StartDateLocal,
			&a.AverageSpeed,
			&a.MaxSpeed,
			&a.AverageHeartrate,
			&a.MaxHeartrate,
			&a.AverageWatts,
			&a.Kilojoules,
			&a.SufferScore,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scanning activity: %v", ErrUnavailable, err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// Count returns the number of cached activities for an athlete.
func (r *ActivityRepository) Count(ctx context.Context, athleteID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM activities WHERE athlete_id = $1`, athleteID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: counting activities: %v", ErrUnavailable, err)
	}
	return count, nil
}

// DeleteAll removes all cached activities for an athlete.
func (r *ActivityRepository) DeleteAll(ctx context.Context, athleteID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM activities WHERE athlete_id = $1`, athleteID)
	if err != nil {
		return fmt.Errorf("%w: deleting activities: %v", ErrUnavailable, err)
	}
	return nil
}
