// Package sync pulls the athlete's full activity history from Strava and
// commits it to the local store in a single pass.
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tguillot/straviz/internal/db"
	"github.com/tguillot/straviz/internal/strava"
)

// Common errors.
var (
	// ErrSyncInProgress is returned when a sync is requested while another
	// pass is still running. Concurrent requests are rejected, not queued.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// Defaults matching the Strava API limits this service is tuned for.
const (
	DefaultPageSize = 100
	// DefaultPageInterval is the pacing floor between page requests. It is
	// not an error backoff; it applies between every pair of fetches.
	DefaultPageInterval = 100 * time.Millisecond
)

// Fetcher retrieves one page of activities. *strava.Client implements it.
type Fetcher interface {
	ActivitiesPage(ctx context.Context, page, perPage int, opts strava.PageOptions) ([]strava.Activity, error)
}

// Store is the slice of the local store the sync engine writes to.
type Store interface {
	UpsertActivities(ctx context.Context, activities []db.Activity) error
	UpdateLastSync(ctx context.Context, athleteID int64, syncTime time.Time) error
}

// DBStore adapts *db.DB to the Store interface.
type DBStore struct {
	DB *db.DB
}

// UpsertActivities commits a batch of activities.
func (s DBStore) UpsertActivities(ctx context.Context, activities []db.Activity) error {
	return s.DB.Activities().UpsertBatch(ctx, activities)
}

// UpdateLastSync records the sync marker.
func (s DBStore) UpdateLastSync(ctx context.Context, athleteID int64, syncTime time.Time) error {
	return s.DB.Athletes().UpdateLastSync(ctx, athleteID, syncTime)
}

// Progress is a snapshot of the current or most recent sync pass.
type Progress struct {
	RunID      string `json:"runId"`
	InProgress bool   `json:"inProgress"`
	// Count is the running number of fetched activities; after a successful
	// pass it holds the final count.
	Count int    `json:"count"`
	Err   string `json:"error,omitempty"`
}

// Result describes a completed sync pass.
type Result struct {
	RunID    string
	Count    int
	SyncedAt time.Time
}

// Service drives paginated retrieval and the single store commit.
type Service struct {
	store    Store
	pageSize int
	interval time.Duration

	mu         stdsync.Mutex // guards progress, runErr and cancelRun
	inProgress stdsync.Mutex // single-flight guard, held for a whole pass
	progress   Progress
	runErr     error
	cancelRun  context.CancelFunc
}

// Option configures a Service.
type Option func(*Service)

// WithPageSize overrides the per-page batch size.
func WithPageSize(n int) Option {
	return func(s *Service) { s.pageSize = n }
}

// WithPageInterval overrides the pacing floor between page requests.
func WithPageInterval(d time.Duration) Option {
	return func(s *Service) { s.interval = d }
}

// New creates a sync service committing to the given store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		pageSize: DefaultPageSize,
		interval: DefaultPageInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins a sync pass in the background. It returns the run ID, or
// ErrSyncInProgress if a pass is already active. The pass is detached from
// the caller's context; use Cancel to stop it early.
func (s *Service) Start(ctx context.Context, fetcher Fetcher, athleteID int64) (string, error) {
	if !s.inProgress.TryLock() {
		return "", ErrSyncInProgress
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runID := uuid.NewString()
	s.mu.Lock()
	s.progress = Progress{RunID: runID, InProgress: true}
	s.runErr = nil
	s.cancelRun = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()
		defer s.inProgress.Unlock()

		result, err := s.run(runCtx, fetcher, athleteID, runID)
		if err != nil {
			s.finish(runID, 0, err)
			return
		}
		s.finish(runID, result.Count, nil)
	}()

	return runID, nil
}

// Run performs a sync pass synchronously. It holds the same single-flight
// guard as Start.
func (s *Service) Run(ctx context.Context, fetcher Fetcher, athleteID int64) (*Result, error) {
	if !s.inProgress.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.inProgress.Unlock()

	runID := uuid.NewString()
	s.mu.Lock()
	s.progress = Progress{RunID: runID, InProgress: true}
	s.runErr = nil
	s.mu.Unlock()

	result, err := s.run(ctx, fetcher, athleteID, runID)
	if err != nil {
		s.finish(runID, 0, err)
		return nil, err
	}
	s.finish(runID, result.Count, nil)
	return result, nil
}

// Cancel stops an in-flight pass. The pass ends like a failed one: nothing
// is committed and the guard is released for a retry.
func (s *Service) Cancel() {
	s.mu.Lock()
	cancel := s.cancelRun
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Progress returns a snapshot of the current or last pass.
func (s *Service) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Err returns the error that ended the last pass, or nil if it succeeded or
// is still running. Unlike Progress.Err it preserves the error chain, so
// callers can distinguish an authorization failure from a transient one.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// run fetches pages 1..n until a short batch, then commits once. Any error
// aborts without touching the store, so previously cached data and the sync
// marker stay exactly as they were.
func (s *Service) run(ctx context.Context, fetcher Fetcher, athleteID int64, runID string) (*Result, error) {
	limiter := rate.NewLimiter(rate.Every(s.interval), 1)

	var accumulated []db.Activity
	for page := 1; ; page++ {
		// The limiter starts with one token, so the first fetch is
		// immediate and every later one waits out the pacing floor.
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("sync canceled: %w", err)
		}

		batch, err := fetcher.ActivitiesPage(ctx, page, s.pageSize, strava.PageOptions{})
		if err != nil {
			return nil, fmt.Errorf("fetching page %d: %w", page, err)
		}

		accumulated = append(accumulated, convertBatch(batch, athleteID)...)
		s.setCount(runID, len(accumulated))

		// A short batch, including an empty one, is the exhaustion signal.
		if len(batch) < s.pageSize {
			break
		}
	}

	if err := s.store.UpsertActivities(ctx, accumulated); err != nil {
		return nil, fmt.Errorf("committing activities: %w", err)
	}

	syncTime := time.Now()
	if err := s.store.UpdateLastSync(ctx, athleteID, syncTime); err != nil {
		return nil, fmt.Errorf("updating sync marker: %w", err)
	}

	return &Result{RunID: runID, Count: len(accumulated), SyncedAt: syncTime}, nil
}

// finish records the terminal state of a pass.
func (s *Service) finish(runID string, count int, err error) {
	s.mu.Lock()
	if err != nil {
		s.progress = Progress{RunID: runID, Err: err.Error()}
	} else {
		s.progress = Progress{RunID: runID, Count: count}
	}
	s.runErr = err
	s.mu.Unlock()
}

func (s *Service) setCount(runID string, count int) {
	s.mu.Lock()
	if s.progress.RunID == runID {
		s.progress.Count = count
	}
	s.mu.Unlock()
}

// convertBatch maps remote activities to store records.
func convertBatch(batch []strava.Activity, athleteID int64) []db.Activity {
	out := make([]db.Activity, len(batch))
	for i, a := range batch {
		out[i] = convert(a, athleteID)
	}
	return out
}

func convert(a strava.Activity, athleteID int64) db.Activity {
	startLocal, err := time.Parse(time.RFC3339, a.StartDateLocal)
	if err != nil {
		startLocal = a.StartTime()
	}
	return db.Activity{
		ID:               a.ID,
		AthleteID:        athleteID,
		Name:             a.Name,
		Type:             a.Type,
		SportType:        a.SportType,
		Distance:         a.Distance,
		MovingTime:       a.MovingTime,
		ElapsedTime:      a.ElapsedTime,
		ElevationGain:    a.TotalElevationGain,
		StartDate:        a.StartTime(),
		StartDateLocal:   startLocal,
		AverageSpeed:     a.AverageSpeed,
		MaxSpeed:         a.MaxSpeed,
		AverageHeartrate: a.AverageHeartrate,
		MaxHeartrate:     a.MaxHeartrate,
		AverageWatts:     a.AverageWatts,
		Kilojoules:       a.Kilojoules,
		SufferScore:      a.SufferScore,
	}
}
