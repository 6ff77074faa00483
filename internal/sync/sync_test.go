package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/tguillot/straviz/internal/db"
	"github.com/tguillot/straviz/internal/strava"
)

// fakeFetcher serves scripted pages and records call times.
type fakeFetcher struct {
	mu        stdsync.Mutex
	pages     [][]strava.Activity
	failAt    int // 1-based page number that errors; 0 = never
	failErr   error
	calls     int
	callTimes []time.Time
	block     chan struct{} // if non-nil, every call waits on it
}

func (f *fakeFetcher) ActivitiesPage(ctx context.Context, page, perPage int, _ strava.PageOptions) ([]strava.Activity, error) {
	f.mu.Lock()
	f.calls++
	f.callTimes = append(f.callTimes, time.Now())
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.failAt != 0 && page == f.failAt {
		return nil, f.failErr
	}
	if page > len(f.pages) {
		return nil, fmt.Errorf("unexpected request for page %d", page)
	}
	return f.pages[page-1], nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeStore records commits.
type fakeStore struct {
	mu          stdsync.Mutex
	upserted    [][]db.Activity
	lastSync    *time.Time
	upsertErr   error
	lastSyncErr error
}

func (s *fakeStore) UpsertActivities(_ context.Context, activities []db.Activity) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.mu.Lock()
	s.upserted = append(s.upserted, activities)
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) UpdateLastSync(_ context.Context, _ int64, syncTime time.Time) error {
	if s.lastSyncErr != nil {
		return s.lastSyncErr
	}
	s.mu.Lock()
	s.lastSync = &syncTime
	s.mu.Unlock()
	return nil
}

func makePage(start, count int) []strava.Activity {
	page := make([]strava.Activity, count)
	for i := range page {
		page[i] = strava.Activity{
			ID:        int64(start + i),
			Name:      fmt.Sprintf("Activity %d", start+i),
			Type:      "Run",
			StartDate: "2024-03-01T08:00:00Z",
		}
	}
	return page
}

func TestRunStopsOnShortBatch(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]strava.Activity{
		makePage(0, 100),
		makePage(100, 100),
		makePage(200, 37),
	}}
	store := &fakeStore{}
	svc := New(store, WithPageInterval(time.Millisecond))

	result, err := svc.Run(context.Background(), fetcher, 1)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if fetcher.callCount() != 3 {
		t.Errorf("fetch calls = %d, want 3", fetcher.callCount())
	}
	if result.Count != 237 {
		t.Errorf("result count = %d, want 237", result.Count)
	}
	if len(store.upserted) != 1 || len(store.upserted[0]) != 237 {
		t.Errorf("expected one commit of 237 activities, got %v commits", len(store.upserted))
	}
	if store.lastSync == nil {
		t.Error("sync marker was not updated")
	}
}

func TestRunZeroBatchTerminates(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]strava.Activity{{}}}
	store := &fakeStore{}
	svc := New(store, WithPageInterval(time.Millisecond))

	result, err := svc.Run(context.Background(), fetcher, 1)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if fetcher.callCount() != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.callCount())
	}
	if result.Count != 0 {
		t.Errorf("result count = %d, want 0", result.Count)
	}
	if store.lastSync == nil {
		t.Error("sync marker should be updated on an empty successful pass")
	}
}

func TestRunNoPartialCommitOnFetchError(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: [][]strava.Activity{
			makePage(0, 100),
			makePage(100, 100),
			makePage(200, 50),
		},
		failAt:  3,
		failErr: strava.ErrRemoteUnavailable,
	}
	store := &fakeStore{}
	svc := New(store, WithPageInterval(time.Millisecond))

	_, err := svc.Run(context.Background(), fetcher, 1)
	if !errors.Is(err, strava.ErrRemoteUnavailable) {
		t.Fatalf("Run() error = %v, want ErrRemoteUnavailable", err)
	}

	if len(store.upserted) != 0 {
		t.Errorf("store received %d commits, want 0", len(store.upserted))
	}
	if store.lastSync != nil {
		t.Error("sync marker must not move on a failed pass")
	}

	// The guard is released; a retry is possible.
	fetcher2 := &fakeFetcher{pages: [][]strava.Activity{makePage(0, 5)}}
	if _, err := svc.Run(context.Background(), fetcher2, 1); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestRunPacingFloor(t *testing.T) {
	const interval = 30 * time.Millisecond
	fetcher := &fakeFetcher{pages: [][]strava.Activity{
		makePage(0, 100),
		makePage(100, 100),
		makePage(200, 10),
	}}
	svc := New(&fakeStore{}, WithPageInterval(interval))

	if _, err := svc.Run(context.Background(), fetcher, 1); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for i := 1; i < len(fetcher.callTimes); i++ {
		gap := fetcher.callTimes[i].Sub(fetcher.callTimes[i-1])
		// Allow a little scheduler slack below the nominal interval.
		if gap < interval-5*time.Millisecond {
			t.Errorf("gap between fetch %d and %d = %v, want >= %v", i, i+1, gap, interval)
		}
	}
}

func TestStartSingleFlight(t *testing.T) {
	block := make(chan struct{})
	fetcher := &fakeFetcher{
		pages: [][]strava.Activity{makePage(0, 5)},
		block: block,
	}
	store := &fakeStore{}
	svc := New(store, WithPageInterval(time.Millisecond))

	runID, err := svc.Start(context.Background(), fetcher, 1)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if runID == "" {
		t.Fatal("Start() returned empty run ID")
	}

	if _, err := svc.Start(context.Background(), fetcher, 1); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("second Start() error = %v, want ErrSyncInProgress", err)
	}
	if _, err := svc.Run(context.Background(), fetcher, 1); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("Run() during Start error = %v, want ErrSyncInProgress", err)
	}

	close(block)
	waitForIdle(t, svc)

	p := svc.Progress()
	if p.Err != "" {
		t.Errorf("progress error = %q, want none", p.Err)
	}
	if p.Count != 5 {
		t.Errorf("final count = %d, want 5", p.Count)
	}
}

func TestCancelBehavesLikeFailure(t *testing.T) {
	block := make(chan struct{})
	fetcher := &fakeFetcher{
		pages: [][]strava.Activity{makePage(0, 5)},
		block: block,
	}
	store := &fakeStore{}
	svc := New(store, WithPageInterval(time.Millisecond))

	if _, err := svc.Start(context.Background(), fetcher, 1); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	svc.Cancel()
	waitForIdle(t, svc)

	if len(store.upserted) != 0 {
		t.Error("canceled pass must not commit")
	}
	if store.lastSync != nil {
		t.Error("canceled pass must not move the sync marker")
	}
	if p := svc.Progress(); p.Err == "" {
		t.Error("canceled pass should surface an error in progress")
	}

	// Guard released: a fresh pass can start.
	fetcher2 := &fakeFetcher{pages: [][]strava.Activity{makePage(0, 2)}}
	if _, err := svc.Run(context.Background(), fetcher2, 1); err != nil {
		t.Fatalf("Run() after cancel error = %v", err)
	}
}

func TestProgressMonotonicDuringRun(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]strava.Activity{
		makePage(0, 100),
		makePage(100, 100),
		makePage(200, 1),
	}}
	svc := New(&fakeStore{}, WithPageInterval(5*time.Millisecond))

	done := make(chan struct{})
	var counts []int
	go func() {
		defer close(done)
		for {
			p := svc.Progress()
			if len(counts) == 0 || p.Count != counts[len(counts)-1] {
				counts = append(counts, p.Count)
			}
			if !p.InProgress && p.RunID != "" {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	if _, err := svc.Run(context.Background(), fetcher, 1); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	<-done

	for i := 1; i < len(counts); i++ {
		if counts[i] < counts[i-1] {
			t.Fatalf("progress counts decreased: %v", counts)
		}
	}
}

func TestErrPreservesClassificationAcrossStart(t *testing.T) {
	fetcher := &fakeFetcher{
		pages:   [][]strava.Activity{makePage(0, 100)},
		failAt:  1,
		failErr: strava.ErrUnauthorized,
	}
	store := &fakeStore{}
	svc := New(store, WithPageInterval(time.Millisecond))

	if _, err := svc.Start(context.Background(), fetcher, 1); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitForIdle(t, svc)

	// The background goroutine flattens the error into Progress.Err for the
	// JSON surface, but Err() must keep the chain so callers can react to
	// an authorization failure.
	if err := svc.Err(); !errors.Is(err, strava.ErrUnauthorized) {
		t.Errorf("Err() = %v, want ErrUnauthorized in chain", err)
	}
	if p := svc.Progress(); p.Err == "" {
		t.Error("Progress.Err is empty after a failed pass")
	}

	// A later successful pass clears the terminal error.
	fetcher2 := &fakeFetcher{pages: [][]strava.Activity{makePage(0, 3)}}
	if _, err := svc.Run(context.Background(), fetcher2, 1); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := svc.Err(); err != nil {
		t.Errorf("Err() = %v after a successful pass, want nil", err)
	}
}

// waitForIdle polls until the background pass finishes.
func waitForIdle(t *testing.T, svc *Service) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p := svc.Progress(); !p.InProgress {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("sync did not finish in time")
}
