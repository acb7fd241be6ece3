package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"signagehub/internal/clock"
	"signagehub/internal/logging"
	"signagehub/internal/queue"
	"signagehub/internal/realtime"
	"signagehub/internal/worker"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type MockCredentialStore struct {
	deleteFn func(ctx context.Context, now time.Time) (int64, error)
	calls    atomic.Int32
}

func (m *MockCredentialStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.calls.Add(1)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, now)
	}
	return 0, nil
}

type MockNoncePurger struct {
	purgeFn func(ctx context.Context, now time.Time) (int64, error)
}

func (m *MockNoncePurger) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return m.purgeFn(ctx, now)
}

type MockRecorder struct {
	mu    sync.Mutex
	swept map[string]int64
}

func (m *MockRecorder) Swept(kind string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.swept == nil {
		m.swept = make(map[string]int64)
	}
	m.swept[kind] += n
}

// flakyJob fails its first runs, then blocks until cancelled.
type flakyJob struct {
	failures int32
	runs     atomic.Int32
}

func (j *flakyJob) Name() string { return "flaky" }

func (j *flakyJob) Run(ctx context.Context) error {
	if j.runs.Add(1) <= j.failures {
		return errors.New("boom")
	}
	<-ctx.Done()
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// =============================================================================
// Sweeper
// =============================================================================

func TestSweeper_SweepOnce(t *testing.T) {
	// ARRANGE
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var sawNow time.Time
	creds := &MockCredentialStore{deleteFn: func(_ context.Context, at time.Time) (int64, error) {
		sawNow = at
		return 3, nil
	}}
	nonces := &MockNoncePurger{purgeFn: func(context.Context, time.Time) (int64, error) { return 7, nil }}
	rec := &MockRecorder{}
	sweeper := worker.NewSweeper(creds, nonces, clock.NewFake(now), time.Minute, rec)

	// ACT
	err := sweeper.SweepOnce(context.Background())

	// ASSERT
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if !sawNow.Equal(now) {
		t.Errorf("DeleteExpired saw %v, want %v", sawNow, now)
	}
	if rec.swept[worker.KindPairing] != 3 || rec.swept[worker.KindNonce] != 7 {
		t.Errorf("swept = %v", rec.swept)
	}
}

func TestSweeper_SelfExpiringLedger(t *testing.T) {
	rec := &MockRecorder{}
	sweeper := worker.NewSweeper(&MockCredentialStore{}, nil, clock.System(), time.Minute, rec)

	if err := sweeper.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if len(rec.swept) != 0 {
		t.Errorf("nothing removed, nothing recorded; got %v", rec.swept)
	}
}

func TestSweeper_PropagatesStoreError(t *testing.T) {
	creds := &MockCredentialStore{deleteFn: func(context.Context, time.Time) (int64, error) {
		return 0, errors.New("db down")
	}}
	sweeper := worker.NewSweeper(creds, nil, clock.System(), time.Minute, nil)

	if err := sweeper.SweepOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSweeper_RunSweepsImmediatelyAndOnTick(t *testing.T) {
	creds := &MockCredentialStore{}
	sweeper := worker.NewSweeper(creds, nil, clock.System(), 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()
	waitFor(t, func() bool { return creds.calls.Load() >= 3 })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// =============================================================================
// Manager
// =============================================================================

func TestManager_RestartsFailedJob(t *testing.T) {
	job := &flakyJob{failures: 2}
	m := worker.NewManager(5*time.Millisecond, job)

	m.Start(context.Background())
	waitFor(t, func() bool { return job.runs.Load() >= 3 })
	m.Stop()

	if runs := job.runs.Load(); runs != 3 {
		t.Errorf("runs = %d, want 3 (two failures, then steady)", runs)
	}
}

func TestManager_StopWithoutStart(t *testing.T) {
	worker.NewManager(0).Stop()
}

// =============================================================================
// Integration: relay under the manager
// =============================================================================

func TestManager_RelayDeliversPublishedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub := realtime.NewHub(0, logging.Discard())
	received := make(chan realtime.Event, 4)
	unsubscribe := hub.Subscribe("display-1", func(e realtime.Event) { received <- e })
	defer unsubscribe()
	<-received // connected

	m := worker.NewManager(10*time.Millisecond, queue.NewRelay(client, hub))
	m.Start(context.Background())
	defer m.Stop()
	waitFor(t, func() bool {
		return mr.PubSubNumSub(queue.ChannelDisplayEvents)[queue.ChannelDisplayEvents] == 1
	})

	pub := queue.NewRedisPublisher(client, "instance-a", hub)
	event := realtime.NewEvent(realtime.EventPlaylistUpdated, "display-1", nil, time.Now())
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-received:
		if got.Type != realtime.EventPlaylistUpdated {
			t.Errorf("type = %s", got.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not relayed")
	}
}
