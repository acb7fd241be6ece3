package worker

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultRestartBackoff is how long a failed job waits before it is run again.
const DefaultRestartBackoff = time.Second

// Job is a long-running background task. Run blocks until ctx is cancelled;
// a returned error makes the manager restart it after a backoff.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Manager runs background jobs, one goroutine each, and restarts any that fail.
type Manager struct {
	jobs    []Job
	backoff time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a manager for jobs. A non-positive backoff uses DefaultRestartBackoff.
func NewManager(backoff time.Duration, jobs ...Job) *Manager {
	if backoff <= 0 {
		backoff = DefaultRestartBackoff
	}
	return &Manager{jobs: jobs, backoff: backoff}
}

// Start begins the job goroutines.
// Call Stop() to gracefully shut down.
func (m *Manager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)

	log.Printf("[Manager] Starting %d jobs", len(m.jobs))
	for _, job := range m.jobs {
		m.wg.Add(1)
		go m.runJob(job)
	}
}

// Stop cancels every job and blocks until all of them have returned.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	log.Printf("[Manager] Stopping jobs...")
	m.cancel()
	m.wg.Wait()
	log.Printf("[Manager] All jobs stopped")
}

func (m *Manager) runJob(job Job) {
	defer m.wg.Done()

	log.Printf("[%s] Started", job.Name())
	for {
		err := job.Run(m.ctx)
		if m.ctx.Err() != nil {
			log.Printf("[%s] Shutting down", job.Name())
			return
		}
		if err != nil {
			log.Printf("[%s] Error: %v (restarting in %s)", job.Name(), err, m.backoff)
		}

		select {
		case <-m.ctx.Done():
			log.Printf("[%s] Shutting down", job.Name())
			return
		case <-time.After(m.backoff): // Back off before restarting
		}
	}
}
