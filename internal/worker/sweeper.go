package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"signagehub/internal/clock"
	"signagehub/internal/repository"
)

// Record kinds reported to SweepRecorder
const (
	KindPairing = "pairing"
	KindNonce   = "nonce"
)

// ExpiredCredentialDeleter is the part of repository.CredentialStore the sweeper uses.
type ExpiredCredentialDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SweepRecorder is satisfied by metrics.Collector.
type SweepRecorder interface {
	Swept(kind string, n int64)
}

// Sweeper periodically deletes expired pairing codes, abandoned pairing sessions
// and, when the ledger does not expire entries itself, consumed nonces.
type Sweeper struct {
	credentials ExpiredCredentialDeleter
	nonces      repository.NoncePurger // nil for self-expiring ledgers
	clock       clock.Clock
	interval    time.Duration
	recorder    SweepRecorder
}

func NewSweeper(
	credentials ExpiredCredentialDeleter,
	nonces repository.NoncePurger,
	clk clock.Clock,
	interval time.Duration,
	recorder SweepRecorder,
) *Sweeper {
	return &Sweeper{
		credentials: credentials,
		nonces:      nonces,
		clock:       clk,
		interval:    interval,
		recorder:    recorder,
	}
}

func (s *Sweeper) Name() string { return "sweeper" }

// Run sweeps once immediately and then on every interval until ctx is cancelled.
// A failed sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[Sweeper] %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// SweepOnce runs a single pass and returns the first error encountered.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	now := s.clock.Now()
	startTime := time.Now()

	pairing, err := s.credentials.DeleteExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("delete expired pairing records: %w", err)
	}
	s.record(KindPairing, pairing)

	var nonces int64
	if s.nonces != nil {
		nonces, err = s.nonces.PurgeExpired(ctx, now)
		if err != nil {
			return fmt.Errorf("purge expired nonces: %w", err)
		}
		s.record(KindNonce, nonces)
	}

	if pairing > 0 || nonces > 0 {
		log.Printf("[Sweeper] Removed pairing=%d nonces=%d in %v", pairing, nonces, time.Since(startTime))
	}
	return nil
}

func (s *Sweeper) record(kind string, n int64) {
	if s.recorder != nil && n > 0 {
		s.recorder.Swept(kind, n)
	}
}
