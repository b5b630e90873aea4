// Package cleanup moves expired trips out of a signed-in user's active
// partition, once at sign-in and then periodically until sign-out.
package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// Migrator moves a user's expired trips to their past partition.
// service.TripStore is the production implementation.
type Migrator interface {
	MigrateExpired(ctx context.Context, userID string) (int, error)
}

// Scheduler runs migration for one user on a fixed interval.
// A Scheduler can be started again after it has been stopped.
type Scheduler struct {
	userID   string
	migrator Migrator
	interval time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler constructs a stopped Scheduler for userID.
func NewScheduler(userID string, m Migrator, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		userID:   userID,
		migrator: m,
		interval: interval,
		log:      log.With("user_id", userID),
	}
}

// Start runs one migration immediately in the background and then one every
// interval until Stop is called or ctx is cancelled. Start on a running
// scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop halts the scheduler and waits for an in-flight migration to return.
// Stop on a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the scheduler has been started and not stopped.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer s.exit(done)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// exit marks the scheduler stopped when the loop ends on its own, as it does
// when the parent context is cancelled, so a later Start runs again.
func (s *Scheduler) exit(done chan struct{}) {
	s.mu.Lock()
	if s.done == done {
		s.cancel()
		s.cancel, s.done = nil, nil
	}
	s.mu.Unlock()
	close(done)
}

// runOnce performs one migration. Failures are logged and reported, never
// returned: the next tick simply tries again.
func (s *Scheduler) runOnce(ctx context.Context) {
	moved, err := s.migrator.MigrateExpired(ctx, s.userID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("trip cleanup failed", "error", err)
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetUser(sentry.User{ID: s.userID})
			scope.SetTag("component", "cleanup")
			sentry.CaptureException(err)
		})
		return
	}
	if moved > 0 {
		s.log.Debug("trip cleanup finished", "moved", moved)
	}
}
