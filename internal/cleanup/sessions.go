package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voyagesur/backend/internal/metrics"
)

// Sessions owns one Scheduler per signed-in user.
type Sessions struct {
	migrator Migrator
	interval time.Duration
	log      *slog.Logger

	// base outlives individual requests; schedulers derive from it so
	// Close can stop them all.
	base   context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	schedulers map[string]*Scheduler
}

// NewSessions constructs an empty session registry.
func NewSessions(m Migrator, interval time.Duration, log *slog.Logger) *Sessions {
	base, cancel := context.WithCancel(context.Background())
	return &Sessions{
		migrator:   m,
		interval:   interval,
		log:        log,
		base:       base,
		cancel:     cancel,
		schedulers: make(map[string]*Scheduler),
	}
}

// SignIn starts the user's scheduler, or leaves an already running one alone.
func (s *Sessions) SignIn(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sch, ok := s.schedulers[userID]; ok {
		sch.Start(s.base)
		return
	}
	sch := NewScheduler(userID, s.migrator, s.interval, s.log)
	s.schedulers[userID] = sch
	sch.Start(s.base)
	metrics.ActiveSessions.Set(float64(len(s.schedulers)))
	s.log.Info("session started", "user_id", userID)
}

// SignOut stops and forgets the user's scheduler. Unknown users are ignored.
func (s *Sessions) SignOut(userID string) {
	s.mu.Lock()
	sch, ok := s.schedulers[userID]
	delete(s.schedulers, userID)
	n := len(s.schedulers)
	s.mu.Unlock()

	if !ok {
		return
	}
	sch.Stop()
	metrics.ActiveSessions.Set(float64(n))
	s.log.Info("session ended", "user_id", userID)
}

// Active reports whether userID has a running scheduler.
func (s *Sessions) Active(userID string) bool {
	s.mu.Lock()
	sch, ok := s.schedulers[userID]
	s.mu.Unlock()
	return ok && sch.Running()
}

// Close stops every scheduler. Call it during graceful shutdown.
func (s *Sessions) Close() {
	s.mu.Lock()
	all := s.schedulers
	s.schedulers = make(map[string]*Scheduler)
	s.mu.Unlock()

	s.cancel()
	for _, sch := range all {
		sch.Stop()
	}
	metrics.ActiveSessions.Set(0)
}
