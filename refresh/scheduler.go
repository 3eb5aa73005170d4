// Package refresh runs the scheduled background reconciliation: a periodic
// best-effort snapshot refresh that keeps long-lived sessions from drifting
// away from server truth.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/purchasekit/entitlements"
)

// DefaultSchedule fires every 15 minutes.
const DefaultSchedule = "@every 15m"

// Refresher is what the scheduler drives. *cache.Cache satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, reason string) error
	Snapshot() *entitlements.Snapshot
}

// Scheduler periodically refreshes through a Refresher. The snapshot's
// ttl_seconds hint acts as a staleness floor: while the last applied
// snapshot is younger than its TTL, scheduled runs are skipped.
type Scheduler struct {
	target Refresher
	log    logrus.FieldLogger
	cron   *cron.Cron

	mu          sync.Mutex
	lastRefresh time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger overrides the default logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Scheduler) { s.log = log }
}

// New creates a stopped scheduler firing on the given cron spec
// (DefaultSchedule when empty).
func New(target Refresher, spec string, opts ...Option) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	s := &Scheduler{
		target: target,
		log:    logrus.StandardLogger(),
		cron:   cron.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing. Safe to call once.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run() {
	if s.shouldSkip(time.Now()) {
		return
	}
	if err := s.target.Refresh(context.Background(), "scheduled"); err != nil {
		// Best-effort by contract; the next tick tries again.
		s.log.WithError(err).Debug("scheduled entitlement refresh failed")
		return
	}
	s.mu.Lock()
	s.lastRefresh = time.Now()
	s.mu.Unlock()
}

// shouldSkip applies the TTL hint against the local time of the last
// successful scheduled refresh. Local duration only; server and client
// clocks are never compared.
func (s *Scheduler) shouldSkip(now time.Time) bool {
	snap := s.target.Snapshot()
	ttl := snap.TTL()
	if ttl == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.lastRefresh.IsZero() && now.Sub(s.lastRefresh) < ttl
}
