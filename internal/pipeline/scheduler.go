package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/covid-stats-etl/internal/observability"
)

// Job is one ingestion run triggered by the Scheduler.
type Job func(ctx context.Context) error

// Scheduler runs a Job immediately and then once per interval until the
// context is cancelled. Runs never overlap.
type Scheduler struct {
	job      Job
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// NewScheduler creates a Scheduler driven by clock.
func NewScheduler(job Job, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		job:      job,
		interval: interval,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once at least one run has succeeded.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no ingestion run has succeeded yet")
	}
	return nil
}

// Run blocks until ctx is cancelled. A failed run is logged and the next
// run happens on schedule.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	for {
		s.runOnce(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-s.clock.After(s.interval):
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.job(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduled run failed", "error", err, "next_run", s.clock.Now().Add(s.interval))
		return
	}
	s.ready.Store(true)
}
