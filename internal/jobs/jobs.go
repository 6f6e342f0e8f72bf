// Package jobs runs periodic maintenance tasks on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/costtrack/costtrack/internal/repository"
)

// PruneSchedule is the cron spec for activity pruning.
const PruneSchedule = "@hourly"

// Scheduler owns the cron runner and its registered jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler creates an idle scheduler. Jobs never overlap themselves.
func NewScheduler(logger *slog.Logger) *Scheduler {
	logger = logger.With("component", "jobs")
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DiscardLogger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		logger: logger,
	}
}

// Add registers fn under spec. A failing run is logged and retried at the
// next tick.
func (s *Scheduler) Add(name, spec string, timeout time.Duration, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			s.logger.Error("job failed", "job", name, "error", err)
			return
		}
		s.logger.Debug("job finished", "job", name, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Shutdown stops scheduling and waits for running jobs or ctx.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActivityPruner deletes activity older than a retention window.
type ActivityPruner struct {
	store     repository.ActivityStore
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewActivityPruner creates a pruner. now defaults to time.Now.
func NewActivityPruner(store repository.ActivityStore, retention time.Duration, now func() time.Time, logger *slog.Logger) *ActivityPruner {
	if now == nil {
		now = time.Now
	}
	return &ActivityPruner{store: store, retention: retention, now: now, logger: logger}
}

// Prune removes expired rows and returns how many were deleted.
func (p *ActivityPruner) Prune(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	cutoff := p.now().Add(-p.retention)
	n, err := p.store.PruneActivity(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune activity: %w", err)
	}
	if n > 0 {
		p.logger.Info("activity pruned", "deleted", n, "cutoff", cutoff)
	}
	return n, nil
}

// Run adapts Prune to the scheduler.
func (p *ActivityPruner) Run(ctx context.Context) error {
	_, err := p.Prune(ctx)
	return err
}
