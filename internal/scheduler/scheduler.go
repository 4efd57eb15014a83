// Package scheduler runs backfills on a cron schedule. Each tick is a full,
// independent run; a tick that fires while the previous run is still going is
// skipped rather than overlapped.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron runner around the backfill pipeline.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// New creates a Scheduler.
func New(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:  log,
	}
}

// Register adds the backfill job under the given cron expression.
func (s *Scheduler) Register(spec string, job func()) error {
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("registering schedule %q: %w", spec, err)
	}
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled, then stops it
// gracefully.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	s.log.Info("scheduler started")

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	s.log.Info("scheduler stopped")
}
