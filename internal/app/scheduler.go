/**
 * @description
 * Cron scheduler that owns the reconciliation trigger. Schedules are evaluated
 * in UTC and a run that overlaps the previous one is skipped.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pawfund/fundraising-service/internal/config"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the reconciliation job on its cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	jobs     *Jobs
	logger   *slog.Logger
	schedule string
	entry    cron.EntryID
}

func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:     c,
		jobs:     jobs,
		logger:   logger,
		schedule: cfg.ReconciliationSchedule,
	}
}

// Start registers the reconciliation job and starts the cron loop.
func (s *Scheduler) Start() error {
	id, err := s.cron.AddFunc(s.schedule, s.jobs.RunReconciliation)
	if err != nil {
		s.logger.Error("failed to schedule reconciliation job", "schedule", s.schedule, "error", err)
		return fmt.Errorf("schedule reconciliation %q: %w", s.schedule, err)
	}
	s.entry = id

	s.cron.Start()
	s.logger.Info("scheduled reconciliation job", "schedule", s.schedule, "next_run", s.NextRun())
	return nil
}

// NextRun reports when reconciliation fires next; zero before Start.
func (s *Scheduler) NextRun() time.Time {
	if s.entry == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Schedule.Next(time.Now().UTC())
}

// Stop halts the cron loop. The returned context is done once a running
// reconciliation finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
