/**
 * @description
 * Reconciliation sweeps run by the scheduler: campaigns that reached their
 * goal, campaigns whose window has ended, and pets whose funding cycle is due.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pawfund/fundraising-service/internal/domain"
)

// ErrReconciliationInProgress is returned when another instance holds the sweep lock.
var ErrReconciliationInProgress = errors.New("reconciliation already in progress")

// errAlreadyReconciled aborts a per-item transaction that has nothing to do.
var errAlreadyReconciled = errors.New("already reconciled")

// SweepLock keeps concurrent instances from sweeping at the same time.
type SweepLock interface {
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}

// ReconciliationReport counts what one run did.
type ReconciliationReport struct {
	CampaignsCompletedByGoal int `json:"campaigns_completed_by_goal"`
	CampaignsCompletedByTime int `json:"campaigns_completed_by_time"`
	PetsReset                int `json:"pets_reset"`
	Skipped                  int `json:"skipped"`
	Failed                   int `json:"failed"`
}

// Jobs contains the scheduled reconciliation logic.
type Jobs struct {
	repo   Repository
	ledger Ledger
	events EventPublisher
	lock   SweepLock
	logger *slog.Logger
	now    func() time.Time
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo Repository, ledger Ledger, events EventPublisher, logger *slog.Logger, now func() time.Time) *Jobs {
	return &Jobs{
		repo:   repo,
		ledger: ledger,
		events: events,
		logger: logger,
		now:    clockOrDefault(now),
	}
}

// SetSweepLock enables cross-instance locking. A nil lock sweeps unguarded.
func (j *Jobs) SetSweepLock(lock SweepLock) {
	j.lock = lock
}

// RunReconciliation is the cron entry point.
func (j *Jobs) RunReconciliation() {
	j.logger.Info("starting reconciliation job")
	report, err := j.Reconcile(context.Background())
	if err != nil {
		if errors.Is(err, ErrReconciliationInProgress) {
			j.logger.Info("reconciliation skipped; another instance holds the lock")
			return
		}
		j.logger.Error("reconciliation job failed", "error", err, "report", report)
		return
	}
	j.logger.Info("reconciliation job finished",
		"completed_by_goal", report.CampaignsCompletedByGoal,
		"completed_by_time", report.CampaignsCompletedByTime,
		"pets_reset", report.PetsReset,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
}

// Reconcile runs every sweep once. Per-item failures are logged and counted;
// a broken pet funding invariant stops the run.
func (j *Jobs) Reconcile(ctx context.Context) (ReconciliationReport, error) {
	var report ReconciliationReport

	if j.lock != nil {
		release, acquired, err := j.lock.TryAcquire(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to acquire sweep lock: %w", err)
		}
		if !acquired {
			return report, ErrReconciliationInProgress
		}
		defer release()
	}

	if err := j.sweepGoalReached(ctx, &report); err != nil {
		return report, err
	}
	if err := j.sweepExpiredCampaigns(ctx, &report); err != nil {
		return report, err
	}
	if err := j.sweepPetCycles(ctx, &report); err != nil {
		return report, err
	}
	return report, nil
}

func (j *Jobs) sweepGoalReached(ctx context.Context, report *ReconciliationReport) error {
	ids, err := j.repo.ListActiveCampaignsReachedGoal(ctx)
	if err != nil {
		return fmt.Errorf("failed to list campaigns that reached goal: %w", err)
	}

	for _, id := range ids {
		now := j.now()
		c, err := j.ledger.MutateCampaign(ctx, id, func(c *domain.Campaign) error {
			if c.Status != domain.CampaignActive || c.CurrentAmount.LessThan(c.GoalAmount) {
				return errAlreadyReconciled
			}
			return c.Complete(now)
		})
		if j.countItem(report, "complete_goal_reached", id, err) {
			report.CampaignsCompletedByGoal++
			publishEvent(ctx, j.events, j.logger, domain.EventCampaignCompleted, domain.NewCampaignEvent(c, "goal_reached", now))
		}
	}
	return nil
}

func (j *Jobs) sweepExpiredCampaigns(ctx context.Context, report *ReconciliationReport) error {
	ids, err := j.repo.ListActiveCampaignsEndedBefore(ctx, j.now())
	if err != nil {
		return fmt.Errorf("failed to list expired campaigns: %w", err)
	}

	for _, id := range ids {
		now := j.now()
		c, err := j.ledger.MutateCampaign(ctx, id, func(c *domain.Campaign) error {
			if c.Status != domain.CampaignActive || now.Before(c.EndsAt) {
				return errAlreadyReconciled
			}
			return c.Complete(now)
		})
		if j.countItem(report, "complete_time_expired", id, err) {
			report.CampaignsCompletedByTime++
			publishEvent(ctx, j.events, j.logger, domain.EventCampaignCompleted, domain.NewCampaignEvent(c, "time_expired", now))
		}
	}
	return nil
}

func (j *Jobs) sweepPetCycles(ctx context.Context, report *ReconciliationReport) error {
	ids, err := j.repo.ListPetsDueForCycleReset(ctx, j.now().Add(-domain.FundingCycleLength))
	if err != nil {
		return fmt.Errorf("failed to list pets due for cycle reset: %w", err)
	}

	for _, id := range ids {
		now := j.now()
		_, err := j.ledger.MutatePetFunding(ctx, id, func(p *domain.PetFunding) error {
			if !p.NeedsCycleReset(now) {
				return errAlreadyReconciled
			}
			if err := p.CheckInvariants(); err != nil {
				return err
			}
			p.ResetCycle(now)
			return nil
		})
		if domain.IsCode(err, domain.ErrorInvariantViolation) {
			report.Failed++
			j.logger.Error("pet funding invariant violated; aborting sweep", "pet_id", id, "error", err)
			return fmt.Errorf("pet %s: %w", id, err)
		}
		if j.countItem(report, "reset_pet_cycle", id, err) {
			report.PetsReset++
		}
	}
	return nil
}

// countItem records a per-item result and reports whether the item changed.
func (j *Jobs) countItem(report *ReconciliationReport, op string, id uuid.UUID, err error) bool {
	switch {
	case err == nil:
		j.logger.Info("reconciled item", "op", op, "id", id)
		return true
	case errors.Is(err, errAlreadyReconciled):
		report.Skipped++
		return false
	default:
		report.Failed++
		j.logger.Error("failed to reconcile item", "op", op, "id", id, "error", err)
		return false
	}
}
