/**
 * @description
 * LedgerGuard serializes every balance and status mutation behind a row lock.
 *
 * Each operation runs: begin -> bounded lock wait -> SELECT ... FOR UPDATE ->
 * pure domain calculation on the freshly read row -> persist -> commit.
 * Any error rolls the whole unit back. Lock wait timeouts and deadlocks
 * surface as CONCURRENCY_CONFLICT so callers can retry.
 */
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pawfund/fundraising-service/internal/domain"
	"github.com/pawfund/fundraising-service/internal/store"
)

// TxBeginner opens ledger transactions.
type TxBeginner interface {
	BeginLedgerTx(ctx context.Context, lockTimeout time.Duration) (store.LedgerTx, error)
}

// Guard is the only component that opens ledger transactions.
type Guard struct {
	repo        TxBeginner
	logger      *slog.Logger
	lockTimeout time.Duration
	now         func() time.Time
}

// NewGuard creates a guard. A nil clock uses time.Now.
func NewGuard(repo TxBeginner, logger *slog.Logger, lockTimeout time.Duration, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{
		repo:        repo,
		logger:      logger,
		lockTimeout: lockTimeout,
		now:         now,
	}
}

func (g *Guard) inTx(ctx context.Context, op string, id uuid.UUID, fn func(tx store.LedgerTx) error) error {
	tx, err := g.repo.BeginLedgerTx(ctx, g.lockTimeout)
	if err != nil {
		return g.translate(op, id, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return g.translate(op, id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return g.translate(op, id, err)
	}
	return nil
}

func (g *Guard) translate(op string, id uuid.UUID, err error) error {
	if errors.Is(err, store.ErrLockTimeout) {
		g.logger.Warn("ledger lock not acquired", "operation", op, "id", id, "lock_timeout", g.lockTimeout, "error", err)
		conflict := domain.NewDomainError(domain.ErrorConcurrencyConflict, op, "row is locked by another operation, retry")
		return fmt.Errorf("%w: %w", conflict, err)
	}
	return err
}

// ApplyDonation records a completed payment exactly once and credits its
// target. Redelivered confirmations return an outcome marked Duplicate.
func (g *Guard) ApplyDonation(ctx context.Context, conf domain.PaymentConfirmation) (domain.DonationOutcome, error) {
	if err := conf.Validate(); err != nil {
		return domain.DonationOutcome{}, err
	}
	if conf.Status != domain.PaymentStatusCompleted {
		return domain.DonationOutcome{}, domain.NewDomainError(domain.ErrorInvalidInput, "status", "only completed payments are applied")
	}

	outcome := domain.DonationOutcome{
		DonationID: conf.DonationID,
		TargetType: conf.TargetType,
		TargetID:   conf.TargetID,
		Amount:     conf.Amount,
	}

	var err error
	switch conf.TargetType {
	case domain.TargetCampaign:
		err = g.inTx(ctx, "apply_campaign_donation", conf.TargetID, func(tx store.LedgerTx) error {
			return g.applyCampaignDonation(ctx, tx, conf, &outcome)
		})
	case domain.TargetPet:
		err = g.inTx(ctx, "apply_pet_donation", conf.TargetID, func(tx store.LedgerTx) error {
			return g.applyPetDonation(ctx, tx, conf, &outcome)
		})
	}
	if err != nil {
		return domain.DonationOutcome{}, err
	}
	return outcome, nil
}

func (g *Guard) applyCampaignDonation(ctx context.Context, tx store.LedgerTx, conf domain.PaymentConfirmation, outcome *domain.DonationOutcome) error {
	c, err := tx.LockCampaign(ctx, conf.TargetID)
	if err != nil {
		return err
	}

	now := g.now()
	fee := domain.PlatformFeeAmount(conf.Amount, c.PlatformFeePercentage)
	applied, err := tx.RecordCompletedDonation(ctx, domain.DonationRecord{
		DonationID:  conf.DonationID,
		TargetType:  conf.TargetType,
		TargetID:    conf.TargetID,
		Amount:      conf.Amount,
		PlatformFee: fee,
		CompletedAt: now.UTC(),
	})
	if err != nil {
		return err
	}
	if !applied {
		outcome.Duplicate = true
		return nil
	}

	completed, err := c.AddDonation(conf.Amount, now)
	if err != nil {
		return err
	}
	if err := tx.UpdateCampaign(ctx, c); err != nil {
		return err
	}

	outcome.PlatformFee = fee
	outcome.Campaign = c
	outcome.CampaignCompleted = completed
	return nil
}

func (g *Guard) applyPetDonation(ctx context.Context, tx store.LedgerTx, conf domain.PaymentConfirmation, outcome *domain.DonationOutcome) error {
	p, err := tx.LockPetFunding(ctx, conf.TargetID)
	if err != nil {
		return err
	}

	now := g.now()
	applied, err := tx.RecordCompletedDonation(ctx, domain.DonationRecord{
		DonationID:  conf.DonationID,
		TargetType:  conf.TargetType,
		TargetID:    conf.TargetID,
		Amount:      conf.Amount,
		CompletedAt: now.UTC(),
	})
	if err != nil {
		return err
	}
	if !applied {
		outcome.Duplicate = true
		return nil
	}

	split, err := p.ApplyDonation(conf.Amount, now)
	if err != nil {
		return err
	}
	if err := tx.UpdatePetFunding(ctx, p); err != nil {
		return err
	}

	outcome.Distribution = &split
	return nil
}

// MutateCampaign locks the campaign, applies fn to the fresh row and persists
// the result. Returning an error from fn rolls back.
func (g *Guard) MutateCampaign(ctx context.Context, id uuid.UUID, fn func(c *domain.Campaign) error) (*domain.Campaign, error) {
	var out *domain.Campaign
	err := g.inTx(ctx, "mutate_campaign", id, func(tx store.LedgerTx) error {
		c, err := tx.LockCampaign(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		if err := tx.UpdateCampaign(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MutatePetFunding locks a pet's funding row and applies fn.
func (g *Guard) MutatePetFunding(ctx context.Context, petID uuid.UUID, fn func(p *domain.PetFunding) error) (*domain.PetFunding, error) {
	var out *domain.PetFunding
	err := g.inTx(ctx, "mutate_pet_funding", petID, func(tx store.LedgerTx) error {
		p, err := tx.LockPetFunding(ctx, petID)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := tx.UpdatePetFunding(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MutateAdoptionRequest locks an adoption request and applies fn.
func (g *Guard) MutateAdoptionRequest(ctx context.Context, id uuid.UUID, fn func(a *domain.AdoptionRequest) error) (*domain.AdoptionRequest, error) {
	var out *domain.AdoptionRequest
	err := g.inTx(ctx, "mutate_adoption_request", id, func(tx store.LedgerTx) error {
		a, err := tx.LockAdoptionRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
		if err := tx.UpdateAdoptionRequest(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
