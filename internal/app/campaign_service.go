package app

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

// CampaignService drives campaign creation and shelter-initiated transitions.
type CampaignService struct {
	repo     Repository
	ledger   Ledger
	verifier VerificationClient
	events   EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

func NewCampaignService(repo Repository, ledger Ledger, verifier VerificationClient, events EventPublisher, logger *slog.Logger, now func() time.Time) *CampaignService {
	return &CampaignService{
		repo:     repo,
		ledger:   ledger,
		verifier: verifier,
		events:   events,
		logger:   logger,
		now:      clockOrDefault(now),
	}
}

// Create opens a new campaign for a verified shelter with no other active campaign.
func (s *CampaignService) Create(ctx context.Context, in domain.NewCampaignInput) (domain.CampaignView, error) {
	ok, err := s.verifier.MayCreateCampaign(ctx, in.ShelterID)
	if err != nil {
		return domain.CampaignView{}, fmt.Errorf("failed to check campaign eligibility: %w", err)
	}
	if !ok {
		return domain.CampaignView{}, domain.NewDomainError(domain.ErrorNotEligible, "shelterId", "shelter is not verified for campaigns")
	}

	active, err := s.repo.HasActiveCampaign(ctx, in.ShelterID)
	if err != nil {
		return domain.CampaignView{}, err
	}
	if active {
		return domain.CampaignView{}, domain.NewDomainError(domain.ErrorNotEligible, "shelterId", "shelter already has an active campaign")
	}

	now := s.now()
	c, err := domain.NewCampaign(in, now)
	if err != nil {
		return domain.CampaignView{}, err
	}

	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		if errors.Is(err, store.ErrActiveCampaignExists) {
			return domain.CampaignView{}, domain.NewDomainError(domain.ErrorNotEligible, "shelterId", "shelter already has an active campaign")
		}
		return domain.CampaignView{}, err
	}

	s.logger.Info("campaign created", "campaign_id", c.ID, "shelter_id", c.ShelterID, "goal", c.GoalAmount.String(), "fee_pct", c.PlatformFeePercentage.String())
	return c.View(now), nil
}

// Get returns the campaign read model.
func (s *CampaignService) Get(ctx context.Context, id uuid.UUID) (domain.CampaignView, error) {
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return domain.CampaignView{}, err
	}
	return c.View(s.now()), nil
}

// CheckAcceptingDonations is consulted before a payment is started.
func (s *CampaignService) CheckAcceptingDonations(ctx context.Context, id uuid.UUID) error {
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	return c.EnsureAcceptingDonations(s.now())
}

// Complete lets the owning shelter close a campaign early.
func (s *CampaignService) Complete(ctx context.Context, shelterID, id uuid.UUID) (domain.CampaignView, error) {
	now := s.now()
	c, err := s.ledger.MutateCampaign(ctx, id, func(c *domain.Campaign) error {
		if c.ShelterID != shelterID {
			return domain.NewDomainError(domain.ErrorForbidden, "shelterId", "campaign belongs to another shelter")
		}
		return c.Complete(now)
	})
	if err != nil {
		return domain.CampaignView{}, err
	}

	s.logger.Info("campaign completed", "campaign_id", c.ID, "trigger", "manual")
	publishEvent(ctx, s.events, s.logger, domain.EventCampaignCompleted, domain.NewCampaignEvent(c, "manual", now))
	return c.View(now), nil
}

// Cancel lets the owning shelter withdraw a campaign that has raised nothing.
// The amount is checked on the locked row so a donation landing concurrently
// cannot be lost.
func (s *CampaignService) Cancel(ctx context.Context, shelterID, id uuid.UUID) (domain.CampaignView, error) {
	now := s.now()
	c, err := s.ledger.MutateCampaign(ctx, id, func(c *domain.Campaign) error {
		if c.ShelterID != shelterID {
			return domain.NewDomainError(domain.ErrorForbidden, "shelterId", "campaign belongs to another shelter")
		}
		return c.Cancel(now)
	})
	if err != nil {
		return domain.CampaignView{}, err
	}

	s.logger.Info("campaign cancelled", "campaign_id", c.ID)
	publishEvent(ctx, s.events, s.logger, domain.EventCampaignCancelled, domain.NewCampaignEvent(c, "manual", now))
	return c.View(now), nil
}
