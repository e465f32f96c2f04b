/**
 * @description
 * Adoption request orchestration: eligibility, PawPoints debit and refund,
 * and shelter or requester driven transitions through the LedgerGuard.
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
	"github.com/pawfund/fundraising-service/internal/store"
	"github.com/pawfund/fundraising-service/pkg/pawpointsclient"
)

// AdoptionService manages adoption requests.
type AdoptionService struct {
	repo      Repository
	ledger    Ledger
	verifier  VerificationClient
	pawPoints PawPointsClient
	events    EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewAdoptionService(repo Repository, ledger Ledger, verifier VerificationClient, pawPoints PawPointsClient, events EventPublisher, logger *slog.Logger, now func() time.Time) *AdoptionService {
	return &AdoptionService{
		repo:      repo,
		ledger:    ledger,
		verifier:  verifier,
		pawPoints: pawPoints,
		events:    events,
		logger:    logger,
		now:       clockOrDefault(now),
	}
}

// Create files a new request. Points are debited before the request is stored
// and refunded if storing fails.
func (s *AdoptionService) Create(ctx context.Context, in domain.NewAdoptionRequestInput) (domain.AdoptionRequestView, error) {
	now := s.now()
	a, err := domain.NewAdoptionRequest(in, now)
	if err != nil {
		return domain.AdoptionRequestView{}, err
	}

	ok, err := s.verifier.MayRequestAdoption(ctx, in.RequesterID)
	if err != nil {
		return domain.AdoptionRequestView{}, fmt.Errorf("failed to check adoption eligibility: %w", err)
	}
	if !ok {
		return domain.AdoptionRequestView{}, domain.NewDomainError(domain.ErrorNotEligible, "requesterId", "requester is not verified for adoption")
	}

	pending, err := s.repo.HasPendingAdoptionRequest(ctx, in.RequesterID, in.PetID)
	if err != nil {
		return domain.AdoptionRequestView{}, err
	}
	if pending {
		return domain.AdoptionRequestView{}, domain.NewDomainError(domain.ErrorNotEligible, "petId", "a pending request for this pet already exists")
	}

	if a.PawPointsUsedForReduction > 0 {
		if err := s.pawPoints.Debit(ctx, a.RequesterID, a.PawPointsUsedForReduction, a.ID.String()); err != nil {
			if errors.Is(err, pawpointsclient.ErrInsufficientPoints) {
				return domain.AdoptionRequestView{}, domain.NewDomainError(domain.ErrorNotEligible, "pawPoints", "insufficient paw points")
			}
			return domain.AdoptionRequestView{}, fmt.Errorf("failed to debit paw points: %w", err)
		}
	}

	if err := s.repo.CreateAdoptionRequest(ctx, a); err != nil {
		if a.PawPointsUsedForReduction > 0 {
			s.refund(ctx, a, "request could not be stored")
		}
		if errors.Is(err, store.ErrPendingAdoptionExists) {
			return domain.AdoptionRequestView{}, domain.NewDomainError(domain.ErrorNotEligible, "petId", "a pending request for this pet already exists")
		}
		return domain.AdoptionRequestView{}, err
	}

	s.logger.Info("adoption request created", "request_id", a.ID, "requester_id", a.RequesterID, "pet_id", a.PetID, "paw_points", a.PawPointsUsedForReduction)
	publishEvent(ctx, s.events, s.logger, domain.EventAdoptionRequested, domain.NewAdoptionEvent(a, now))
	return a.View(now), nil
}

// Get returns the request read model.
func (s *AdoptionService) Get(ctx context.Context, id uuid.UUID) (domain.AdoptionRequestView, error) {
	a, err := s.repo.GetAdoptionRequest(ctx, id)
	if err != nil {
		return domain.AdoptionRequestView{}, err
	}
	return a.View(s.now()), nil
}

// Approve accepts a request on behalf of the shelter that owns the pet.
func (s *AdoptionService) Approve(ctx context.Context, shelterID, id uuid.UUID, proofImageRef *string) (domain.AdoptionRequestView, error) {
	now := s.now()
	a, err := s.ledger.MutateAdoptionRequest(ctx, id, func(a *domain.AdoptionRequest) error {
		if a.ShelterID != shelterID {
			return domain.NewDomainError(domain.ErrorForbidden, "shelterId", "request belongs to another shelter")
		}
		return a.Approve(proofImageRef, now)
	})
	if err != nil {
		return domain.AdoptionRequestView{}, err
	}

	s.logger.Info("adoption request approved", "request_id", a.ID, "shelter_id", shelterID)
	publishEvent(ctx, s.events, s.logger, domain.EventAdoptionApproved, domain.NewAdoptionEvent(a, now))
	return a.View(now), nil
}

// Deny rejects a request and returns any spent PawPoints. The denial stands
// even if the refund call fails; the failure is logged and published for
// follow-up.
func (s *AdoptionService) Deny(ctx context.Context, shelterID, id uuid.UUID, reason *string) (domain.AdoptionRequestView, error) {
	now := s.now()
	var intent *domain.RefundIntent
	a, err := s.ledger.MutateAdoptionRequest(ctx, id, func(a *domain.AdoptionRequest) error {
		if a.ShelterID != shelterID {
			return domain.NewDomainError(domain.ErrorForbidden, "shelterId", "request belongs to another shelter")
		}
		var denyErr error
		intent, denyErr = a.Deny(reason, now)
		return denyErr
	})
	if err != nil {
		return domain.AdoptionRequestView{}, err
	}

	s.logger.Info("adoption request denied", "request_id", a.ID, "shelter_id", shelterID)
	if intent != nil {
		s.refund(ctx, a, "request denied")
	}
	publishEvent(ctx, s.events, s.logger, domain.EventAdoptionDenied, domain.NewAdoptionEvent(a, now))
	return a.View(now), nil
}

// Cancel withdraws a request on behalf of its requester.
func (s *AdoptionService) Cancel(ctx context.Context, requesterID, id uuid.UUID) (domain.AdoptionRequestView, error) {
	now := s.now()
	a, err := s.ledger.MutateAdoptionRequest(ctx, id, func(a *domain.AdoptionRequest) error {
		if a.RequesterID != requesterID {
			return domain.NewDomainError(domain.ErrorForbidden, "requesterId", "request belongs to another user")
		}
		return a.Cancel(now)
	})
	if err != nil {
		return domain.AdoptionRequestView{}, err
	}

	s.logger.Info("adoption request cancelled", "request_id", a.ID, "requester_id", requesterID)
	publishEvent(ctx, s.events, s.logger, domain.EventAdoptionCancelled, domain.NewAdoptionEvent(a, now))
	return a.View(now), nil
}

// refundTimeout bounds the refund call and its failure event. Both run after
// the caller's work has committed, so they must outlive the request context.
const refundTimeout = 15 * time.Second

func (s *AdoptionService) refund(parent context.Context, a *domain.AdoptionRequest, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), refundTimeout)
	defer cancel()

	points := a.PawPointsUsedForReduction
	if err := s.pawPoints.Refund(ctx, a.RequesterID, points, a.ID.String()); err != nil {
		s.logger.Error("failed to refund paw points", "request_id", a.ID, "requester_id", a.RequesterID, "points", points, "reason", reason, "error", err)
		publishEvent(ctx, s.events, s.logger, domain.EventPawPointsRefundFail, domain.RefundFailedEvent{
			RequestID:   a.ID,
			RequesterID: a.RequesterID,
			Points:      points,
			Reason:      reason,
			OccurredAt:  s.now().UTC(),
		})
		return
	}
	s.logger.Info("paw points refunded", "request_id", a.ID, "requester_id", a.RequesterID, "points", points)
}
