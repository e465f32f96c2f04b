/**
 * @description
 * Collaborator contracts for the fundraising application services.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pawfund/fundraising-service/internal/domain"
)

// Repository defines the non-locking reads and inserts the services need.
type Repository interface {
	CreateCampaign(ctx context.Context, c *domain.Campaign) error
	GetCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	HasActiveCampaign(ctx context.Context, shelterID uuid.UUID) (bool, error)
	ListActiveCampaignsReachedGoal(ctx context.Context) ([]uuid.UUID, error)
	ListActiveCampaignsEndedBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)

	CreateAdoptionRequest(ctx context.Context, a *domain.AdoptionRequest) error
	GetAdoptionRequest(ctx context.Context, id uuid.UUID) (*domain.AdoptionRequest, error)
	HasPendingAdoptionRequest(ctx context.Context, requesterID, petID uuid.UUID) (bool, error)

	CreatePetFunding(ctx context.Context, p *domain.PetFunding) error
	GetPetFunding(ctx context.Context, petID uuid.UUID) (*domain.PetFunding, error)
	ListPetsDueForCycleReset(ctx context.Context, lastResetBefore time.Time) ([]uuid.UUID, error)
}

// Ledger performs every locked mutation.
type Ledger interface {
	ApplyDonation(ctx context.Context, conf domain.PaymentConfirmation) (domain.DonationOutcome, error)
	MutateCampaign(ctx context.Context, id uuid.UUID, fn func(c *domain.Campaign) error) (*domain.Campaign, error)
	MutatePetFunding(ctx context.Context, petID uuid.UUID, fn func(p *domain.PetFunding) error) (*domain.PetFunding, error)
	MutateAdoptionRequest(ctx context.Context, id uuid.UUID, fn func(a *domain.AdoptionRequest) error) (*domain.AdoptionRequest, error)
}

// PawPointsClient debits and refunds PawPoints with the balance owner.
type PawPointsClient interface {
	Debit(ctx context.Context, userID uuid.UUID, points int, reference string) error
	Refund(ctx context.Context, userID uuid.UUID, points int, reference string) error
}

// VerificationClient answers eligibility questions.
type VerificationClient interface {
	MayRequestAdoption(ctx context.Context, userID uuid.UUID) (bool, error)
	MayCreateCampaign(ctx context.Context, shelterID uuid.UUID) (bool, error)
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// Events are published after commit and never fail the operation that
// produced them.
func publishEvent(ctx context.Context, events EventPublisher, logger *slog.Logger, routingKey string, body interface{}) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, routingKey, body); err != nil {
		logger.Error("failed to publish event", "routing_key", routingKey, "error", err)
	}
}

func clockOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
