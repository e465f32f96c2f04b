/**
 * @description
 * Persistence contracts for the fundraising ledger.
 * PostgresRepository is the production implementation; MemoryRepository backs
 * unit tests with the same row-lock semantics.
 */
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pawfund/fundraising-service/internal/domain"
)

var (
	ErrCampaignNotFound        = errors.New("campaign not found")
	ErrPetFundingNotFound      = errors.New("pet funding not found")
	ErrAdoptionRequestNotFound = errors.New("adoption request not found")
	ErrActiveCampaignExists    = errors.New("shelter already has an active campaign")
	ErrPendingAdoptionExists   = errors.New("requester already has a pending request for this pet")
	ErrPetFundingExists        = errors.New("pet funding already registered")
	ErrTxDone                  = errors.New("ledger transaction already finished")
	// ErrLockTimeout is returned when a row lock could not be acquired in time
	// or the database broke a deadlock.
	ErrLockTimeout = errors.New("row lock not acquired")
	// ErrDataRejected is returned when the database refuses a value, such as a
	// numeric overflow or a CHECK constraint violation.
	ErrDataRejected = errors.New("value rejected by database")
)

// LedgerTx is a unit of work holding row locks until Commit or Rollback.
// Rollback after Commit is a no-op.
type LedgerTx interface {
	LockCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	LockPetFunding(ctx context.Context, petID uuid.UUID) (*domain.PetFunding, error)
	LockAdoptionRequest(ctx context.Context, id uuid.UUID) (*domain.AdoptionRequest, error)

	UpdateCampaign(ctx context.Context, c *domain.Campaign) error
	UpdatePetFunding(ctx context.Context, p *domain.PetFunding) error
	UpdateAdoptionRequest(ctx context.Context, a *domain.AdoptionRequest) error

	// RecordCompletedDonation marks a donation completed. It returns false when
	// the donation was already completed by an earlier delivery.
	RecordCompletedDonation(ctx context.Context, rec domain.DonationRecord) (bool, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repository is the full persistence surface used by the service.
type Repository interface {
	BeginLedgerTx(ctx context.Context, lockTimeout time.Duration) (LedgerTx, error)

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
