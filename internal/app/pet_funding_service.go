package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pawfund/fundraising-service/internal/domain"
	"github.com/pawfund/fundraising-service/internal/store"
	"github.com/shopspring/decimal"
)

// PetFundingService manages per-pet monthly goals.
type PetFundingService struct {
	repo   Repository
	ledger Ledger
	logger *slog.Logger
	now    func() time.Time
}

func NewPetFundingService(repo Repository, ledger Ledger, logger *slog.Logger, now func() time.Time) *PetFundingService {
	return &PetFundingService{repo: repo, ledger: ledger, logger: logger, now: clockOrDefault(now)}
}

// Register opens a funding row for a newly listed pet. The first cycle starts now.
func (s *PetFundingService) Register(ctx context.Context, petID, shelterID uuid.UUID, goals domain.CareBuckets) (domain.PetFundingView, error) {
	if petID == uuid.Nil || shelterID == uuid.Nil {
		return domain.PetFundingView{}, domain.NewDomainError(domain.ErrorInvalidInput, "petId", "pet and shelter are required")
	}
	if goals.HasNegative() {
		return domain.PetFundingView{}, domain.NewDomainError(domain.ErrorInvalidInput, "monthlyGoals", "goals must not be negative")
	}

	now := s.now().UTC()
	p := &domain.PetFunding{
		PetID:                 petID,
		ShelterID:             shelterID,
		MonthlyGoals:          goals,
		CurrentMonthDonations: decimal.Zero,
		GoalsLastReset:        &now,
		UpdatedAt:             now,
	}
	// Goals set at registration count as this cycle's change.
	if !goals.Total().IsZero() {
		p.GoalsUpdatedAt = &now
	}
	if err := s.repo.CreatePetFunding(ctx, p); err != nil {
		if errors.Is(err, store.ErrPetFundingExists) {
			return domain.PetFundingView{}, domain.NewDomainError(domain.ErrorInvalidInput, "petId", "pet funding already registered")
		}
		return domain.PetFundingView{}, err
	}

	s.logger.Info("pet funding registered", "pet_id", petID, "shelter_id", shelterID)
	return p.View(), nil
}

// UpdateGoals replaces a pet's monthly goals on behalf of its shelter.
func (s *PetFundingService) UpdateGoals(ctx context.Context, shelterID, petID uuid.UUID, goals domain.CareBuckets) (domain.PetFundingView, error) {
	now := s.now()
	p, err := s.ledger.MutatePetFunding(ctx, petID, func(p *domain.PetFunding) error {
		if p.ShelterID != shelterID {
			return domain.NewDomainError(domain.ErrorForbidden, "shelterId", "pet belongs to another shelter")
		}
		return p.UpdateGoals(goals, now)
	})
	if err != nil {
		return domain.PetFundingView{}, err
	}

	s.logger.Info("pet funding goals updated", "pet_id", petID, "total_goal", goals.Total().String())
	return p.View(), nil
}

// Get returns the pet funding read model.
func (s *PetFundingService) Get(ctx context.Context, petID uuid.UUID) (domain.PetFundingView, error) {
	p, err := s.repo.GetPetFunding(ctx, petID)
	if err != nil {
		return domain.PetFundingView{}, err
	}
	return p.View(), nil
}
