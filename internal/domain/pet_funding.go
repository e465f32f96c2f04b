package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FundingCycleLength is how long a pet's monthly goals and totals live before
// the reconciliation sweep resets them. It also bounds how often a shelter may
// change the goals.
const FundingCycleLength = 31 * day

// PetFunding is the per-pet monthly funding state.
type PetFunding struct {
	PetID                    uuid.UUID
	ShelterID                uuid.UUID
	MonthlyGoals             CareBuckets
	CurrentMonthDonations    decimal.Decimal
	CurrentMonthDistribution CareBuckets
	GoalsLastReset           *time.Time
	GoalsUpdatedAt           *time.Time
	UpdatedAt                time.Time
}

// ApplyDonation distributes amount across the buckets and adds it to the
// month's total. The invariants are checked before and after.
func (p *PetFunding) ApplyDonation(amount decimal.Decimal, now time.Time) (CareBuckets, error) {
	if !amount.IsPositive() {
		return CareBuckets{}, NewDomainError(ErrorInvalidInput, "amount", "donation amount must be positive")
	}
	if err := p.CheckInvariants(); err != nil {
		return CareBuckets{}, err
	}

	split, err := Distribute(amount, p.MonthlyGoals)
	if err != nil {
		return CareBuckets{}, err
	}

	p.CurrentMonthDonations = p.CurrentMonthDonations.Add(amount)
	p.CurrentMonthDistribution = p.CurrentMonthDistribution.Add(split)
	p.UpdatedAt = now.UTC()

	if err := p.CheckInvariants(); err != nil {
		return CareBuckets{}, err
	}
	return split, nil
}

// NeedsCycleReset reports whether the month's totals are due to be cleared.
func (p *PetFunding) NeedsCycleReset(now time.Time) bool {
	if p.GoalsLastReset == nil {
		return true
	}
	return now.Sub(*p.GoalsLastReset) > FundingCycleLength
}

// ResetCycle zeroes the month's donations and distribution.
func (p *PetFunding) ResetCycle(now time.Time) {
	t := now.UTC()
	p.CurrentMonthDonations = decimal.Zero
	p.CurrentMonthDistribution = CareBuckets{
		Vaccination: decimal.Zero,
		Food:        decimal.Zero,
		Medical:     decimal.Zero,
		Other:       decimal.Zero,
	}
	p.GoalsLastReset = &t
	p.UpdatedAt = t
}

// UpdateGoals replaces the monthly goals. Goals may change at most once per
// funding cycle.
func (p *PetFunding) UpdateGoals(goals CareBuckets, now time.Time) error {
	if goals.HasNegative() {
		return NewDomainError(ErrorInvalidInput, "monthlyGoals", "goals must not be negative")
	}
	if p.GoalsUpdatedAt != nil && now.Sub(*p.GoalsUpdatedAt) < FundingCycleLength {
		return NewDomainError(ErrorWindowExpired, "goalsUpdatedAt", "goals were changed less than 31 days ago")
	}
	t := now.UTC()
	p.MonthlyGoals = goals
	p.GoalsUpdatedAt = &t
	p.UpdatedAt = t
	return nil
}

// CheckInvariants verifies non-negative balances and that the distribution
// sums to the month's donations.
func (p *PetFunding) CheckInvariants() error {
	if p.CurrentMonthDonations.IsNegative() || p.CurrentMonthDistribution.HasNegative() || p.MonthlyGoals.HasNegative() {
		return NewDomainError(ErrorInvariantViolation, "petFunding", "negative balance for pet "+p.PetID.String())
	}
	if !p.CurrentMonthDistribution.Total().Equal(p.CurrentMonthDonations) {
		return NewDomainError(ErrorInvariantViolation, "currentMonthDistribution", "distribution does not sum to donations for pet "+p.PetID.String())
	}
	return nil
}

// PetFundingView is the read model exposed to callers.
type PetFundingView struct {
	PetID                    uuid.UUID       `json:"pet_id"`
	ShelterID                uuid.UUID       `json:"shelter_id"`
	MonthlyGoals             CareBuckets     `json:"monthly_goals"`
	TotalMonthlyGoal         decimal.Decimal `json:"total_monthly_goal"`
	CurrentMonthDonations    decimal.Decimal `json:"current_month_donations"`
	CurrentMonthDistribution CareBuckets     `json:"current_month_distribution"`
	GoalsLastReset           *time.Time      `json:"goals_last_reset,omitempty"`
	GoalsUpdatedAt           *time.Time      `json:"goals_updated_at,omitempty"`
}

// View builds the read model.
func (p *PetFunding) View() PetFundingView {
	return PetFundingView{
		PetID:                    p.PetID,
		ShelterID:                p.ShelterID,
		MonthlyGoals:             p.MonthlyGoals,
		TotalMonthlyGoal:         p.MonthlyGoals.Total(),
		CurrentMonthDonations:    p.CurrentMonthDonations,
		CurrentMonthDistribution: p.CurrentMonthDistribution,
		GoalsLastReset:           p.GoalsLastReset,
		GoalsUpdatedAt:           p.GoalsUpdatedAt,
	}
}
