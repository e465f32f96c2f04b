package domain

import (
	"github.com/shopspring/decimal"
)

// CareBuckets holds one amount per care category.
type CareBuckets struct {
	Vaccination decimal.Decimal `json:"vaccination"`
	Food        decimal.Decimal `json:"food"`
	Medical     decimal.Decimal `json:"medical"`
	Other       decimal.Decimal `json:"other"`
}

// Total sums the four buckets.
func (b CareBuckets) Total() decimal.Decimal {
	return b.Vaccination.Add(b.Food).Add(b.Medical).Add(b.Other)
}

// Add returns the bucket-wise sum of b and o.
func (b CareBuckets) Add(o CareBuckets) CareBuckets {
	return CareBuckets{
		Vaccination: b.Vaccination.Add(o.Vaccination),
		Food:        b.Food.Add(o.Food),
		Medical:     b.Medical.Add(o.Medical),
		Other:       b.Other.Add(o.Other),
	}
}

// HasNegative reports whether any bucket is below zero.
func (b CareBuckets) HasNegative() bool {
	return b.Vaccination.IsNegative() || b.Food.IsNegative() || b.Medical.IsNegative() || b.Other.IsNegative()
}

// Distribute splits amount across the care categories in proportion to goals.
// With no goals set the amount is split into quarters. The first three buckets
// are truncated to cents and Other absorbs the remainder, so the result always
// sums to amount exactly.
func Distribute(amount decimal.Decimal, goals CareBuckets) (CareBuckets, error) {
	if amount.IsNegative() {
		return CareBuckets{}, NewDomainError(ErrorInvalidInput, "amount", "amount must not be negative")
	}
	if goals.HasNegative() {
		return CareBuckets{}, NewDomainError(ErrorInvalidInput, "monthlyGoals", "goals must not be negative")
	}

	total := goals.Total()
	share := func(goal decimal.Decimal) decimal.Decimal {
		if total.IsZero() {
			return amount.Div(decimal.NewFromInt(4)).Truncate(2)
		}
		return amount.Mul(goal).Div(total).Truncate(2)
	}

	out := CareBuckets{
		Vaccination: share(goals.Vaccination),
		Food:        share(goals.Food),
		Medical:     share(goals.Medical),
	}
	out.Other = amount.Sub(out.Vaccination).Sub(out.Food).Sub(out.Medical)
	return out, nil
}
