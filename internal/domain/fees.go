/**
 * @description
 * Platform fee and adoption fee-reduction rules.
 * Both functions are pure; the campaign fee is computed once at creation and
 * frozen on the campaign row.
 */
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// PawPointsUnlockThreshold is the minimum points balance a request can spend.
	PawPointsUnlockThreshold = 5
	// PawPointValue is the fee reduction, in currency units, of each point above the threshold.
	PawPointValue = 5

	MinDurationWeeks = 1
	MaxDurationWeeks = 4
)

var baseCampaignFee = decimal.NewFromInt(10)

// Priority is the urgency declared by a shelter for a campaign.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

var prioritySurcharge = map[Priority]decimal.Decimal{
	PriorityLow:      decimal.RequireFromString("0.5"),
	PriorityMedium:   decimal.NewFromInt(1),
	PriorityHigh:     decimal.RequireFromString("1.5"),
	PriorityCritical: decimal.NewFromInt(2),
}

var durationSurcharge = map[int]decimal.Decimal{
	1: decimal.RequireFromString("0.5"),
	2: decimal.NewFromInt(1),
	3: decimal.RequireFromString("1.5"),
	4: decimal.NewFromInt(2),
}

// ParsePriority validates a raw priority value.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(raw)
	if _, ok := prioritySurcharge[p]; !ok {
		return "", NewDomainError(ErrorInvalidInput, "priority", fmt.Sprintf("unknown priority %q", raw))
	}
	return p, nil
}

// CampaignFee returns the platform fee percentage for a campaign.
// The result always lies in [10.5, 20].
func CampaignFee(priority Priority, durationWeeks int) (decimal.Decimal, error) {
	ps, ok := prioritySurcharge[priority]
	if !ok {
		return decimal.Zero, NewDomainError(ErrorInvalidInput, "priority", fmt.Sprintf("unknown priority %q", priority))
	}
	ds, ok := durationSurcharge[durationWeeks]
	if !ok {
		return decimal.Zero, NewDomainError(ErrorInvalidInput, "durationWeeks", fmt.Sprintf("duration must be between %d and %d weeks", MinDurationWeeks, MaxDurationWeeks))
	}
	return baseCampaignFee.Add(ps).Add(ds), nil
}

// AdoptionFeeReduction converts spent PawPoints into a currency reduction.
// Points at or below the unlock threshold are worth nothing.
func AdoptionFeeReduction(points int) decimal.Decimal {
	if points <= PawPointsUnlockThreshold {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64((points - PawPointsUnlockThreshold) * PawPointValue))
}

// PlatformFeeAmount is the share of amount retained at percentage, rounded to cents.
func PlatformFeeAmount(amount, percentage decimal.Decimal) decimal.Decimal {
	return amount.Mul(percentage).Div(decimal.NewFromInt(100)).Round(2)
}

// NetAmount is amount minus its platform fee.
func NetAmount(amount, percentage decimal.Decimal) decimal.Decimal {
	return amount.Sub(PlatformFeeAmount(amount, percentage))
}
