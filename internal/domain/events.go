/**
 * @description
 * Inbound payment confirmations and outbound domain events.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DonationTarget is what a donation pays into.
type DonationTarget string

const (
	TargetPet      DonationTarget = "pet"
	TargetCampaign DonationTarget = "campaign"
)

// PaymentStatusCompleted is the only gateway status the ledger applies.
const PaymentStatusCompleted = "completed"

// PaymentConfirmation is delivered by the payment collaborator once a
// donation has settled.
type PaymentConfirmation struct {
	DonationID uuid.UUID       `json:"donation_id"`
	TargetType DonationTarget  `json:"target_type"`
	TargetID   uuid.UUID       `json:"target_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
}

// MaxDonationAmount is the exclusive upper bound of a NUMERIC(12,2) ledger column.
var MaxDonationAmount = decimal.New(1, 10)

// Validate checks the confirmation's shape.
func (p PaymentConfirmation) Validate() error {
	if p.DonationID == uuid.Nil {
		return NewDomainError(ErrorInvalidInput, "donation_id", "donation id is required")
	}
	if p.TargetType != TargetPet && p.TargetType != TargetCampaign {
		return NewDomainError(ErrorInvalidInput, "target_type", "target type must be pet or campaign")
	}
	if p.TargetID == uuid.Nil {
		return NewDomainError(ErrorInvalidInput, "target_id", "target id is required")
	}
	if !p.Amount.IsPositive() {
		return NewDomainError(ErrorInvalidInput, "amount", "amount must be positive")
	}
	if !p.Amount.Equal(p.Amount.Truncate(2)) {
		return NewDomainError(ErrorInvalidInput, "amount", "amount must be whole cents")
	}
	if p.Amount.GreaterThanOrEqual(MaxDonationAmount) {
		return NewDomainError(ErrorInvalidInput, "amount", "amount exceeds the ledger's precision")
	}
	return nil
}

// DonationRecord is the ledger's copy of a confirmed donation.
type DonationRecord struct {
	DonationID  uuid.UUID
	TargetType  DonationTarget
	TargetID    uuid.UUID
	Amount      decimal.Decimal
	PlatformFee decimal.Decimal
	Status      string
	CompletedAt time.Time
}

// DonationOutcome summarises what applying a confirmation did.
type DonationOutcome struct {
	DonationID        uuid.UUID
	TargetType        DonationTarget
	TargetID          uuid.UUID
	Amount            decimal.Decimal
	PlatformFee       decimal.Decimal
	Distribution      *CareBuckets
	Campaign          *Campaign
	CampaignCompleted bool
	Duplicate         bool
}

// Routing keys for events published on the events exchange.
const (
	EventDonationApplied     = "donation.applied"
	EventCampaignCompleted   = "campaign.completed"
	EventCampaignCancelled   = "campaign.cancelled"
	EventAdoptionRequested   = "adoption.requested"
	EventAdoptionApproved    = "adoption.approved"
	EventAdoptionDenied      = "adoption.denied"
	EventAdoptionCancelled   = "adoption.cancelled"
	EventPawPointsRefundFail = "pawpoints.refund_failed"
)

// Routing key the payment collaborator publishes confirmations on.
const PaymentDonationCompletedKey = "payments.donation.completed"

// DonationAppliedEvent is published after a confirmation is committed.
type DonationAppliedEvent struct {
	DonationID   uuid.UUID       `json:"donation_id"`
	TargetType   DonationTarget  `json:"target_type"`
	TargetID     uuid.UUID       `json:"target_id"`
	Amount       decimal.Decimal `json:"amount"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	Distribution *CareBuckets    `json:"distribution,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// CampaignEvent is published on campaign terminal transitions.
type CampaignEvent struct {
	CampaignID    uuid.UUID       `json:"campaign_id"`
	ShelterID     uuid.UUID       `json:"shelter_id"`
	Status        CampaignStatus  `json:"status"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	GoalAmount    decimal.Decimal `json:"goal_amount"`
	Trigger       string          `json:"trigger"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// AdoptionEvent is published on every adoption request transition.
type AdoptionEvent struct {
	RequestID    uuid.UUID      `json:"request_id"`
	RequesterID  uuid.UUID      `json:"requester_id"`
	PetID        uuid.UUID      `json:"pet_id"`
	ShelterID    uuid.UUID      `json:"shelter_id"`
	Status       AdoptionStatus `json:"status"`
	PawPoints    int            `json:"paw_points"`
	DenialReason *string        `json:"denial_reason,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// RefundFailedEvent flags a PawPoints refund that needs manual follow-up.
type RefundFailedEvent struct {
	RequestID   uuid.UUID `json:"request_id"`
	RequesterID uuid.UUID `json:"requester_id"`
	Points      int       `json:"points"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewCampaignEvent builds the event for a campaign's current state.
func NewCampaignEvent(c *Campaign, trigger string, now time.Time) CampaignEvent {
	return CampaignEvent{
		CampaignID:    c.ID,
		ShelterID:     c.ShelterID,
		Status:        c.Status,
		CurrentAmount: c.CurrentAmount,
		GoalAmount:    c.GoalAmount,
		Trigger:       trigger,
		OccurredAt:    now.UTC(),
	}
}

// NewAdoptionEvent builds the event for a request's current state.
func NewAdoptionEvent(a *AdoptionRequest, now time.Time) AdoptionEvent {
	return AdoptionEvent{
		RequestID:    a.ID,
		RequesterID:  a.RequesterID,
		PetID:        a.PetID,
		ShelterID:    a.ShelterID,
		Status:       a.Status,
		PawPoints:    a.PawPointsUsedForReduction,
		DenialReason: a.DenialReason,
		OccurredAt:   now.UTC(),
	}
}
