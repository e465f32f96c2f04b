/**
 * @description
 * Adoption request workflow.
 *
 * PENDING -> APPROVED  (shelter, before expiresAt)
 * PENDING -> DENIED    (shelter, any time; refunds spent PawPoints)
 * PENDING -> CANCELLED (requester, within 24h of creation)
 */
package domain

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AdoptionStatus string

const (
	AdoptionPending   AdoptionStatus = "PENDING"
	AdoptionApproved  AdoptionStatus = "APPROVED"
	AdoptionDenied    AdoptionStatus = "DENIED"
	AdoptionCancelled AdoptionStatus = "CANCELLED"
)

const (
	AdoptionRequestTTL          = 7 * day
	AdoptionCancellationWindow  = day
	MaxAdoptionMessageLength    = 500
	MaxAdoptionDenialReasonSize = 500
)

// AdoptionRequest is the persisted adoption aggregate.
type AdoptionRequest struct {
	ID                        uuid.UUID
	RequesterID               uuid.UUID
	PetID                     uuid.UUID
	ShelterID                 uuid.UUID
	Status                    AdoptionStatus
	PawPointsUsedForReduction int
	FeeReduction              decimal.Decimal
	Message                   *string
	ProofImageRef             *string
	DenialReason              *string
	CreatedAt                 time.Time
	ExpiresAt                 time.Time
	ApprovedAt                *time.Time
	DeniedAt                  *time.Time
	CancelledAt               *time.Time
	UpdatedAt                 time.Time
}

// RefundIntent asks the PawPoints owner to return points to a requester.
type RefundIntent struct {
	RequesterID uuid.UUID
	Points      int
}

// NewAdoptionRequestInput carries the validated primitives a requester submits.
type NewAdoptionRequestInput struct {
	RequesterID uuid.UUID
	PetID       uuid.UUID
	ShelterID   uuid.UUID
	PawPoints   int
	Message     *string
}

// NewAdoptionRequest builds a PENDING request expiring seven days from now.
func NewAdoptionRequest(in NewAdoptionRequestInput, now time.Time) (*AdoptionRequest, error) {
	if in.RequesterID == uuid.Nil {
		return nil, NewDomainError(ErrorInvalidInput, "requesterId", "requester id is required")
	}
	if in.PetID == uuid.Nil || in.ShelterID == uuid.Nil {
		return nil, NewDomainError(ErrorInvalidInput, "petId", "pet and shelter are required")
	}
	if in.PawPoints < 0 || (in.PawPoints > 0 && in.PawPoints < PawPointsUnlockThreshold) {
		return nil, NewDomainError(ErrorInvalidInput, "pawPoints", "paw points must be 0 or at least 5")
	}
	if in.Message != nil && utf8.RuneCountInString(*in.Message) > MaxAdoptionMessageLength {
		return nil, NewDomainError(ErrorInvalidInput, "message", "message is too long")
	}

	now = now.UTC()
	return &AdoptionRequest{
		ID:                        uuid.New(),
		RequesterID:               in.RequesterID,
		PetID:                     in.PetID,
		ShelterID:                 in.ShelterID,
		Status:                    AdoptionPending,
		PawPointsUsedForReduction: in.PawPoints,
		FeeReduction:              AdoptionFeeReduction(in.PawPoints),
		Message:                   in.Message,
		CreatedAt:                 now,
		ExpiresAt:                 now.Add(AdoptionRequestTTL),
		UpdatedAt:                 now,
	}, nil
}

// Approve accepts a pending request that has not yet expired.
func (a *AdoptionRequest) Approve(proofImageRef *string, now time.Time) error {
	if a.Status != AdoptionPending {
		return NewDomainError(ErrorInvalidStateTransition, "status", "adoption request is not pending")
	}
	if a.IsExpired(now) {
		return NewDomainError(ErrorWindowExpired, "expiresAt", "adoption request has expired")
	}
	t := now.UTC()
	a.Status = AdoptionApproved
	a.ProofImageRef = proofImageRef
	a.ApprovedAt = &t
	a.UpdatedAt = t
	return nil
}

// Deny rejects a pending request. Expiry does not block denial. The returned
// intent is nil when no points were spent.
func (a *AdoptionRequest) Deny(reason *string, now time.Time) (*RefundIntent, error) {
	if a.Status != AdoptionPending {
		return nil, NewDomainError(ErrorInvalidStateTransition, "status", "adoption request is not pending")
	}
	if reason != nil && utf8.RuneCountInString(*reason) > MaxAdoptionDenialReasonSize {
		return nil, NewDomainError(ErrorInvalidInput, "reason", "denial reason is too long")
	}
	t := now.UTC()
	a.Status = AdoptionDenied
	a.DenialReason = reason
	a.DeniedAt = &t
	a.UpdatedAt = t

	if a.PawPointsUsedForReduction == 0 {
		return nil, nil
	}
	return &RefundIntent{RequesterID: a.RequesterID, Points: a.PawPointsUsedForReduction}, nil
}

// Cancel withdraws a pending request within the cancellation window.
func (a *AdoptionRequest) Cancel(now time.Time) error {
	if a.Status != AdoptionPending {
		return NewDomainError(ErrorInvalidStateTransition, "status", "adoption request is not pending")
	}
	if !a.withinCancellationWindow(now) {
		return NewDomainError(ErrorWindowExpired, "createdAt", "cancellation window passed")
	}
	t := now.UTC()
	a.Status = AdoptionCancelled
	a.CancelledAt = &t
	a.UpdatedAt = t
	return nil
}

// IsExpired reports whether now is past ExpiresAt.
func (a *AdoptionRequest) IsExpired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// CanBeCancelled reports whether Cancel would succeed at now.
func (a *AdoptionRequest) CanBeCancelled(now time.Time) bool {
	return a.Status == AdoptionPending && a.withinCancellationWindow(now)
}

func (a *AdoptionRequest) withinCancellationWindow(now time.Time) bool {
	return now.Sub(a.CreatedAt) < AdoptionCancellationWindow
}

// AdoptionRequestView is the read model exposed to callers.
type AdoptionRequestView struct {
	ID                        uuid.UUID       `json:"id"`
	RequesterID               uuid.UUID       `json:"requester_id"`
	PetID                     uuid.UUID       `json:"pet_id"`
	ShelterID                 uuid.UUID       `json:"shelter_id"`
	Status                    AdoptionStatus  `json:"status"`
	PawPointsUsedForReduction int             `json:"paw_points_used_for_reduction"`
	FeeReduction              decimal.Decimal `json:"fee_reduction"`
	Message                   *string         `json:"message,omitempty"`
	ProofImageRef             *string         `json:"proof_image_ref,omitempty"`
	DenialReason              *string         `json:"denial_reason,omitempty"`
	IsExpired                 bool            `json:"is_expired"`
	CanBeCancelled            bool            `json:"can_be_cancelled"`
	CreatedAt                 time.Time       `json:"created_at"`
	ExpiresAt                 time.Time       `json:"expires_at"`
	ApprovedAt                *time.Time      `json:"approved_at,omitempty"`
	DeniedAt                  *time.Time      `json:"denied_at,omitempty"`
	CancelledAt               *time.Time      `json:"cancelled_at,omitempty"`
}

// View builds the read model as of now.
func (a *AdoptionRequest) View(now time.Time) AdoptionRequestView {
	return AdoptionRequestView{
		ID:                        a.ID,
		RequesterID:               a.RequesterID,
		PetID:                     a.PetID,
		ShelterID:                 a.ShelterID,
		Status:                    a.Status,
		PawPointsUsedForReduction: a.PawPointsUsedForReduction,
		FeeReduction:              a.FeeReduction,
		Message:                   a.Message,
		ProofImageRef:             a.ProofImageRef,
		DenialReason:              a.DenialReason,
		IsExpired:                 a.IsExpired(now),
		CanBeCancelled:            a.CanBeCancelled(now),
		CreatedAt:                 a.CreatedAt,
		ExpiresAt:                 a.ExpiresAt,
		ApprovedAt:                a.ApprovedAt,
		DeniedAt:                  a.DeniedAt,
		CancelledAt:               a.CancelledAt,
	}
}
