/**
 * @description
 * Campaign lifecycle: a time-boxed fundraising goal owned by a shelter.
 *
 * ACTIVE -> COMPLETED (goal reached, manual, or window elapsed)
 * ACTIVE -> CANCELLED (manual, only while nothing has been raised)
 *
 * Terminal states are never left. All methods take the current time
 * explicitly so callers and tests control the clock.
 */
package domain

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "ACTIVE"
	CampaignCompleted CampaignStatus = "COMPLETED"
	CampaignCancelled CampaignStatus = "CANCELLED"
)

const (
	MaxCampaignTitleLength       = 100
	MaxCampaignDescriptionLength = 2000
)

var (
	MinCampaignGoal = decimal.NewFromInt(100)
	MaxCampaignGoal = decimal.NewFromInt(50000)
)

const day = 24 * time.Hour

// Campaign is the persisted campaign aggregate.
type Campaign struct {
	ID                    uuid.UUID
	ShelterID             uuid.UUID
	Title                 string
	Description           string
	ImageRef              *string
	Priority              Priority
	DurationWeeks         int
	GoalAmount            decimal.Decimal
	CurrentAmount         decimal.Decimal
	PlatformFeePercentage decimal.Decimal
	Status                CampaignStatus
	CreatedAt             time.Time
	EndsAt                time.Time
	CompletedAt           *time.Time
	CancelledAt           *time.Time
	UpdatedAt             time.Time
}

// NewCampaignInput carries the validated primitives a shelter submits.
type NewCampaignInput struct {
	ShelterID     uuid.UUID
	Title         string
	Description   string
	GoalAmount    decimal.Decimal
	Priority      Priority
	DurationWeeks int
	ImageRef      *string
}

// NewCampaign validates input and builds an ACTIVE campaign with its fee frozen.
func NewCampaign(in NewCampaignInput, now time.Time) (*Campaign, error) {
	if in.ShelterID == uuid.Nil {
		return nil, NewDomainError(ErrorInvalidInput, "shelterId", "shelter id is required")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, NewDomainError(ErrorInvalidInput, "title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxCampaignTitleLength {
		return nil, NewDomainError(ErrorInvalidInput, "title", "title is too long")
	}
	if utf8.RuneCountInString(in.Description) > MaxCampaignDescriptionLength {
		return nil, NewDomainError(ErrorInvalidInput, "description", "description is too long")
	}
	if in.GoalAmount.LessThan(MinCampaignGoal) || in.GoalAmount.GreaterThan(MaxCampaignGoal) {
		return nil, NewDomainError(ErrorInvalidInput, "goalAmount", "goal must be between 100 and 50000")
	}

	fee, err := CampaignFee(in.Priority, in.DurationWeeks)
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	return &Campaign{
		ID:                    uuid.New(),
		ShelterID:             in.ShelterID,
		Title:                 title,
		Description:           in.Description,
		ImageRef:              in.ImageRef,
		Priority:              in.Priority,
		DurationWeeks:         in.DurationWeeks,
		GoalAmount:            in.GoalAmount,
		CurrentAmount:         decimal.Zero,
		PlatformFeePercentage: fee,
		Status:                CampaignActive,
		CreatedAt:             now,
		EndsAt:                now.Add(time.Duration(in.DurationWeeks) * 7 * day),
		UpdatedAt:             now,
	}, nil
}

// AddDonation credits amount and completes the campaign in the same state
// change once the goal is reached. It reports whether completion fired.
func (c *Campaign) AddDonation(amount decimal.Decimal, now time.Time) (bool, error) {
	if !amount.IsPositive() {
		return false, NewDomainError(ErrorInvalidInput, "amount", "donation amount must be positive")
	}
	if c.Status != CampaignActive {
		return false, NewDomainError(ErrorInvalidStateTransition, "status", "campaign is not active")
	}

	c.CurrentAmount = c.CurrentAmount.Add(amount)
	c.UpdatedAt = now.UTC()
	if c.CurrentAmount.GreaterThanOrEqual(c.GoalAmount) {
		c.markCompleted(now)
		return true, nil
	}
	return false, nil
}

// Complete moves an active campaign to COMPLETED.
func (c *Campaign) Complete(now time.Time) error {
	if c.Status != CampaignActive {
		return NewDomainError(ErrorInvalidStateTransition, "status", "campaign is not active")
	}
	c.markCompleted(now)
	return nil
}

// Cancel moves an active campaign to CANCELLED. Callers must have verified,
// under the row lock, that nothing has been raised.
func (c *Campaign) Cancel(now time.Time) error {
	if c.Status != CampaignActive {
		return NewDomainError(ErrorInvalidStateTransition, "status", "campaign is not active")
	}
	if !c.CurrentAmount.IsZero() {
		return NewDomainError(ErrorInvalidStateTransition, "currentAmount", "campaign with donations cannot be cancelled")
	}
	t := now.UTC()
	c.Status = CampaignCancelled
	c.CancelledAt = &t
	c.UpdatedAt = t
	return nil
}

func (c *Campaign) markCompleted(now time.Time) {
	t := now.UTC()
	c.Status = CampaignCompleted
	c.CompletedAt = &t
	c.UpdatedAt = t
}

// EnsureAcceptingDonations is the pre-payment check: the campaign must be
// active and its window still open.
func (c *Campaign) EnsureAcceptingDonations(now time.Time) error {
	if c.Status != CampaignActive {
		return NewDomainError(ErrorInvalidStateTransition, "status", "campaign is not active")
	}
	if !now.Before(c.EndsAt) {
		return NewDomainError(ErrorWindowExpired, "endsAt", "campaign has ended")
	}
	return nil
}

// Progress is the percentage of the goal raised, rounded to the nearest integer.
func (c *Campaign) Progress() int {
	if c.GoalAmount.IsZero() {
		return 0
	}
	pct := c.CurrentAmount.Div(c.GoalAmount).Mul(decimal.NewFromInt(100)).Round(0)
	return int(pct.IntPart())
}

// DaysLeft counts whole days (rounded up) until EndsAt, or 0 when not active.
func (c *Campaign) DaysLeft(now time.Time) int {
	if c.Status != CampaignActive {
		return 0
	}
	remaining := c.EndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}

// IsActive reports ACTIVE status with the window still open.
func (c *Campaign) IsActive(now time.Time) bool {
	return c.Status == CampaignActive && now.Before(c.EndsAt)
}

// CampaignView is the read model exposed to callers.
type CampaignView struct {
	ID                    uuid.UUID       `json:"id"`
	ShelterID             uuid.UUID       `json:"shelter_id"`
	Title                 string          `json:"title"`
	Description           string          `json:"description"`
	ImageRef              *string         `json:"image_ref,omitempty"`
	Priority              Priority        `json:"priority"`
	DurationWeeks         int             `json:"duration_weeks"`
	GoalAmount            decimal.Decimal `json:"goal_amount"`
	CurrentAmount         decimal.Decimal `json:"current_amount"`
	PlatformFeePercentage decimal.Decimal `json:"platform_fee_percentage"`
	Status                CampaignStatus  `json:"status"`
	Progress              int             `json:"progress"`
	DaysLeft              int             `json:"days_left"`
	IsActive              bool            `json:"is_active"`
	CreatedAt             time.Time       `json:"created_at"`
	EndsAt                time.Time       `json:"ends_at"`
	CompletedAt           *time.Time      `json:"completed_at,omitempty"`
	CancelledAt           *time.Time      `json:"cancelled_at,omitempty"`
}

// View builds the read model as of now.
func (c *Campaign) View(now time.Time) CampaignView {
	return CampaignView{
		ID:                    c.ID,
		ShelterID:             c.ShelterID,
		Title:                 c.Title,
		Description:           c.Description,
		ImageRef:              c.ImageRef,
		Priority:              c.Priority,
		DurationWeeks:         c.DurationWeeks,
		GoalAmount:            c.GoalAmount,
		CurrentAmount:         c.CurrentAmount,
		PlatformFeePercentage: c.PlatformFeePercentage,
		Status:                c.Status,
		Progress:              c.Progress(),
		DaysLeft:              c.DaysLeft(now),
		IsActive:              c.IsActive(now),
		CreatedAt:             c.CreatedAt,
		EndsAt:                c.EndsAt,
		CompletedAt:           c.CompletedAt,
		CancelledAt:           c.CancelledAt,
	}
}
