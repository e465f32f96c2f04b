package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/pawfund/fundraising-service/internal/domain"
	"github.com/pawfund/fundraising-service/internal/store"
)

// PaymentConsumer applies completed payment confirmations to the ledger.
type PaymentConsumer struct {
	ledger Ledger
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

func NewPaymentConsumer(ledger Ledger, events EventPublisher, logger *slog.Logger, now func() time.Time) *PaymentConsumer {
	return &PaymentConsumer{ledger: ledger, events: events, logger: logger, now: clockOrDefault(now)}
}

// HandleMessage returns false only when redelivery could succeed: lock
// contention or a transient infrastructure failure. Malformed, rejected and
// unknown-target confirmations are acknowledged.
func (c *PaymentConsumer) HandleMessage(body []byte) bool {
	var conf domain.PaymentConfirmation
	if err := json.Unmarshal(body, &conf); err != nil {
		c.logger.Error("failed to unmarshal payment confirmation", "error", err)
		return true
	}

	if conf.Status != domain.PaymentStatusCompleted {
		c.logger.Info("ignoring payment confirmation that is not completed", "donation_id", conf.DonationID, "status", conf.Status)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	outcome, err := c.ledger.ApplyDonation(ctx, conf)
	if err != nil {
		return c.handleFailure(conf, err)
	}

	if outcome.Duplicate {
		c.logger.Info("payment confirmation already applied", "donation_id", conf.DonationID)
		return true
	}

	now := c.now()
	c.logger.Info("donation applied", "donation_id", outcome.DonationID, "target_type", outcome.TargetType, "target_id", outcome.TargetID, "amount", outcome.Amount.String())
	publishEvent(ctx, c.events, c.logger, domain.EventDonationApplied, domain.DonationAppliedEvent{
		DonationID:   outcome.DonationID,
		TargetType:   outcome.TargetType,
		TargetID:     outcome.TargetID,
		Amount:       outcome.Amount,
		PlatformFee:  outcome.PlatformFee,
		Distribution: outcome.Distribution,
		OccurredAt:   now.UTC(),
	})

	if outcome.CampaignCompleted && outcome.Campaign != nil {
		c.logger.Info("campaign completed", "campaign_id", outcome.Campaign.ID, "trigger", "goal_reached")
		publishEvent(ctx, c.events, c.logger, domain.EventCampaignCompleted, domain.NewCampaignEvent(outcome.Campaign, "goal_reached", now))
	}
	return true
}

func (c *PaymentConsumer) handleFailure(conf domain.PaymentConfirmation, err error) bool {
	if domain.IsCode(err, domain.ErrorConcurrencyConflict) {
		c.logger.Warn("payment confirmation hit lock contention; requeueing", "donation_id", conf.DonationID, "error", err)
		return false
	}
	if _, ok := domain.CodeOf(err); ok {
		c.logger.Error("payment confirmation rejected by ledger", "donation_id", conf.DonationID, "target_id", conf.TargetID, "error", err)
		return true
	}
	if errors.Is(err, store.ErrCampaignNotFound) || errors.Is(err, store.ErrPetFundingNotFound) {
		c.logger.Error("payment confirmation for unknown target", "donation_id", conf.DonationID, "target_type", conf.TargetType, "target_id", conf.TargetID)
		return true
	}
	if store.IsDataRejected(err) {
		c.logger.Error("payment confirmation rejected by database; dropping", "donation_id", conf.DonationID, "target_id", conf.TargetID, "amount", conf.Amount.String(), "error", err)
		return true
	}
	c.logger.Error("failed to apply payment confirmation; requeueing", "donation_id", conf.DonationID, "error", err)
	return false
}
