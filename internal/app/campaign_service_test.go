package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pawfund/fundraising-service/internal/domain"
	"github.com/pawfund/fundraising-service/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type campaignFixture struct {
	repo    *store.MemoryRepository
	clock   *testClock
	events  *publisherStub
	service *CampaignService
}

func newCampaignFixture(verifier verifierStub) *campaignFixture {
	repo := store.NewMemoryRepository()
	clock := newTestClock()
	events := &publisherStub{}
	svc := NewCampaignService(repo, newTestLedger(repo, clock), verifier, events, discardLogger(), clock.Now)
	return &campaignFixture{repo: repo, clock: clock, events: events, service: svc}
}

func campaignInput(shelterID uuid.UUID) domain.NewCampaignInput {
	return domain.NewCampaignInput{
		ShelterID:     shelterID,
		Title:         "Winter kennels",
		Description:   "Insulation for the outdoor kennels",
		GoalAmount:    decimal.NewFromInt(1000),
		Priority:      domain.PriorityCritical,
		DurationWeeks: 4,
	}
}

func TestCampaignServiceCreate(t *testing.T) {
	f := newCampaignFixture(verifierStub{campaign: true})
	shelterID := uuid.New()

	view, err := f.service.Create(context.Background(), campaignInput(shelterID))
	require.NoError(t, err)

	assert.Equal(t, domain.CampaignActive, view.Status)
	assert.True(t, view.PlatformFeePercentage.Equal(decimal.NewFromInt(14)))
	assert.Equal(t, baseTime.Add(28*24*time.Hour), view.EndsAt)
	assert.Equal(t, 28, view.DaysLeft)
}

func TestCampaignServiceCreateRequiresVerifiedShelter(t *testing.T) {
	f := newCampaignFixture(verifierStub{campaign: false})

	_, err := f.service.Create(context.Background(), campaignInput(uuid.New()))
	assert.True(t, domain.IsCode(err, domain.ErrorNotEligible))
}

func TestCampaignServiceCreatePropagatesVerifierFailure(t *testing.T) {
	f := newCampaignFixture(verifierStub{err: errBoom})

	_, err := f.service.Create(context.Background(), campaignInput(uuid.New()))
	require.ErrorIs(t, err, errBoom)
	_, isDomain := domain.CodeOf(err)
	assert.False(t, isDomain)
}

func TestCampaignServiceCreateRejectsSecondActiveCampaign(t *testing.T) {
	f := newCampaignFixture(verifierStub{campaign: true})
	shelterID := uuid.New()

	_, err := f.service.Create(context.Background(), campaignInput(shelterID))
	require.NoError(t, err)

	_, err = f.service.Create(context.Background(), campaignInput(shelterID))
	assert.True(t, domain.IsCode(err, domain.ErrorNotEligible))
}

func TestCampaignServiceCreateRejectsInvalidGoal(t *testing.T) {
	f := newCampaignFixture(verifierStub{campaign: true})
	in := campaignInput(uuid.New())
	in.GoalAmount = decimal.NewFromInt(50)

	_, err := f.service.Create(context.Background(), in)
	assert.True(t, domain.IsCode(err, domain.ErrorInvalidInput))
}

func TestCampaignServiceCompleteChecksOwner(t *testing.T) {
	f := newCampaignFixture(verifierStub{campaign: true})
	view, err := f.service.Create(context.Background(), campaignInput(uuid.New()))
	require.NoError(t, err)

	_, err = f.service.Complete(context.Background(), uuid.New(), view.ID)
	assert.True(t, domain.IsCode(err, domain.ErrorForbidden))

	stored, err := f.repo.GetCampaign(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignActive, stored.Status)
}

func TestCampaignServiceCompletePublishesEvent(t *testing.T) {
	f := newCampaignFixture(verifierStub{campaign: true})
	shelterID := uuid.New()
	view, err := f.service.Create(context.Background(), campaignInput(shelterID))
	require.NoError(t, err)

	done, err := f.service.Complete(context.Background(), shelterID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignCompleted, done.Status)

	body, ok := f.events.last(domain.EventCampaignCompleted)
	require.True(t, ok)
	evt := body.(domain.CampaignEvent)
	assert.Equal(t, "manual", evt.Trigger)
	assert.Equal(t, view.ID, evt.CampaignID)

	// A completed campaign frees the shelter to open another.
	_, err = f.service.Create(context.Background(), campaignInput(shelterID))
	assert.NoError(t, err)
}

func TestCampaignServiceCancelOnlyWithoutDonations(t *testing.T) {
	f := newCampaignFixture(verifierStub{campaign: true})
	shelterID := uuid.New()
	view, err := f.service.Create(context.Background(), campaignInput(shelterID))
	require.NoError(t, err)

	ledger := newTestLedger(f.repo, f.clock)
	_, err = ledger.ApplyDonation(context.Background(), domain.PaymentConfirmation{
		DonationID: uuid.New(),
		TargetType: domain.TargetCampaign,
		TargetID:   view.ID,
		Amount:     decimal.NewFromInt(25),
		Status:     domain.PaymentStatusCompleted,
	})
	require.NoError(t, err)

	_, err = f.service.Cancel(context.Background(), shelterID, view.ID)
	assert.True(t, domain.IsCode(err, domain.ErrorInvalidStateTransition))
	assert.NotContains(t, f.events.keys(), domain.EventCampaignCancelled)
}

func TestCampaignServiceCancel(t *testing.T) {
	f := newCampaignFixture(verifierStub{campaign: true})
	shelterID := uuid.New()
	view, err := f.service.Create(context.Background(), campaignInput(shelterID))
	require.NoError(t, err)

	cancelled, err := f.service.Cancel(context.Background(), shelterID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Contains(t, f.events.keys(), domain.EventCampaignCancelled)
}

func TestCampaignServiceCheckAcceptingDonations(t *testing.T) {
	f := newCampaignFixture(verifierStub{campaign: true})
	view, err := f.service.Create(context.Background(), campaignInput(uuid.New()))
	require.NoError(t, err)

	require.NoError(t, f.service.CheckAcceptingDonations(context.Background(), view.ID))

	f.clock.Advance(28 * 24 * time.Hour)
	err = f.service.CheckAcceptingDonations(context.Background(), view.ID)
	assert.True(t, domain.IsCode(err, domain.ErrorWindowExpired))

	err = f.service.CheckAcceptingDonations(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrCampaignNotFound)
}
