package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pawfund/fundraising-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCampaign(t *testing.T, repo *MemoryRepository, shelterID uuid.UUID) *domain.Campaign {
	t.Helper()
	c, err := domain.NewCampaign(domain.NewCampaignInput{
		ShelterID:     shelterID,
		Title:         "Kennel repairs",
		GoalAmount:    decimal.NewFromInt(120),
		Priority:      domain.PriorityMedium,
		DurationWeeks: 1,
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.CreateCampaign(context.Background(), c))
	return c
}

func TestMemoryRepository_OneActiveCampaignPerShelter(t *testing.T) {
	repo := NewMemoryRepository()
	shelterID := uuid.New()
	seedCampaign(t, repo, shelterID)

	second, err := domain.NewCampaign(domain.NewCampaignInput{
		ShelterID: shelterID, Title: "Another", GoalAmount: decimal.NewFromInt(200),
		Priority: domain.PriorityLow, DurationWeeks: 2,
	}, time.Now())
	require.NoError(t, err)

	err = repo.CreateCampaign(context.Background(), second)
	assert.ErrorIs(t, err, ErrActiveCampaignExists)
}

func TestMemoryLedgerTx_WritesInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	c := seedCampaign(t, repo, uuid.New())

	tx, err := repo.BeginLedgerTx(ctx, time.Second)
	require.NoError(t, err)

	locked, err := tx.LockCampaign(ctx, c.ID)
	require.NoError(t, err)
	_, err = locked.AddDonation(decimal.NewFromInt(10), time.Now())
	require.NoError(t, err)
	require.NoError(t, tx.UpdateCampaign(ctx, locked))

	before, err := repo.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, before.CurrentAmount.IsZero())

	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	after, err := repo.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "10", after.CurrentAmount.String())
}

func TestMemoryLedgerTx_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	c := seedCampaign(t, repo, uuid.New())

	tx, err := repo.BeginLedgerTx(ctx, time.Second)
	require.NoError(t, err)
	locked, err := tx.LockCampaign(ctx, c.ID)
	require.NoError(t, err)
	require.NoError(t, locked.Complete(time.Now()))
	require.NoError(t, tx.UpdateCampaign(ctx, locked))
	require.NoError(t, tx.Rollback(ctx))

	got, err := repo.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignActive, got.Status)
}

func TestMemoryLedgerTx_LockTimesOutWhileHeld(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	c := seedCampaign(t, repo, uuid.New())

	holder, err := repo.BeginLedgerTx(ctx, time.Second)
	require.NoError(t, err)
	_, err = holder.LockCampaign(ctx, c.ID)
	require.NoError(t, err)

	waiter, err := repo.BeginLedgerTx(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	_, err = waiter.LockCampaign(ctx, c.ID)
	assert.True(t, errors.Is(err, ErrLockTimeout))
	require.NoError(t, waiter.Rollback(ctx))

	require.NoError(t, holder.Rollback(ctx))

	again, err := repo.BeginLedgerTx(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	_, err = again.LockCampaign(ctx, c.ID)
	assert.NoError(t, err)
	require.NoError(t, again.Rollback(ctx))
}

func TestMemoryLedgerTx_DifferentRowsDoNotBlock(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	a := seedCampaign(t, repo, uuid.New())
	b := seedCampaign(t, repo, uuid.New())

	first, err := repo.BeginLedgerTx(ctx, time.Second)
	require.NoError(t, err)
	_, err = first.LockCampaign(ctx, a.ID)
	require.NoError(t, err)

	second, err := repo.BeginLedgerTx(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	_, err = second.LockCampaign(ctx, b.ID)
	assert.NoError(t, err)

	require.NoError(t, second.Rollback(ctx))
	require.NoError(t, first.Rollback(ctx))
}

func TestMemoryLedgerTx_RecordCompletedDonationOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	rec := domain.DonationRecord{
		DonationID: uuid.New(),
		TargetType: domain.TargetPet,
		TargetID:   uuid.New(),
		Amount:     decimal.NewFromInt(25),
	}

	tx, err := repo.BeginLedgerTx(ctx, time.Second)
	require.NoError(t, err)
	applied, err := tx.RecordCompletedDonation(ctx, rec)
	require.NoError(t, err)
	assert.True(t, applied)
	require.NoError(t, tx.Commit(ctx))

	tx, err = repo.BeginLedgerTx(ctx, time.Second)
	require.NoError(t, err)
	applied, err = tx.RecordCompletedDonation(ctx, rec)
	require.NoError(t, err)
	assert.False(t, applied)
	require.NoError(t, tx.Rollback(ctx))

	stored, ok := repo.Donation(rec.DonationID)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentStatusCompleted, stored.Status)
}

func TestMemoryRepository_ListPetsDueForCycleReset(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now()
	recent := now.Add(-24 * time.Hour)
	stale := now.Add(-40 * 24 * time.Hour)

	never := domain.PetFunding{PetID: uuid.New(), ShelterID: uuid.New()}
	fresh := domain.PetFunding{PetID: uuid.New(), ShelterID: uuid.New(), GoalsLastReset: &recent}
	old := domain.PetFunding{PetID: uuid.New(), ShelterID: uuid.New(), GoalsLastReset: &stale}
	for _, p := range []domain.PetFunding{never, fresh, old} {
		require.NoError(t, repo.CreatePetFunding(ctx, &p))
	}

	ids, err := repo.ListPetsDueForCycleReset(ctx, now.Add(-domain.FundingCycleLength))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{never.PetID, old.PetID}, ids)

	err = repo.CreatePetFunding(ctx, &never)
	assert.ErrorIs(t, err, ErrPetFundingExists)
}
