//go:build integration

package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pawfund/fundraising-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a disposable PostgreSQL container, applies the
// migrations and returns a connected repository.
func setupPostgres(t *testing.T) *PostgresRepository {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fundraising"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, RunMigrations(dsn, logger))
	require.NoError(t, RunMigrations(dsn, logger), "second run must be a no-op")

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewPostgresRepository(pool)
}

func TestIntegration_Postgres_CampaignRoundTrip(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	c, err := domain.NewCampaign(domain.NewCampaignInput{
		ShelterID:     uuid.New(),
		Title:         "Surgery fund",
		GoalAmount:    decimal.NewFromInt(120),
		Priority:      domain.PriorityCritical,
		DurationWeeks: 4,
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.CreateCampaign(ctx, c))

	dup, err := domain.NewCampaign(domain.NewCampaignInput{
		ShelterID: c.ShelterID, Title: "Second", GoalAmount: decimal.NewFromInt(150),
		Priority: domain.PriorityLow, DurationWeeks: 1,
	}, time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, repo.CreateCampaign(ctx, dup), ErrActiveCampaignExists)

	got, err := repo.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.PlatformFeePercentage.Equal(decimal.NewFromInt(14)))
	assert.Equal(t, domain.CampaignActive, got.Status)

	active, err := repo.HasActiveCampaign(ctx, c.ShelterID)
	require.NoError(t, err)
	assert.True(t, active)

	_, err = repo.GetCampaign(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestIntegration_Postgres_LockTimeoutIsMapped(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	c, err := domain.NewCampaign(domain.NewCampaignInput{
		ShelterID: uuid.New(), Title: "Lock test", GoalAmount: decimal.NewFromInt(500),
		Priority: domain.PriorityLow, DurationWeeks: 1,
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.CreateCampaign(ctx, c))

	holder, err := repo.BeginLedgerTx(ctx, time.Second)
	require.NoError(t, err)
	defer holder.Rollback(ctx)
	_, err = holder.LockCampaign(ctx, c.ID)
	require.NoError(t, err)

	waiter, err := repo.BeginLedgerTx(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	defer waiter.Rollback(ctx)
	_, err = waiter.LockCampaign(ctx, c.ID)
	assert.True(t, errors.Is(err, ErrLockTimeout), "got %v", err)
}

func TestIntegration_Postgres_DonationRecordedOnce(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	rec := domain.DonationRecord{
		DonationID:  uuid.New(),
		TargetType:  domain.TargetCampaign,
		TargetID:    uuid.New(),
		Amount:      decimal.NewFromInt(60),
		PlatformFee: decimal.RequireFromString("7.5"),
		CompletedAt: time.Now().UTC(),
	}

	for i, want := range []bool{true, false} {
		tx, err := repo.BeginLedgerTx(ctx, time.Second)
		require.NoError(t, err)
		applied, err := tx.RecordCompletedDonation(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, want, applied, "delivery %d", i+1)
		require.NoError(t, tx.Commit(ctx))
	}
}

func TestIntegration_Postgres_PetFundingUpdate(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	p := &domain.PetFunding{
		PetID:     uuid.New(),
		ShelterID: uuid.New(),
		MonthlyGoals: domain.CareBuckets{
			Vaccination: decimal.NewFromInt(100),
			Food:        decimal.NewFromInt(200),
			Medical:     decimal.NewFromInt(100),
			Other:       decimal.NewFromInt(100),
		},
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreatePetFunding(ctx, p))

	due, err := repo.ListPetsDueForCycleReset(ctx, time.Now().Add(-domain.FundingCycleLength))
	require.NoError(t, err)
	assert.Contains(t, due, p.PetID)

	tx, err := repo.BeginLedgerTx(ctx, time.Second)
	require.NoError(t, err)
	locked, err := tx.LockPetFunding(ctx, p.PetID)
	require.NoError(t, err)
	_, err = locked.ApplyDonation(decimal.NewFromInt(50), time.Now())
	require.NoError(t, err)
	require.NoError(t, tx.UpdatePetFunding(ctx, locked))
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.GetPetFunding(ctx, p.PetID)
	require.NoError(t, err)
	assert.True(t, got.CurrentMonthDonations.Equal(decimal.NewFromInt(50)))
	assert.True(t, got.CurrentMonthDistribution.Food.Equal(decimal.NewFromInt(20)))
}
