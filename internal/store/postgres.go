/**
 * @description
 * PostgreSQL implementation of the fundraising repository.
 * Ledger mutations run inside a transaction that first bounds lock waits with
 * a transaction-local lock_timeout and then takes row locks with FOR UPDATE.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pawfund/fundraising-service/internal/domain"
)

const (
	pgCodeUniqueViolation  = "23505"
	pgCodeLockNotAvailable = "55P03"
	pgCodeDeadlockDetected = "40P01"
	pgCodeCheckViolation   = "23514"
	pgClassDataException   = "22"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepository handles database operations for the fundraising ledger.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if isPgCode(err, pgCodeLockNotAvailable) || isPgCode(err, pgCodeDeadlockDetected) {
		return fmt.Errorf("%w: %v", ErrLockTimeout, err)
	}
	if isDataRejection(err) {
		return fmt.Errorf("%w: %v", ErrDataRejected, err)
	}
	return err
}

// isDataRejection reports a data exception or CHECK violation: the row can
// never be written as given, however often it is retried.
func isDataRejection(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgCodeCheckViolation || strings.HasPrefix(pgErr.Code, pgClassDataException)
}

// IsDataRejected reports whether err means the database refused the values
// themselves rather than failing transiently.
func IsDataRejected(err error) bool {
	return errors.Is(err, ErrDataRejected) || isDataRejection(err)
}

// BeginLedgerTx opens a transaction whose lock waits give up after lockTimeout.
func (r *PostgresRepository) BeginLedgerTx(ctx context.Context, lockTimeout time.Duration) (LedgerTx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}

	ms := lockTimeout.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", fmt.Sprintf("%dms", ms)); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to set lock timeout: %w", err)
	}

	return &pgLedgerTx{tx: tx}, nil
}

type pgLedgerTx struct {
	tx pgx.Tx
}

func (t *pgLedgerTx) LockCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	c, err := scanCampaign(t.tx.QueryRow(ctx, campaignSelect+" WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCampaignNotFound
		}
		return nil, mapPgError(err)
	}
	return c, nil
}

func (t *pgLedgerTx) LockPetFunding(ctx context.Context, petID uuid.UUID) (*domain.PetFunding, error) {
	p, err := scanPetFunding(t.tx.QueryRow(ctx, petFundingSelect+" WHERE pet_id = $1 FOR UPDATE", petID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPetFundingNotFound
		}
		return nil, mapPgError(err)
	}
	return p, nil
}

func (t *pgLedgerTx) LockAdoptionRequest(ctx context.Context, id uuid.UUID) (*domain.AdoptionRequest, error) {
	a, err := scanAdoptionRequest(t.tx.QueryRow(ctx, adoptionSelect+" WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdoptionRequestNotFound
		}
		return nil, mapPgError(err)
	}
	return a, nil
}

func (t *pgLedgerTx) UpdateCampaign(ctx context.Context, c *domain.Campaign) error {
	query := `
		UPDATE campaigns
		SET current_amount = $2,
		    status = $3,
		    completed_at = $4,
		    cancelled_at = $5,
		    updated_at = $6
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, query, c.ID, c.CurrentAmount, string(c.Status), c.CompletedAt, c.CancelledAt, c.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

func (t *pgLedgerTx) UpdatePetFunding(ctx context.Context, p *domain.PetFunding) error {
	query := `
		UPDATE pet_funding
		SET goal_vaccination = $2,
		    goal_food = $3,
		    goal_medical = $4,
		    goal_other = $5,
		    current_month_donations = $6,
		    dist_vaccination = $7,
		    dist_food = $8,
		    dist_medical = $9,
		    dist_other = $10,
		    goals_last_reset = $11,
		    goals_updated_at = $12,
		    updated_at = $13
		WHERE pet_id = $1
	`
	tag, err := t.tx.Exec(ctx, query,
		p.PetID,
		p.MonthlyGoals.Vaccination, p.MonthlyGoals.Food, p.MonthlyGoals.Medical, p.MonthlyGoals.Other,
		p.CurrentMonthDonations,
		p.CurrentMonthDistribution.Vaccination, p.CurrentMonthDistribution.Food,
		p.CurrentMonthDistribution.Medical, p.CurrentMonthDistribution.Other,
		p.GoalsLastReset, p.GoalsUpdatedAt, p.UpdatedAt,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPetFundingNotFound
	}
	return nil
}

func (t *pgLedgerTx) UpdateAdoptionRequest(ctx context.Context, a *domain.AdoptionRequest) error {
	query := `
		UPDATE adoption_requests
		SET status = $2,
		    proof_image_ref = $3,
		    denial_reason = $4,
		    approved_at = $5,
		    denied_at = $6,
		    cancelled_at = $7,
		    updated_at = $8
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, query, a.ID, string(a.Status), a.ProofImageRef, a.DenialReason,
		a.ApprovedAt, a.DeniedAt, a.CancelledAt, a.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAdoptionRequestNotFound
	}
	return nil
}

func (t *pgLedgerTx) RecordCompletedDonation(ctx context.Context, rec domain.DonationRecord) (bool, error) {
	query := `
		INSERT INTO donations (donation_id, target_type, target_id, amount, platform_fee, status, completed_at)
		VALUES ($1, $2, $3, $4, $5, 'completed', $6)
		ON CONFLICT (donation_id) DO UPDATE
		SET status = 'completed',
		    amount = EXCLUDED.amount,
		    platform_fee = EXCLUDED.platform_fee,
		    completed_at = EXCLUDED.completed_at
		WHERE donations.status <> 'completed'
		RETURNING donation_id
	`
	var id uuid.UUID
	err := t.tx.QueryRow(ctx, query, rec.DonationID, string(rec.TargetType), rec.TargetID,
		rec.Amount, rec.PlatformFee, rec.CompletedAt).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, mapPgError(err)
	}
	return true, nil
}

func (t *pgLedgerTx) Commit(ctx context.Context) error {
	return mapPgError(t.tx.Commit(ctx))
}

func (t *pgLedgerTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

const campaignSelect = `
	SELECT id, shelter_id, title, description, image_ref, priority, duration_weeks,
	       goal_amount, current_amount, platform_fee_percentage, status,
	       created_at, ends_at, completed_at, cancelled_at, updated_at
	FROM campaigns`

func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	var c domain.Campaign
	var priority, status string
	if err := row.Scan(
		&c.ID,
		&c.ShelterID,
		&c.Title,
		&c.Description,
		&c.ImageRef,
		&priority,
		&c.DurationWeeks,
		&c.GoalAmount,
		&c.CurrentAmount,
		&c.PlatformFeePercentage,
		&status,
		&c.CreatedAt,
		&c.EndsAt,
		&c.CompletedAt,
		&c.CancelledAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Priority = domain.Priority(priority)
	c.Status = domain.CampaignStatus(status)
	return &c, nil
}

const petFundingSelect = `
	SELECT pet_id, shelter_id,
	       goal_vaccination, goal_food, goal_medical, goal_other,
	       current_month_donations,
	       dist_vaccination, dist_food, dist_medical, dist_other,
	       goals_last_reset, goals_updated_at, updated_at
	FROM pet_funding`

func scanPetFunding(row pgx.Row) (*domain.PetFunding, error) {
	var p domain.PetFunding
	if err := row.Scan(
		&p.PetID,
		&p.ShelterID,
		&p.MonthlyGoals.Vaccination,
		&p.MonthlyGoals.Food,
		&p.MonthlyGoals.Medical,
		&p.MonthlyGoals.Other,
		&p.CurrentMonthDonations,
		&p.CurrentMonthDistribution.Vaccination,
		&p.CurrentMonthDistribution.Food,
		&p.CurrentMonthDistribution.Medical,
		&p.CurrentMonthDistribution.Other,
		&p.GoalsLastReset,
		&p.GoalsUpdatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

const adoptionSelect = `
	SELECT id, requester_id, pet_id, shelter_id, status, paw_points_used, fee_reduction,
	       message, proof_image_ref, denial_reason,
	       created_at, expires_at, approved_at, denied_at, cancelled_at, updated_at
	FROM adoption_requests`

func scanAdoptionRequest(row pgx.Row) (*domain.AdoptionRequest, error) {
	var a domain.AdoptionRequest
	var status string
	if err := row.Scan(
		&a.ID,
		&a.RequesterID,
		&a.PetID,
		&a.ShelterID,
		&status,
		&a.PawPointsUsedForReduction,
		&a.FeeReduction,
		&a.Message,
		&a.ProofImageRef,
		&a.DenialReason,
		&a.CreatedAt,
		&a.ExpiresAt,
		&a.ApprovedAt,
		&a.DeniedAt,
		&a.CancelledAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Status = domain.AdoptionStatus(status)
	return &a, nil
}

// CreateCampaign inserts a new campaign. The partial unique index on active
// campaigns rejects a second ACTIVE campaign for the same shelter.
func (r *PostgresRepository) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	query := `
		INSERT INTO campaigns (
			id, shelter_id, title, description, image_ref, priority, duration_weeks,
			goal_amount, current_amount, platform_fee_percentage, status,
			created_at, ends_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.Exec(ctx, query,
		c.ID, c.ShelterID, c.Title, c.Description, c.ImageRef, string(c.Priority), c.DurationWeeks,
		c.GoalAmount, c.CurrentAmount, c.PlatformFeePercentage, string(c.Status),
		c.CreatedAt, c.EndsAt, c.UpdatedAt,
	)
	if isPgCode(err, pgCodeUniqueViolation) {
		return ErrActiveCampaignExists
	}
	return err
}

// GetCampaign reads a campaign without locking it.
func (r *PostgresRepository) GetCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRow(ctx, campaignSelect+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCampaignNotFound
	}
	return c, err
}

func (r *PostgresRepository) HasActiveCampaign(ctx context.Context, shelterID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM campaigns WHERE shelter_id = $1 AND status = 'ACTIVE')",
		shelterID,
	).Scan(&exists)
	return exists, err
}

func (r *PostgresRepository) ListActiveCampaignsReachedGoal(ctx context.Context) ([]uuid.UUID, error) {
	return collectIDs(ctx, r.db,
		"SELECT id FROM campaigns WHERE status = 'ACTIVE' AND current_amount >= goal_amount ORDER BY created_at")
}

func (r *PostgresRepository) ListActiveCampaignsEndedBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	return collectIDs(ctx, r.db,
		"SELECT id FROM campaigns WHERE status = 'ACTIVE' AND ends_at < $1 ORDER BY ends_at", cutoff)
}

// CreateAdoptionRequest inserts a new request. The partial unique index on
// pending requests rejects a duplicate for the same requester and pet.
func (r *PostgresRepository) CreateAdoptionRequest(ctx context.Context, a *domain.AdoptionRequest) error {
	query := `
		INSERT INTO adoption_requests (
			id, requester_id, pet_id, shelter_id, status, paw_points_used, fee_reduction,
			message, created_at, expires_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		a.ID, a.RequesterID, a.PetID, a.ShelterID, string(a.Status), a.PawPointsUsedForReduction,
		a.FeeReduction, a.Message, a.CreatedAt, a.ExpiresAt, a.UpdatedAt,
	)
	if isPgCode(err, pgCodeUniqueViolation) {
		return ErrPendingAdoptionExists
	}
	return err
}

func (r *PostgresRepository) GetAdoptionRequest(ctx context.Context, id uuid.UUID) (*domain.AdoptionRequest, error) {
	a, err := scanAdoptionRequest(r.db.QueryRow(ctx, adoptionSelect+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAdoptionRequestNotFound
	}
	return a, err
}

func (r *PostgresRepository) HasPendingAdoptionRequest(ctx context.Context, requesterID, petID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM adoption_requests WHERE requester_id = $1 AND pet_id = $2 AND status = 'PENDING')",
		requesterID, petID,
	).Scan(&exists)
	return exists, err
}

func (r *PostgresRepository) CreatePetFunding(ctx context.Context, p *domain.PetFunding) error {
	query := `
		INSERT INTO pet_funding (
			pet_id, shelter_id, goal_vaccination, goal_food, goal_medical, goal_other,
			goals_last_reset, goals_updated_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		p.PetID, p.ShelterID,
		p.MonthlyGoals.Vaccination, p.MonthlyGoals.Food, p.MonthlyGoals.Medical, p.MonthlyGoals.Other,
		p.GoalsLastReset, p.GoalsUpdatedAt, p.UpdatedAt,
	)
	if isPgCode(err, pgCodeUniqueViolation) {
		return ErrPetFundingExists
	}
	return err
}

func (r *PostgresRepository) GetPetFunding(ctx context.Context, petID uuid.UUID) (*domain.PetFunding, error) {
	p, err := scanPetFunding(r.db.QueryRow(ctx, petFundingSelect+" WHERE pet_id = $1", petID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPetFundingNotFound
	}
	return p, err
}

func (r *PostgresRepository) ListPetsDueForCycleReset(ctx context.Context, lastResetBefore time.Time) ([]uuid.UUID, error) {
	return collectIDs(ctx, r.db,
		"SELECT pet_id FROM pet_funding WHERE goals_last_reset IS NULL OR goals_last_reset < $1 ORDER BY pet_id",
		lastResetBefore)
}

func collectIDs(ctx context.Context, q querier, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
