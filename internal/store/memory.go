package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pawfund/fundraising-service/internal/domain"
)

// MemoryRepository is an in-process Repository. Each row has its own lock so
// ledger transactions on different rows run in parallel while transactions on
// the same row queue, giving up after the transaction's lock timeout.
type MemoryRepository struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]domain.Campaign
	pets      map[uuid.UUID]domain.PetFunding
	adoptions map[uuid.UUID]domain.AdoptionRequest
	donations map[uuid.UUID]domain.DonationRecord
	rowLocks  map[string]chan struct{}
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		campaigns: make(map[uuid.UUID]domain.Campaign),
		pets:      make(map[uuid.UUID]domain.PetFunding),
		adoptions: make(map[uuid.UUID]domain.AdoptionRequest),
		donations: make(map[uuid.UUID]domain.DonationRecord),
		rowLocks:  make(map[string]chan struct{}),
	}
}

func (r *MemoryRepository) rowLock(key string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.rowLocks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		r.rowLocks[key] = ch
	}
	return ch
}

// PutCampaign stores c as-is, bypassing creation rules.
func (r *MemoryRepository) PutCampaign(c domain.Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.ID] = c
}

// PutPetFunding stores p as-is.
func (r *MemoryRepository) PutPetFunding(p domain.PetFunding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pets[p.PetID] = p
}

// PutAdoptionRequest stores a as-is.
func (r *MemoryRepository) PutAdoptionRequest(a domain.AdoptionRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adoptions[a.ID] = a
}

// Donation returns the recorded donation, if any.
func (r *MemoryRepository) Donation(id uuid.UUID) (domain.DonationRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.donations[id]
	return rec, ok
}

func (r *MemoryRepository) BeginLedgerTx(ctx context.Context, lockTimeout time.Duration) (LedgerTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memLedgerTx{
		repo:      r,
		timeout:   lockTimeout,
		held:      make(map[string]chan struct{}),
		campaigns: make(map[uuid.UUID]domain.Campaign),
		pets:      make(map[uuid.UUID]domain.PetFunding),
		adoptions: make(map[uuid.UUID]domain.AdoptionRequest),
		donations: make(map[uuid.UUID]domain.DonationRecord),
	}, nil
}

func (r *MemoryRepository) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.Status == domain.CampaignActive {
		for _, existing := range r.campaigns {
			if existing.ShelterID == c.ShelterID && existing.Status == domain.CampaignActive {
				return ErrActiveCampaignExists
			}
		}
	}
	r.campaigns[c.ID] = *c
	return nil
}

func (r *MemoryRepository) GetCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, ErrCampaignNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) HasActiveCampaign(ctx context.Context, shelterID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.ShelterID == shelterID && c.Status == domain.CampaignActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) ListActiveCampaignsReachedGoal(ctx context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Campaign
	for _, c := range r.campaigns {
		if c.Status == domain.CampaignActive && c.CurrentAmount.GreaterThanOrEqual(c.GoalAmount) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return campaignIDs(out), nil
}

func (r *MemoryRepository) ListActiveCampaignsEndedBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Campaign
	for _, c := range r.campaigns {
		if c.Status == domain.CampaignActive && c.EndsAt.Before(cutoff) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndsAt.Before(out[j].EndsAt) })
	return campaignIDs(out), nil
}

func campaignIDs(cs []domain.Campaign) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	return ids
}

func (r *MemoryRepository) CreateAdoptionRequest(ctx context.Context, a *domain.AdoptionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.Status == domain.AdoptionPending {
		for _, existing := range r.adoptions {
			if existing.RequesterID == a.RequesterID && existing.PetID == a.PetID && existing.Status == domain.AdoptionPending {
				return ErrPendingAdoptionExists
			}
		}
	}
	r.adoptions[a.ID] = *a
	return nil
}

func (r *MemoryRepository) GetAdoptionRequest(ctx context.Context, id uuid.UUID) (*domain.AdoptionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.adoptions[id]
	if !ok {
		return nil, ErrAdoptionRequestNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) HasPendingAdoptionRequest(ctx context.Context, requesterID, petID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.adoptions {
		if a.RequesterID == requesterID && a.PetID == petID && a.Status == domain.AdoptionPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) CreatePetFunding(ctx context.Context, p *domain.PetFunding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pets[p.PetID]; ok {
		return ErrPetFundingExists
	}
	r.pets[p.PetID] = *p
	return nil
}

func (r *MemoryRepository) GetPetFunding(ctx context.Context, petID uuid.UUID) (*domain.PetFunding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pets[petID]
	if !ok {
		return nil, ErrPetFundingNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) ListPetsDueForCycleReset(ctx context.Context, lastResetBefore time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for id, p := range r.pets {
		if p.GoalsLastReset == nil || p.GoalsLastReset.Before(lastResetBefore) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// memLedgerTx stages writes and applies them on Commit.
type memLedgerTx struct {
	repo    *MemoryRepository
	timeout time.Duration
	held    map[string]chan struct{}
	done    bool

	campaigns map[uuid.UUID]domain.Campaign
	pets      map[uuid.UUID]domain.PetFunding
	adoptions map[uuid.UUID]domain.AdoptionRequest
	donations map[uuid.UUID]domain.DonationRecord
}

func (t *memLedgerTx) acquire(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	ch := t.repo.rowLock(key)
	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		t.held[key] = ch
		return nil
	case <-timer.C:
		return ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *memLedgerTx) release() {
	for key, ch := range t.held {
		<-ch
		delete(t.held, key)
	}
}

func (t *memLedgerTx) LockCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	if err := t.acquire(ctx, "campaign:"+id.String()); err != nil {
		return nil, err
	}
	if c, ok := t.campaigns[id]; ok {
		return &c, nil
	}
	return t.repo.GetCampaign(ctx, id)
}

func (t *memLedgerTx) LockPetFunding(ctx context.Context, petID uuid.UUID) (*domain.PetFunding, error) {
	if err := t.acquire(ctx, "pet:"+petID.String()); err != nil {
		return nil, err
	}
	if p, ok := t.pets[petID]; ok {
		return &p, nil
	}
	return t.repo.GetPetFunding(ctx, petID)
}

func (t *memLedgerTx) LockAdoptionRequest(ctx context.Context, id uuid.UUID) (*domain.AdoptionRequest, error) {
	if err := t.acquire(ctx, "adoption:"+id.String()); err != nil {
		return nil, err
	}
	if a, ok := t.adoptions[id]; ok {
		return &a, nil
	}
	return t.repo.GetAdoptionRequest(ctx, id)
}

func (t *memLedgerTx) UpdateCampaign(ctx context.Context, c *domain.Campaign) error {
	if _, err := t.repo.GetCampaign(ctx, c.ID); err != nil {
		return err
	}
	t.campaigns[c.ID] = *c
	return nil
}

func (t *memLedgerTx) UpdatePetFunding(ctx context.Context, p *domain.PetFunding) error {
	if _, err := t.repo.GetPetFunding(ctx, p.PetID); err != nil {
		return err
	}
	t.pets[p.PetID] = *p
	return nil
}

func (t *memLedgerTx) UpdateAdoptionRequest(ctx context.Context, a *domain.AdoptionRequest) error {
	if _, err := t.repo.GetAdoptionRequest(ctx, a.ID); err != nil {
		return err
	}
	t.adoptions[a.ID] = *a
	return nil
}

func (t *memLedgerTx) RecordCompletedDonation(ctx context.Context, rec domain.DonationRecord) (bool, error) {
	if err := t.acquire(ctx, "donation:"+rec.DonationID.String()); err != nil {
		return false, err
	}
	if staged, ok := t.donations[rec.DonationID]; ok && staged.Status == domain.PaymentStatusCompleted {
		return false, nil
	}
	if existing, ok := t.repo.Donation(rec.DonationID); ok && existing.Status == domain.PaymentStatusCompleted {
		return false, nil
	}
	rec.Status = domain.PaymentStatusCompleted
	t.donations[rec.DonationID] = rec
	return true, nil
}

func (t *memLedgerTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.repo.mu.Lock()
	for id, c := range t.campaigns {
		t.repo.campaigns[id] = c
	}
	for id, p := range t.pets {
		t.repo.pets[id] = p
	}
	for id, a := range t.adoptions {
		t.repo.adoptions[id] = a
	}
	for id, d := range t.donations {
		t.repo.donations[id] = d
	}
	t.repo.mu.Unlock()

	t.done = true
	t.release()
	return nil
}

func (t *memLedgerTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.release()
	return nil
}
