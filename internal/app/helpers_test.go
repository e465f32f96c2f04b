package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pawfund/fundraising-service/internal/ledger"
	"github.com/pawfund/fundraising-service/internal/store"
)

var baseTime = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: baseTime} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(repo *store.MemoryRepository, clock *testClock) *ledger.Guard {
	return ledger.NewGuard(repo, discardLogger(), time.Second, clock.Now)
}

type publishedEvent struct {
	routingKey string
	body       interface{}
}

type publisherStub struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *publisherStub) Publish(ctx context.Context, routingKey string, body interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{routingKey: routingKey, body: body})
	return nil
}

func (p *publisherStub) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.routingKey)
	}
	return out
}

func (p *publisherStub) last(routingKey string) (interface{}, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].routingKey == routingKey {
			return p.events[i].body, true
		}
	}
	return nil, false
}

type verifierStub struct {
	adoption bool
	campaign bool
	err      error
}

func (v verifierStub) MayRequestAdoption(ctx context.Context, userID uuid.UUID) (bool, error) {
	return v.adoption, v.err
}

func (v verifierStub) MayCreateCampaign(ctx context.Context, shelterID uuid.UUID) (bool, error) {
	return v.campaign, v.err
}

type pointsCall struct {
	userID    uuid.UUID
	points    int
	reference string
}

type pawPointsStub struct {
	mu        sync.Mutex
	debitErr  error
	refundErr error
	debits    []pointsCall
	refunds   []pointsCall
}

func (p *pawPointsStub) Debit(ctx context.Context, userID uuid.UUID, points int, reference string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.debitErr != nil {
		return p.debitErr
	}
	p.debits = append(p.debits, pointsCall{userID: userID, points: points, reference: reference})
	return nil
}

func (p *pawPointsStub) Refund(ctx context.Context, userID uuid.UUID, points int, reference string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refundErr != nil {
		return p.refundErr
	}
	p.refunds = append(p.refunds, pointsCall{userID: userID, points: points, reference: reference})
	return nil
}

var errBoom = errors.New("boom")
