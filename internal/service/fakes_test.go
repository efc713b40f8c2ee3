package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "festival/internal/errors"
	"festival/internal/models"
	"festival/internal/repository"
	"festival/internal/repository/memstore"

	"github.com/stretchr/testify/require"
)

const validSignature = "t=1,v1=valid"

type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	requests  []models.PaymentSessionRequest
	expired   []string
	createErr error
}

func (g *fakeGateway) CreateSession(_ context.Context, req models.PaymentSessionRequest) (*models.PaymentSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	g.requests = append(g.requests, req)
	id := fmt.Sprintf("cs_test_%d", g.seq)
	return &models.PaymentSession{ID: id, URL: "https://pay.test/" + id}, nil
}

func (g *fakeGateway) ExpireSession(_ context.Context, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expired = append(g.expired, sessionID)
	return nil
}

func (g *fakeGateway) VerifyWebhook(payload []byte, signature string) (*models.PaymentEvent, error) {
	if signature != validSignature {
		return nil, &apperrors.AuthenticityError{Err: errors.New("no signatures found matching the expected signature for payload")}
	}
	var e models.PaymentEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	return &e, nil
}

func (g *fakeGateway) lastRequest() models.PaymentSessionRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

type published struct {
	subject string
	data    interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{subject: subject, data: data})
	return nil
}

func (p *fakePublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.subject
	}
	return out
}

func (p *fakePublisher) last(subject string) interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].subject == subject {
			return p.events[i].data
		}
	}
	return nil
}

type fakeCache struct {
	mu   sync.Mutex
	keys []string
}

func (c *fakeCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, keys...)
	return nil
}

// failingStore подменяет запись пожертвования, чтобы проверить откат
type failingStore struct {
	*memstore.Store
	mu   sync.Mutex
	fail error
}

func (f *failingStore) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *failingStore) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	return f.Store.WithinTx(ctx, func(tx repository.Tx) error {
		return fn(&failingTx{Tx: tx, fail: fail})
	})
}

type failingTx struct {
	repository.Tx
	fail error
}

func (t *failingTx) InsertDonation(ctx context.Context, d *models.Donation) error {
	if t.fail != nil {
		return t.fail
	}
	return t.Tx.InsertDonation(ctx, d)
}

type fixture struct {
	store      *memstore.Store
	gateway    *fakeGateway
	publisher  *fakePublisher
	cache      *fakeCache
	checkout   *CheckoutService
	settlement *SettlementService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memstore.New(), nil)
}

func newFixtureWithStore(t *testing.T, mem *memstore.Store, store repository.Store) *fixture {
	t.Helper()
	if store == nil {
		store = mem
	}
	f := &fixture{
		store:     mem,
		gateway:   &fakeGateway{},
		publisher: &fakePublisher{},
		cache:     &fakeCache{},
	}
	f.checkout = NewCheckoutService(store, f.gateway, f.publisher, "https://festival.test", "eur")
	f.settlement = NewSettlementService(store, f.gateway, f.publisher, f.cache)
	return f
}

func (f *fixture) activeAuction(startingBid int64) int64 {
	now := time.Now()
	return f.store.AddAuction(models.Auction{
		Title:       "Signierte Gitarre",
		StartingBid: startingBid,
		Status:      models.AuctionActive,
		StartsAt:    now.Add(-time.Hour),
		EndsAt:      now.Add(time.Hour),
	})
}

func (f *fixture) begin(t *testing.T, intent models.Intent) *CheckoutResult {
	t.Helper()
	res, err := f.checkout.BeginCheckout(context.Background(), intent, "")
	require.NoError(t, err)
	return res
}

// completion строит событие оплаты с суммой, сохраненной при checkout
func (f *fixture) completion(t *testing.T, sessionID string) []byte {
	t.Helper()
	p, err := f.store.GetIntent(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, p)
	return completionPayload(t, sessionID, p.Amount)
}

func completionPayload(t *testing.T, sessionID string, amount int64) []byte {
	t.Helper()
	payload, err := json.Marshal(models.PaymentEvent{
		ID:            "evt_" + sessionID,
		Type:          models.PaymentEventCheckoutCompleted,
		SessionID:     sessionID,
		AmountTotal:   amount,
		Currency:      "eur",
		PaymentStatus: models.PaymentStatusPaid,
	})
	require.NoError(t, err)
	return payload
}

func (f *fixture) pay(t *testing.T, sessionID string) Outcome {
	t.Helper()
	outcome, err := f.settlement.OnPaymentCompleted(context.Background(), f.completion(t, sessionID), validSignature)
	require.NoError(t, err)
	return outcome
}
