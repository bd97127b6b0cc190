package payments_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkantrust/idempotent-payments/events"
	"github.com/arkantrust/idempotent-payments/idempotency"
	"github.com/arkantrust/idempotent-payments/models"
	"github.com/arkantrust/idempotent-payments/payments"
	"github.com/arkantrust/idempotent-payments/store"
)

type tick struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns a strictly increasing time on every call.
func (c *tick) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newService(t *testing.T) (*payments.Service, *store.Memory) {
	t.Helper()
	s := store.NewMemory()
	c := &tick{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	co := idempotency.NewCoordinator(s, s, idempotency.WithClock(c.Now))
	pub := events.NewPublisher(nil, events.StoreAppender(s))
	return payments.NewService(co, payments.NewLifecycle(s, c.Now), s, pub, nil), s
}

func TestCreatePaymentValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := map[string]models.CreatePaymentRequest{
		"zero amount":     {Amount: 0, Currency: "USD"},
		"negative amount": {Amount: -5, Currency: "USD"},
		"empty currency":  {Amount: 100, Currency: ""},
		"blank currency":  {Amount: 100, Currency: "   "},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.CreatePayment(ctx, req, "k-"+name)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestValidationDoesNotTouchTheKey(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	_, _, err := svc.CreatePayment(ctx, models.CreatePaymentRequest{Amount: 0, Currency: "USD"}, "k1")
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = s.GetRecord(ctx, "k1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWorkedExample(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p, created, err := svc.CreatePayment(ctx, models.CreatePaymentRequest{Amount: 100, Currency: "USD"}, "k1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.PaymentCreated, p.Status)

	replay, created, err := svc.CreatePayment(ctx, models.CreatePaymentRequest{Amount: 100, Currency: "USD"}, "k1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p.ID, replay.ID)
	assert.Equal(t, p.Status, replay.Status)

	_, _, err = svc.CreatePayment(ctx, models.CreatePaymentRequest{Amount: 200, Currency: "USD"}, "k1")
	assert.ErrorIs(t, err, models.ErrConflict)

	canceled, err := svc.CancelPayment(ctx, p.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCanceled, canceled.Status)
	assert.True(t, canceled.UpdatedAt.After(p.UpdatedAt))

	again, err := svc.CancelPayment(ctx, p.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCanceled, again.Status)
	assert.True(t, again.UpdatedAt.Equal(canceled.UpdatedAt), "second cancel must not bump updatedAt")
}

func TestCancelNotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.CancelPayment(context.Background(), "missing", "", "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCancelUnsupportedStatus(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	p := models.NewPayment("pay-auth", 100, "USD", time.Now().UTC())
	p.Status = models.PaymentStatus("AUTHORIZED")
	require.NoError(t, s.PutPayment(ctx, p))

	_, err := svc.CancelPayment(ctx, p.ID, "", "")
	require.ErrorIs(t, err, models.ErrInvalidState)
	assert.Contains(t, err.Error(), "AUTHORIZED")
}

func TestGetPayment(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.GetPayment(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	p, _, err := svc.CreatePayment(ctx, models.CreatePaymentRequest{Amount: 42, Currency: "eur"}, "")
	require.NoError(t, err)

	got, err := svc.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, *p, *got)
}

func TestConcurrentCancel(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	var published atomic.Int32
	pub := events.NewPublisher(nil, events.HandlerFunc(func(_ context.Context, e models.PaymentEvent) error {
		if e.Type == models.EventPaymentCanceled {
			published.Add(1)
		}
		return nil
	}))
	svc := payments.NewService(idempotency.NewCoordinator(s, s), payments.NewLifecycle(s, nil), s, pub, nil)

	p, _, err := svc.CreatePayment(ctx, models.CreatePaymentRequest{Amount: 100, Currency: "USD"}, "")
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.CancelPayment(ctx, p.ID, "", "")
			if assert.NoError(t, err) {
				assert.Equal(t, models.PaymentCanceled, got.Status)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), published.Load(), "exactly one cancel performs the transition")
}

func TestEventsFollowStateChanges(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p, _, err := svc.CreatePayment(ctx, models.CreatePaymentRequest{Amount: 100, Currency: "USD"}, "k1")
	require.NoError(t, err)
	_, _, err = svc.CreatePayment(ctx, models.CreatePaymentRequest{Amount: 100, Currency: "USD"}, "k1")
	require.NoError(t, err)
	_, err = svc.CancelPayment(ctx, p.ID, "cancel-k1", "duplicate order")
	require.NoError(t, err)
	_, err = svc.CancelPayment(ctx, p.ID, "cancel-k2", "again")
	require.NoError(t, err)

	evs, err := svc.PaymentEvents(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, evs, 2, "replays and no-op cancels publish nothing")
	assert.Equal(t, models.EventPaymentCreated, evs[0].Type)
	assert.Equal(t, "k1", evs[0].IdempotencyKey)
	assert.Equal(t, models.EventPaymentCanceled, evs[1].Type)
	assert.Equal(t, "duplicate order", evs[1].Reason)
	assert.Equal(t, "cancel-k1", evs[1].IdempotencyKey)

	none, err := svc.PaymentEvents(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}
