package payments_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkantrust/idempotent-payments/models"
	"github.com/arkantrust/idempotent-payments/payments"
	"github.com/arkantrust/idempotent-payments/store"
)

// racingPayments lets a competing cancel win right before our own
// compare-and-set reaches the store.
type racingPayments struct {
	*store.Memory
	raced bool
}

func (r *racingPayments) TransitionPayment(ctx context.Context, id string, from, to models.PaymentStatus, at time.Time) (*models.Payment, error) {
	if !r.raced {
		r.raced = true
		if _, err := r.Memory.TransitionPayment(ctx, id, from, to, at.Add(-time.Second)); err != nil {
			return nil, err
		}
	}
	return r.Memory.TransitionPayment(ctx, id, from, to, at)
}

func TestLifecycleCancelLostRace(t *testing.T) {
	ctx := context.Background()
	s := &racingPayments{Memory: store.NewMemory()}
	now := time.Now().UTC()
	require.NoError(t, s.PutPayment(ctx, models.NewPayment("pay-1", 1, "USD", now)))

	l := payments.NewLifecycle(s, nil)
	p, canceled, err := l.Cancel(ctx, "pay-1")
	require.NoError(t, err)
	assert.False(t, canceled, "the competing cancel performed the transition")
	assert.Equal(t, models.PaymentCanceled, p.Status)
}

func TestLifecycleCancelReportsTransition(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutPayment(ctx, models.NewPayment("pay-1", 1, "USD", created)))

	later := created.Add(time.Minute)
	l := payments.NewLifecycle(s, func() time.Time { return later })

	p, canceled, err := l.Cancel(ctx, "pay-1")
	require.NoError(t, err)
	assert.True(t, canceled)
	assert.True(t, p.UpdatedAt.Equal(later))
	assert.True(t, p.CreatedAt.Equal(created))

	p, canceled, err = l.Cancel(ctx, "pay-1")
	require.NoError(t, err)
	assert.False(t, canceled)
	assert.True(t, p.UpdatedAt.Equal(later))
}
