package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arkantrust/idempotent-payments/models"
	"github.com/arkantrust/idempotent-payments/store"
)

// maxCancelAttempts bounds re-reads after a lost compare-and-set. One re-read
// is always enough today because CANCELED is terminal.
const maxCancelAttempts = 3

// Lifecycle enforces the payment status transitions.
type Lifecycle struct {
	payments store.Payments
	now      func() time.Time
}

// NewLifecycle returns a Lifecycle over s. A nil now uses the UTC wall clock.
func NewLifecycle(s store.Payments, now func() time.Time) *Lifecycle {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Lifecycle{payments: s, now: now}
}

// Get returns the payment with the given id.
func (l *Lifecycle) Get(ctx context.Context, id string) (*models.Payment, error) {
	p, err := l.payments.GetPayment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read payment: %w", err)
	}
	return p, nil
}

// Cancel moves a CREATED payment to CANCELED.
//
// Canceling a payment in a terminal status (CANCELED) returns it unchanged.
// canceled reports whether this call performed the transition; among
// concurrent cancels of one payment exactly one sees true.
func (l *Lifecycle) Cancel(ctx context.Context, id string) (p *models.Payment, canceled bool, err error) {
	for attempt := 0; attempt < maxCancelAttempts; attempt++ {
		p, err = l.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}

		switch {
		case p.Status.Terminal():
			return p, false, nil
		case p.Status.CanTransition(models.PaymentCanceled):
		default:
			return nil, false, fmt.Errorf("%w: payment cannot be canceled from status %s", models.ErrInvalidState, p.Status)
		}

		updated, err := l.payments.TransitionPayment(ctx, id, p.Status, models.PaymentCanceled, l.now())
		if err == nil {
			return updated, true, nil
		}
		if !errors.Is(err, store.ErrStatusMismatch) {
			return nil, false, fmt.Errorf("cancel payment: %w", err)
		}
		// Someone else moved it first; decide again from the stored status.
	}
	return nil, false, fmt.Errorf("%w: payment %s kept changing status during cancel", models.ErrInternalConsistency, id)
}
