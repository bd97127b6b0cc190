package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arkantrust/idempotent-payments/models"
	"github.com/arkantrust/idempotent-payments/store"
)

// DefaultTTL is how long an IN_PROGRESS record without a payment is treated
// as still running before it expires.
const DefaultTTL = 30 * time.Second

var (
	// ErrPayloadMismatch is returned when a key is replayed with a different
	// request fingerprint. It matches models.ErrConflict.
	ErrPayloadMismatch = fmt.Errorf("%w: idempotency key reused with different payload", models.ErrConflict)

	// ErrKeyExpired is returned for a key whose original request never
	// produced a payment. It matches models.ErrConflict.
	ErrKeyExpired = fmt.Errorf("%w: idempotency key expired; retry with a new key", models.ErrConflict)
)

// Result is the outcome of Coordinator.Create.
type Result struct {
	Payment *models.Payment
	// Created is true only for the call that persisted the payment. Replays
	// of an existing key return Created == false.
	Created bool
}

// Coordinator runs the create-payment protocol over a payment store and an
// idempotency record store.
//
// The only mutual-exclusion point is IdempotencyRecords.InsertIfAbsent. A
// caller that loses the insert re-reads the record and decides from what is
// stored, never from its own local state, so any number of concurrent callers
// on one key end up with at most one payment.
type Coordinator struct {
	payments store.Payments
	records  store.IdempotencyRecords
	logger   *slog.Logger
	ttl      time.Duration
	now      func() time.Time
	newID    func() string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger that receives best-effort failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Coordinator) { c.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDGenerator overrides the payment id generator.
func WithIDGenerator(newID func() string) Option {
	return func(c *Coordinator) { c.newID = newID }
}

// NewCoordinator returns a Coordinator over the given stores.
func NewCoordinator(payments store.Payments, records store.IdempotencyRecords, opts ...Option) *Coordinator {
	c := &Coordinator{
		payments: payments,
		records:  records,
		logger:   slog.Default(),
		ttl:      DefaultTTL,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured record time-to-live.
func (c *Coordinator) TTL() time.Duration { return c.ttl }

// Create creates a payment for req, deduplicated by key.
//
// A blank key skips coordination and always creates a new payment. Otherwise
// the first request for key creates the payment and every later request with
// the same payload gets that payment back. Errors match models.ErrConflict,
// models.ErrStillInProgress or models.ErrInternalConsistency.
func (c *Coordinator) Create(ctx context.Context, req models.CreatePaymentRequest, key string) (Result, error) {
	if strings.TrimSpace(key) == "" {
		p, err := c.createPayment(ctx, c.newID(), req, c.now())
		if err != nil {
			return Result{}, err
		}
		return Result{Payment: p, Created: true}, nil
	}

	hash := Fingerprint(req.Amount, req.Currency)

	rec, err := c.records.GetRecord(ctx, key)
	if err == nil {
		return c.resolve(ctx, rec, hash)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("read idempotency record: %w", err)
	}

	now := c.now()
	rec = &models.IdempotencyRecord{
		Key:         key,
		RequestHash: hash,
		PaymentID:   c.newID(),
		CreatedAt:   now,
		Status:      models.RecordInProgress,
	}
	res, err := c.records.InsertIfAbsent(ctx, rec)
	if err != nil {
		return Result{}, fmt.Errorf("insert idempotency record: %w", err)
	}

	if res == store.Inserted {
		// If this fails the record stays IN_PROGRESS and expires after the TTL.
		p, err := c.createPayment(ctx, rec.PaymentID, req, now)
		if err != nil {
			return Result{}, err
		}
		c.markRecord(ctx, key, models.RecordCompleted)
		return Result{Payment: p, Created: true}, nil
	}

	// Lost the race: somebody inserted first. Re-read what they stored.
	existing, err := c.records.GetRecord(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("%w: idempotency key %q exists but record is missing", models.ErrInternalConsistency, key)
	}
	if err != nil {
		return Result{}, fmt.Errorf("read idempotency record: %w", err)
	}
	return c.resolve(ctx, existing, hash)
}

// resolve answers a request whose key already has a record.
func (c *Coordinator) resolve(ctx context.Context, rec *models.IdempotencyRecord, hash string) (Result, error) {
	if rec.RequestHash != hash {
		return Result{}, ErrPayloadMismatch
	}

	switch rec.Status {
	case models.RecordCompleted:
		p, err := c.payments.GetPayment(ctx, rec.PaymentID)
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: record %q is COMPLETED but payment %s is missing",
				models.ErrInternalConsistency, rec.Key, rec.PaymentID)
		}
		if err != nil {
			return Result{}, fmt.Errorf("read payment: %w", err)
		}
		return Result{Payment: p}, nil

	case models.RecordExpired:
		return Result{}, ErrKeyExpired

	case models.RecordInProgress:
		p, err := c.payments.GetPayment(ctx, rec.PaymentID)
		if err == nil {
			// The owner created the payment but never marked the record.
			c.markRecord(ctx, rec.Key, models.RecordCompleted)
			return Result{Payment: p}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return Result{}, fmt.Errorf("read payment: %w", err)
		}

		if rec.Age(c.now()) <= c.ttl {
			return Result{}, fmt.Errorf("%w: key %q", models.ErrStillInProgress, rec.Key)
		}
		c.markRecord(ctx, rec.Key, models.RecordExpired)
		return Result{}, ErrKeyExpired
	}

	return Result{}, fmt.Errorf("%w: record %q has unknown status %q",
		models.ErrInternalConsistency, rec.Key, rec.Status)
}

func (c *Coordinator) createPayment(ctx context.Context, id string, req models.CreatePaymentRequest, now time.Time) (*models.Payment, error) {
	p := models.NewPayment(id, req.Amount, req.Currency, now)
	if err := c.payments.PutPayment(ctx, p); err != nil {
		return nil, fmt.Errorf("persist payment: %w", err)
	}
	return p, nil
}

// markRecord moves an IN_PROGRESS record to status to. Failure is logged and
// ignored: the caller already holds the answer it is about to return.
func (c *Coordinator) markRecord(ctx context.Context, key string, to models.RecordStatus) {
	err := c.records.TransitionRecord(ctx, key, models.RecordInProgress, to)
	if err != nil {
		c.logger.WarnContext(ctx, "idempotency record transition failed",
			"key", key,
			"from", models.RecordInProgress,
			"to", to,
			"error", err,
		)
	}
}
