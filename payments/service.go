// Package payments is the entry point for creating, canceling and reading
// payments.
//
// Service validates input, delegates creation to the idempotency coordinator
// and status changes to Lifecycle, and publishes an event for every state
// change it performs. Errors match the sentinels in package models.
package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arkantrust/idempotent-payments/idempotency"
	"github.com/arkantrust/idempotent-payments/models"
	"github.com/arkantrust/idempotent-payments/store"
)

// Publisher is notified after a payment changes state.
type Publisher interface {
	Publish(ctx context.Context, e models.PaymentEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, models.PaymentEvent) {}

// Service is the payments facade.
type Service struct {
	coordinator *idempotency.Coordinator
	lifecycle   *Lifecycle
	events      store.Events
	publisher   Publisher
	logger      *slog.Logger
}

// NewService wires a Service. publisher may be nil.
func NewService(
	coordinator *idempotency.Coordinator,
	lifecycle *Lifecycle,
	events store.Events,
	publisher Publisher,
	logger *slog.Logger,
) *Service {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		coordinator: coordinator,
		lifecycle:   lifecycle,
		events:      events,
		publisher:   publisher,
		logger:      logger,
	}
}

// CreatePayment creates a payment, deduplicated by idempotencyKey when it is
// not blank. created is false when an earlier request with the same key
// already produced the returned payment.
func (s *Service) CreatePayment(ctx context.Context, req models.CreatePaymentRequest, idempotencyKey string) (p *models.Payment, created bool, err error) {
	if err := validateCreate(req); err != nil {
		return nil, false, err
	}

	res, err := s.coordinator.Create(ctx, req, idempotencyKey)
	if err != nil {
		return nil, false, err
	}

	if res.Created {
		s.logger.InfoContext(ctx, "payment created",
			"payment_id", res.Payment.ID,
			"idempotency_key", idempotencyKey,
		)
		s.publisher.Publish(ctx, models.NewPaymentCreatedEvent(res.Payment, idempotencyKey))
	}
	return res.Payment, res.Created, nil
}

// CancelPayment cancels the payment with the given id. idempotencyKey and
// reason are optional and only recorded on the canceled event; cancel is
// idempotent by state, not by key.
func (s *Service) CancelPayment(ctx context.Context, id, idempotencyKey, reason string) (*models.Payment, error) {
	p, canceled, err := s.lifecycle.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	if canceled {
		s.logger.InfoContext(ctx, "payment canceled",
			"payment_id", p.ID,
			"idempotency_key", idempotencyKey,
		)
		s.publisher.Publish(ctx, models.NewPaymentCanceledEvent(p, idempotencyKey, reason))
	}
	return p, nil
}

// GetPayment returns the payment with the given id.
func (s *Service) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	return s.lifecycle.Get(ctx, id)
}

// PaymentEvents returns the recorded events of a payment, oldest first.
func (s *Service) PaymentEvents(ctx context.Context, id string) ([]models.PaymentEvent, error) {
	events, err := s.events.ListEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func validateCreate(req models.CreatePaymentRequest) error {
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	}
	if strings.TrimSpace(req.Currency) == "" {
		return fmt.Errorf("%w: currency required", models.ErrValidation)
	}
	return nil
}
