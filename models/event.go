package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a payment state change.
type EventType string

const (
	EventPaymentCreated  EventType = "PAYMENT_CREATED"
	EventPaymentCanceled EventType = "PAYMENT_CANCELED"
)

// AggregatePayment is the aggregate type of every payment event.
const AggregatePayment = "PAYMENT"

// PaymentEvent records a state change of a single payment. Amount and
// Currency are set on created events, Reason on canceled events.
// IdempotencyKey is whatever key the client sent with the request.
type PaymentEvent struct {
	ID             string    `json:"eventId"`
	Type           EventType `json:"eventType"`
	AggregateType  string    `json:"aggregateType"`
	AggregateID    string    `json:"aggregateId"`
	OccurredAt     time.Time `json:"occurredAt"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
	Amount         int64     `json:"amount,omitempty"`
	Currency       string    `json:"currency,omitempty"`
	Reason         string    `json:"reason,omitempty"`
}

// NewPaymentCreatedEvent describes the creation of p.
func NewPaymentCreatedEvent(p *Payment, idempotencyKey string) PaymentEvent {
	return PaymentEvent{
		ID:             uuid.NewString(),
		Type:           EventPaymentCreated,
		AggregateType:  AggregatePayment,
		AggregateID:    p.ID,
		OccurredAt:     p.CreatedAt,
		IdempotencyKey: idempotencyKey,
		Amount:         p.Amount,
		Currency:       p.Currency,
	}
}

// NewPaymentCanceledEvent describes the cancellation of p. idempotencyKey is
// the optional key the client sent with the cancel request.
func NewPaymentCanceledEvent(p *Payment, idempotencyKey, reason string) PaymentEvent {
	return PaymentEvent{
		ID:             uuid.NewString(),
		Type:           EventPaymentCanceled,
		AggregateType:  AggregatePayment,
		AggregateID:    p.ID,
		OccurredAt:     p.UpdatedAt,
		IdempotencyKey: idempotencyKey,
		Reason:         reason,
	}
}
