// Package events fans payment events out to passive observers.
//
// Observers never influence the outcome of the operation that produced the
// event: a failing handler is logged and the remaining handlers still run.
package events

import (
	"context"
	"log/slog"

	"github.com/arkantrust/idempotent-payments/models"
	"github.com/arkantrust/idempotent-payments/store"
)

// Handler receives published events.
type Handler interface {
	Handle(ctx context.Context, e models.PaymentEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, e models.PaymentEvent) error

func (f HandlerFunc) Handle(ctx context.Context, e models.PaymentEvent) error {
	return f(ctx, e)
}

// Publisher delivers each event synchronously to every handler, in order.
type Publisher struct {
	handlers []Handler
	logger   *slog.Logger
}

// NewPublisher returns a Publisher over handlers.
func NewPublisher(logger *slog.Logger, handlers ...Handler) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{handlers: handlers, logger: logger}
}

// Publish delivers e to every handler.
func (p *Publisher) Publish(ctx context.Context, e models.PaymentEvent) {
	for _, h := range p.handlers {
		if err := h.Handle(ctx, e); err != nil {
			p.logger.WarnContext(ctx, "payment event handler failed",
				"event_id", e.ID,
				"event_type", e.Type,
				"payment_id", e.AggregateID,
				"error", err,
			)
		}
	}
}

// StoreAppender appends every event to s.
func StoreAppender(s store.Events) Handler {
	return HandlerFunc(func(ctx context.Context, e models.PaymentEvent) error {
		return s.AppendEvent(ctx, e)
	})
}

// LogHandler writes every event to logger at info level.
func LogHandler(logger *slog.Logger) Handler {
	return HandlerFunc(func(ctx context.Context, e models.PaymentEvent) error {
		logger.InfoContext(ctx, "payment event",
			"event_id", e.ID,
			"event_type", e.Type,
			"payment_id", e.AggregateID,
		)
		return nil
	})
}
