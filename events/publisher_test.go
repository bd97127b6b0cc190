package events_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkantrust/idempotent-payments/events"
	"github.com/arkantrust/idempotent-payments/models"
	"github.com/arkantrust/idempotent-payments/store"
)

func TestPublishReachesEveryHandler(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	var order []string
	failing := events.HandlerFunc(func(context.Context, models.PaymentEvent) error {
		order = append(order, "failing")
		return errors.New("boom")
	})
	recording := events.HandlerFunc(func(_ context.Context, e models.PaymentEvent) error {
		order = append(order, "recording")
		return nil
	})

	pub := events.NewPublisher(logger, failing, events.StoreAppender(s), recording, events.LogHandler(logger))
	p := models.NewPayment("pay-1", 100, "USD", time.Now().UTC())
	e := models.NewPaymentCreatedEvent(p, "k1")
	pub.Publish(ctx, e)

	assert.Equal(t, []string{"failing", "recording"}, order)

	stored, err := s.ListEvents(ctx, "pay-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, e.ID, stored[0].ID)

	assert.Contains(t, logs.String(), "payment event handler failed")
	assert.Contains(t, logs.String(), "event_type=PAYMENT_CREATED")
}

func TestPublishWithoutHandlers(t *testing.T) {
	pub := events.NewPublisher(nil)
	assert.NotPanics(t, func() {
		pub.Publish(context.Background(), models.PaymentEvent{ID: "e"})
	})
}
