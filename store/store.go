// Package store provides persistence for payments, idempotency records and
// payment events.
//
// Three backends implement the same contracts: an in-memory store, a BoltDB
// store (the default) and a SQLite store. The idempotency protocol only relies
// on two atomic primitives, so any backend that offers them is interchangeable:
//
//   - InsertIfAbsent: exactly one concurrent caller inserts a record for a key,
//     every other caller observes AlreadyExists.
//   - TransitionRecord / TransitionPayment: a compare-and-set of a single
//     record or payment from an expected status to a new one. Two concurrent transitions out of the
//     same status never both apply.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arkantrust/idempotent-payments/models"
)

var (
	// ErrNotFound is returned when a requested key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStatusMismatch is returned by TransitionRecord and TransitionPayment
	// when the stored status is not the expected one.
	ErrStatusMismatch = errors.New("status mismatch")

	// ErrDuplicate is returned by Payments.Put for an id that already exists.
	ErrDuplicate = errors.New("duplicate id")
)

// InsertResult is the outcome of IdempotencyRecords.InsertIfAbsent.
type InsertResult int

const (
	Inserted InsertResult = iota + 1
	AlreadyExists
)

// Payments stores payments by id.
type Payments interface {
	// PutPayment persists a new payment. Payments are never overwritten.
	PutPayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	// TransitionPayment atomically moves the payment from status from to
	// status to and sets UpdatedAt to at. It returns the updated payment.
	TransitionPayment(ctx context.Context, id string, from, to models.PaymentStatus, at time.Time) (*models.Payment, error)
}

// IdempotencyRecords stores idempotency records by key.
type IdempotencyRecords interface {
	InsertIfAbsent(ctx context.Context, rec *models.IdempotencyRecord) (InsertResult, error)
	GetRecord(ctx context.Context, key string) (*models.IdempotencyRecord, error)
	// TransitionRecord atomically moves the record from status from to
	// status to. It fails with ErrNotFound or ErrStatusMismatch.
	TransitionRecord(ctx context.Context, key string, from, to models.RecordStatus) error
}

// Events is an append-only log of payment events, grouped by payment id.
type Events interface {
	AppendEvent(ctx context.Context, e models.PaymentEvent) error
	// ListEvents returns the events of a payment in append order. A payment
	// without events yields an empty, non-nil slice.
	ListEvents(ctx context.Context, paymentID string) ([]models.PaymentEvent, error)
}

// Backend is a storage engine serving every contract.
type Backend interface {
	Payments
	IdempotencyRecords
	Events
	io.Closer
}

// Drivers accepted by Open.
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open returns the backend for driver. path is ignored by the memory driver.
func Open(driver, path string) (Backend, error) {
	switch driver {
	case DriverBolt:
		return NewBolt(path)
	case DriverSQLite:
		return NewSQLite(path)
	case DriverMemory:
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}
