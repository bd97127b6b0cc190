package store

import (
	"context"
	"sync"
	"time"

	"github.com/arkantrust/idempotent-payments/models"
)

// Memory is an in-process Backend. Values are copied on the way in and out so
// callers never share mutable state with the store.
type Memory struct {
	mu       sync.RWMutex
	payments map[string]models.Payment
	records  map[string]models.IdempotencyRecord
	events   map[string][]models.PaymentEvent
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		payments: make(map[string]models.Payment),
		records:  make(map[string]models.IdempotencyRecord),
		events:   make(map[string][]models.PaymentEvent),
	}
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// PutPayment stores a copy of p. It returns ErrDuplicate if the id exists.
func (m *Memory) PutPayment(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.payments[p.ID]; ok {
		return ErrDuplicate
	}
	m.payments[p.ID] = *p
	return nil
}

// GetPayment returns a copy of the payment, or ErrNotFound.
func (m *Memory) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// TransitionPayment sets the status and UpdatedAt under the write lock when
// the stored status equals from.
func (m *Memory) TransitionPayment(_ context.Context, id string, from, to models.PaymentStatus, at time.Time) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Status != from {
		return nil, ErrStatusMismatch
	}
	p.Status = to
	p.UpdatedAt = at
	m.payments[id] = p
	return &p, nil
}

// InsertIfAbsent stores rec unless its key is already present.
func (m *Memory) InsertIfAbsent(_ context.Context, rec *models.IdempotencyRecord) (InsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[rec.Key]; ok {
		return AlreadyExists, nil
	}
	m.records[rec.Key] = *rec
	return Inserted, nil
}

// GetRecord returns a copy of the record for key, or ErrNotFound.
func (m *Memory) GetRecord(_ context.Context, key string) (*models.IdempotencyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// TransitionRecord swaps the record status from from to to under the write
// lock.
func (m *Memory) TransitionRecord(_ context.Context, key string, from, to models.RecordStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != from {
		return ErrStatusMismatch
	}
	rec.Status = to
	m.records[key] = rec
	return nil
}

// AppendEvent appends e to its payment's event slice.
func (m *Memory) AppendEvent(_ context.Context, e models.PaymentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[e.AggregateID] = append(m.events[e.AggregateID], e)
	return nil
}

// ListEvents returns a copy of the events recorded for paymentID.
func (m *Memory) ListEvents(_ context.Context, paymentID string) ([]models.PaymentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.PaymentEvent, len(m.events[paymentID]))
	copy(out, m.events[paymentID])
	return out, nil
}
