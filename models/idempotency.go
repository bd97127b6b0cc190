package models

import "time"

// RecordStatus is the state of an idempotency record.
type RecordStatus string

const (
	// RecordInProgress is held while the owning request creates its payment.
	RecordInProgress RecordStatus = "IN_PROGRESS"
	RecordCompleted  RecordStatus = "COMPLETED"
	// RecordExpired marks a key whose owner never produced a payment.
	RecordExpired RecordStatus = "EXPIRED"
)

// IdempotencyRecord binds a client idempotency key to the payment created for
// it. Only Status changes after the record is inserted.
type IdempotencyRecord struct {
	Key         string       `json:"key"`
	RequestHash string       `json:"requestHash"`
	PaymentID   string       `json:"paymentId"`
	CreatedAt   time.Time    `json:"createdAt"`
	Status      RecordStatus `json:"status"`
}

// Age returns how long ago the record was created.
func (r *IdempotencyRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}
