// Package models defines the core domain types for the payments service.
package models

import "time"

// PaymentStatus is the lifecycle state of a Payment.
//
// Only the states that have behavior behind them are declared here. New
// statuses get added together with their entries in paymentTransitions.
type PaymentStatus string

const (
	PaymentCreated  PaymentStatus = "CREATED"
	PaymentCanceled PaymentStatus = "CANCELED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentCreated: {PaymentCanceled},
}

// Terminal reports whether no transition leaves s.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCanceled
}

// CanTransition reports whether a payment may move from s to next.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	for _, to := range paymentTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Payment is a payment record.
//
// ID, Amount, Currency and CreatedAt never change after creation. Status and
// UpdatedAt only change through a status transition.
type Payment struct {
	// ID is generated server-side.
	ID string `json:"id"`

	// Amount is expressed in the smallest currency unit (e.g. cents for USD).
	Amount int64 `json:"amount"`

	// Currency is stored exactly as the client sent it. Normalization only
	// happens inside the request fingerprint.
	Currency string `json:"currency"`

	Status PaymentStatus `json:"status"`

	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt equals CreatedAt until the first status transition.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewPayment returns a payment in the CREATED status stamped with now.
func NewPayment(id string, amount int64, currency string, now time.Time) *Payment {
	return &Payment{
		ID:        id,
		Amount:    amount,
		Currency:  currency,
		Status:    PaymentCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreatePaymentRequest carries the client-supplied fields of a create call.
type CreatePaymentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}
