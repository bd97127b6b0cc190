package models

import "errors"

// Error taxonomy shared by the payments core. Operations wrap one of these
// with context using fmt.Errorf("%w: ...") and callers match with errors.Is.
var (
	// ErrValidation reports malformed input. Nothing was written.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound reports that the referenced payment does not exist.
	ErrNotFound = errors.New("payment not found")

	// ErrConflict reports an idempotency key that must not be retried:
	// reused with a different payload, or expired.
	ErrConflict = errors.New("conflict")

	// ErrStillInProgress means another request owns the idempotency key and
	// has not finished yet. Retry later with the same key.
	ErrStillInProgress = errors.New("request with same idempotency key is still in progress")

	// ErrInvalidState reports an operation the payment's status forbids.
	ErrInvalidState = errors.New("invalid payment state")

	// ErrInternalConsistency reports a broken invariant between the stores.
	// It must never be retried or downgraded.
	ErrInternalConsistency = errors.New("internal consistency violation")
)
