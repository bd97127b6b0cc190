package idempotency_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arkantrust/idempotent-payments/idempotency"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := idempotency.Fingerprint(100, "USD")
	b := idempotency.Fingerprint(100, "USD")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "hex encoded SHA-256")
}

func TestFingerprintNormalizesCurrency(t *testing.T) {
	want := idempotency.Fingerprint(100, "USD")
	for _, currency := range []string{"usd", " USD", "Usd ", "\tusd\n"} {
		assert.Equal(t, want, idempotency.Fingerprint(100, currency), "currency %q", currency)
	}
}

func TestFingerprintDistinguishesFields(t *testing.T) {
	base := idempotency.Fingerprint(100, "USD")
	assert.NotEqual(t, base, idempotency.Fingerprint(200, "USD"))
	assert.NotEqual(t, base, idempotency.Fingerprint(100, "EUR"))
	// The separator keeps amount digits from bleeding into the currency.
	assert.NotEqual(t, idempotency.Fingerprint(1, "0USD"), idempotency.Fingerprint(10, "USD"))
}
