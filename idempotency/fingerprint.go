// Package idempotency coordinates create-payment requests that carry a
// client idempotency key, so retries of one logical request resolve to one
// payment.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Fingerprint returns the request hash of a create-payment payload. The
// currency is trimmed and upper-cased first, so "usd" and " USD " match.
func Fingerprint(amount int64, currency string) string {
	canonical := "amount=" + strconv.FormatInt(amount, 10) +
		"|currency=" + strings.ToUpper(strings.TrimSpace(currency))
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
