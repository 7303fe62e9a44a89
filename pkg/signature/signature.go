// Package signature computes and checks the HMAC-SHA256 signatures
// Razorpay attaches to payment confirmations and webhook deliveries.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the lowercase hex HMAC-SHA256 digest of payload
// keyed by secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether provided matches the expected signature of
// payload. The payload must be the exact bytes that were signed: for
// client verification that is "{orderId}|{paymentId}", for webhooks the
// raw request body. Comparison is constant-time.
func Verify(payload []byte, provided, secret string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(provided))
}
