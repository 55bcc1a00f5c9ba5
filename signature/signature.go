// Package signature provides HMAC-SHA256 webhook signing and verification.
//
// The signature covers the raw payload bytes and is transported in the
// X-Hub-Signature-256 header as "sha256=<hex>". Verification is
// constant-time and never fails with an error: an absent or malformed
// header value simply does not match.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Header is the canonical HTTP header carrying the payload signature.
const Header = "X-Hub-Signature-256"

// Sign generates the HMAC-SHA256 signature for the given payload.
// Returns a prefixed signature in the format "sha256=<hex>".
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks whether the supplied header value matches the expected
// HMAC-SHA256 signature for the payload and secret. Comparison is
// constant-time. A subscription without a secret must not call Verify;
// signature checking is skipped entirely in that case.
func Verify(payload []byte, secret, supplied string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(supplied))
}
