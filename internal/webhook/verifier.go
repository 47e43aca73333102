package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifySignature checks an HMAC-SHA256 signature over the exact raw request
// bytes. The header carries "sha256=<hex>". Fails closed: a missing secret,
// malformed header, or mismatch all return false, and the caller must reject
// the request before any deduplication or mutation.
func VerifySignature(body []byte, signatureHeader, secret string) bool {
	if secret == "" || len(body) == 0 || signatureHeader == "" {
		return false
	}
	if !strings.HasPrefix(signatureHeader, signaturePrefix) {
		return false
	}

	signatureBytes, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, signaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	return subtle.ConstantTimeCompare(expected, signatureBytes) == 1
}

// SignBody computes the signature header value for a payload. Used by tests
// and outbound retries.
func SignBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
