package cardgen

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signature is a stable per-merchant card fingerprint: HMAC-SHA256 over the normalized PAN,
// keyed by the merchant key. The same card charged twice gets the same signature.
// Do not log the input PAN here; callers must sanitize logs separately.
func Signature(pan string, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(NormalizePAN(pan)))
	return "SIG_" + hex.EncodeToString(h.Sum(nil)[:10])
}
