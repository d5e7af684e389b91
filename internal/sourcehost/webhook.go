package sourcehost

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// VerifySignature checks header (the raw "X-Hub-Signature" value, e.g.
// "sha1=abcdef...") against HMAC-SHA1(secret, body) using a constant-time
// compare. The source host signs with SHA-1, not SHA-256: there is no
// stronger header to prefer here.
func VerifySignature(secret string, body []byte, header string) bool {
	const prefix = "sha1="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	supplied, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	return hmac.Equal(expected, supplied)
}
