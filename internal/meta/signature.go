package meta

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifySignature checks the x-hub-signature-256 header against the raw
// request body. It fails closed: an empty secret or header is always
// rejected, as is any algorithm tag other than sha256. Lengths are compared
// before the constant-time byte comparison so a truncated digest can never
// reach hmac.Equal.
func VerifySignature(rawBody []byte, signatureHeader, appSecret string) bool {
	if appSecret == "" || signatureHeader == "" {
		return false
	}
	hexDigest, ok := strings.CutPrefix(signatureHeader, signaturePrefix)
	if !ok || hexDigest == "" {
		return false
	}

	provided, err := hex.DecodeString(hexDigest)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	if len(provided) != len(expected) {
		return false
	}
	return hmac.Equal(provided, expected)
}
