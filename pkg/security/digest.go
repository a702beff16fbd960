package security

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Digest returns a base64 BLAKE2b-256 digest of payload.
func Digest(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// SecretMatches compares a shared secret in constant time.
// An empty expected secret means the check is disabled and always matches.
func SecretMatches(expected, got string) bool {
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(got))) == 1
}
