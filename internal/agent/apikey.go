package agent

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

const apiKeyPrefix = "ak_"

// NewAPIKey generates a fresh agent API key and its storage hash. The
// plaintext is shown to the caller exactly once; only the hash persists.
func NewAPIKey() (plaintext, hash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plaintext = apiKeyPrefix + base64.RawURLEncoding.EncodeToString(raw)
	return plaintext, HashAPIKey(plaintext), nil
}

// HashAPIKey computes the one-way storage hash of an API key. Keys carry 256
// bits of entropy, so an unsalted digest is sufficient and keeps
// verification a single constant-work comparison.
func HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// VerifyAPIKeyHash compares the hash of the presented key against the stored
// hash in constant time. The work done is identical for right and wrong
// keys.
func VerifyAPIKeyHash(storedHash, plaintext string) bool {
	sum := sha256.Sum256([]byte(plaintext))
	actual := hex.EncodeToString(sum[:])
	if len(storedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(actual)) == 1
}

// WellFormedAPIKey reports whether the presented string is shaped like an
// agent API key. It exists for cheap request rejection, not security.
func WellFormedAPIKey(plaintext string) bool {
	return strings.HasPrefix(plaintext, apiKeyPrefix) && len(plaintext) > len(apiKeyPrefix)
}
