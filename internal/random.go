package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const (
	// OpaqueTokenBytes is the raw entropy of refresh, verification, reset and
	// invitation tokens before encoding. 48 bytes comfortably clears the
	// 256-bit floor the token contract requires.
	OpaqueTokenBytes = 48

	minOpaqueTokenBytes = 32
)

// NewOpaqueToken returns a URL-safe random token string carrying n bytes of
// entropy. n below the 32-byte floor is rejected.
func NewOpaqueToken(n int) (string, error) {
	if n < minOpaqueTokenBytes {
		return "", errors.New("opaque token entropy below minimum")
	}

	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashToken returns the SHA-256 digest of a token string.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}
