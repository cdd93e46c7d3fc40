package provider

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// nonceCharset restricts nonces to unambiguous characters accepted by every
// provider's authorization request.
const nonceCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-._"

// NonceLength is the fixed length of generated sign-in nonces.
const NonceLength = 32

// GenerateNonce returns a cryptographically random nonce drawn from the
// allowed character set. The raw nonce is retained for the backend exchange
// while only its digest travels in the authorization request.
func GenerateNonce() (string, error) {
	buf := make([]byte, NonceLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	out := make([]byte, NonceLength)
	for i, b := range buf {
		out[i] = nonceCharset[int(b)%len(nonceCharset)]
	}
	return string(out), nil
}

// HashNonce computes the one-way digest of a raw nonce that is sent as the
// authorization request's challenge. Binding the hash to the request prevents
// replay of a token obtained through a different nonce.
func HashNonce(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
