package common

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// MakeRandHexString reads size bytes from crypto/rand and returns them hex
// encoded, so the result is 2*size characters long.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MakeRandURLString reads size bytes from crypto/rand and returns them as
// unpadded base64url. Used for values that travel in URLs (OAuth state,
// handoff codes).
func MakeRandURLString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// WipeByteArray zeroes b in place. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
