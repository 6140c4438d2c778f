// Package internal holds small helpers shared by the engine packages that
// are not part of the public API.
package internal

import (
	"crypto/rand"
	"encoding/base64"
)

const resetTokenRawSize = 32

// NewResetToken returns an opaque single-use token suitable for password
// reset links: 32 random bytes, base64url encoded without padding.
func NewResetToken() (string, error) {
	raw := make([]byte, resetTokenRawSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
