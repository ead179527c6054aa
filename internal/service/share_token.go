package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// shareTokenBytes of entropy; the encoded token is 43 characters.
const shareTokenBytes = 32

var shareTokenLen = base64.RawURLEncoding.EncodedLen(shareTokenBytes)

// NewShareToken returns an unguessable, URL-safe share token.
func NewShareToken() (string, error) {
	b := make([]byte, shareTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidShareToken reports whether s has the shape of a token from
// NewShareToken. Anything else cannot match a stored token.
func ValidShareToken(s string) bool {
	if len(s) != shareTokenLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
