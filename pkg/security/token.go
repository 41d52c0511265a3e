package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// NewURLToken returns a random URL-safe token carrying n bytes of entropy.
func NewURLToken(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("token length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
