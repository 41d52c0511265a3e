package security

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// Reported to clients as validation details.
var (
	ErrPasswordTooShort       = fmt.Errorf("must be at least %d characters", MinPasswordLength)
	ErrPasswordEntirelyDigits = fmt.Errorf("must not be entirely numeric")
)

func CheckPasswordStrength(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if strings.Trim(password, "0123456789") == "" {
		return ErrPasswordEntirelyDigits
	}
	return nil
}
