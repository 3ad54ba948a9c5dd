package password

import (
	"errors"
	"unicode"
)

// Policy constrains what passwords are accepted at registration and on
// password change. The zero value rejects everything; use DefaultPolicy.
type Policy struct {
	// MinLength is the minimum length in runes.
	MinLength int
	// MaxLength bounds input size fed to the hasher. 0 means 1024.
	MaxLength int
}

// DefaultPolicy returns the stock policy: at least 8 characters, at least one
// letter, not entirely numeric.
func DefaultPolicy() Policy {
	return Policy{MinLength: 8, MaxLength: 1024}
}

// ErrTooShort and friends are the policy rejection reasons. They are safe to
// surface to end users.
var (
	ErrTooShort    = errors.New("password is too short")
	ErrTooLong     = errors.New("password is too long")
	ErrNumericOnly = errors.New("password cannot be entirely numeric")
	ErrNoLetter    = errors.New("password must contain at least one letter")
)

// Validate checks candidate against the policy and returns the first
// violation found, or nil when the password is acceptable.
func (p Policy) Validate(candidate string) error {
	maxLength := p.MaxLength
	if maxLength == 0 {
		maxLength = 1024
	}

	runes := []rune(candidate)
	if len(runes) < p.MinLength {
		return ErrTooShort
	}
	if len(runes) > maxLength {
		return ErrTooLong
	}

	hasLetter := false
	allDigits := true
	for _, r := range runes {
		if unicode.IsLetter(r) {
			hasLetter = true
		}
		if !unicode.IsDigit(r) {
			allDigits = false
		}
	}
	if allDigits {
		return ErrNumericOnly
	}
	if !hasLetter {
		return ErrNoLetter
	}
	return nil
}
