package vault

import (
	"errors"
	"fmt"
	"unicode"
)

var ErrWeakPassword = errors.New("password does not meet policy")

// PasswordPolicy describes what a new password must look like
type PasswordPolicy struct {
	MinLength    int
	MaxLength    int
	RequireMixed bool // at least one letter and one digit
}

// DefaultPasswordPolicy matches the checks of the account sign-up form
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 8, MaxLength: 128, RequireMixed: true}
}

// ValidatePassword checks password against policy. Only new passwords are
// validated; unlocking accepts whatever the vault was created with.
func ValidatePassword(password []byte, policy PasswordPolicy) error {
	n := len([]rune(string(password)))
	if n == 0 {
		return ErrEmptyPassword
	}
	if policy.MinLength > 0 && n < policy.MinLength {
		return fmt.Errorf("%w: at least %d characters required", ErrWeakPassword, policy.MinLength)
	}
	if policy.MaxLength > 0 && n > policy.MaxLength {
		return fmt.Errorf("%w: at most %d characters allowed", ErrWeakPassword, policy.MaxLength)
	}
	if policy.RequireMixed {
		var letter, digit bool
		for _, r := range string(password) {
			switch {
			case unicode.IsLetter(r):
				letter = true
			case unicode.IsDigit(r):
				digit = true
			}
		}
		if !letter || !digit {
			return fmt.Errorf("%w: must contain a letter and a digit", ErrWeakPassword)
		}
	}
	return nil
}
