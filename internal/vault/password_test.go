package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	policy := DefaultPasswordPolicy()

	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"valid", "correct1horse", nil},
		{"empty", "", ErrEmptyPassword},
		{"too short", "ab1", ErrWeakPassword},
		{"letters only", "abcdefghij", ErrWeakPassword},
		{"digits only", "1234567890", ErrWeakPassword},
		{"unicode letters", "пароль12", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword([]byte(tt.password), policy)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidatePasswordLoosePolicy(t *testing.T) {
	assert.NoError(t, ValidatePassword([]byte("pw123"), PasswordPolicy{}))
	assert.ErrorIs(t, ValidatePassword([]byte("x"), PasswordPolicy{MaxLength: 0, MinLength: 2}), ErrWeakPassword)
}
