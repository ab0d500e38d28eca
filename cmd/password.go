package cmd

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/illarion/seedvault/internal/crypto"
	"github.com/illarion/seedvault/internal/vault"
)

// PasswordEnv overrides interactive password prompts
const PasswordEnv = "SEEDVAULT_PASSWORD"

// NewPasswordEnv supplies the new password for passwd without a prompt
const NewPasswordEnv = "SEEDVAULT_NEW_PASSWORD"

// ReadPassword reads a password from the terminal without echoing
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read password without echo
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // New line after password

	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	return password, nil
}

// ReadPasswordConfirm reads a password twice and ensures they match
func ReadPasswordConfirm(prompt string) ([]byte, error) {
	password1, err := ReadPassword(prompt)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password1)

	password2, err := ReadPassword("Confirm password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password2)

	if !crypto.ConstantTimeCompare(password1, password2) {
		return nil, fmt.Errorf("passwords do not match")
	}

	// Return a copy of the password
	result := make([]byte, len(password1))
	copy(result, password1)
	return result, nil
}

// passwordFromEnv returns a copy of the named variable, or nil
func passwordFromEnv(name string) []byte {
	password := os.Getenv(name)
	if password == "" {
		return nil
	}
	return []byte(password)
}

// GetPassword retrieves password from environment or prompts user.
// The caller is responsible for calling crypto.ClearBytes on the returned password.
func GetPassword(prompt string) ([]byte, error) {
	if password := passwordFromEnv(PasswordEnv); password != nil {
		return password, nil
	}
	return ReadPassword(prompt)
}

// GetNewPassword reads a password that is about to encrypt the vault and
// checks it against policy. env names the variable consulted before
// prompting with confirmation.
func GetNewPassword(env, prompt string, policy vault.PasswordPolicy) ([]byte, error) {
	password := passwordFromEnv(env)
	if password == nil {
		var err error
		password, err = ReadPasswordConfirm(prompt)
		if err != nil {
			return nil, err
		}
	}

	if err := vault.ValidatePassword(password, policy); err != nil {
		crypto.ClearBytes(password)
		return nil, err
	}
	return password, nil
}
