// Package keyring stores seedvault secrets in the OS keyring.
package keyring

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const serviceName = "seedvault"

// ErrNotFound is returned when nothing is stored under the requested key
var ErrNotFound = keyring.ErrNotFound

// Set stores a secret in the OS keyring
func Set(key, secret string) error {
	return keyring.Set(serviceName, key, secret)
}

// Get retrieves a secret from the OS keyring
func Get(key string) (string, error) {
	return keyring.Get(serviceName, key)
}

// Delete removes a secret from the OS keyring. Deleting a missing key is not
// an error.
func Delete(key string) error {
	err := keyring.Delete(serviceName, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// Has checks if a secret is stored in the keyring
func Has(key string) bool {
	_, err := keyring.Get(serviceName, key)
	return err == nil
}
