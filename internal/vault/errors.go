package vault

import "errors"

var (
	ErrVaultLocked       = errors.New("vault is locked")
	ErrWrongPassword     = errors.New("wrong password")
	ErrNotInitialized    = errors.New("vault not initialized")
	ErrAlreadyExists     = errors.New("vault already exists")
	ErrInvalidMnemonic   = errors.New("invalid mnemonic")
	ErrUnsupportedRecord = errors.New("unsupported vault record")
	ErrEmptyPassword     = errors.New("password must not be empty")
)
