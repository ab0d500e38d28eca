package session

import "errors"

var (
	ErrUnknownAccount   = errors.New("unknown account")
	ErrLoginRejected    = errors.New("login rejected")
	ErrNoLocalVault     = errors.New("account exists but no local vault; import the recovery phrase first")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrTooManyAttempts  = errors.New("too many failed login attempts")
	ErrEmptyToken       = errors.New("server returned an empty token")
)
