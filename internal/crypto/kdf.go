package crypto

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// Supported key derivation algorithms
const (
	AlgArgon2id     = "argon2id"
	AlgPBKDF2SHA256 = "pbkdf2-sha256"
)

const (
	SaltSize        = 32              // Salt size in bytes
	MinSaltSize     = 16              // Shortest salt accepted on read
	KeySize         = 32              // AES-256 key size
	DefaultTime     = 3               // argon2id passes
	DefaultMemory   = 64 * 1024       // argon2id memory in KiB
	DefaultThreads  = 4               // argon2id lanes
	DefaultIters    = 210000          // PBKDF2 iterations (OWASP minimum)
	MaxKDFMemoryKiB = 4 * 1024 * 1024 // Refuse to allocate more than 4 GiB
)

var (
	ErrInvalidKDFParams     = errors.New("invalid kdf parameters")
	ErrKDFResourceExhausted = errors.New("kdf resource limit exceeded")
)

// KDFError describes why a derivation was refused.
type KDFError struct {
	Kind   error // ErrInvalidKDFParams or ErrKDFResourceExhausted
	Reason string
}

func (e *KDFError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *KDFError) Unwrap() error {
	return e.Kind
}

func invalidParams(format string, args ...any) error {
	return &KDFError{Kind: ErrInvalidKDFParams, Reason: fmt.Sprintf(format, args...)}
}

// KDFParams are stored with each vault record so they can evolve per record.
type KDFParams struct {
	Algorithm   string `json:"algorithm"`
	Time        uint32 `json:"time"` // argon2 passes, or PBKDF2 iterations
	MemoryKiB   uint32 `json:"memoryKiB,omitempty"`
	Parallelism uint8  `json:"parallelism,omitempty"`
	KeyLen      uint32 `json:"keyLen"`
}

// DefaultKDFParams returns the parameters used for new vaults.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Algorithm:   AlgArgon2id,
		Time:        DefaultTime,
		MemoryKiB:   DefaultMemory,
		Parallelism: DefaultThreads,
		KeyLen:      KeySize,
	}
}

// LegacyKDFParams returns the PBKDF2 parameters of pre-argon2 vaults.
func LegacyKDFParams() KDFParams {
	return KDFParams{
		Algorithm: AlgPBKDF2SHA256,
		Time:      DefaultIters,
		KeyLen:    KeySize,
	}
}

// Validate checks the parameters without doing any work.
func (p KDFParams) Validate() error {
	switch p.KeyLen {
	case 16, 24, 32:
	default:
		return invalidParams("key length %d is not an AES key size", p.KeyLen)
	}

	switch p.Algorithm {
	case AlgArgon2id:
		if p.Time < 1 {
			return invalidParams("argon2id time must be at least 1")
		}
		if p.Parallelism < 1 {
			return invalidParams("argon2id parallelism must be at least 1")
		}
		if p.MemoryKiB < 8*uint32(p.Parallelism) {
			return invalidParams("argon2id memory must be at least %d KiB", 8*uint32(p.Parallelism))
		}
		if p.MemoryKiB > MaxKDFMemoryKiB {
			return &KDFError{
				Kind:   ErrKDFResourceExhausted,
				Reason: fmt.Sprintf("argon2id memory %d KiB exceeds limit %d KiB", p.MemoryKiB, MaxKDFMemoryKiB),
			}
		}
	case AlgPBKDF2SHA256:
		if p.Time < 1 {
			return invalidParams("pbkdf2 iterations must be at least 1")
		}
	default:
		return invalidParams("unknown algorithm %q", p.Algorithm)
	}
	return nil
}

// NewSalt generates a fresh KDF salt
func NewSalt() ([]byte, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives an encryption key from a password.
// Identical inputs always produce the same key.
func DeriveKey(password, salt []byte, params KDFParams) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(salt) < MinSaltSize {
		return nil, invalidParams("salt must be at least %d bytes", MinSaltSize)
	}

	switch params.Algorithm {
	case AlgArgon2id:
		return argon2.IDKey(password, salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen), nil
	default:
		return pbkdf2.Key(password, salt, int(params.Time), int(params.KeyLen), sha256.New), nil
	}
}

// DeriveKeyContext runs DeriveKey on its own goroutine so the caller can give
// up on cancellation. A key that arrives after the caller left is zeroed.
func DeriveKeyContext(ctx context.Context, password, salt []byte, params KDFParams) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	// The caller may clear its password as soon as we return
	pw := append([]byte(nil), password...)
	s := append([]byte(nil), salt...)

	type result struct {
		key []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		key, err := DeriveKey(pw, s, params)
		ClearBytes(pw)
		done <- result{key: key, err: err}
	}()

	select {
	case r := <-done:
		return r.key, r.err
	case <-ctx.Done():
		go func() {
			r := <-done
			ClearBytes(r.key)
		}()
		return nil, ctx.Err()
	}
}
