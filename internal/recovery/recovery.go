// Package recovery decrypts a wallet seed delivered by the authentication
// service inside a one-time transport envelope.
package recovery

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/illarion/seedvault/internal/crypto"
)

var (
	ErrMalformedEnvelope = errors.New("malformed recovery envelope")
	ErrAuthFailed        = errors.New("recovery envelope authentication failed")
)

// Error is returned by Open. Kind is ErrMalformedEnvelope or ErrAuthFailed.
type Error struct {
	Kind   error
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func malformed(field, reason string) error {
	return &Error{Kind: ErrMalformedEnvelope, Field: field, Reason: reason}
}

// Envelope is the /wallet/seed response body. All fields are standard
// base64.
type Envelope struct {
	TransportKey     string `json:"transportKey"`
	TransportIV      string `json:"transportIv"`
	TransportAuthTag string `json:"transportAuthTag"`
	EncryptedSeed    string `json:"encryptedSeed"`
}

func decodeField(field, value string, size int) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, malformed(field, "invalid base64")
	}
	if size > 0 && len(b) != size {
		crypto.ClearBytes(b)
		return nil, malformed(field, fmt.Sprintf("expected %d bytes, got %d", size, len(b)))
	}
	return b, nil
}

// Open decrypts the envelope and returns the seed phrase. The envelope is
// single use; callers drop it afterwards.
func Open(env Envelope) (string, error) {
	key, err := decodeField("transportKey", env.TransportKey, crypto.KeySize)
	if err != nil {
		return "", err
	}
	defer crypto.ClearBytes(key)

	iv, err := decodeField("transportIv", env.TransportIV, crypto.NonceSize)
	if err != nil {
		return "", err
	}
	tag, err := decodeField("transportAuthTag", env.TransportAuthTag, crypto.TagSize)
	if err != nil {
		return "", err
	}
	ciphertext, err := decodeField("encryptedSeed", env.EncryptedSeed, 0)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := crypto.Open(key, iv, sealed)
	if err != nil {
		if errors.Is(err, crypto.ErrAuthFailed) {
			return "", &Error{Kind: ErrAuthFailed}
		}
		return "", malformed("encryptedSeed", err.Error())
	}
	defer crypto.ClearBytes(plaintext)

	if !utf8.Valid(plaintext) {
		return "", malformed("encryptedSeed", "plaintext is not UTF-8")
	}
	return string(plaintext), nil
}

// Seal builds an envelope around seed with the given key and nonce
func Seal(key, nonce []byte, seed string) (Envelope, error) {
	sealed, err := crypto.Seal(key, nonce, []byte(seed))
	if err != nil {
		return Envelope{}, err
	}
	split := len(sealed) - crypto.TagSize

	enc := base64.StdEncoding
	return Envelope{
		TransportKey:     enc.EncodeToString(key),
		TransportIV:      enc.EncodeToString(nonce),
		TransportAuthTag: enc.EncodeToString(sealed[split:]),
		EncryptedSeed:    enc.EncodeToString(sealed[:split]),
	}, nil
}
