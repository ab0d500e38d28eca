// Package signer abstracts the signing capability derived from a wallet seed.
//
// A Scheme turns seed bytes into a KeyPair and verifies signatures made by
// it. The vault only ever talks to these interfaces, so the curve in use is
// a configuration choice:
//   - ed25519: address is the hex public key
//   - secp256k1: Ethereum personal_sign signatures and 0x addresses
package signer

import (
	"github.com/pkg/errors"
)

// MinSeedSize is the number of seed bytes consumed by every scheme
const MinSeedSize = 32

var ErrUnknownScheme = errors.New("unknown signing scheme")

// KeyPair is a signing key held in memory while a vault is unlocked.
type KeyPair interface {
	PublicKey() []byte
	Address() string
	Sign(message []byte) ([]byte, error)
	// Destroy zeroes the private key. The pair is unusable afterwards.
	Destroy()
}

// Scheme derives key pairs from seeds and verifies their signatures.
type Scheme interface {
	Name() string
	DeriveKeyPair(seed []byte) (KeyPair, error)
	Address(publicKey []byte) (string, error)
	Verify(publicKey, message, signature []byte) bool
}

// ByName returns the scheme registered under name
func ByName(name string) (Scheme, error) {
	switch name {
	case "", Ed25519Name:
		return Ed25519{}, nil
	case Secp256k1Name:
		return Secp256k1{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownScheme, "%q", name)
	}
}

func checkSeed(seed []byte) error {
	if len(seed) < MinSeedSize {
		return errors.Errorf("seed too short: %d bytes, need %d", len(seed), MinSeedSize)
	}
	return nil
}
