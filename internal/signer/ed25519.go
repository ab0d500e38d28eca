package signer

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/pkg/errors"
)

const Ed25519Name = "ed25519"

// Ed25519 signs raw messages with ed25519.
type Ed25519 struct{}

func (Ed25519) Name() string { return Ed25519Name }

func (Ed25519) DeriveKeyPair(seed []byte) (KeyPair, error) {
	if err := checkSeed(seed); err != nil {
		return nil, err
	}
	return &ed25519Pair{priv: ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])}, nil
}

func (Ed25519) Address(publicKey []byte) (string, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return "", errors.Errorf("invalid ed25519 public key length %d", len(publicKey))
	}
	return "0x" + hex.EncodeToString(publicKey), nil
}

func (Ed25519) Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

type ed25519Pair struct {
	priv ed25519.PrivateKey
}

func (p *ed25519Pair) PublicKey() []byte {
	return append([]byte(nil), p.priv.Public().(ed25519.PublicKey)...)
}

func (p *ed25519Pair) Address() string {
	addr, _ := Ed25519{}.Address(p.PublicKey())
	return addr
}

func (p *ed25519Pair) Sign(message []byte) ([]byte, error) {
	if len(p.priv) != ed25519.PrivateKeySize {
		return nil, errors.New("ed25519 key destroyed")
	}
	return ed25519.Sign(p.priv, message), nil
}

func (p *ed25519Pair) Destroy() {
	for i := range p.priv {
		p.priv[i] = 0
	}
	p.priv = nil
}
