package signer

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const Secp256k1Name = "secp256k1"

// Secp256k1 produces Ethereum personal_sign signatures (R||S||V) over the
// keccak256 of the prefixed message.
type Secp256k1 struct{}

func (Secp256k1) Name() string { return Secp256k1Name }

func (Secp256k1) DeriveKeyPair(seed []byte) (KeyPair, error) {
	if err := checkSeed(seed); err != nil {
		return nil, err
	}
	priv, err := crypto.ToECDSA(seed[:32])
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive secp256k1 key")
	}
	return &secp256k1Pair{priv: priv}, nil
}

func (Secp256k1) Address(publicKey []byte) (string, error) {
	var (
		pub *ecdsa.PublicKey
		err error
	)
	switch len(publicKey) {
	case 33:
		pub, err = crypto.DecompressPubkey(publicKey)
	case 65:
		pub, err = crypto.UnmarshalPubkey(publicKey)
	default:
		return "", errors.Errorf("unsupported public key format: len=%d", len(publicKey))
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to parse secp256k1 pubkey")
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

func (Secp256k1) Verify(publicKey, message, signature []byte) bool {
	if len(signature) != crypto.SignatureLength {
		return false
	}
	return crypto.VerifySignature(publicKey, personalHash(message), signature[:crypto.RecoveryIDOffset])
}

// personalHash is keccak256("\x19Ethereum Signed Message:\n" + len + message)
func personalHash(message []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return crypto.Keccak256([]byte(prefix), message)
}

type secp256k1Pair struct {
	priv *ecdsa.PrivateKey
}

func (p *secp256k1Pair) PublicKey() []byte {
	return crypto.FromECDSAPub(&p.priv.PublicKey)
}

func (p *secp256k1Pair) Address() string {
	return crypto.PubkeyToAddress(p.priv.PublicKey).Hex()
}

func (p *secp256k1Pair) Sign(message []byte) ([]byte, error) {
	if p.priv == nil || p.priv.D.Sign() == 0 {
		return nil, errors.New("secp256k1 key destroyed")
	}
	sig, err := crypto.Sign(personalHash(message), p.priv)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign message")
	}
	return sig, nil
}

func (p *secp256k1Pair) Destroy() {
	if p.priv == nil {
		return
	}
	p.priv.D.SetInt64(0)
	p.priv = nil
}
