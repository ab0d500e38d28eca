package vault

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// EntropyBits is the entropy of generated mnemonics (24 words)
const EntropyBits = 256

// NewMnemonic generates a fresh BIP-39 mnemonic from secure randomness
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(EntropyBits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	clear(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to encode mnemonic: %w", err)
	}
	return mnemonic, nil
}

// NormalizeMnemonic lowercases the phrase and collapses whitespace, then
// checks the word list and checksum.
func NormalizeMnemonic(phrase string) (string, error) {
	mnemonic := strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return "", ErrInvalidMnemonic
	}
	return mnemonic, nil
}

// seedFromMnemonic returns the 64-byte BIP-39 seed (empty passphrase)
func seedFromMnemonic(mnemonic string) []byte {
	return bip39.NewSeed(mnemonic, "")
}
