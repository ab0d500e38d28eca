package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/illarion/seedvault/internal/crypto"
)

// RecordSchemaVersion is the only VaultRecord layout this build understands
const RecordSchemaVersion = 1

var ErrInvalidRecord = errors.New("invalid vault record")

// VaultRecord is the durable, encrypted form of a wallet seed.
// It never holds plaintext key material.
type VaultRecord struct {
	SchemaVersion int              `json:"schemaVersion"`
	Address       string           `json:"address"`
	Scheme        string           `json:"scheme"`
	EncryptedSeed []byte           `json:"encryptedSeed"`
	KDFSalt       []byte           `json:"kdfSalt"`
	KDFParams     crypto.KDFParams `json:"kdfParams"`
	CipherNonce   []byte           `json:"cipherNonce"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// Validate checks that the record is complete enough to attempt an unlock
func (r *VaultRecord) Validate() error {
	switch {
	case r == nil:
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	case r.SchemaVersion < 1:
		return fmt.Errorf("%w: missing schema version", ErrInvalidRecord)
	case r.Address == "":
		return fmt.Errorf("%w: missing address", ErrInvalidRecord)
	case len(r.EncryptedSeed) < crypto.TagSize:
		return fmt.Errorf("%w: ciphertext too short", ErrInvalidRecord)
	case len(r.KDFSalt) < crypto.MinSaltSize:
		return fmt.Errorf("%w: salt too short", ErrInvalidRecord)
	case len(r.CipherNonce) != crypto.NonceSize:
		return fmt.Errorf("%w: nonce must be %d bytes", ErrInvalidRecord, crypto.NonceSize)
	}
	return nil
}

// Clone returns a deep copy of the record
func (r *VaultRecord) Clone() *VaultRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.EncryptedSeed = append([]byte(nil), r.EncryptedSeed...)
	c.KDFSalt = append([]byte(nil), r.KDFSalt...)
	c.CipherNonce = append([]byte(nil), r.CipherNonce...)
	return &c
}
