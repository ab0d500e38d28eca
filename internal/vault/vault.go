package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/illarion/seedvault/internal/crypto"
	"github.com/illarion/seedvault/internal/signer"
	"github.com/illarion/seedvault/internal/storage"
)

// Store persists the single encrypted vault record. SaveRecord must replace
// the previous record atomically.
type Store interface {
	HasRecord() (bool, error)
	LoadRecord() (*storage.VaultRecord, error)
	SaveRecord(record *storage.VaultRecord) error
}

// keyMaterial exists only while the vault is unlocked
type keyMaterial struct {
	mnemonic []byte
	pair     signer.KeyPair
}

func (m *keyMaterial) destroy() {
	crypto.ClearBytes(m.mnemonic)
	m.pair.Destroy()
}

// Vault is the password-protected custody of one wallet seed.
// All methods are safe for concurrent use; calls are serialized.
type Vault struct {
	mu sync.Mutex

	store  Store
	scheme signer.Scheme
	kdf    crypto.KDFParams
	log    zerolog.Logger
	now    func() time.Time

	state    State
	address  string
	material *keyMaterial
}

// Option configures a Vault
type Option func(*Vault)

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(v *Vault) { v.log = log }
}

// WithKDFParams sets the parameters used for new encryptions
func WithKDFParams(params crypto.KDFParams) Option {
	return func(v *Vault) { v.kdf = params }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

// New creates a Vault over store. The scheme is used for new vaults;
// existing records keep the scheme they were created with.
func New(store Store, scheme signer.Scheme, opts ...Option) (*Vault, error) {
	v := &Vault{
		store:  store,
		scheme: scheme,
		kdf:    crypto.DefaultKDFParams(),
		log:    zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if err := v.kdf.Validate(); err != nil {
		return nil, err
	}

	exists, err := store.HasRecord()
	if err != nil {
		return nil, fmt.Errorf("failed to check vault record: %w", err)
	}
	if !exists {
		v.state = Uninitialized
		return v, nil
	}

	record, err := store.LoadRecord()
	if err != nil {
		return nil, fmt.Errorf("failed to load vault record: %w", err)
	}
	v.state = Locked
	v.address = record.Address
	return v, nil
}

// State returns the current state
func (v *Vault) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Address returns the wallet address, or "" when uninitialized.
// It is known without unlocking.
func (v *Vault) Address() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.address
}

// Record returns a copy of the encrypted record
func (v *Vault) Record() (*storage.VaultRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == Uninitialized {
		return nil, ErrNotInitialized
	}
	record, err := v.store.LoadRecord()
	if err != nil {
		return nil, fmt.Errorf("failed to load vault record: %w", err)
	}
	return record.Clone(), nil
}

// Create generates a new seed and stores it encrypted under password.
// The vault ends Locked.
func (v *Vault) Create(ctx context.Context, password []byte) (string, error) {
	mnemonic, err := NewMnemonic()
	if err != nil {
		return "", err
	}
	return v.create(ctx, mnemonic, password)
}

// Import stores an existing mnemonic encrypted under password.
// The vault ends Locked.
func (v *Vault) Import(ctx context.Context, phrase string, password []byte) (string, error) {
	mnemonic, err := NormalizeMnemonic(phrase)
	if err != nil {
		return "", err
	}
	return v.create(ctx, mnemonic, password)
}

func (v *Vault) create(ctx context.Context, mnemonic string, password []byte) (string, error) {
	if len(password) == 0 {
		return "", ErrEmptyPassword
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != Uninitialized {
		return "", ErrAlreadyExists
	}
	exists, err := v.store.HasRecord()
	if err != nil {
		return "", fmt.Errorf("failed to check vault record: %w", err)
	}
	if exists {
		return "", ErrAlreadyExists
	}

	secret := []byte(mnemonic)
	defer crypto.ClearBytes(secret)

	pair, err := v.deriveKeyPair(v.scheme, secret)
	if err != nil {
		return "", err
	}
	address := pair.Address()
	pair.Destroy()

	now := v.now().UTC()
	record, err := v.seal(ctx, secret, password)
	if err != nil {
		return "", err
	}
	record.Address = address
	record.Scheme = v.scheme.Name()
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := v.store.SaveRecord(record); err != nil {
		return "", fmt.Errorf("failed to save vault record: %w", err)
	}

	v.state = Locked
	v.address = address
	v.log.Info().Str("address", address).Str("scheme", record.Scheme).Msg("vault created")
	return address, nil
}

// Unlock decrypts the seed. A wrong password yields ErrWrongPassword and
// leaves the vault Locked. Unlocking an unlocked vault checks the password
// again.
func (v *Vault) Unlock(ctx context.Context, password []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == Uninitialized {
		return ErrNotInitialized
	}

	material, err := v.open(ctx, password)
	if err != nil {
		v.lockLocked()
		return err
	}

	if v.material != nil {
		v.material.destroy()
	}
	v.material = material
	v.state = Unlocked
	v.log.Debug().Str("address", v.address).Msg("vault unlocked")
	return nil
}

func (v *Vault) open(ctx context.Context, password []byte) (*keyMaterial, error) {
	if len(password) == 0 {
		return nil, ErrWrongPassword
	}

	record, err := v.store.LoadRecord()
	if err != nil {
		if errors.Is(err, storage.ErrNoRecord) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("failed to load vault record: %w", err)
	}
	if record.SchemaVersion != storage.RecordSchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d", ErrUnsupportedRecord, record.SchemaVersion)
	}
	scheme, err := signer.ByName(record.Scheme)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedRecord, err)
	}

	key, err := crypto.DeriveKeyContext(ctx, password, record.KDFSalt, record.KDFParams)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(key)

	secret, err := crypto.Open(key, record.CipherNonce, record.EncryptedSeed)
	if err != nil {
		if errors.Is(err, crypto.ErrAuthFailed) {
			v.log.Debug().Str("address", record.Address).Msg("unlock failed: wrong password")
			return nil, ErrWrongPassword
		}
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedRecord, err)
	}

	pair, err := v.deriveKeyPair(scheme, secret)
	if err != nil {
		crypto.ClearBytes(secret)
		return nil, err
	}
	if pair.Address() != record.Address {
		pair.Destroy()
		crypto.ClearBytes(secret)
		return nil, fmt.Errorf("%w: address does not match seed", ErrUnsupportedRecord)
	}

	return &keyMaterial{mnemonic: secret, pair: pair}, nil
}

// Lock discards the key material. It never fails and may be called in any
// state.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lockLocked()
}

// lockLocked requires v.mu to be held
func (v *Vault) lockLocked() {
	if v.material != nil {
		v.material.destroy()
		v.material = nil
		v.log.Debug().Str("address", v.address).Msg("vault locked")
	}
	if v.state == Unlocked {
		v.state = Locked
	}
}

// Sign signs message with the wallet key
func (v *Vault) Sign(message []byte) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != Unlocked {
		return nil, ErrVaultLocked
	}
	return v.material.pair.Sign(message)
}

// PublicKey returns the wallet public key
func (v *Vault) PublicKey() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != Unlocked {
		return nil, ErrVaultLocked
	}
	return append([]byte(nil), v.material.pair.PublicKey()...), nil
}

// ExportSeed returns the mnemonic for one-time display as a backup phrase
func (v *Vault) ExportSeed() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != Unlocked {
		return "", ErrVaultLocked
	}
	return string(v.material.mnemonic), nil
}

// ChangePassword re-encrypts the held seed under newPassword with a fresh
// salt and nonce. On success the vault stays Unlocked. On any failure it
// is locked and the old record and password stay valid.
func (v *Vault) ChangePassword(ctx context.Context, newPassword []byte) (err error) {
	if len(newPassword) == 0 {
		return ErrEmptyPassword
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != Unlocked {
		return ErrVaultLocked
	}
	defer func() {
		if err != nil {
			v.lockLocked()
		}
	}()

	current, err := v.store.LoadRecord()
	if err != nil {
		return fmt.Errorf("failed to load vault record: %w", err)
	}

	record, err := v.seal(ctx, v.material.mnemonic, newPassword)
	if err != nil {
		return err
	}
	record.Address = current.Address
	record.Scheme = current.Scheme
	record.CreatedAt = current.CreatedAt
	record.UpdatedAt = v.now().UTC()

	if err := v.store.SaveRecord(record); err != nil {
		return fmt.Errorf("failed to save vault record: %w", err)
	}

	v.log.Info().Str("address", v.address).Str("kdf", record.KDFParams.Algorithm).Msg("vault password changed")
	return nil
}

// seal encrypts secret under a key derived from password with a fresh salt
// and nonce. Identity fields are left for the caller.
func (v *Vault) seal(ctx context.Context, secret, password []byte) (*storage.VaultRecord, error) {
	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}

	key, err := crypto.DeriveKeyContext(ctx, password, salt, v.kdf)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(key)

	nonce, err := crypto.NewNonce()
	if err != nil {
		return nil, err
	}

	ciphertext, err := crypto.Seal(key, nonce, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt seed: %w", err)
	}

	return &storage.VaultRecord{
		SchemaVersion: storage.RecordSchemaVersion,
		EncryptedSeed: ciphertext,
		KDFSalt:       salt,
		KDFParams:     v.kdf,
		CipherNonce:   nonce,
	}, nil
}

func (v *Vault) deriveKeyPair(scheme signer.Scheme, mnemonic []byte) (signer.KeyPair, error) {
	seed := seedFromMnemonic(string(mnemonic))
	defer crypto.ClearBytes(seed)

	pair, err := scheme.DeriveKeyPair(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key pair: %w", err)
	}
	return pair, nil
}
