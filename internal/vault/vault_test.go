package vault

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illarion/seedvault/internal/crypto"
	"github.com/illarion/seedvault/internal/signer"
	"github.com/illarion/seedvault/internal/storage"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func fastKDF() crypto.KDFParams {
	return crypto.KDFParams{Algorithm: crypto.AlgArgon2id, Time: 1, MemoryKiB: 64, Parallelism: 1, KeyLen: crypto.KeySize}
}

// memStore keeps the record in memory and can be told to fail writes
type memStore struct {
	record   *storage.VaultRecord
	failSave bool
}

func (m *memStore) HasRecord() (bool, error) { return m.record != nil, nil }

func (m *memStore) LoadRecord() (*storage.VaultRecord, error) {
	if m.record == nil {
		return nil, storage.ErrNoRecord
	}
	return m.record.Clone(), nil
}

func (m *memStore) SaveRecord(r *storage.VaultRecord) error {
	if m.failSave {
		return errors.New("disk full")
	}
	if err := r.Validate(); err != nil {
		return err
	}
	m.record = r.Clone()
	return nil
}

func newTestVault(t *testing.T, store Store) *Vault {
	t.Helper()
	v, err := New(store, signer.Ed25519{}, WithKDFParams(fastKDF()))
	require.NoError(t, err)
	return v
}

func TestCreateUnlockRoundTrip(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, &memStore{})
	assert.Equal(t, Uninitialized, v.State())

	addr, err := v.Import(ctx, testMnemonic, []byte("pw123"))
	require.NoError(t, err)
	assert.Equal(t, Locked, v.State(), "creation must not unlock")
	assert.Equal(t, addr, v.Address())

	_, err = v.ExportSeed()
	assert.ErrorIs(t, err, ErrVaultLocked)

	require.NoError(t, v.Unlock(ctx, []byte("pw123")))
	assert.Equal(t, Unlocked, v.State())

	seed, err := v.ExportSeed()
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, seed)
}

func TestCreateGeneratesValidMnemonic(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, &memStore{})

	addr, err := v.Create(ctx, []byte("pw123"))
	require.NoError(t, err)
	require.NoError(t, v.Unlock(ctx, []byte("pw123")))

	seed, err := v.ExportSeed()
	require.NoError(t, err)
	normalized, err := NormalizeMnemonic(seed)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(normalized), 24)

	// Same mnemonic in a fresh vault gives the same address
	other := newTestVault(t, &memStore{})
	otherAddr, err := other.Import(ctx, seed, []byte("different1"))
	require.NoError(t, err)
	assert.Equal(t, addr, otherAddr)
}

func TestCreateTwice(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, &memStore{})

	_, err := v.Create(ctx, []byte("pw123"))
	require.NoError(t, err)
	_, err = v.Create(ctx, []byte("pw123"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreateEmptyPassword(t *testing.T) {
	v := newTestVault(t, &memStore{})
	_, err := v.Create(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyPassword)
	assert.Equal(t, Uninitialized, v.State())
}

func TestImportInvalidMnemonic(t *testing.T) {
	v := newTestVault(t, &memStore{})
	_, err := v.Import(context.Background(), "abandon abandon abandon", []byte("pw123"))
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestUnlockWrongPassword(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, &memStore{})
	_, err := v.Import(ctx, testMnemonic, []byte("pw123"))
	require.NoError(t, err)

	for _, pw := range []string{"pw124", "PW123", "pw123 ", ""} {
		err := v.Unlock(ctx, []byte(pw))
		assert.ErrorIs(t, err, ErrWrongPassword, "password %q", pw)
		assert.Equal(t, Locked, v.State())
		assert.False(t, errors.Is(err, crypto.ErrAuthFailed), "cipher error must not escape")
	}

	// A failed re-unlock drops key material that was already held
	require.NoError(t, v.Unlock(ctx, []byte("pw123")))
	assert.ErrorIs(t, v.Unlock(ctx, []byte("nope")), ErrWrongPassword)
	assert.Equal(t, Locked, v.State())
}

func TestUnlockUninitialized(t *testing.T) {
	v := newTestVault(t, &memStore{})
	assert.ErrorIs(t, v.Unlock(context.Background(), []byte("pw")), ErrNotInitialized)
}

func TestUnlockCancelled(t *testing.T) {
	v := newTestVault(t, &memStore{})
	_, err := v.Import(context.Background(), testMnemonic, []byte("pw123"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = v.Unlock(ctx, []byte("pw123"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Locked, v.State())
}

func TestSignLocked(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, &memStore{})

	_, err := v.Sign([]byte("hello"))
	assert.ErrorIs(t, err, ErrVaultLocked)

	_, err = v.Import(ctx, testMnemonic, []byte("pw123"))
	require.NoError(t, err)

	sig, err := v.Sign([]byte("hello"))
	assert.ErrorIs(t, err, ErrVaultLocked)
	assert.Nil(t, sig)
}

func TestLockIdempotent(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, &memStore{})

	v.Lock()
	v.Lock()
	assert.Equal(t, Uninitialized, v.State())

	_, err := v.Import(ctx, testMnemonic, []byte("pw123"))
	require.NoError(t, err)
	v.Lock()
	v.Lock()
	assert.Equal(t, Locked, v.State())

	require.NoError(t, v.Unlock(ctx, []byte("pw123")))
	v.Lock()
	v.Lock()
	assert.Equal(t, Locked, v.State())
	_, err = v.ExportSeed()
	assert.ErrorIs(t, err, ErrVaultLocked)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	v := newTestVault(t, store)
	addr, err := v.Import(ctx, testMnemonic, []byte("old-pw1"))
	require.NoError(t, err)
	before := store.record.Clone()

	assert.ErrorIs(t, v.ChangePassword(ctx, []byte("new-pw2")), ErrVaultLocked)

	require.NoError(t, v.Unlock(ctx, []byte("old-pw1")))
	require.NoError(t, v.ChangePassword(ctx, []byte("new-pw2")))
	assert.Equal(t, Unlocked, v.State())

	after := store.record
	assert.NotEqual(t, before.KDFSalt, after.KDFSalt)
	assert.NotEqual(t, before.CipherNonce, after.CipherNonce)
	assert.Equal(t, before.Address, after.Address)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)

	v.Lock()
	assert.ErrorIs(t, v.Unlock(ctx, []byte("old-pw1")), ErrWrongPassword)
	require.NoError(t, v.Unlock(ctx, []byte("new-pw2")))
	assert.Equal(t, addr, v.Address())

	seed, err := v.ExportSeed()
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, seed)
}

func TestChangePasswordWriteFailureKeepsOldRecord(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	v := newTestVault(t, store)
	_, err := v.Import(ctx, testMnemonic, []byte("old-pw1"))
	require.NoError(t, err)
	require.NoError(t, v.Unlock(ctx, []byte("old-pw1")))

	store.failSave = true
	assert.Error(t, v.ChangePassword(ctx, []byte("new-pw2")))
	assert.Equal(t, Locked, v.State())
	_, err = v.ExportSeed()
	assert.ErrorIs(t, err, ErrVaultLocked)

	store.failSave = false
	assert.ErrorIs(t, v.Unlock(ctx, []byte("new-pw2")), ErrWrongPassword)
	assert.NoError(t, v.Unlock(ctx, []byte("old-pw1")))
}

func TestChangePasswordCancelledLocks(t *testing.T) {
	store := &memStore{}
	v := newTestVault(t, store)
	_, err := v.Import(context.Background(), testMnemonic, []byte("old-pw1"))
	require.NoError(t, err)
	require.NoError(t, v.Unlock(context.Background(), []byte("old-pw1")))
	before := store.record.Clone()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, v.ChangePassword(ctx, []byte("new-pw2")), context.Canceled)
	assert.Equal(t, Locked, v.State())
	assert.Equal(t, before, store.record)

	assert.NoError(t, v.Unlock(context.Background(), []byte("old-pw1")))
}

func TestChangePasswordBadKDFLocks(t *testing.T) {
	store := &memStore{}
	bad := fastKDF()
	bad.Parallelism = 0
	v, err := New(store, signer.Ed25519{}, WithKDFParams(fastKDF()))
	require.NoError(t, err)
	_, err = v.Import(context.Background(), testMnemonic, []byte("old-pw1"))
	require.NoError(t, err)
	require.NoError(t, v.Unlock(context.Background(), []byte("old-pw1")))

	v.kdf = bad
	assert.ErrorIs(t, v.ChangePassword(context.Background(), []byte("new-pw2")), crypto.ErrInvalidKDFParams)
	assert.Equal(t, Locked, v.State())
}

func TestEndToEndSignVerify(t *testing.T) {
	for _, scheme := range []signer.Scheme{signer.Ed25519{}, signer.Secp256k1{}} {
		t.Run(scheme.Name(), func(t *testing.T) {
			ctx := context.Background()
			db, err := storage.Open(filepath.Join(t.TempDir(), "vault.db"))
			require.NoError(t, err)
			defer db.Close()

			v, err := New(db, scheme, WithKDFParams(fastKDF()))
			require.NoError(t, err)

			addr, err := v.Create(ctx, []byte("pw123"))
			require.NoError(t, err)
			require.NoError(t, v.Unlock(ctx, []byte("pw123")))

			sig, err := v.Sign([]byte("hello"))
			require.NoError(t, err)

			// Re-derive the key pair independently from the exported seed
			mnemonic, err := v.ExportSeed()
			require.NoError(t, err)
			pair, err := scheme.DeriveKeyPair(seedFromMnemonic(mnemonic))
			require.NoError(t, err)
			assert.Equal(t, addr, pair.Address())
			assert.True(t, scheme.Verify(pair.PublicKey(), []byte("hello"), sig))

			pub, err := v.PublicKey()
			require.NoError(t, err)
			assert.Equal(t, pair.PublicKey(), pub)

			v.Lock()
			_, err = v.Sign([]byte("hello"))
			assert.ErrorIs(t, err, ErrVaultLocked)
		})
	}
}

func TestReopenFromStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.db")

	db, err := storage.Open(path)
	require.NoError(t, err)
	v, err := New(db, signer.Secp256k1{}, WithKDFParams(fastKDF()))
	require.NoError(t, err)
	addr, err := v.Import(ctx, testMnemonic, []byte("pw123"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = storage.Open(path)
	require.NoError(t, err)
	defer db.Close()

	// Configured scheme differs; the record's scheme wins
	v, err = New(db, signer.Ed25519{})
	require.NoError(t, err)
	assert.Equal(t, Locked, v.State())
	assert.Equal(t, addr, v.Address())
	require.NoError(t, v.Unlock(ctx, []byte("pw123")))

	sig, err := v.Sign([]byte("hello"))
	require.NoError(t, err)
	assert.Len(t, sig, 65)
}

func TestLegacyPBKDF2Record(t *testing.T) {
	ctx := context.Background()
	params := crypto.LegacyKDFParams()
	params.Time = 1000

	salt, err := crypto.NewSalt()
	require.NoError(t, err)
	key, err := crypto.DeriveKey([]byte("legacy1"), salt, params)
	require.NoError(t, err)
	nonce, err := crypto.NewNonce()
	require.NoError(t, err)
	ciphertext, err := crypto.Seal(key, nonce, []byte(testMnemonic))
	require.NoError(t, err)

	pair, err := signer.Ed25519{}.DeriveKeyPair(seedFromMnemonic(testMnemonic))
	require.NoError(t, err)

	store := &memStore{record: &storage.VaultRecord{
		SchemaVersion: storage.RecordSchemaVersion,
		Address:       pair.Address(),
		Scheme:        signer.Ed25519Name,
		EncryptedSeed: ciphertext,
		KDFSalt:       salt,
		KDFParams:     params,
		CipherNonce:   nonce,
	}}

	v := newTestVault(t, store)
	require.NoError(t, v.Unlock(ctx, []byte("legacy1")))

	// Changing the password upgrades the record to the configured KDF
	require.NoError(t, v.ChangePassword(ctx, []byte("modern1")))
	assert.Equal(t, crypto.AlgArgon2id, store.record.KDFParams.Algorithm)
}

func TestUnsupportedSchemaVersion(t *testing.T) {
	store := &memStore{}
	v := newTestVault(t, store)
	_, err := v.Import(context.Background(), testMnemonic, []byte("pw123"))
	require.NoError(t, err)

	store.record.SchemaVersion = 2
	err = v.Unlock(context.Background(), []byte("pw123"))
	assert.ErrorIs(t, err, ErrUnsupportedRecord)
	assert.Equal(t, Locked, v.State())
}

func TestRecordIsCopy(t *testing.T) {
	store := &memStore{}
	v := newTestVault(t, store)

	_, err := v.Record()
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = v.Import(context.Background(), testMnemonic, []byte("pw123"))
	require.NoError(t, err)

	rec, err := v.Record()
	require.NoError(t, err)
	rec.EncryptedSeed[0] ^= 0xff
	assert.NotEqual(t, rec.EncryptedSeed, store.record.EncryptedSeed)
}
