package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/illarion/seedvault/internal/storage"
)

func testSession() *Session {
	return &Session{
		Token:     "opaque-token",
		Address:   "0xabc",
		UserID:    "7",
		IssuedAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		ExpiresAt: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC),
	}
}

func testStoreRoundTrip(t *testing.T, store TokenStore) {
	t.Helper()

	got, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Save(testSession()))
	got, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, testSession(), got)

	require.NoError(t, store.Clear())
	got, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	// Clearing an empty store is fine
	assert.NoError(t, store.Clear())
}

func TestDBStore(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "seedvault.db"))
	require.NoError(t, err)
	defer db.Close()

	testStoreRoundTrip(t, NewDBStore(db))
}

func TestKeyringStore(t *testing.T) {
	gokeyring.MockInit()
	testStoreRoundTrip(t, NewKeyringStore())
}

func TestDBStoreAttempts(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "seedvault.db"))
	require.NoError(t, err)
	defer db.Close()
	store := NewDBStore(db)

	got, err := store.LoadAttempts()
	require.NoError(t, err)
	assert.Empty(t, got)

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	failures := []time.Time{at, at.Add(time.Minute)}
	require.NoError(t, store.SaveAttempts(failures))
	got, err = store.LoadAttempts()
	require.NoError(t, err)
	assert.Equal(t, failures, got)

	// Attempts live beside the session, not in place of it
	require.NoError(t, store.Save(testSession()))
	require.NoError(t, store.Clear())
	got, err = store.LoadAttempts()
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, store.SaveAttempts(nil))
	got, err = store.LoadAttempts()
	require.NoError(t, err)
	assert.Empty(t, got)
}
