package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/illarion/seedvault/internal/keyring"
	"github.com/illarion/seedvault/internal/storage"
)

// StorageKey is the well-known key of the persisted session
const StorageKey = "auth_session"

// AttemptsKey holds the failed login times next to the session
const AttemptsKey = "login_attempts"

// TokenStore persists the one current session. Load returns nil, nil when
// nothing is stored.
type TokenStore interface {
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error
}

// DBStore keeps the session in the vault database
type DBStore struct {
	db *storage.Storage
}

func NewDBStore(db *storage.Storage) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Load() (*Session, error) {
	data, err := s.db.GetSessionData(StorageKey)
	if errors.Is(err, storage.ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return decodeSession(data)
}

func (s *DBStore) Save(sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.db.PutSessionData(StorageKey, data)
}

func (s *DBStore) Clear() error {
	return s.db.DeleteSessionData(StorageKey)
}

// LoadAttempts returns the stored failed login times
func (s *DBStore) LoadAttempts() ([]time.Time, error) {
	data, err := s.db.GetSessionData(AttemptsKey)
	if errors.Is(err, storage.ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read login attempts: %w", err)
	}
	var failures []time.Time
	if err := json.Unmarshal(data, &failures); err != nil {
		return nil, fmt.Errorf("failed to decode login attempts: %w", err)
	}
	return failures, nil
}

// SaveAttempts replaces the stored failed login times
func (s *DBStore) SaveAttempts(failures []time.Time) error {
	if len(failures) == 0 {
		return s.db.DeleteSessionData(AttemptsKey)
	}
	data, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("failed to encode login attempts: %w", err)
	}
	return s.db.PutSessionData(AttemptsKey, data)
}

// KeyringStore keeps the session in the OS keyring
type KeyringStore struct{}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (KeyringStore) Load() (*Session, error) {
	data, err := keyring.Get(StorageKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session from keyring: %w", err)
	}
	return decodeSession([]byte(data))
}

func (KeyringStore) Save(sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := keyring.Set(StorageKey, string(data)); err != nil {
		return fmt.Errorf("failed to save session to keyring: %w", err)
	}
	return nil
}

func (KeyringStore) Clear() error {
	return keyring.Delete(StorageKey)
}

func decodeSession(data []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if sess.Token == "" {
		return nil, nil
	}
	return &sess, nil
}
