// Package session drives the challenge-response protocol with the
// authentication service and owns the resulting bearer session.
//
// The wallet is unlocked only inside a call. Every path that does not end
// in an authenticated session locks it again before returning, including
// cancellation.
package session

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/illarion/seedvault/internal/api"
	"github.com/illarion/seedvault/internal/challenge"
	"github.com/illarion/seedvault/internal/recovery"
	"github.com/illarion/seedvault/internal/storage"
	"github.com/illarion/seedvault/internal/vault"
)

// DefaultDomain is embedded in challenges unless configured otherwise
const DefaultDomain = "seedvault"

// Wallet is the part of vault.Vault the protocol needs
type Wallet interface {
	State() vault.State
	Address() string
	Create(ctx context.Context, password []byte) (string, error)
	Import(ctx context.Context, phrase string, password []byte) (string, error)
	Unlock(ctx context.Context, password []byte) error
	Lock()
	Sign(message []byte) ([]byte, error)
	Record() (*storage.VaultRecord, error)
}

// Remote is the authentication service
type Remote interface {
	Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error)
	Check(ctx context.Context, address string) (bool, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error)
	Import(ctx context.Context, req api.ImportRequest) (*api.AuthResponse, error)
	Me(ctx context.Context, token string) (*api.User, error)
	Logout(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) error
	Refresh(ctx context.Context, token string) (string, error)
	FetchSeedEnvelope(ctx context.Context, token string, password []byte) (*recovery.Envelope, error)
}

// Manager owns one wallet's session. Calls are serialized.
type Manager struct {
	mu sync.Mutex

	wallet     Wallet
	remote     Remote
	tokens     TokenStore
	challenges *challenge.Builder
	domain     string
	log        zerolog.Logger
	now        func() time.Time
	throttle   *throttle
	attempts   AttemptStore

	session *Session
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithDomain sets the domain embedded in challenges
func WithDomain(domain string) Option {
	return func(m *Manager) { m.domain = domain }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithChallengeBuilder replaces the challenge builder
func WithChallengeBuilder(b *challenge.Builder) Option {
	return func(m *Manager) { m.challenges = b }
}

// WithLoginLimit allows maxAttempts failed logins per window
func WithLoginLimit(maxAttempts int, window time.Duration) Option {
	return func(m *Manager) { m.throttle = newThrottle(maxAttempts, window) }
}

// WithAttemptStore persists failed logins so the limit survives restarts
func WithAttemptStore(store AttemptStore) Option {
	return func(m *Manager) { m.attempts = store }
}

// New creates a Manager
func New(wallet Wallet, remote Remote, tokens TokenStore, opts ...Option) *Manager {
	m := &Manager{
		wallet:     wallet,
		remote:     remote,
		tokens:     tokens,
		challenges: challenge.NewBuilder(),
		domain:     DefaultDomain,
		log:        zerolog.Nop(),
		now:        time.Now,
		throttle:   newThrottle(DefaultMaxAttempts, DefaultWindow),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.attempts != nil {
		if err := m.throttle.load(m.attempts, m.now()); err != nil {
			m.log.Warn().Err(err).Msg("could not load login attempts")
		}
	}
	return m
}

// Current returns a copy of the session, or nil
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.clone()
}

// Authenticated reports whether a session is held
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Register creates the local vault if there is none, signs a register
// challenge and creates the account. A vault left over from a failed
// attempt is reused. On failure the vault is locked but kept.
func (m *Manager) Register(ctx context.Context, password []byte) (_ *Session, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	defer func() {
		if err != nil {
			m.wallet.Lock()
		}
	}()

	if m.wallet.State() == vault.Uninitialized {
		if _, err := m.wallet.Create(ctx, password); err != nil {
			return nil, err
		}
	} else {
		m.log.Info().Str("address", m.wallet.Address()).Msg("reusing existing local vault for registration")
	}

	if err := m.wallet.Unlock(ctx, password); err != nil {
		return nil, err
	}
	address := m.wallet.Address()

	message, signature, err := m.signChallenge(challenge.ActionRegister)
	if err != nil {
		return nil, err
	}

	record, err := m.wallet.Record()
	if err != nil {
		return nil, err
	}
	blob, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode vault record: %w", err)
	}

	resp, err := m.remote.Register(ctx, api.RegisterRequest{
		WalletAddress: address,
		Signature:     signature,
		Message:       message,
		Seed:          base64.StdEncoding.EncodeToString(blob),
		Password:      string(password),
	})
	if err != nil {
		m.log.Warn().Str("address", address).Err(err).Msg("registration failed, local vault kept")
		return nil, err
	}

	sess, err := m.establish(ctx, resp, address)
	if err != nil {
		return nil, err
	}
	m.log.Info().Str("address", address).Msg("registered")
	return sess, nil
}

// Login signs a login challenge with the local vault. If address is given
// it must be the local vault's. A wrong password fails before any network
// call; a rejected login locks the vault.
func (m *Manager) Login(ctx context.Context, address string, password []byte) (_ *Session, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.throttle.allowed(m.now()) {
		return nil, ErrTooManyAttempts
	}

	if m.wallet.State() == vault.Uninitialized {
		return nil, m.checkUnknownAccount(ctx, address)
	}
	local := m.wallet.Address()
	if address != "" && !strings.EqualFold(address, local) {
		return nil, fmt.Errorf("%w: %s is not the local wallet", ErrUnknownAccount, address)
	}

	defer func() {
		if err != nil {
			m.wallet.Lock()
		}
	}()

	if err := m.wallet.Unlock(ctx, password); err != nil {
		if errors.Is(err, vault.ErrWrongPassword) {
			m.loginFailed()
		}
		return nil, err
	}

	message, signature, err := m.signChallenge(challenge.ActionLogin)
	if err != nil {
		return nil, err
	}

	resp, err := m.remote.Login(ctx, api.LoginRequest{
		WalletAddress: local,
		Signature:     signature,
		Message:       message,
		Password:      string(password),
	})
	if err != nil {
		// Only 4xx answers judge the credentials; a 5xx is an outage
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			m.loginFailed()
			m.log.Warn().Str("address", local).Int("status", apiErr.StatusCode).Msg("login rejected")
			return nil, fmt.Errorf("%w: %w", ErrLoginRejected, err)
		}
		return nil, err
	}

	sess, err := m.establish(ctx, resp, local)
	if err != nil {
		return nil, err
	}
	if err := m.throttle.reset(); err != nil {
		m.log.Warn().Err(err).Msg("could not clear login attempts")
	}
	m.log.Info().Str("address", local).Msg("logged in")
	return sess, nil
}

// Import restores the local vault from phrase and signs in with an import
// challenge. The service only sees the address and signature. A vault
// restored before a failed sign-in is kept, locked.
func (m *Manager) Import(ctx context.Context, phrase string, password []byte) (_ *Session, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.wallet.State() != vault.Uninitialized {
		return nil, vault.ErrAlreadyExists
	}

	defer func() {
		if err != nil {
			m.wallet.Lock()
		}
	}()

	address, err := m.wallet.Import(ctx, phrase, password)
	if err != nil {
		return nil, err
	}
	if err := m.wallet.Unlock(ctx, password); err != nil {
		return nil, err
	}

	message, signature, err := m.signChallenge(challenge.ActionImport)
	if err != nil {
		return nil, err
	}

	resp, err := m.remote.Import(ctx, api.ImportRequest{
		WalletAddress: address,
		Signature:     signature,
		Message:       message,
	})
	if err != nil {
		m.log.Warn().Str("address", address).Err(err).Msg("import sign-in failed, local vault kept")
		return nil, err
	}

	sess, err := m.establish(ctx, resp, address)
	if err != nil {
		return nil, err
	}
	m.log.Info().Str("address", address).Msg("imported")
	return sess, nil
}

// Me asks the server who the session belongs to. A 401 or 403 clears the
// session.
func (m *Manager) Me(ctx context.Context) (*api.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, ErrNotAuthenticated
	}

	user, err := m.remote.Me(ctx, m.session.Token)
	if api.IsStatus(err, http.StatusUnauthorized) || api.IsStatus(err, http.StatusForbidden) {
		m.log.Info().Msg("session rejected by server")
		m.clearSession()
		return nil, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (m *Manager) loginFailed() {
	if err := m.throttle.failure(m.now()); err != nil {
		m.log.Warn().Err(err).Msg("could not store login attempt")
	}
}

// checkUnknownAccount runs when there is no local vault. It always returns
// an error: unknown accounts fail fast, known ones need the mnemonic.
func (m *Manager) checkUnknownAccount(ctx context.Context, address string) error {
	if address == "" {
		return vault.ErrNotInitialized
	}
	known, err := m.remote.Check(ctx, address)
	if err != nil {
		return err
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, address)
	}
	return ErrNoLocalVault
}

// Logout ends the session. The server call is best effort. The session is
// cleared and the vault locked whatever happens.
func (m *Manager) Logout(ctx context.Context) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	defer func() {
		m.session = nil
		if clearErr := m.tokens.Clear(); clearErr != nil {
			err = fmt.Errorf("failed to clear stored session: %w", clearErr)
		}
		m.wallet.Lock()
	}()

	if m.session == nil {
		return nil
	}
	if logoutErr := m.remote.Logout(ctx, m.session.Token); logoutErr != nil {
		m.log.Warn().Err(logoutErr).Msg("server logout failed, clearing local session anyway")
	}
	m.log.Info().Str("address", m.session.Address).Msg("logged out")
	return nil
}

// Verify checks the session with the server. Any non-2xx answer clears it.
// A transport failure returns false and keeps the session.
func (m *Manager) Verify(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return false
	}
	if m.session.Expired(m.now()) {
		m.log.Info().Msg("session token expired")
		m.clearSession()
		return false
	}

	err := m.remote.Verify(ctx, m.session.Token)
	if err == nil {
		return true
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		m.log.Info().Int("status", apiErr.StatusCode).Msg("session rejected by server")
		m.clearSession()
		return false
	}
	m.log.Warn().Err(err).Msg("session verification unavailable")
	return false
}

// Refresh exchanges the bearer token for a new one. On failure the current
// session is left untouched.
func (m *Manager) Refresh(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, ErrNotAuthenticated
	}

	token, err := m.remote.Refresh(ctx, m.session.Token)
	if err != nil {
		return nil, err
	}

	sess := newSession(token, m.session.Address, m.session.UserID, m.now())
	if err := m.tokens.Save(sess); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	m.session = sess
	m.log.Debug().Str("address", sess.Address).Msg("session refreshed")
	return sess.clone(), nil
}

// RecoverSeed fetches the transport-encrypted seed and decrypts it. The
// result is returned for one-time display and never stored.
func (m *Manager) RecoverSeed(ctx context.Context, password []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return "", ErrNotAuthenticated
	}

	env, err := m.remote.FetchSeedEnvelope(ctx, m.session.Token, password)
	if err != nil {
		return "", err
	}

	seed, err := recovery.Open(*env)
	*env = recovery.Envelope{}
	if err != nil {
		return "", err
	}
	m.log.Info().Str("address", m.session.Address).Msg("seed recovered")
	return seed, nil
}

// Restore loads the persisted session, if any. Expired sessions and
// sessions for another wallet are discarded.
func (m *Manager) Restore(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess, err := m.tokens.Load()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}

	if sess.Expired(m.now()) {
		m.log.Debug().Msg("discarding expired stored session")
		m.clearSession()
		return nil, nil
	}
	if local := m.wallet.Address(); local != "" && !strings.EqualFold(local, sess.Address) {
		m.log.Warn().Str("address", sess.Address).Msg("discarding stored session of another wallet")
		m.clearSession()
		return nil, nil
	}

	m.session = sess
	return sess.clone(), nil
}

// signChallenge requires an unlocked wallet. It returns the exact message
// signed and the hex signature.
func (m *Manager) signChallenge(action challenge.Action) (string, string, error) {
	ch, err := m.challenges.Build(action, m.domain)
	if err != nil {
		return "", "", err
	}
	message := ch.Bytes()
	sig, err := m.wallet.Sign(message)
	if err != nil {
		return "", "", err
	}
	return string(message), hex.EncodeToString(sig), nil
}

// establish turns a register/login response into the current session
func (m *Manager) establish(ctx context.Context, resp *api.AuthResponse, address string) (*Session, error) {
	if resp.Token == "" {
		return nil, ErrEmptyToken
	}
	// The caller gave up while the request was in flight
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess := newSession(resp.Token, address, string(resp.User.ID), m.now())
	if err := m.tokens.Save(sess); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	m.session = sess
	return sess.clone(), nil
}

// clearSession drops the session from memory and storage
func (m *Manager) clearSession() {
	m.session = nil
	if err := m.tokens.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("failed to clear stored session")
	}
}
