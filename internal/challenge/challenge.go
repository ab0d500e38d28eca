// Package challenge builds the single-use messages a wallet signs to prove
// control of its key to the authentication service.
package challenge

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Action names the protocol step a challenge authorizes
type Action string

const (
	ActionRegister Action = "register"
	ActionLogin    Action = "login"
	ActionLogout   Action = "logout"
	ActionImport   Action = "import"
)

const (
	NonceSize     = 16                         // 128 bits
	TimeLayout    = "2006-01-02T15:04:05.000Z" // RFC 3339, UTC, milliseconds
	DefaultWindow = 4096                       // recent nonces remembered
	maxDraws      = 8
)

var (
	ErrUnknownAction = errors.New("unknown challenge action")
	ErrEmptyDomain   = errors.New("challenge domain must not be empty")
	ErrNonceReuse    = errors.New("could not draw an unused nonce")
)

// Challenge is signed exactly as returned by Bytes
type Challenge struct {
	Action    Action
	Timestamp time.Time
	Nonce     [NonceSize]byte
	Domain    string
}

// wire fixes the key order of the canonical encoding
type wire struct {
	Action    Action `json:"action"`
	Timestamp string `json:"timestamp"`
	Nonce     string `json:"nonce"`
	Domain    string `json:"domain"`
}

// Bytes returns the canonical JSON encoding:
// {"action":...,"timestamp":...,"nonce":...,"domain":...}
func (c Challenge) Bytes() []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// wire holds only strings, encoding cannot fail
	_ = enc.Encode(wire{
		Action:    c.Action,
		Timestamp: c.Timestamp.UTC().Format(TimeLayout),
		Nonce:     hex.EncodeToString(c.Nonce[:]),
		Domain:    c.Domain,
	})
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// String returns the canonical encoding as text, the form sent as "message"
func (c Challenge) String() string {
	return string(c.Bytes())
}

// Builder issues challenges and never repeats a nonce within its window
type Builder struct {
	mu     sync.Mutex
	now    func() time.Time
	rand   io.Reader
	window int
	seen   map[[NonceSize]byte]struct{}
	order  [][NonceSize]byte
}

// Option configures a Builder
type Option func(*Builder)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithRand replaces crypto/rand as the nonce source
func WithRand(r io.Reader) Option {
	return func(b *Builder) { b.rand = r }
}

// WithWindow sets how many recent nonces are remembered
func WithWindow(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.window = n
		}
	}
}

// NewBuilder creates a Builder
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		now:    time.Now,
		rand:   rand.Reader,
		window: DefaultWindow,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.seen = make(map[[NonceSize]byte]struct{}, b.window)
	return b
}

// Build returns a fresh challenge for action on domain
func (b *Builder) Build(action Action, domain string) (Challenge, error) {
	switch action {
	case ActionRegister, ActionLogin, ActionLogout, ActionImport:
	default:
		return Challenge{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if domain == "" {
		return Challenge{}, ErrEmptyDomain
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	nonce, err := b.drawNonce()
	if err != nil {
		return Challenge{}, err
	}

	return Challenge{
		Action:    action,
		Timestamp: b.now().UTC().Truncate(time.Millisecond),
		Nonce:     nonce,
		Domain:    domain,
	}, nil
}

// drawNonce requires b.mu to be held
func (b *Builder) drawNonce() ([NonceSize]byte, error) {
	var nonce [NonceSize]byte
	for i := 0; i < maxDraws; i++ {
		if _, err := io.ReadFull(b.rand, nonce[:]); err != nil {
			return nonce, fmt.Errorf("failed to generate nonce: %w", err)
		}
		if _, dup := b.seen[nonce]; dup {
			continue
		}
		b.remember(nonce)
		return nonce, nil
	}
	return nonce, ErrNonceReuse
}

func (b *Builder) remember(nonce [NonceSize]byte) {
	if len(b.order) >= b.window {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.seen, oldest)
	}
	b.order = append(b.order, nonce)
	b.seen[nonce] = struct{}{}
}
