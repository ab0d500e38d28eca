package session

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/illarion/seedvault/internal/challenge"
	"github.com/illarion/seedvault/internal/crypto"
	"github.com/illarion/seedvault/internal/recovery"
	"github.com/illarion/seedvault/internal/signer"
)

var jwtSecret = []byte("test-secret")

type account struct {
	password string
	blob     string
}

// fakeAuth is an in-process authentication service. It verifies ed25519
// challenge signatures against the public key encoded in the address and
// rejects replayed nonces.
type fakeAuth struct {
	mu sync.Mutex

	accounts   map[string]*account
	nonces     map[string]bool
	revoked    map[string]bool
	hits       map[string]int
	seed       string
	failNext   map[string]int // path -> status to answer once
	tokenTTL   time.Duration
	tokenCount int

	srv *httptest.Server
}

func newFakeAuth(t *testing.T) *fakeAuth {
	t.Helper()
	f := &fakeAuth{
		accounts: make(map[string]*account),
		nonces:   make(map[string]bool),
		revoked:  make(map[string]bool),
		hits:     make(map[string]int),
		failNext: make(map[string]int),
		tokenTTL: time.Hour,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.hits[c.Path()]++
			if status, ok := f.failNext[c.Path()]; ok {
				delete(f.failNext, c.Path())
				return c.JSON(status, map[string]string{"message": "injected failure"})
			}
			return next(c)
		}
	})
	e.POST("/auth/register", f.register)
	e.POST("/auth/check", f.check)
	e.POST("/auth/login", f.login)
	e.POST("/auth/import", f.importWallet)
	e.GET("/auth/me", f.me)
	e.POST("/auth/logout", f.logout)
	e.GET("/auth/verify", f.verify)
	e.POST("/auth/refresh", f.refresh)
	e.GET("/wallet/seed", f.walletSeed)

	f.srv = httptest.NewServer(e)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAuth) URL() string { return f.srv.URL }

func (f *fakeAuth) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeAuth) FailNext(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[path] = status
}

func (f *fakeAuth) SetSeed(seed string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seed = seed
}

func (f *fakeAuth) SetTokenTTL(ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenTTL = ttl
}

func (f *fakeAuth) RevokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked["*"] = true
}

func (f *fakeAuth) Account(address string) *account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[address]
}

func (f *fakeAuth) issue(address string) string {
	f.tokenCount++
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   address,
		ID:        strings.Repeat("x", f.tokenCount),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(f.tokenTTL)),
	}).SignedString(jwtSecret)
	if err != nil {
		panic(err)
	}
	return token
}

func (f *fakeAuth) bearer(c echo.Context) (string, bool) {
	raw := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	if raw == "" || f.revoked["*"] || f.revoked[raw] {
		return "", false
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return jwtSecret, nil })
	if err != nil {
		return "", false
	}
	return claims.Subject, true
}

// verifyChallenge checks signature, action and nonce freshness
func (f *fakeAuth) verifyChallenge(address, message, signature string, action challenge.Action) bool {
	pub, err := hex.DecodeString(strings.TrimPrefix(address, "0x"))
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	if !(signer.Ed25519{}).Verify(pub, []byte(message), sig) {
		return false
	}

	var ch struct {
		Action string `json:"action"`
		Nonce  string `json:"nonce"`
	}
	if err := json.Unmarshal([]byte(message), &ch); err != nil || ch.Action != string(action) {
		return false
	}
	if f.nonces[ch.Nonce] {
		return false
	}
	f.nonces[ch.Nonce] = true
	return true
}

func (f *fakeAuth) register(c echo.Context) error {
	var req struct {
		WalletAddress string `json:"walletAddress"`
		Signature     string `json:"signature"`
		Message       string `json:"message"`
		Seed          string `json:"seed"`
		Password      string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return err
	}
	if !f.verifyChallenge(req.WalletAddress, req.Message, req.Signature, challenge.ActionRegister) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "invalid signature"})
	}
	if _, exists := f.accounts[req.WalletAddress]; exists {
		return c.JSON(http.StatusConflict, map[string]string{"message": "already registered"})
	}
	f.accounts[req.WalletAddress] = &account{password: req.Password, blob: req.Seed}
	return c.JSON(http.StatusCreated, map[string]any{
		"token": f.issue(req.WalletAddress),
		"user":  map[string]any{"id": len(f.accounts), "walletAddress": req.WalletAddress},
	})
}

func (f *fakeAuth) check(c echo.Context) error {
	var req struct {
		WalletAddress string `json:"walletAddress"`
	}
	if err := c.Bind(&req); err != nil {
		return err
	}
	if _, ok := f.accounts[req.WalletAddress]; !ok {
		return c.NoContent(http.StatusNotFound)
	}
	return c.NoContent(http.StatusOK)
}

func (f *fakeAuth) login(c echo.Context) error {
	var req struct {
		WalletAddress string `json:"walletAddress"`
		Signature     string `json:"signature"`
		Message       string `json:"message"`
		Password      string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return err
	}
	acct, ok := f.accounts[req.WalletAddress]
	if !ok || acct.password != req.Password {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
	}
	if !f.verifyChallenge(req.WalletAddress, req.Message, req.Signature, challenge.ActionLogin) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "invalid signature"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"token": f.issue(req.WalletAddress),
		"user":  map[string]any{"id": "u-1", "walletAddress": req.WalletAddress},
	})
}

// importWallet signs in by signature alone, creating the account if needed
func (f *fakeAuth) importWallet(c echo.Context) error {
	var req struct {
		WalletAddress string `json:"walletAddress"`
		Signature     string `json:"signature"`
		Message       string `json:"message"`
		Password      string `json:"password"`
		Seed          string `json:"seed"`
	}
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Password != "" || req.Seed != "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "secrets are not accepted"})
	}
	if !f.verifyChallenge(req.WalletAddress, req.Message, req.Signature, challenge.ActionImport) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "invalid signature"})
	}
	if _, ok := f.accounts[req.WalletAddress]; !ok {
		f.accounts[req.WalletAddress] = &account{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"token": f.issue(req.WalletAddress),
		"user":  map[string]any{"id": "u-import", "walletAddress": req.WalletAddress},
	})
}

func (f *fakeAuth) me(c echo.Context) error {
	address, ok := f.bearer(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"user": map[string]any{"id": "u-1", "walletAddress": address},
	})
}

func (f *fakeAuth) logout(c echo.Context) error {
	raw := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	f.revoked[raw] = true
	return c.NoContent(http.StatusOK)
}

func (f *fakeAuth) verify(c echo.Context) error {
	if _, ok := f.bearer(c); !ok {
		return c.NoContent(http.StatusUnauthorized)
	}
	return c.NoContent(http.StatusOK)
}

func (f *fakeAuth) refresh(c echo.Context) error {
	address, ok := f.bearer(c)
	if !ok {
		return c.NoContent(http.StatusUnauthorized)
	}
	return c.JSON(http.StatusOK, map[string]string{"token": f.issue(address)})
}

func (f *fakeAuth) walletSeed(c echo.Context) error {
	address, ok := f.bearer(c)
	if !ok {
		return c.NoContent(http.StatusUnauthorized)
	}
	if f.accounts[address].password != c.Request().Header.Get("X-Wallet-Password") {
		return c.JSON(http.StatusForbidden, map[string]string{"message": "wrong password"})
	}

	key, _ := crypto.GenerateRandom(crypto.KeySize)
	nonce, _ := crypto.NewNonce()
	env, err := recovery.Seal(key, nonce, f.seed)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, env)
}
