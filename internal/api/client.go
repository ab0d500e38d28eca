// Package api is the HTTP client for the remote authentication service.
//
// Every request carries an X-Request-ID and the seedvault User-Agent.
// Authenticated calls add "Authorization: Bearer <token>". Transport
// failures come back as *NetworkError, non-2xx responses as *APIError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/illarion/seedvault/internal/recovery"
)

const (
	DefaultTimeout = 30 * time.Second
	UserAgent      = "seedvault"
	maxBodySize    = 1 << 20

	HeaderRequestID      = "X-Request-ID"
	HeaderWalletPassword = "X-Wallet-Password"
)

// Client talks to the authentication service
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a client for the service at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register creates the account for a freshly created wallet
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Check reports whether the service knows address. A 4xx answer means
// unknown; 5xx is returned as an error.
func (c *Client) Check(ctx context.Context, address string) (bool, error) {
	err := c.do(ctx, http.MethodPost, "/auth/check", "", nil, checkRequest{WalletAddress: address}, nil)
	if err == nil {
		return true, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
		return false, nil
	}
	return false, err
}

// Login exchanges a signed login challenge for a session token
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Import signs in a wallet restored from its recovery phrase. No password
// or seed is sent.
func (c *Client) Import(ctx context.Context, req ImportRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/import", "", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the account behind token. Both {"user":{...}} and a bare
// user object are accepted.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, nil, &raw); err != nil {
		return nil, err
	}

	var wrapped struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to decode /auth/me response: %w", err)
	}
	return &user, nil
}

// Logout ends the session server-side
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil, nil)
}

// Verify returns nil if token is still accepted
func (c *Client) Verify(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodGet, "/auth/verify", token, nil, nil, nil)
}

// Refresh exchanges token for a new one
func (c *Client) Refresh(ctx context.Context, token string) (string, error) {
	var resp refreshResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", token, nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("refresh response carried no token")
	}
	return resp.Token, nil
}

// FetchSeedEnvelope requests the transport-encrypted seed. The service
// re-verifies password before answering.
func (c *Client) FetchSeedEnvelope(ctx context.Context, token string, password []byte) (*recovery.Envelope, error) {
	header := http.Header{}
	header.Set(HeaderWalletPassword, string(password))

	var env recovery.Envelope
	if err := c.do(ctx, http.MethodGet, "/wallet/seed", token, header, nil, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, header http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Str("request_id", requestID).Str("method", method).Str("path", path).
			Err(err).Msg("request failed")
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &NetworkError{Method: method, Path: path, Err: err}
	}

	c.log.Debug().Str("request_id", requestID).Str("method", method).Str("path", path).
		Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("request done")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}
	return nil
}

func errorMessage(data []byte) string {
	var e errorResponse
	if err := json.Unmarshal(data, &e); err != nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
