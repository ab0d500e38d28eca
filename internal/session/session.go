package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is an authenticated bearer session
type Session struct {
	Token     string    `json:"token"`
	Address   string    `json:"address"`
	UserID    string    `json:"userId,omitempty"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

func newSession(token, address, userID string, now time.Time) *Session {
	return &Session{
		Token:     token,
		Address:   address,
		UserID:    userID,
		IssuedAt:  now.UTC(),
		ExpiresAt: tokenExpiry(token),
	}
}

// tokenExpiry reads the exp claim of a JWT bearer token without verifying
// it. Opaque tokens have no known expiry.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time.UTC()
}

// Expired reports whether the token is known to have expired at now
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
