package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionReadsJWTExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	now := time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newSession(token, "0xabc", "1", now)
	assert.Equal(t, exp, s.ExpiresAt)
	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(exp))
}

func TestNewSessionOpaqueToken(t *testing.T) {
	s := newSession("not-a-jwt", "0xabc", "", time.Now())
	assert.True(t, s.ExpiresAt.IsZero())
	assert.False(t, s.Expired(time.Now().Add(100*365*24*time.Hour)))
}
