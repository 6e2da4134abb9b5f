package jwtutil

import (
	"strings"
	"testing"
	"time"

	"ticketsplit/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWT(expiration time.Duration) *JWT {
	return New(&config.JWTConfig{SigningKey: "unit-test-key", Expiration: expiration})
}

func TestTokenRoundTrip(t *testing.T) {
	j := newTestJWT(time.Hour)

	token, err := j.GenerateToken(42, "ana@example.com")
	require.NoError(t, err)

	claims, err := j.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
}

func TestExpiredTokenRejected(t *testing.T) {
	j := newTestJWT(-time.Minute)

	token, err := j.GenerateToken(42, "ana@example.com")
	require.NoError(t, err)

	_, err = j.ValidateToken(token)
	assert.Error(t, err)
}

func TestTamperedSignatureRejected(t *testing.T) {
	j := newTestJWT(time.Hour)

	token, err := j.GenerateToken(42, "ana@example.com")
	require.NoError(t, err)

	// Flip one character in the signature segment.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = j.ValidateToken(tampered)
	assert.Error(t, err)
}

func TestTamperedClaimsRejected(t *testing.T) {
	j := newTestJWT(time.Hour)

	victim, err := j.GenerateToken(1, "ana@example.com")
	require.NoError(t, err)
	other, err := j.GenerateToken(2, "bob@example.com")
	require.NoError(t, err)

	// Claims from one token with the signature of another.
	victimParts := strings.Split(victim, ".")
	otherParts := strings.Split(other, ".")
	spliced := victimParts[0] + "." + otherParts[1] + "." + victimParts[2]

	_, err = j.ValidateToken(spliced)
	assert.Error(t, err)
}

func TestDifferentKeyRejected(t *testing.T) {
	j := newTestJWT(time.Hour)
	stranger := New(&config.JWTConfig{SigningKey: "some-other-key", Expiration: time.Hour})

	token, err := stranger.GenerateToken(42, "ana@example.com")
	require.NoError(t, err)

	_, err = j.ValidateToken(token)
	assert.Error(t, err)
}

func TestResetTokenIsShortLived(t *testing.T) {
	j := newTestJWT(time.Hour)

	token, err := j.GenerateResetToken(42, "ana@example.com")
	require.NoError(t, err)

	claims, err := j.ValidateToken(token)
	require.NoError(t, err)

	ttl := time.Until(claims.ExpiresAt.Time)
	assert.LessOrEqual(t, ttl, ResetTokenExpiration)
	assert.Greater(t, ttl, ResetTokenExpiration-time.Minute)
}
