package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(accessExpiry time.Duration) *Manager {
	return NewManager("unit-test-secret-key-0123456789abcdef", "mailsight-test", accessExpiry, 24*time.Hour)
}

func TestGenerateAndValidateTokenPair(t *testing.T) {
	m := newTestManager(time.Minute)

	pair, err := m.GenerateTokenPair("user-1", "alice@example.com", "user")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(60), pair.ExpiresIn)

	claims, err := m.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "mailsight-test", claims.Issuer)
}

func TestValidateToken_InvalidSignature(t *testing.T) {
	m := newTestManager(time.Minute)
	other := NewManager("another-secret-key-0123456789abcdef", "mailsight-test", time.Minute, 24*time.Hour)

	pair, err := other.GenerateTokenPair("user-1", "alice@example.com", "user")
	require.NoError(t, err)

	_, err = m.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Expired(t *testing.T) {
	m := newTestManager(-time.Minute)

	pair, err := m.GenerateTokenPair("user-1", "alice@example.com", "user")
	require.NoError(t, err)

	_, err = m.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateToken_Garbage(t *testing.T) {
	m := newTestManager(time.Minute)

	_, err := m.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshAccessToken(t *testing.T) {
	m := newTestManager(time.Minute)

	pair, err := m.GenerateTokenPair("user-2", "bob@example.com", "admin")
	require.NoError(t, err)

	newAccess, err := m.RefreshAccessToken(pair.RefreshToken)
	require.NoError(t, err)

	claims, err := m.ValidateToken(newAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}
