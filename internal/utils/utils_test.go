package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken(testSecret, 42, "admin", 15)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 5*time.Second)

	claims, err := ParseAccessToken(testSecret, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.False(t, claims.IssuedAt.IsZero())
}

func TestParseAccessToken_Rejects(t *testing.T) {
	tok, err := NewAccessToken(testSecret, 7, "user", 15)
	require.NoError(t, err)

	_, err = ParseAccessToken("other-secret", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewAccessToken(testSecret, 7, "user", -1)
	require.NoError(t, err)
	_, err = ParseAccessToken(testSecret, expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAccessToken(testSecret, "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestStateToken(t *testing.T) {
	state, err := NewStateToken(testSecret, time.Minute)
	require.NoError(t, err)
	assert.NoError(t, VerifyStateToken(testSecret, state))

	// an access token is not a valid state
	tok, err := NewAccessToken(testSecret, 1, "user", 5)
	require.NoError(t, err)
	assert.ErrorIs(t, VerifyStateToken(testSecret, tok.Token), ErrInvalidToken)
}

func TestRefreshTokenAndHash(t *testing.T) {
	rt, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.Len(t, HashToken(rt.Raw), 64)
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
}

func TestOneTimeCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		c, err := NewOneTimeCode()
		require.NoError(t, err)
		assert.Len(t, c.Raw, 6)
		assert.Equal(t, HashToken(c.Raw), c.Hash)
		assert.WithinDuration(t, time.Now().Add(CodeTTL), c.Exp, 5*time.Second)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "correct horse"))
	assert.False(t, VerifyPassword(hash, "wrong horse"))

	// cost below bcrypt.MinCost is clamped
	hash, err = HashPassword("correct horse", 1)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "correct horse"))

	assert.False(t, VerifyPassword("", ""))
}

func TestRandomIndex(t *testing.T) {
	for i := 0; i < 20; i++ {
		n, err := RandomIndex(10)
		require.NoError(t, err)
		assert.True(t, n >= 0 && n < 10)
	}
}
