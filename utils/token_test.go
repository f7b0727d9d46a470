package authUtils

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tokens, err := NewTokens("secret", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, tokens.TTL())

	signed, err := tokens.GenerateAndSetToken("64b000000000000000000001", "officer")
	require.NoError(t, err)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "64b000000000000000000001", claims.UserID)
	assert.Equal(t, "officer", claims.Role)
}

func TestParseRejectsBadTokens(t *testing.T) {
	tokens, err := NewTokens("secret", time.Hour)
	require.NoError(t, err)
	other, err := NewTokens("other-secret", time.Hour)
	require.NoError(t, err)

	forged, err := other.GenerateAndSetToken("u1", "admin")
	require.NoError(t, err)
	_, err = tokens.Parse(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := tokens.GenerateAndSetToken("u1", "citizen")
	require.NoError(t, err)
	tokens.now = time.Now
	_, err = tokens.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokens("", time.Hour)
	assert.Error(t, err)
}
