package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const secret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken(secret, 42, "admin", time.Hour)
	require.NoError(t, err)

	id, err := ParseToken(secret, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 42, Role: "admin"}, id)
}

func TestParseTokenNumericSubject(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  7,
		"role": "customer",
		"exp":  time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	id, err := ParseToken(secret, raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id.UserID)
	assert.Equal(t, "customer", id.Role)
}

func TestParseTokenRejects(t *testing.T) {
	expired, err := NewAccessToken(secret, 1, "customer", -time.Minute)
	require.NoError(t, err)
	other, err := NewAccessToken("other-secret", 1, "customer", time.Hour)
	require.NoError(t, err)
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"}).SignedString([]byte(secret))
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"expired":      expired.Token,
		"wrong secret": other.Token,
		"no subject":   noSub,
		"garbage":      "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(secret, raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "s3cret"))
	assert.False(t, VerifyPassword(hash, "wrong"))
	assert.False(t, VerifyPassword("not-a-hash", "s3cret"))
}
