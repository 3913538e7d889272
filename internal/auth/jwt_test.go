package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)

	token, err := svc.Generate("event.svc.example.org", RoleService)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "event.svc.example.org", claims.Account)
	assert.Equal(t, "event", claims.Label())
	assert.Equal(t, "svc.example.org", claims.Audience())
	assert.Equal(t, RoleService, claims.Role)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	token, err := NewJWTService("other", 1).Generate("event.svc.example.org", RoleService)
	require.NoError(t, err)

	_, err = NewJWTService("secret", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	token, err := NewJWTService("secret", -1).Generate("event.svc.example.org", RoleService)
	require.NoError(t, err)

	_, err = NewJWTService("secret", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsMalformedAccount(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Account: "nodots", Role: RoleService})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTService("secret", 1).Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSplitAccount(t *testing.T) {
	label, audience, err := SplitAccount("web.usr.example.org")
	require.NoError(t, err)
	assert.Equal(t, "web", label)
	assert.Equal(t, "usr.example.org", audience)

	for _, bad := range []string{"", "web", ".usr", "web."} {
		_, _, err := SplitAccount(bad)
		assert.ErrorIs(t, err, ErrInvalidAccount, bad)
	}
}
