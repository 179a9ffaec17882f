package jwtutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	util := NewJWTUtil(&JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})

	token, err := util.GenerateToken("user@acme.test", 42, 10, "acme", "MANAGER")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := util.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user@acme.test", claims.Email)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, uint(10), claims.OrgID)
	assert.Equal(t, "acme", claims.Subdomain)
	assert.Equal(t, "MANAGER", claims.Role)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	issuer := NewJWTUtil(&JWTConfig{SigningKey: "key-one", ExpirationHours: 1})
	verifier := NewJWTUtil(&JWTConfig{SigningKey: "key-two", ExpirationHours: 1})

	token, err := issuer.GenerateToken("user@acme.test", 42, 10, "acme", "STAFF")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	util := NewJWTUtil(&JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})
	_, err := util.ValidateToken("not.a.token")
	assert.Error(t, err)
}
