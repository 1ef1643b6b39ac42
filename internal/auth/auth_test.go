package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyVerifier(t *testing.T) {
	v := NewLegacyVerifier("secret")
	tok, err := v.Sign(LegacyClaims{
		UserID:           "u1",
		Email:            "u1@example.com",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	require.NoError(t, err)

	id, err := v.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)

	_, err = NewLegacyVerifier("other").Validate(tok)
	assert.Error(t, err)

	_, err = NewLegacyVerifier("").Validate(tok)
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	good := NewLegacyVerifier("b")
	tok, err := good.Sign(LegacyClaims{UserID: "u2"})
	require.NoError(t, err)

	id, err := Chain{NewLegacyVerifier("a"), good}.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "u2", id.UserID)

	_, err = Chain{}.Validate(tok)
	assert.Error(t, err)
}
