package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")
	tok, err := v.Sign("u1", "admin", time.Minute)
	require.NoError(t, err)

	claims, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestVerifyRejectsBadSecret(t *testing.T) {
	tok, err := NewVerifier("secret-a").Sign("u1", "user", time.Minute)
	require.NoError(t, err)

	_, err = NewVerifier("secret-b").Verify(tok)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewVerifier("test-secret")
	tok, err := v.Sign("u1", "user", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(tok)
	assert.Error(t, err)
}
