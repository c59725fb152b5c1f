package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_RoundTrip(t *testing.T) {
	v := NewValidator("test-secret")

	token, err := v.GenerateAccessToken(42, "alice", time.Minute)
	require.NoError(t, err)

	claims, err := v.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestValidator_Rejects(t *testing.T) {
	v := NewValidator("test-secret")

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewValidator("other").GenerateAccessToken(1, "bob", time.Minute)
		require.NoError(t, err)
		_, err = v.ValidateJWT(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := v.GenerateAccessToken(1, "bob", -time.Minute)
		require.NoError(t, err)
		_, err = v.ValidateJWT(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.ValidateJWT("not-a-token")
		assert.Error(t, err)
	})
}
