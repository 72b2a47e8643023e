package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("0123456789abcdef"))

	token, expiresAt, err := svc.GenerateAccessToken(Identity{
		UserID:      "u-1",
		Roles:       []string{"stock.user"},
		Permissions: []string{"forecast:recompute"},
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.UserID)
	assert.Equal(t, []string{"stock.user"}, user.Roles)
	assert.Equal(t, []string{"forecast:recompute"}, user.Permissions)
	assert.False(t, user.IsAdmin)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("0123456789abcdef"))

	other := NewJWTService(DefaultJWTConfig("fedcba9876543210"))
	foreign, _, err := other.GenerateAccessToken(Identity{UserID: "u-1"})
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.Error(t, err)

	cfg := DefaultJWTConfig("0123456789abcdef")
	cfg.Issuer = "someone-else"
	wrongIssuer, _, err := NewJWTService(cfg).GenerateAccessToken(Identity{UserID: "u-1"})
	require.NoError(t, err)
	_, err = svc.ValidateToken(wrongIssuer)
	assert.Error(t, err)

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)

	_, _, err = svc.GenerateAccessToken(Identity{})
	assert.Error(t, err)
}
