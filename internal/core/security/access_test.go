package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "stockforecast/internal/core/context"
)

func TestDefaultReadPolicy(t *testing.T) {
	policy, err := CompileAccessPolicy(DefaultReadPolicy)
	require.NoError(t, err)

	tests := []struct {
		name string
		user *appctx.UserContext
		want bool
	}{
		{"manager", &appctx.UserContext{Roles: []string{"stock.manager"}}, true},
		{"user", &appctx.UserContext{Roles: []string{"sales", "stock.user"}}, true},
		{"admin without roles", &appctx.UserContext{IsAdmin: true}, true},
		{"other role", &appctx.UserContext{Roles: []string{"sales"}}, false},
		{"no roles", &appctx.UserContext{}, false},
		{"anonymous", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policy.Allows(tt.user)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileAccessPolicy_Permissions(t *testing.T) {
	policy, err := CompileAccessPolicy(`"forecast:read" in permissions`)
	require.NoError(t, err)

	ok, err := policy.Allows(&appctx.UserContext{Permissions: []string{"forecast:read"}})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompileAccessPolicy_Errors(t *testing.T) {
	_, err := CompileAccessPolicy(`roles.exists(r, r ==`)
	assert.Error(t, err)

	_, err = CompileAccessPolicy(`unknown_var`)
	assert.Error(t, err)

	policy, err := CompileAccessPolicy(`size(roles)`)
	require.NoError(t, err)
	_, err = policy.Allows(&appctx.UserContext{Roles: []string{"a"}})
	assert.Error(t, err)
}
