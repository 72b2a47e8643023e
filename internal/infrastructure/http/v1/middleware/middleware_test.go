package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "stockforecast/internal/core/context"
	"stockforecast/internal/core/security"
)

func withUser(user *appctx.UserContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			setUser(c, user)
		}
		c.Next()
	}
}

func serve(t *testing.T, handlers ...gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Trace(), ErrorHandler())
	chain := append(handlers, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/x", chain...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w
}

func TestRequirePermissions(t *testing.T) {
	user := &appctx.UserContext{UserID: "u1", Permissions: []string{"transfer:read", "transfer:create"}}

	tests := []struct {
		name string
		mw   gin.HandlerFunc
		want int
	}{
		{"single held", RequirePermission("transfer:read"), http.StatusNoContent},
		{"single missing", RequirePermission("transfer:confirm"), http.StatusForbidden},
		{"any one held", RequireAnyPermission("transfer:confirm", "transfer:create"), http.StatusNoContent},
		{"any none held", RequireAnyPermission("sale:read", "sale:create"), http.StatusForbidden},
		{"all held", RequireAllPermissions("transfer:read", "transfer:create"), http.StatusNoContent},
		{"all one missing", RequireAllPermissions("transfer:read", "transfer:delete"), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, withUser(user), tt.mw)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequirePermission_AdminAndAnonymous(t *testing.T) {
	admin := &appctx.UserContext{UserID: "root", IsAdmin: true}
	assert.Equal(t, http.StatusNoContent, serve(t, withUser(admin), RequirePermission("forecast:recompute")).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(t, withUser(nil), RequirePermission("forecast:recompute")).Code)
}

func TestRequireAccess(t *testing.T) {
	policy, err := security.CompileAccessPolicy(security.DefaultReadPolicy)
	require.NoError(t, err)

	manager := &appctx.UserContext{UserID: "m", Roles: []string{"stock.manager"}}
	guest := &appctx.UserContext{UserID: "g", Roles: []string{"sales"}}

	assert.Equal(t, http.StatusNoContent, serve(t, withUser(manager), RequireAccess(policy)).Code)
	assert.Equal(t, http.StatusForbidden, serve(t, withUser(guest), RequireAccess(policy)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(t, withUser(nil), RequireAccess(policy)).Code)
}

func TestErrorHandler_HidesPlainErrors(t *testing.T) {
	w := serve(t, func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection refused"))
		c.Abort()
	})

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Equal(t, w.Header().Get(HeaderRequestID), body["details"].(map[string]any)["request_id"])
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(), Trace(), ErrorHandler())
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}
