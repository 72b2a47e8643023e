// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"github.com/gin-gonic/gin"

	"stockforecast/internal/core/apperror"
	appctx "stockforecast/internal/core/context"
)

// RequirePermission middleware checks if user has required permission.
// Admins automatically have all permissions.
func RequirePermission(permission string) gin.HandlerFunc {
	return requirePermissions(false, permission)
}

// RequireAnyPermission passes when the user holds at least one of permissions.
func RequireAnyPermission(permissions ...string) gin.HandlerFunc {
	return requirePermissions(false, permissions...)
}

// RequireAllPermissions passes only when the user holds every permission.
func RequireAllPermissions(permissions ...string) gin.HandlerFunc {
	return requirePermissions(true, permissions...)
}

func requirePermissions(all bool, permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil {
			abortUnauthorized(c, "authentication required")
			return
		}

		missing := user.Missing(permissions...)
		if len(missing) == 0 || (!all && len(missing) < len(permissions)) {
			c.Next()
			return
		}

		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("missing_permissions", missing),
		)
		c.Abort()
	}
}
