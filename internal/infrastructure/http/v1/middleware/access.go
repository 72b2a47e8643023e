package middleware

import (
	"github.com/gin-gonic/gin"

	"stockforecast/internal/core/apperror"
	appctx "stockforecast/internal/core/context"
	"stockforecast/internal/core/security"
)

// RequireAccess gates a route on a compiled access policy.
// A missing user is 401, a denied user is 403.
func RequireAccess(policy *security.AccessPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil {
			abortUnauthorized(c, "authentication required")
			return
		}

		allowed, err := policy.Allows(user)
		if err != nil {
			_ = c.Error(apperror.NewInternal(err).WithDetail("component", "access_policy"))
			c.Abort()
			return
		}
		if !allowed {
			_ = c.Error(
				apperror.NewForbidden("access denied").
					WithDetail("policy", policy.Expression()),
			)
			c.Abort()
			return
		}

		c.Next()
	}
}
