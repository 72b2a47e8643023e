package middleware

import (
	"github.com/gin-gonic/gin"

	"stockforecast/internal/core/security"
)

// UserContext copies the authenticated user id into the request context,
// where services read it as the author of document changes.
//
// It must run after Auth, which sets "user_id" in the gin context.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := c.GetString("user_id"); uid != "" {
			c.Request = c.Request.WithContext(security.WithUserID(c.Request.Context(), uid))
		}
		c.Next()
	}
}
