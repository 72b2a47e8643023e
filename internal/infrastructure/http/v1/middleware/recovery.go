package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"stockforecast/internal/core/apperror"
	"stockforecast/pkg/logger"
)

// Recovery turns a panic into a 500 rendered by ErrorHandler.
// The stack is logged, never returned to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"panic", rec,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)

				err := apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
					WithDetail("request_id", c.GetString("request_id"))
				if !c.Writer.Written() {
					status, body := errorResponse(c, err)
					c.AbortWithStatusJSON(status, body)
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
