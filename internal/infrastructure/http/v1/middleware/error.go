package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockforecast/internal/core/apperror"
	"stockforecast/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Internal causes are logged, never returned to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		status, body := errorResponse(c, c.Errors.Last().Err)
		c.JSON(status, body)
	}
}

// errorResponse maps err to the status and body ErrorHandler renders.
// It logs the cause once per call.
func errorResponse(c *gin.Context, err error) (int, gin.H) {
	ctx := c.Request.Context()

	if appErr, ok := apperror.AsAppError(err); ok {
		if appErr.Err != nil {
			logger.Error(ctx, "request error",
				"code", appErr.Code,
				"cause", appErr.Err,
			)
		}
		return appErr.HTTPStatus, gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		}
	}

	logger.Error(ctx, "unhandled error", "error", err)

	return http.StatusInternalServerError, gin.H{
		"code":    apperror.CodeInternal,
		"message": "internal server error",
		"details": map[string]any{
			"request_id": c.GetString("request_id"),
		},
	}
}
