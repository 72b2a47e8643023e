package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockforecast/internal/core/apperror"
	appctx "stockforecast/internal/core/context"
	"stockforecast/internal/core/idempotency"
	"stockforecast/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

// Idempotency protects mutating requests carrying X-Idempotency-Key.
// The first request runs and its response is stored; repeats with the
// same body replay it, repeats with another body are rejected.
// It must run after Auth so keys are scoped to the user.
func Idempotency(store idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !mutating(c.Request.Method) {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)

		// The route template keeps the operation stable across ids.
		operation := c.Request.Method + " " + c.FullPath() + " " + c.Param("id")

		replay, err := store.AcquireKey(ctx, key, appctx.GetUserID(ctx), operation, hex.EncodeToString(hash[:]))
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			_ = c.Error(err)
			c.Abort()
			return
		}

		if replay != nil {
			c.Header("Idempotent-Replay", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		capture := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = capture

		c.Next()

		if len(c.Errors) > 0 && !capture.Written() {
			status, errBody := errorResponse(c, c.Errors.Last().Err)
			raw, _ := json.Marshal(errBody)
			if err := store.FailKey(ctx, key, status, "application/json; charset=utf-8", raw); err != nil {
				logger.Warn(ctx, "idempotency fail not stored", "key", key, "error", err)
			}
			return
		}

		if err := store.CompleteKey(ctx, key, capture.Status(), capture.Header().Get("Content-Type"), capture.body.Bytes()); err != nil {
			logger.Warn(ctx, "idempotency completion not stored", "key", key, "error", err)
		}
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// captureWriter tees the response body for storage.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
