package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsAppError_ThroughWrapping(t *testing.T) {
	base := NewNotFound("transfer", "42")
	wrapped := fmt.Errorf("get transfer: %w", base)

	appErr, ok := AsAppError(wrapped)
	assert.True(t, ok)
	assert.Same(t, base, appErr)
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(wrapped))
}

func TestGetHTTPStatus_PlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
	assert.False(t, IsConcurrentModification(errors.New("boom")))
}

func TestNewInvalidState(t *testing.T) {
	err := NewInvalidState("transfer", "done", "confirm")

	assert.Equal(t, CodeInvalidState, err.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
	assert.Equal(t, "done", err.Details["state"])
	assert.Contains(t, err.Error(), `cannot confirm transfer in state "done"`)
}

func TestWithCause_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternal(nil).WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "caused by: connection reset")
}
