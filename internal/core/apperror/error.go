// Package apperror defines the business error type rendered by the HTTP
// layer as {code, message, details}. Domain code returns *AppError for
// expected outcomes; everything else is wrapped and reported as internal.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	CodeInternal               = "INTERNAL_ERROR"
	CodeValidation             = "VALIDATION_ERROR"
	CodeInvalidState           = "INVALID_STATE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeNotFound               = "NOT_FOUND"
	CodeConflict               = "CONFLICT"
	CodeDuplicate              = "DUPLICATE_ENTRY"
	CodeIdempotency            = "IDEMPOTENCY_CONFLICT"
)

var statusByCode = map[string]int{
	CodeInternal:               http.StatusInternalServerError,
	CodeValidation:             http.StatusBadRequest,
	CodeInvalidState:           http.StatusUnprocessableEntity,
	CodeConcurrentModification: http.StatusConflict,
	CodeUnauthorized:           http.StatusUnauthorized,
	CodeForbidden:              http.StatusForbidden,
	CodeNotFound:               http.StatusNotFound,
	CodeConflict:               http.StatusConflict,
	CodeDuplicate:              http.StatusConflict,
	CodeIdempotency:            http.StatusConflict,
}

// AppError is a business error with an HTTP status.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus defaults from Code; callers may override it.
	HTTPStatus int `json:"-"`

	// Err is the underlying cause. Never serialized.
	Err error `json:"-"`
}

func newError(code, message string, kv ...any) *AppError {
	e := &AppError{Code: code, Message: message, HTTPStatus: statusByCode[code]}
	for i := 0; i+1 < len(kv); i += 2 {
		e.WithDetail(kv[i].(string), kv[i+1])
	}
	return e
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail sets one details entry and returns e.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error and returns e.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func NewValidation(message string) *AppError {
	return newError(CodeValidation, message)
}

func NewNotFound(entity string, id any) *AppError {
	return newError(CodeNotFound, entity+" not found", "entity", entity, "id", id)
}

// NewInvalidState rejects an operation not allowed in the current state,
// e.g. confirming a done transfer.
func NewInvalidState(entity, state, operation string) *AppError {
	return newError(CodeInvalidState,
		fmt.Sprintf("cannot %s %s in state %q", operation, entity, state),
		"entity", entity, "state", state, "operation", operation)
}

// NewConcurrentModification reports a failed version check.
func NewConcurrentModification(entity string, id any) *AppError {
	return newError(CodeConcurrentModification,
		entity+" was modified by another transaction",
		"entity", entity, "id", id)
}

// NewInternal hides err from the client.
func NewInternal(err error) *AppError {
	return newError(CodeInternal, "internal server error").WithCause(err)
}

func NewUnauthorized(message string) *AppError {
	return newError(CodeUnauthorized, message)
}

func NewForbidden(message string) *AppError {
	return newError(CodeForbidden, message)
}

// NewIdempotencyConflict is returned while the first request with key is
// still running.
func NewIdempotencyConflict(key string) *AppError {
	return newError(CodeIdempotency, "request with this idempotency key is in progress",
		"idempotency_key", key)
}

// NewIdempotencyMismatch is returned when key is reused for a different
// user, operation or body.
func NewIdempotencyMismatch(key string) *AppError {
	return newError(CodeIdempotency, "idempotency key was used for a different request",
		"idempotency_key", key)
}

func NewConflict(message string) *AppError {
	return newError(CodeConflict, message)
}

func NewDuplicate(entity, field, value string) *AppError {
	return newError(CodeDuplicate,
		fmt.Sprintf("%s with this %s already exists", entity, field),
		"entity", entity, "field", field, "value", value)
}

// AsAppError finds an AppError in the chain of err.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns the status of the AppError in err, else 500.
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

func IsConcurrentModification(err error) bool {
	return HasCode(err, CodeConcurrentModification)
}
