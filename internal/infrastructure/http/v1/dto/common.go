// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"fmt"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain"
)

// ListResponse wraps list results with pagination.
type ListResponse struct {
	Items      any   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// NewListResponse maps a domain page with fn.
func NewListResponse[T any, R any](result domain.ListResult[T], fn func(T) R) ListResponse {
	items := make([]R, len(result.Items))
	for i, item := range result.Items {
		items[i] = fn(item)
	}
	return ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	}
}

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// ErrorResponse documents the error body rendered by middleware.ErrorHandler.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// parseOptionalID parses an optional id field. Empty means unset.
func parseOptionalID(field string, raw *string) (*id.ID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := id.Parse(*raw)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid id %q", field, *raw)
	}
	return &parsed, nil
}

// parseID parses a required id field.
func parseID(field, raw string) (id.ID, error) {
	parsed, err := id.Parse(raw)
	if err != nil {
		return id.Nil(), fmt.Errorf("%s: invalid id %q", field, raw)
	}
	return parsed, nil
}
