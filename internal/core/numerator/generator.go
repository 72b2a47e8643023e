// Package numerator provides domain contracts for document auto-numbering.
// Implementations live in the storage layer.
package numerator

import (
	"context"
	"time"
)

// Generator generates sequential document numbers.
type Generator interface {
	// GetNextNumber returns the next number for cfg in period.
	// Pattern: PREFIX-YEAR-XXXXX (e.g., MO-2026-00001)
	GetNextNumber(ctx context.Context, cfg Config, period time.Time) (string, error)
}
