package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserContext_Missing(t *testing.T) {
	u := &UserContext{Permissions: []string{"transfer:read", "sale:read"}}

	assert.Empty(t, u.Missing("transfer:read"))
	assert.Equal(t, []string{"transfer:confirm"}, u.Missing("transfer:read", "transfer:confirm"))

	admin := &UserContext{IsAdmin: true}
	assert.Empty(t, admin.Missing("forecast:recompute"))
}

func TestNewTrace_GeneratesMissingIDs(t *testing.T) {
	kept := NewTrace("trace-1", "req-1")
	assert.Equal(t, "trace-1", kept.TraceID)
	assert.Equal(t, "req-1", kept.RequestID)

	generated := NewTrace("", "")
	assert.NotEmpty(t, generated.TraceID)
	assert.NotEqual(t, generated.TraceID, generated.RequestID)
}

func TestForJob(t *testing.T) {
	ctx := ForJob(context.Background(), "recompute")

	trace := GetTrace(ctx)
	if assert.NotNil(t, trace) {
		assert.Equal(t, "recompute", trace.Job)
		assert.NotEmpty(t, trace.RequestID)
	}
	assert.Empty(t, GetUserID(ctx))
}
