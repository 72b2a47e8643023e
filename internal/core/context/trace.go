package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext correlates log lines of one request or background run.
type TraceContext struct {
	TraceID   string
	RequestID string

	// Job names the background job for worker runs; empty for requests.
	Job string
}

type traceContextKey struct{}

// NewTrace returns a trace with the given ids, generating the empty ones.
func NewTrace(traceID, requestID string) *TraceContext {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return &TraceContext{TraceID: traceID, RequestID: requestID}
}

// ForJob starts a fresh trace for one run of a background job.
func ForJob(ctx context.Context, job string) context.Context {
	t := NewTrace("", "")
	t.Job = job
	return WithTrace(ctx, t)
}

func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns the trace in ctx, or nil.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}
