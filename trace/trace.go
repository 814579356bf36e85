// Package trace carries request identifiers on the context and propagates
// them, together with W3C trace context, onto outbound request headers.
package trace

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	// requestIDKey is the context key for request ID values
	requestIDKey contextKey = "request_id"
	// HeaderXRequestID is the standard header name for request tracing
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns a request ID from context if present
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureRequestID returns the request ID from ctx or a freshly generated one.
func EnsureRequestID(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	return uuid.New().String()
}

// InjectTraceContext writes traceparent/tracestate for the span in ctx onto h.
// Nothing is written when ctx carries no valid span.
func InjectTraceContext(ctx context.Context, h http.Header) {
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(h))
}
