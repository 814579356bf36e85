package tracking

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	clientTracerName = "go-tdclient/httpclient"

	attrURLFull         = "url.full"
	attrAttempts        = "tdclient.attempts"
	attrCumulativeDelay = "tdclient.retry.cumulative_delay_ms"
	attrOutcome         = "tdclient.outcome"

	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Outcome summarises a logical request once the retry loop has finished.
type Outcome struct {
	Status          int
	Attempts        int
	CumulativeDelay time.Duration
	Err             error
}

// StartRequestSpan opens one client span covering every attempt of a logical request.
func StartRequestSpan(ctx context.Context, verb, method, url, host string) (context.Context, trace.Span) {
	tracer := otel.Tracer(clientTracerName)

	return tracer.Start(ctx, "tdclient."+verb,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(attrHTTPMethod, method),
			attribute.String(attrURLFull, url),
			attribute.String(attrServerHost, host),
		),
	)
}

// EndRequestSpan annotates the span with the outcome and ends it.
func EndRequestSpan(span trace.Span, o Outcome) {
	attrs := []attribute.KeyValue{
		attribute.Int(attrAttempts, o.Attempts),
		attribute.Int64(attrCumulativeDelay, o.CumulativeDelay.Milliseconds()),
	}
	if o.Status > 0 {
		attrs = append(attrs, attribute.Int(attrHTTPStatus, o.Status))
	}
	if o.Err != nil {
		attrs = append(attrs,
			attribute.String(attrOutcome, outcomeFailure),
			attribute.String(attrErrorType, ClassifyError(o.Err)),
		)
	} else {
		attrs = append(attrs, attribute.String(attrOutcome, outcomeSuccess))
	}
	span.SetAttributes(attrs...)

	if o.Err != nil {
		span.RecordError(o.Err)
		span.SetStatus(codes.Error, o.Err.Error())
	}

	span.End()
}

// ClassifyError returns an error classification string for metrics.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns_error"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "connection reset"):
		return "connection_error"
	case strings.Contains(errStr, "eof"):
		return "eof"
	default:
		return "error"
	}
}
