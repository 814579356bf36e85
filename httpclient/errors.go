package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrorType identifies the category of a client error.
type ErrorType string

const (
	// NetworkError is a transient transport fault (DNS failure, connection reset).
	NetworkError ErrorType = "network"
	// TimeoutError is a transient per-attempt timeout.
	TimeoutError ErrorType = "timeout"
	// HTTPError is the fatal API error carrying the last observed status and body.
	HTTPError ErrorType = "http"
	// CancelledError means the caller's context ended the request.
	CancelledError ErrorType = "cancelled"
	// ValidationError is a malformed request rejected before any attempt.
	ValidationError ErrorType = "validation"
	// InterceptorError is returned when a request interceptor fails.
	InterceptorError ErrorType = "interceptor"
)

// ClientError is implemented by every error returned from the client.
type ClientError interface {
	error
	Type() ErrorType
}

type networkError struct {
	message string
	err     error
}

// NewNetworkError wraps a transport fault.
func NewNetworkError(message string, err error) ClientError {
	return &networkError{message: message, err: err}
}

func (e *networkError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.err)
	}
	return "network error: " + e.message
}

func (e *networkError) Type() ErrorType { return NetworkError }
func (e *networkError) Unwrap() error   { return e.err }

type timeoutError struct {
	message string
	timeout time.Duration
	err     error
}

// NewTimeoutError reports an attempt that exceeded its timeout.
func NewTimeoutError(message string, timeout time.Duration) ClientError {
	return &timeoutError{message: message, timeout: timeout}
}

func newTimeoutErrorWithCause(message string, timeout time.Duration, err error) ClientError {
	return &timeoutError{message: message, timeout: timeout, err: err}
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %v)", e.message, e.timeout)
}

func (e *timeoutError) Type() ErrorType { return TimeoutError }
func (e *timeoutError) Unwrap() error   { return e.err }

type httpError struct {
	message    string
	statusCode int
	body       []byte
	cause      error
}

// NewHTTPError creates the fatal API error for a status and its body.
func NewHTTPError(message string, statusCode int, body []byte) ClientError {
	return &httpError{message: message, statusCode: statusCode, body: body}
}

// newExhaustedError is the fatal API error raised when transport faults
// persisted until the retry budget ran out. No status was ever observed.
func newExhaustedError(message string, statusCode int, body []byte, cause error) ClientError {
	return &httpError{message: message, statusCode: statusCode, body: body, cause: cause}
}

func (e *httpError) Error() string {
	msg := fmt.Sprintf("HTTP error: %s (status %d)", e.message, e.statusCode)
	if len(e.body) > 0 {
		msg += ": " + string(e.body)
	}
	if e.cause != nil {
		msg += fmt.Sprintf(" [last fault: %v]", e.cause)
	}
	return msg
}

func (e *httpError) Type() ErrorType { return HTTPError }
func (e *httpError) Unwrap() error   { return e.cause }

// StatusCode returns the last observed status, or 0 when only faults were seen.
func (e *httpError) StatusCode() int { return e.statusCode }

// Body returns the raw body of the failing response.
func (e *httpError) Body() []byte { return e.body }

type cancelledError struct {
	err error
}

// NewCancelledError reports a request abandoned because its context ended.
func NewCancelledError(err error) ClientError {
	return &cancelledError{err: err}
}

func (e *cancelledError) Error() string {
	return fmt.Sprintf("cancelled: %v", e.err)
}

func (e *cancelledError) Type() ErrorType { return CancelledError }
func (e *cancelledError) Unwrap() error   { return e.err }

type validationError struct {
	message string
	field   string
}

// NewValidationError rejects a malformed request.
func NewValidationError(message, field string) ClientError {
	return &validationError{message: message, field: field}
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return "validation error: " + e.message
}

func (e *validationError) Type() ErrorType { return ValidationError }

type interceptorError struct {
	message string
	stage   string
	err     error
}

// NewInterceptorError wraps a failing interceptor.
func NewInterceptorError(message, stage string, err error) ClientError {
	return &interceptorError{message: message, stage: stage, err: err}
}

func (e *interceptorError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("interceptor error: %s (stage: %s): %v", e.message, e.stage, e.err)
	}
	return fmt.Sprintf("interceptor error: %s (stage: %s)", e.message, e.stage)
}

func (e *interceptorError) Type() ErrorType { return InterceptorError }
func (e *interceptorError) Unwrap() error   { return e.err }

// IsErrorType reports whether err is a ClientError of the given type.
func IsErrorType(err error, errorType ErrorType) bool {
	var ce ClientError
	if errors.As(err, &ce) {
		return ce.Type() == errorType
	}
	return false
}

// IsHTTPStatusError reports whether err is a fatal API error with the given status.
func IsHTTPStatusError(err error, statusCode int) bool {
	var he *httpError
	if errors.As(err, &he) {
		return he.statusCode == statusCode
	}
	return false
}

// StatusCodeOf returns the status carried by a fatal API error, or 0.
func StatusCodeOf(err error) int {
	var he *httpError
	if errors.As(err, &he) {
		return he.statusCode
	}
	return 0
}

// IsSuccessStatus reports whether statusCode is in the 2xx family.
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// IsRetryableStatus reports whether statusCode signals a transient server condition.
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// classifyTransportError maps a failed round trip onto a client error.
// Context cancellation is reported separately by the caller.
func classifyTransportError(err error, timeout time.Duration) ClientError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newTimeoutErrorWithCause("request timed out", timeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newTimeoutErrorWithCause("request timed out", timeout, err)
	}
	return NewNetworkError("request failed", err)
}
