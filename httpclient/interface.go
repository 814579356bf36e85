package httpclient

import (
	"context"
	nethttp "net/http"
	"net/url"
	"time"

	tdtrace "github.com/gaborage/go-tdclient/trace"
)

const (
	// HeaderXRequestID is the standard header name for request tracing
	HeaderXRequestID = tdtrace.HeaderXRequestID
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = tdtrace.HeaderTraceParent
)

// Verb is the closed set of request kinds the engine dispatches.
type Verb int

const (
	// VerbRead fetches a resource (GET, query parameters).
	VerbRead Verb = iota
	// VerbCreateForm submits form-encoded fields (POST).
	VerbCreateForm
	// VerbUpload sends an opaque body of caller-declared length (PUT).
	VerbUpload
)

// Method returns the HTTP method for the verb.
func (v Verb) Method() string {
	switch v {
	case VerbCreateForm:
		return nethttp.MethodPost
	case VerbUpload:
		return nethttp.MethodPut
	default:
		return nethttp.MethodGet
	}
}

func (v Verb) String() string {
	switch v {
	case VerbRead:
		return "read"
	case VerbCreateForm:
		return "create_form"
	case VerbUpload:
		return "upload"
	default:
		return "unknown"
	}
}

// Client issues authenticated requests with budget-bounded retries.
// Implementations are safe for concurrent use.
type Client interface {
	Read(ctx context.Context, path string, params url.Values) (*Response, error)
	CreateForm(ctx context.Context, path string, params url.Values) (*Response, error)
	Upload(ctx context.Context, path string, body []byte, length int64) (*Response, error)
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request is one logical request. It is never mutated by the engine.
type Request struct {
	Verb Verb
	// Path is joined onto the endpoint; it may carry its own query string.
	Path string
	// Params are query fields for reads and form fields for creates.
	Params url.Values
	// Body and ContentLength are used by uploads only.
	Body          []byte
	ContentLength int64
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime     time.Duration
	Attempts        int
	CumulativeDelay time.Duration
}

// RequestInterceptor is called before every attempt is sent
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Config holds the engine configuration
type Config struct {
	APIKey    string
	BaseURL   string
	UserAgent string
	ProxyURL  string
	// Timeout bounds each attempt independently
	Timeout        time.Duration
	ConnectTimeout time.Duration

	RetryPostRequests       bool
	MaxCumulativeRetryDelay time.Duration
	InitialRetryDelay       time.Duration
	MaxRetryDelay           time.Duration
	RetryMultiplier         float64
	RetryJitter             float64

	// RateLimit caps attempts per second; zero disables it
	RateLimit float64
	RateBurst int

	RequestInterceptors []RequestInterceptor
	// LogPayloads enables debug-level logging of headers and body payloads
	LogPayloads bool
	// MaxPayloadLogBytes caps the number of body bytes logged when LogPayloads is enabled
	MaxPayloadLogBytes int
	// PropagateRequestID sends X-Request-ID on every attempt
	PropagateRequestID bool
	// EnableW3CTrace injects traceparent from the request span
	EnableW3CTrace bool

	// Transport replaces the proxy-aware default round tripper
	Transport nethttp.RoundTripper
	// Sleep replaces the context-aware timer used between attempts
	Sleep Sleeper
	// Now supplies the Date header clock
	Now func() time.Time
}

// WithRequestID adds a request ID to the context for propagation and logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return tdtrace.WithRequestID(ctx, requestID)
}

// RequestIDFromContext returns a request ID from context if present
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return tdtrace.RequestIDFromContext(ctx)
}

// NewRequestIDInterceptorFor creates an interceptor that sets a request ID
// under a custom header name when the attempt does not carry one yet.
func NewRequestIDInterceptorFor(header string) RequestInterceptor {
	if header == "" {
		header = HeaderXRequestID
	}
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(header) == "" {
			req.Header.Set(header, tdtrace.EnsureRequestID(ctx))
		}
		return nil
	}
}
