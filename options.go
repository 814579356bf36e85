package tdclient

import (
	"net/http"
	"time"

	"github.com/gaborage/go-tdclient/config"
	"github.com/gaborage/go-tdclient/httpclient"
	"github.com/gaborage/go-tdclient/logger"
)

// Option configures New.
type Option func(*settings)

type settings struct {
	config       []config.Option
	logger       logger.Logger
	interceptors []httpclient.RequestInterceptor
	transport    http.RoundTripper
	sleeper      httpclient.Sleeper
	requestIDs   bool
	w3cTrace     bool
}

// WithConfig passes configuration options through to config.Resolve.
func WithConfig(opts ...config.Option) Option {
	return func(s *settings) { s.config = append(s.config, opts...) }
}

// WithAPIKey sets the API key, overriding TD_API_KEY.
func WithAPIKey(apiKey string) Option {
	return WithConfig(config.WithAPIKey(apiKey))
}

// WithEndpoint sets the API endpoint, overriding TD_API_SERVER.
func WithEndpoint(endpoint string) Option {
	return WithConfig(config.WithEndpoint(endpoint))
}

// WithHTTPProxy routes requests through a proxy, overriding HTTP_PROXY.
func WithHTTPProxy(proxy string) Option {
	return WithConfig(config.WithHTTPProxy(proxy))
}

// WithTimeout sets the combined per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return WithConfig(config.WithTimeout(d))
}

// WithUserAgent overrides the default User-Agent.
func WithUserAgent(userAgent string) Option {
	return WithConfig(config.WithUserAgent(userAgent))
}

// WithRetryPostRequests enables retries for form-encoded creates.
func WithRetryPostRequests(enabled bool) Option {
	return WithConfig(config.WithRetryPostRequests(enabled))
}

// WithMaxCumulativeRetryDelay sets the retry sleep budget per request.
func WithMaxCumulativeRetryDelay(d time.Duration) Option {
	return WithConfig(config.WithMaxCumulativeRetryDelay(d))
}

// WithLogger replaces the zerolog logger built from the log settings.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithRequestInterceptor runs fn on every attempt before it is sent.
func WithRequestInterceptor(fn httpclient.RequestInterceptor) Option {
	return func(s *settings) { s.interceptors = append(s.interceptors, fn) }
}

// WithRequestIDPropagation sends X-Request-ID on every attempt.
func WithRequestIDPropagation(enabled bool) Option {
	return func(s *settings) { s.requestIDs = enabled }
}

// WithW3CTrace sends traceparent for the request span.
func WithW3CTrace(enabled bool) Option {
	return func(s *settings) { s.w3cTrace = enabled }
}

// WithTransport replaces the proxy-aware round tripper. Mostly useful in tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *settings) { s.transport = rt }
}

// WithSleeper replaces the backoff sleep. Mostly useful in tests.
func WithSleeper(fn httpclient.Sleeper) Option {
	return func(s *settings) { s.sleeper = fn }
}
