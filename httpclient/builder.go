package httpclient

import (
	"net/http"
	"time"

	"github.com/gaborage/go-tdclient/config"
	"github.com/gaborage/go-tdclient/logger"
)

// Builder provides a fluent interface for creating clients
type Builder struct {
	config *Config
	logger logger.Logger
}

// NewBuilder creates a new client builder with the documented defaults
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: &Config{
			BaseURL:                 config.DefaultEndpoint,
			Timeout:                 config.DefaultTimeout,
			MaxCumulativeRetryDelay: config.DefaultMaxCumulativeRetryDelay,
			InitialRetryDelay:       config.DefaultInitialRetryDelay,
			MaxRetryDelay:           config.DefaultMaxRetryDelay,
			RetryMultiplier:         config.DefaultRetryMultiplier,
			MaxPayloadLogBytes:      config.DefaultMaxPayloadLogBytes,
		},
		logger: log,
	}
}

// WithSettings copies a resolved configuration onto the builder
func (b *Builder) WithSettings(cfg *config.Config) *Builder {
	b.config.APIKey = cfg.APIKey
	b.config.BaseURL = cfg.Endpoint.String()
	b.config.UserAgent = cfg.UserAgent
	b.config.ProxyURL = cfg.ProxyURL
	b.config.Timeout = cfg.Timeout
	b.config.ConnectTimeout = cfg.ConnectTimeout
	b.config.RetryPostRequests = cfg.Retry.PostRequests
	b.config.MaxCumulativeRetryDelay = cfg.Retry.MaxCumulativeDelay
	b.config.InitialRetryDelay = cfg.Retry.InitialDelay
	b.config.MaxRetryDelay = cfg.Retry.MaxDelay
	b.config.RetryMultiplier = cfg.Retry.Multiplier
	b.config.RetryJitter = cfg.Retry.Jitter
	b.config.RateLimit = cfg.Rate.Limit
	b.config.RateBurst = cfg.Rate.Burst
	b.config.LogPayloads = cfg.Log.Payloads
	if cfg.Log.MaxPayloadBytes > 0 {
		b.config.MaxPayloadLogBytes = cfg.Log.MaxPayloadBytes
	}
	return b
}

// WithAPIKey sets the credential sent in the Authorization header
func (b *Builder) WithAPIKey(apiKey string) *Builder {
	b.config.APIKey = apiKey
	return b
}

// WithBaseURL sets the endpoint paths are joined onto
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithUserAgent sets the User-Agent header
func (b *Builder) WithUserAgent(userAgent string) *Builder {
	b.config.UserAgent = userAgent
	return b
}

// WithProxy routes every attempt through an HTTP proxy
func (b *Builder) WithProxy(proxyURL string) *Builder {
	b.config.ProxyURL = proxyURL
	return b
}

// WithTimeout sets the per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetryPostRequests enables retries for form-encoded creates
func (b *Builder) WithRetryPostRequests(enabled bool) *Builder {
	b.config.RetryPostRequests = enabled
	return b
}

// WithMaxCumulativeRetryDelay sets the per-request sleep budget
func (b *Builder) WithMaxCumulativeRetryDelay(budget time.Duration) *Builder {
	b.config.MaxCumulativeRetryDelay = budget
	return b
}

// WithBackoff tunes the backoff curve. Values that would stall the cumulative
// delay (non-positive initial delay, multiplier below 1) fall back to the defaults.
func (b *Builder) WithBackoff(initial, maxDelay time.Duration, multiplier, jitter float64) *Builder {
	b.config.InitialRetryDelay = initial
	b.config.MaxRetryDelay = maxDelay
	b.config.RetryMultiplier = multiplier
	b.config.RetryJitter = jitter
	return b
}

// WithRateLimit caps attempts per second across the client
func (b *Builder) WithRateLimit(perSecond float64, burst int) *Builder {
	b.config.RateLimit = perSecond
	b.config.RateBurst = burst
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithPayloadLogging enables debug logging of bodies up to maxBytes
func (b *Builder) WithPayloadLogging(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	if maxBytes > 0 {
		b.config.MaxPayloadLogBytes = maxBytes
	}
	return b
}

// WithRequestIDPropagation sends X-Request-ID on every attempt
func (b *Builder) WithRequestIDPropagation(enabled bool) *Builder {
	b.config.PropagateRequestID = enabled
	return b
}

// WithW3CTrace enables traceparent propagation
func (b *Builder) WithW3CTrace(enabled bool) *Builder {
	b.config.EnableW3CTrace = enabled
	return b
}

// WithTransport replaces the default round tripper
func (b *Builder) WithTransport(rt http.RoundTripper) *Builder {
	b.config.Transport = rt
	return b
}

// WithSleeper replaces the backoff sleep
func (b *Builder) WithSleeper(sleep Sleeper) *Builder {
	b.config.Sleep = sleep
	return b
}

// WithClock replaces the clock used for the Date header
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.config.Now = now
	return b
}

// Build creates the client
func (b *Builder) Build() Client {
	cfg := *b.config
	cfg.RequestInterceptors = append([]RequestInterceptor(nil), b.config.RequestInterceptors...)
	return newClient(&cfg, b.logger)
}
