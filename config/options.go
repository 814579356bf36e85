package config

import (
	"os"
	"time"
)

// Option supplies an explicit argument. Explicit arguments override every
// other configuration layer, field by field.
type Option func(*options)

type options struct {
	explicit   map[string]any
	configFile string
	environ    func() []string
}

func newOptions(opts []Option) *options {
	o := &options{
		explicit: make(map[string]any),
		environ:  os.Environ,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// set records an explicit argument. Empty strings count as "not given".
func (o *options) set(key string, value any) {
	if s, ok := value.(string); ok && s == "" {
		return
	}
	o.explicit[key] = value
}

// explicitTimeoutComponents reports whether connect, read or send was given
// as an argument while the combined timeout was not.
func (o *options) explicitTimeoutComponents() bool {
	if _, ok := o.explicit[keyTimeoutTotal]; ok {
		return false
	}
	for _, key := range []string{keyTimeoutConnect, keyTimeoutRead, keyTimeoutSend} {
		if _, ok := o.explicit[key]; ok {
			return true
		}
	}
	return false
}

// WithAPIKey sets the API key.
func WithAPIKey(apiKey string) Option {
	return func(o *options) { o.set(keyAPIKey, apiKey) }
}

// WithEndpoint sets the API endpoint, e.g. "https://api.example.com/v1/".
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.set(keyEndpoint, endpoint) }
}

// WithHTTPProxy routes requests through the given proxy. Bare "host:port" is accepted.
func WithHTTPProxy(proxy string) Option {
	return func(o *options) { o.set(keyHTTPProxy, proxy) }
}

// WithUserAgent overrides the default User-Agent.
func WithUserAgent(userAgent string) Option {
	return func(o *options) { o.set(keyUserAgent, userAgent) }
}

// WithTimeout sets a single combined per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.set(keyTimeoutTotal, d) }
}

// WithConnectTimeout sets the connect component of the timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.set(keyTimeoutConnect, d) }
}

// WithReadTimeout sets the read component of the timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { o.set(keyTimeoutRead, d) }
}

// WithSendTimeout sets the send component of the timeout.
func WithSendTimeout(d time.Duration) Option {
	return func(o *options) { o.set(keyTimeoutSend, d) }
}

// WithRetryPostRequests enables or disables retries for form-encoded create requests.
func WithRetryPostRequests(enabled bool) Option {
	return func(o *options) { o.set(keyRetryPost, enabled) }
}

// WithMaxCumulativeRetryDelay sets the retry sleep budget of a single request.
func WithMaxCumulativeRetryDelay(d time.Duration) Option {
	return func(o *options) { o.set(keyRetryMaxCumulative, d) }
}

// WithRetryBackoff tunes the backoff curve.
func WithRetryBackoff(initial, maxDelay time.Duration, multiplier, jitter float64) Option {
	return func(o *options) {
		o.set(keyRetryInitialDelay, initial)
		o.set(keyRetryMaxDelay, maxDelay)
		o.set(keyRetryMultiplier, multiplier)
		o.set(keyRetryJitter, jitter)
	}
}

// WithRateLimit caps attempts per second across the client. Zero disables the limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *options) {
		o.set(keyRateLimit, perSecond)
		o.set(keyRateBurst, burst)
	}
}

// WithLogLevel sets the client log level (debug, info, warn, error, disabled).
func WithLogLevel(level string) Option {
	return func(o *options) { o.set(keyLogLevel, level) }
}

// WithPayloadLogging enables debug logging of request and response bodies.
func WithPayloadLogging(enabled bool, maxBytes int) Option {
	return func(o *options) {
		o.set(keyLogPayloads, enabled)
		o.set(keyLogMaxPayloadBytes, maxBytes)
	}
}

// WithConfigFile loads an optional YAML file beneath the environment layer.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configFile = path }
}

// WithEnviron replaces os.Environ as the environment source.
func WithEnviron(environ func() []string) Option {
	return func(o *options) {
		if environ != nil {
			o.environ = environ
		}
	}
}
