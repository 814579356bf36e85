package config

import (
	"strings"
	"time"
)

// Settings is the layered, unresolved view of the client configuration as
// loaded by koanf. Zero values mean "not supplied by any layer".
type Settings struct {
	APIKey    string          `koanf:"apikey"`
	Endpoint  string          `koanf:"endpoint"`
	HTTPProxy string          `koanf:"httpproxy"`
	UserAgent string          `koanf:"useragent"`
	Timeout   TimeoutSettings `koanf:"timeout"`
	Retry     RetryConfig     `koanf:"retry"`
	Rate      RateConfig      `koanf:"rate"`
	Log       LogConfig       `koanf:"log"`
}

// TimeoutSettings holds either a single combined timeout or its components.
type TimeoutSettings struct {
	Total   time.Duration `koanf:"total" validate:"gte=0"`
	Connect time.Duration `koanf:"connect" validate:"gte=0"`
	Read    time.Duration `koanf:"read" validate:"gte=0"`
	Send    time.Duration `koanf:"send" validate:"gte=0"`
}

// RetryConfig controls the retry engine.
type RetryConfig struct {
	// PostRequests enables retries for form-encoded create requests.
	PostRequests bool `koanf:"post"`
	// MaxCumulativeDelay bounds the total sleep spent retrying one request.
	MaxCumulativeDelay time.Duration `koanf:"maxcumulativedelay" validate:"gte=0"`
	// InitialDelay is the first backoff sleep.
	InitialDelay time.Duration `koanf:"initialdelay" validate:"gt=0"`
	// MaxDelay caps a single backoff sleep.
	MaxDelay time.Duration `koanf:"maxdelay" validate:"gtefield=InitialDelay"`
	// Multiplier is the backoff growth factor per attempt.
	Multiplier float64 `koanf:"multiplier" validate:"gte=1"`
	// Jitter is the randomization factor applied to each delay (0 disables it).
	Jitter float64 `koanf:"jitter" validate:"gte=0,lte=1"`
}

// RateConfig holds the optional client-side attempt rate limit. Zero disables it.
type RateConfig struct {
	Limit float64 `koanf:"limit" validate:"gte=0"`
	Burst int     `koanf:"burst" validate:"gte=0"`
}

// LogConfig holds logging preferences for the client.
type LogConfig struct {
	Level           string `koanf:"level" validate:"omitempty,oneof=debug info warn error disabled"`
	Pretty          bool   `koanf:"pretty"`
	Payloads        bool   `koanf:"payloads"`
	MaxPayloadBytes int    `koanf:"maxpayloadbytes" validate:"gte=0"`
}

// Endpoint is the parsed remote API location.
type Endpoint struct {
	Scheme   string
	Host     string
	Port     string
	BasePath string

	raw string
}

// String returns the endpoint exactly as resolved (scheme added when absent).
func (e Endpoint) String() string {
	return e.raw
}

// Config is the resolved client configuration. It is produced once by
// Resolve and never mutated afterwards, so it can be shared across goroutines.
type Config struct {
	APIKey    string
	Endpoint  Endpoint
	ProxyURL  string
	UserAgent string
	// Timeout is the effective per-attempt timeout.
	Timeout time.Duration
	// ConnectTimeout bounds dialing when supplied as a component.
	ConnectTimeout time.Duration
	Retry          RetryConfig
	Rate           RateConfig
	Log            LogConfig
}

// HasProxy reports whether requests are routed through an HTTP proxy.
func (c *Config) HasProxy() bool {
	return c.ProxyURL != ""
}

// BuildURL joins path onto the endpoint. An empty path yields the endpoint verbatim.
func (c *Config) BuildURL(path string) string {
	base := c.Endpoint.String()
	if path == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
