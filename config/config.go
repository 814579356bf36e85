package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/gaborage/go-tdclient/version"
)

// Environment variables consulted by Resolve
const (
	EnvAPIKey             = "TD_API_KEY"
	EnvAPIServer          = "TD_API_SERVER"
	EnvHTTPProxy          = "HTTP_PROXY"
	EnvUserAgent          = "TD_USER_AGENT"
	EnvTimeout            = "TD_TIMEOUT"
	EnvConnectTimeout     = "TD_CONNECT_TIMEOUT"
	EnvReadTimeout        = "TD_READ_TIMEOUT"
	EnvSendTimeout        = "TD_SEND_TIMEOUT"
	EnvRetryPostRequests  = "TD_RETRY_POST_REQUESTS"
	EnvMaxCumulRetryDelay = "TD_MAX_CUMUL_RETRY_DELAY"
	EnvRateLimit          = "TD_RATE_LIMIT"
	EnvRateBurst          = "TD_RATE_BURST"
	EnvLogLevel           = "TD_LOG_LEVEL"
	EnvConfigFile         = "TD_CONFIG_FILE"
)

// Defaults
const (
	DefaultEndpoint                = "https://api.treasuredata.com/"
	DefaultTimeout                 = 60 * time.Second
	DefaultMaxCumulativeRetryDelay = 600 * time.Second
	DefaultInitialRetryDelay       = 5 * time.Second
	DefaultMaxRetryDelay           = 300 * time.Second
	DefaultRetryMultiplier         = 2.0
	DefaultMaxPayloadLogBytes      = 1024
)

const (
	keyAPIKey             = "apikey"
	keyEndpoint           = "endpoint"
	keyHTTPProxy          = "httpproxy"
	keyUserAgent          = "useragent"
	keyTimeoutTotal       = "timeout.total"
	keyTimeoutConnect     = "timeout.connect"
	keyTimeoutRead        = "timeout.read"
	keyTimeoutSend        = "timeout.send"
	keyRetryPost          = "retry.post"
	keyRetryMaxCumulative = "retry.maxcumulativedelay"
	keyRetryInitialDelay  = "retry.initialdelay"
	keyRetryMaxDelay      = "retry.maxdelay"
	keyRetryMultiplier    = "retry.multiplier"
	keyRetryJitter        = "retry.jitter"
	keyRateLimit          = "rate.limit"
	keyRateBurst          = "rate.burst"
	keyLogLevel           = "log.level"
	keyLogPayloads        = "log.payloads"
	keyLogMaxPayloadBytes = "log.maxpayloadbytes"
)

// envKeys maps the recognised environment variables onto koanf paths.
var envKeys = map[string]string{
	EnvAPIKey:             keyAPIKey,
	EnvAPIServer:          keyEndpoint,
	EnvHTTPProxy:          keyHTTPProxy,
	EnvUserAgent:          keyUserAgent,
	EnvTimeout:            keyTimeoutTotal,
	EnvConnectTimeout:     keyTimeoutConnect,
	EnvReadTimeout:        keyTimeoutRead,
	EnvSendTimeout:        keyTimeoutSend,
	EnvRetryPostRequests:  keyRetryPost,
	EnvMaxCumulRetryDelay: keyRetryMaxCumulative,
	EnvRateLimit:          keyRateLimit,
	EnvRateBurst:          keyRateBurst,
	EnvLogLevel:           keyLogLevel,
}

// Resolve merges defaults, an optional YAML file, the environment and the
// explicit options (in increasing priority) into a Config. No network I/O
// happens here.
func Resolve(opts ...Option) (*Config, error) {
	o := newOptions(opts)

	settings, err := load(o)
	if err != nil {
		return nil, err
	}

	return resolve(settings)
}

func load(o *options) (*Settings, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, NewLoadError("defaults", err)
	}

	if path := configFilePath(o); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, NewLoadError(path, err)
		}
	}

	if err := k.Load(envprovider.Provider(".", envprovider.Opt{
		TransformFunc: func(key, value string) (string, any) {
			path, ok := envKeys[key]
			if !ok || value == "" {
				return "", nil
			}
			return path, value
		},
		EnvironFunc: o.environ,
	}), nil); err != nil {
		return nil, NewLoadError("environment", err)
	}

	if len(o.explicit) > 0 {
		if err := k.Load(confmap.Provider(o.explicit, "."), nil); err != nil {
			return nil, NewLoadError("arguments", err)
		}
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, NewLoadError("unmarshal", err)
	}

	// Explicit components outrank a combined timeout from a lower layer.
	if o.explicitTimeoutComponents() {
		s.Timeout.Total = 0
	}

	return &s, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		keyEndpoint:           DefaultEndpoint,
		keyRetryPost:          false,
		keyRetryMaxCumulative: DefaultMaxCumulativeRetryDelay,
		keyRetryInitialDelay:  DefaultInitialRetryDelay,
		keyRetryMaxDelay:      DefaultMaxRetryDelay,
		keyRetryMultiplier:    DefaultRetryMultiplier,
		keyRetryJitter:        0.0,
		keyLogLevel:           "info",
		keyLogMaxPayloadBytes: DefaultMaxPayloadLogBytes,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// configFilePath prefers the explicit option over TD_CONFIG_FILE.
func configFilePath(o *options) string {
	if o.configFile != "" {
		return o.configFile
	}
	prefix := EnvConfigFile + "="
	for _, kv := range o.environ() {
		if strings.HasPrefix(kv, prefix) {
			return strings.TrimPrefix(kv, prefix)
		}
	}
	return ""
}

func resolve(s *Settings) (*Config, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, NewMissingCredentialError()
	}

	if err := Validate(s); err != nil {
		return nil, err
	}

	endpoint, err := ParseEndpoint(s.Endpoint)
	if err != nil {
		return nil, err
	}

	proxy, err := NormalizeProxy(s.HTTPProxy)
	if err != nil {
		return nil, err
	}

	userAgent := s.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}

	return &Config{
		APIKey:         s.APIKey,
		Endpoint:       endpoint,
		ProxyURL:       proxy,
		UserAgent:      userAgent,
		Timeout:        EffectiveTimeout(s.Timeout),
		ConnectTimeout: s.Timeout.Connect,
		Retry:          s.Retry,
		Rate:           s.Rate,
		Log:            s.Log,
	}, nil
}

// EffectiveTimeout returns the combined timeout when set, otherwise the sum of
// the connect, read and send components, otherwise DefaultTimeout.
func EffectiveTimeout(t TimeoutSettings) time.Duration {
	if t.Total > 0 {
		return t.Total
	}
	if sum := t.Connect + t.Read + t.Send; sum > 0 {
		return sum
	}
	return DefaultTimeout
}

// ParseEndpoint parses raw into an Endpoint, assuming https when no scheme is given.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultEndpoint
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, &ConfigError{Category: "invalid", Field: keyEndpoint, Message: "is not a valid url", Err: err}
	}
	if u.Hostname() == "" {
		return Endpoint{}, NewInvalidFieldError(keyEndpoint, "must include a host", nil)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Endpoint{}, NewInvalidFieldError(keyEndpoint, fmt.Sprintf("unsupported scheme %q", u.Scheme), []string{"http", "https"})
	}

	port := u.Port()
	if port == "" {
		port = defaultPort(u.Scheme)
	}
	basePath := u.Path
	if basePath == "" {
		basePath = "/"
	}

	return Endpoint{
		Scheme:   u.Scheme,
		Host:     u.Hostname(),
		Port:     port,
		BasePath: basePath,
		raw:      raw,
	}, nil
}

func defaultPort(scheme string) string {
	if scheme == "http" {
		return "80"
	}
	return "443"
}

// NormalizeProxy prefixes http:// onto a bare "host:port" proxy value.
// An empty value means no proxy.
func NormalizeProxy(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", &ConfigError{Category: "invalid", Field: keyHTTPProxy, Message: "is not a valid url", Err: err}
	}
	if u.Host == "" {
		return "", NewInvalidFieldError(keyHTTPProxy, "must include a host", nil)
	}

	return raw, nil
}
