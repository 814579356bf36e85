package tdclient

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gaborage/go-tdclient/config"
	"github.com/gaborage/go-tdclient/httpclient"
	"github.com/gaborage/go-tdclient/logger"
)

// Client is the request engine bound to one resolved configuration.
type Client struct {
	cfg    *config.Config
	http   httpclient.Client
	logger logger.Logger
}

// New resolves the configuration and prepares the transport. No network I/O
// happens here.
func New(opts ...Option) (*Client, error) {
	s := &settings{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	cfg, err := config.Resolve(s.config...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config: %w", err)
	}

	log := s.logger
	if log == nil {
		log = logger.New(cfg.Log.Level, cfg.Log.Pretty)
	}

	b := httpclient.NewBuilder(log).
		WithSettings(cfg).
		WithRequestIDPropagation(s.requestIDs).
		WithW3CTrace(s.w3cTrace)
	for _, fn := range s.interceptors {
		b.WithRequestInterceptor(fn)
	}
	if s.transport != nil {
		b.WithTransport(s.transport)
	}
	if s.sleeper != nil {
		b.WithSleeper(s.sleeper)
	}

	log.Debug().
		Str("endpoint", cfg.Endpoint.String()).
		Str("proxy", cfg.ProxyURL).
		Dur("timeout", cfg.Timeout).
		Dur("max_cumulative_retry_delay", cfg.Retry.MaxCumulativeDelay).
		Msg("TD client configured")

	return &Client{cfg: cfg, http: b.Build(), logger: log}, nil
}

// APIKey returns the resolved API key.
func (c *Client) APIKey() string { return c.cfg.APIKey }

// Endpoint returns the resolved endpoint.
func (c *Client) Endpoint() config.Endpoint { return c.cfg.Endpoint }

// Config returns a copy of the resolved configuration.
func (c *Client) Config() config.Config { return *c.cfg }

// BuildURL joins path onto the endpoint; an empty path yields the endpoint.
func (c *Client) BuildURL(path string) string { return c.cfg.BuildURL(path) }

// Read fetches path with params as query fields.
func (c *Client) Read(ctx context.Context, path string, params url.Values) (*httpclient.Response, error) {
	return c.http.Read(ctx, path, params)
}

// CreateForm posts params form-encoded to path.
func (c *Client) CreateForm(ctx context.Context, path string, params url.Values) (*httpclient.Response, error) {
	return c.http.CreateForm(ctx, path, params)
}

// Upload puts body to path, declaring length as its Content-Length.
func (c *Client) Upload(ctx context.Context, path string, body []byte, length int64) (*httpclient.Response, error) {
	return c.http.Upload(ctx, path, body, length)
}
