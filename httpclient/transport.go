package httpclient

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

const defaultDialTimeout = 30 * time.Second

// newHTTPClient prepares, without connecting, the pooled transport shared by
// every request of one client.
func newHTTPClient(cfg *Config) (*http.Client, error) {
	rt := cfg.Transport
	if rt == nil {
		t, err := newTransport(cfg)
		if err != nil {
			return nil, err
		}
		rt = t
	}

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}, nil
}

func newTransport(cfg *Config) (*http.Transport, error) {
	t := http.DefaultTransport.(*http.Transport).Clone()
	// Accept-Encoding is set explicitly for reads and decoded by Response.
	t.DisableCompression = true
	t.Proxy = nil

	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil || proxy.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q: %w", cfg.ProxyURL, errOrInvalid(err))
		}
		t.Proxy = http.ProxyURL(proxy)
	}

	dialTimeout := cfg.ConnectTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	t.DialContext = (&net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	return t, nil
}

func errOrInvalid(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("missing host")
}
