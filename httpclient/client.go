package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gaborage/go-tdclient/httpclient/internal/tracking"
	"github.com/gaborage/go-tdclient/logger"
	tdtrace "github.com/gaborage/go-tdclient/trace"
	"github.com/gaborage/go-tdclient/version"
)

// maxErrorBodyBytes bounds the failing body kept on a fatal API error.
const maxErrorBodyBytes = 64 << 10

// client implements Client. Every field is read-only after construction.
type client struct {
	config     *Config
	logger     logger.Logger
	httpClient *http.Client
	initErr    error
	policy     retryPolicy
	limiter    *rate.Limiter
	sleep      Sleeper
	now        func() time.Time
	host       string
}

var _ Client = (*client)(nil)

func newClient(cfg *Config, log logger.Logger) *client {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = version.UserAgent()
	}
	if cfg.MaxPayloadLogBytes <= 0 {
		cfg.MaxPayloadLogBytes = defaultMaxPayloadLogBytes
	}

	c := &client{
		config: cfg,
		logger: log,
		policy: newRetryPolicy(cfg),
		sleep:  cfg.Sleep,
		now:    cfg.Now,
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	if c.now == nil {
		c.now = time.Now
	}

	c.httpClient, c.initErr = newHTTPClient(cfg)

	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}
	if u, err := url.Parse(cfg.BaseURL); err == nil {
		c.host = u.Hostname()
	}

	return c
}

// Read issues a GET with params as query fields. Always retry-eligible.
func (c *client) Read(ctx context.Context, path string, params url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Verb: VerbRead, Path: path, Params: params})
}

// CreateForm issues a form-encoded POST. Retried only when RetryPostRequests is set.
func (c *client) CreateForm(ctx context.Context, path string, params url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Verb: VerbCreateForm, Path: path, Params: params})
}

// Upload issues a PUT whose Content-Length is the caller-declared length.
func (c *client) Upload(ctx context.Context, path string, body []byte, length int64) (*Response, error) {
	return c.Do(ctx, &Request{Verb: VerbUpload, Path: path, Body: body, ContentLength: length})
}

// Do runs req through the retry engine. The returned Response must be closed.
func (c *client) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}
	if c.initErr != nil {
		return nil, NewValidationError(c.initErr.Error(), "proxy")
	}
	return c.execute(ctx, req)
}

func (c *client) validate(req *Request) error {
	if req == nil {
		return NewValidationError("request is nil", "")
	}
	if strings.TrimSpace(req.Path) == "" {
		return NewValidationError("path must not be empty", "path")
	}
	switch req.Verb {
	case VerbRead, VerbCreateForm:
	case VerbUpload:
		if req.ContentLength < 0 {
			return NewValidationError("content length must not be negative", "length")
		}
		if req.ContentLength != int64(len(req.Body)) {
			return NewValidationError(fmt.Sprintf("content length %d does not match body length %d", req.ContentLength, len(req.Body)), "length")
		}
	default:
		return NewValidationError("unknown verb", "verb")
	}
	return nil
}

// execute is the retry loop shared by every verb. Attempts are strictly
// sequential and all loop state is local to this call.
func (c *client) execute(ctx context.Context, req *Request) (*Response, error) {
	target := c.buildURL(req)
	requestID := tdtrace.EnsureRequestID(ctx)

	ctx, span := tracking.StartRequestSpan(ctx, req.Verb.String(), req.Verb.Method(), target, c.host)

	start := time.Now()
	bo := c.policy.newBackOff()

	var (
		attempt    int
		cumulative time.Duration
		lastStatus int
		lastBody   []byte
		lastFault  error
	)

	finish := func(resp *Response, err error) (*Response, error) {
		tracking.EndRequestSpan(span, tracking.Outcome{
			Status:          lastStatus,
			Attempts:        attempt,
			CumulativeDelay: cumulative,
			Err:             err,
		})
		if err != nil {
			if !IsErrorType(err, CancelledError) {
				tracking.RecordFatal(ctx, req.Verb.String(), lastStatus)
			}
			c.logFailure(req, requestID, err, attempt, cumulative)
		}
		return resp, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(nil, NewCancelledError(err))
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return finish(nil, NewCancelledError(err))
			}
		}

		attempt++
		httpReq, body, err := c.newHTTPRequest(ctx, req, target, requestID)
		if err != nil {
			return finish(nil, err)
		}

		c.logRequest(httpReq, body, requestID, attempt)
		sent := time.Now()
		resp, fault := c.httpClient.Do(httpReq)
		elapsed := time.Since(sent)

		status := 0
		if fault == nil {
			status = resp.StatusCode
		}
		tracking.RecordAttempt(ctx, tracking.Attempt{
			Method:   httpReq.Method,
			Verb:     req.Verb.String(),
			Host:     c.host,
			Index:    attempt,
			Status:   status,
			Duration: elapsed,
			Err:      fault,
		})

		if fault != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return finish(nil, NewCancelledError(ctxErr))
			}
			lastFault = classifyTransportError(fault, c.config.Timeout)
			lastStatus, lastBody = 0, nil
		} else {
			lastStatus, lastFault = status, nil
		}

		switch c.policy.classify(req.Verb, status, fault) {
		case outcomeSuccess:
			c.logResponse(&attemptLog{
				status:        status,
				header:        resp.Header,
				contentLength: resp.ContentLength,
				elapsed:       elapsed,
				attempt:       attempt,
			}, requestID)
			return finish(newResponse(resp, Stats{
				ElapsedTime:     time.Since(start),
				Attempts:        attempt,
				CumulativeDelay: cumulative,
			}), nil)

		case outcomeFatal:
			if fault != nil {
				return finish(nil, newExhaustedError("transport fault", 0, nil, lastFault))
			}
			lastBody = c.consume(resp, elapsed, attempt, requestID)
			return finish(nil, NewHTTPError(statusMessage(status), status, lastBody))
		}

		if fault == nil {
			lastBody = c.consume(resp, elapsed, attempt, requestID)
		}

		if c.policy.exhausted(cumulative) {
			return finish(nil, newExhaustedError("retry budget exhausted", lastStatus, lastBody, lastFault))
		}

		delay := c.policy.capDelay(bo.NextBackOff())
		reason := retryReason(status, lastFault)
		c.logRetry(req, requestID, reason, attempt, delay, cumulative)
		tracking.RecordRetry(ctx, req.Verb.String(), reason, delay)

		if err := ctx.Err(); err != nil {
			return finish(nil, NewCancelledError(err))
		}
		if err := c.sleep(ctx, delay); err != nil {
			return finish(nil, NewCancelledError(err))
		}
		cumulative += delay
	}
}

// newHTTPRequest assembles a fresh attempt. Bodies are rebuilt per attempt so
// retries never observe a drained reader.
func (c *client) newHTTPRequest(ctx context.Context, req *Request, target, requestID string) (*http.Request, []byte, error) {
	var body []byte
	switch req.Verb {
	case VerbCreateForm:
		if len(req.Params) > 0 {
			body = []byte(req.Params.Encode())
		}
	case VerbUpload:
		body = req.Body
	}

	var reader io.Reader = http.NoBody
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Verb.Method(), target, reader)
	if err != nil {
		return nil, nil, NewValidationError(err.Error(), "path")
	}

	httpReq.Header = BuildHeaders(req.Verb, c.config.APIKey, c.config.UserAgent, req.ContentLength, c.now())
	switch req.Verb {
	case VerbCreateForm:
		if len(body) > 0 {
			httpReq.Header.Set(HeaderContentType, ContentTypeForm)
		}
	case VerbUpload:
		httpReq.ContentLength = req.ContentLength
	}

	if c.config.PropagateRequestID {
		httpReq.Header.Set(HeaderXRequestID, requestID)
	}
	if c.config.EnableW3CTrace {
		tdtrace.InjectTraceContext(ctx, httpReq.Header)
	}

	if err := c.runRequestInterceptors(ctx, httpReq); err != nil {
		return nil, nil, NewInterceptorError("request interceptor failed", "request", err)
	}

	return httpReq, body, nil
}

// runRequestInterceptors executes all request interceptors
func (c *client) runRequestInterceptors(ctx context.Context, req *http.Request) error {
	for _, interceptor := range c.config.RequestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// buildURL joins the request path onto the endpoint and, for reads, merges
// params into the query string.
func (c *client) buildURL(req *Request) string {
	target := strings.TrimSuffix(c.config.BaseURL, "/") + "/" + strings.TrimPrefix(req.Path, "/")
	if req.Verb != VerbRead || len(req.Params) == 0 {
		return target
	}

	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	for key, values := range req.Params {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// consume reads and closes a response the caller will never see.
func (c *client) consume(resp *http.Response, elapsed time.Duration, attempt int, requestID string) []byte {
	defer resp.Body.Close()

	body, err := readDecoded(io.LimitReader(resp.Body, maxErrorBodyBytes), resp.Header.Get("Content-Encoding"))
	if err != nil {
		c.logger.Debug().Err(err).Str("request_id", requestID).Msg("failed to read error body")
		body = nil
	}

	c.logResponse(&attemptLog{
		status:  resp.StatusCode,
		header:  resp.Header,
		body:    body,
		elapsed: elapsed,
		attempt: attempt,
	}, requestID)
	return body
}

func retryReason(status int, fault error) string {
	if fault != nil {
		if IsErrorType(fault, TimeoutError) {
			return "timeout"
		}
		return "network"
	}
	return "status_" + strconv.Itoa(status)
}

func statusMessage(status int) string {
	if text := http.StatusText(status); text != "" {
		return strings.ToLower(text)
	}
	return "unexpected status"
}
