package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

const (
	defaultMaxPayloadLogBytes = 1024

	logMsgRequest  = "TD client request"
	logMsgResponse = "TD client response"
	logMsgRetry    = "retrying request"
	logMsgFailed   = "request failed"
)

// attemptLog describes the response side of one attempt for logging.
// body is set only when the engine consumed it (retry or fatal paths).
type attemptLog struct {
	status        int
	header        http.Header
	body          []byte
	contentLength int64
	elapsed       time.Duration
	attempt       int
}

func (c *client) maxPayloadBytes() int {
	if c.config.MaxPayloadLogBytes <= 0 {
		return defaultMaxPayloadLogBytes
	}
	return c.config.MaxPayloadLogBytes
}

func (c *client) logRequest(req *http.Request, body []byte, requestID string, attempt int) {
	event := c.logger.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", requestID).
		Int("attempt", attempt)
	if n := len(req.Header); n > 0 {
		event = event.Int("header_count", n)
	}
	if len(body) > 0 {
		event = event.Int("body_size", len(body))
	}
	event.Msg(logMsgRequest)

	if !c.config.LogPayloads {
		return
	}

	preview, truncated := c.preview(body)
	c.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("request_id", requestID).
		Interface("headers", req.Header).
		Int("body_size", len(body)).
		Str("body_truncated", strconv.FormatBool(truncated)).
		Bytes("body_preview", preview).
		Msg(logMsgRequest)
}

func (c *client) logResponse(res *attemptLog, requestID string) {
	event := c.logger.Info().
		Str("direction", "inbound").
		Int("status", res.status).
		Dur("elapsed", res.elapsed).
		Int("attempt", res.attempt).
		Str("request_id", requestID)
	if size := res.size(); size > 0 {
		event = event.Int64("body_size", size)
	}
	event.Msg(logMsgResponse)

	if !c.config.LogPayloads {
		return
	}

	debug := c.logger.Debug().
		Str("direction", "inbound").
		Int("status", res.status).
		Str("request_id", requestID).
		Interface("headers", res.header)
	if res.body != nil {
		preview, truncated := c.preview(res.body)
		debug = debug.
			Int("body_size", len(res.body)).
			Str("body_truncated", strconv.FormatBool(truncated)).
			Bytes("body_preview", preview)
	}
	debug.Msg(logMsgResponse)
}

func (c *client) logRetry(req *Request, requestID, reason string, attempt int, delay, cumulative time.Duration) {
	c.logger.Warn().
		Str("method", req.Verb.Method()).
		Str("path", req.Path).
		Str("request_id", requestID).
		Int("attempt", attempt).
		Str("reason", reason).
		Dur("delay", delay).
		Dur("cumulative_delay", cumulative).
		Msg(logMsgRetry)
}

func (c *client) logFailure(req *Request, requestID string, err error, attempts int, cumulative time.Duration) {
	c.logger.Error().
		Err(err).
		Str("method", req.Verb.Method()).
		Str("path", req.Path).
		Str("request_id", requestID).
		Int("attempts", attempts).
		Dur("cumulative_delay", cumulative).
		Msg(logMsgFailed)
}

func (c *client) preview(body []byte) ([]byte, bool) {
	limit := c.maxPayloadBytes()
	if len(body) > limit {
		return body[:limit], true
	}
	return body, false
}

func (a *attemptLog) size() int64 {
	if a.body != nil {
		return int64(len(a.body))
	}
	return a.contentLength
}
