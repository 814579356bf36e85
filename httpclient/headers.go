package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// Header names and fixed values sent by the engine
const (
	HeaderAuthorization  = "Authorization"
	HeaderDate           = "Date"
	HeaderUserAgent      = "User-Agent"
	HeaderAcceptEncoding = "Accept-Encoding"
	HeaderContentType    = "Content-Type"
	HeaderContentLength  = "Content-Length"

	AuthScheme          = "TD1"
	AcceptEncodingValue = "deflate, gzip"
	ContentTypeUpload   = "application/octet-stream"
	ContentTypeForm     = "application/x-www-form-urlencoded"
)

// BuildHeaders returns the exact header set for verb. The upload length is
// trusted as declared; it is ignored for other verbs.
func BuildHeaders(verb Verb, apiKey, userAgent string, contentLength int64, now time.Time) http.Header {
	h := make(http.Header, 5)
	h.Set(HeaderAuthorization, AuthScheme+" "+apiKey)
	h.Set(HeaderDate, now.UTC().Format(http.TimeFormat))
	h.Set(HeaderUserAgent, userAgent)

	switch verb {
	case VerbRead:
		h.Set(HeaderAcceptEncoding, AcceptEncodingValue)
	case VerbUpload:
		h.Set(HeaderContentType, ContentTypeUpload)
		h.Set(HeaderContentLength, strconv.FormatInt(contentLength, 10))
	}

	return h
}
