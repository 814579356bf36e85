package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/vmihailenco/msgpack/v5"
)

// maxDrainBytes bounds how much of an unread body Close discards to keep the
// connection reusable.
const maxDrainBytes = 256 << 10

// Response is a single-use handle over a successful transport response.
// Callers must Close it; WithResponse does that on every exit path.
type Response struct {
	StatusCode int
	Header     http.Header
	Stats      Stats

	body io.ReadCloser

	mu        sync.Mutex
	consumed  bool
	closeOnce sync.Once
	closeErr  error
}

func newResponse(resp *http.Response, stats Stats) *Response {
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Stats:      stats,
		body:       resp.Body,
	}
}

// Read returns the full body, decoded according to Content-Encoding.
// Later calls return an empty slice, like an exhausted stream.
func (r *Response) Read() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.consumed || r.body == nil {
		return []byte{}, nil
	}
	r.consumed = true

	return readDecoded(r.body, r.Header.Get("Content-Encoding"))
}

// DecodeJSON reads the body and unmarshals it into v.
func (r *Response) DecodeJSON(v any) error {
	data, err := r.Read()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode json body: %w", err)
	}
	return nil
}

// DecodeMsgpack reads the body and unmarshals it into v.
func (r *Response) DecodeMsgpack(v any) error {
	data, err := r.Read()
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode msgpack body: %w", err)
	}
	return nil
}

// Close releases the underlying connection. It is safe to call repeatedly.
func (r *Response) Close() error {
	r.closeOnce.Do(func() {
		if r.body == nil {
			return
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(r.body, maxDrainBytes))
		r.closeErr = r.body.Close()
	})
	return r.closeErr
}

// WithResponse runs fn over resp and always closes it afterwards. A request
// error is returned unchanged without calling fn.
func WithResponse(resp *Response, err error, fn func(*Response) error) (retErr error) {
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Close(); cerr != nil && retErr == nil {
			retErr = cerr
		}
	}()
	return fn(resp)
}

// readDecoded reads body fully and undoes gzip or deflate encoding. Setting
// Accept-Encoding by hand turns off the transport's own decompression.
func readDecoded(body io.Reader, encoding string) ([]byte, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(raw) == 0 {
		return raw, nil
	}

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer zr.Close()
		return readAllWrapped(zr, "gzip")
	case "deflate":
		// Servers disagree on whether deflate carries the zlib wrapper.
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			defer zr.Close()
			return readAllWrapped(zr, "deflate")
		}
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		return readAllWrapped(fr, "deflate")
	default:
		return raw, nil
	}
}

func readAllWrapped(r io.Reader, encoding string) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s body: %w", encoding, err)
	}
	return data, nil
}
