package httpclient

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// trackingBody records how often Close is called.
type trackingBody struct {
	io.Reader
	closes atomic.Int32
}

func (b *trackingBody) Close() error {
	b.closes.Add(1)
	return nil
}

func newTestResponse(body []byte, encoding string) (*Response, *trackingBody) {
	tb := &trackingBody{Reader: bytes.NewReader(body)}
	header := http.Header{}
	if encoding != "" {
		header.Set("Content-Encoding", encoding)
	}
	return newResponse(&http.Response{StatusCode: http.StatusOK, Header: header, Body: tb}, Stats{Attempts: 1}), tb
}

func TestResponseReadOnce(t *testing.T) {
	resp, body := newTestResponse([]byte(`{"databases":[]}`), "")

	first, err := resp.Read()
	require.NoError(t, err)
	assert.Equal(t, `{"databases":[]}`, string(first))

	second, err := resp.Read()
	require.NoError(t, err)
	assert.Empty(t, second)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, resp.Close())
	require.NoError(t, resp.Close())
	assert.Equal(t, int32(1), body.closes.Load())
}

func TestResponseDecompression(t *testing.T) {
	payload := []byte(strings.Repeat("td-row,", 200))

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write(payload)
	require.NoError(t, gw.Close())

	var zl bytes.Buffer
	zw := zlib.NewWriter(&zl)
	_, _ = zw.Write(payload)
	require.NoError(t, zw.Close())

	var raw bytes.Buffer
	fw, err := flate.NewWriter(&raw, flate.DefaultCompression)
	require.NoError(t, err)
	_, _ = fw.Write(payload)
	require.NoError(t, fw.Close())

	tests := []struct {
		name     string
		body     []byte
		encoding string
	}{
		{"identity", payload, ""},
		{"gzip", gz.Bytes(), "gzip"},
		{"zlib deflate", zl.Bytes(), "deflate"},
		{"raw deflate", raw.Bytes(), "deflate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := newTestResponse(tt.body, tt.encoding)
			defer resp.Close()

			got, err := resp.Read()
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}

	t.Run("corrupt gzip", func(t *testing.T) {
		resp, _ := newTestResponse([]byte("not gzip at all"), "gzip")
		defer resp.Close()

		_, err := resp.Read()
		assert.Error(t, err)
	})
}

func TestResponseDecoders(t *testing.T) {
	type database struct {
		Name  string `json:"name" msgpack:"name"`
		Count int    `json:"count" msgpack:"count"`
	}

	t.Run("json", func(t *testing.T) {
		resp, _ := newTestResponse([]byte(`{"name":"sample_db","count":3}`), "")
		defer resp.Close()

		var db database
		require.NoError(t, resp.DecodeJSON(&db))
		assert.Equal(t, database{Name: "sample_db", Count: 3}, db)
	})

	t.Run("msgpack", func(t *testing.T) {
		encoded, err := msgpack.Marshal(database{Name: "www_access", Count: 5000})
		require.NoError(t, err)

		resp, _ := newTestResponse(encoded, "")
		defer resp.Close()

		var db database
		require.NoError(t, resp.DecodeMsgpack(&db))
		assert.Equal(t, "www_access", db.Name)
		assert.Equal(t, 5000, db.Count)
	})

	t.Run("invalid json", func(t *testing.T) {
		resp, _ := newTestResponse([]byte(`{`), "")
		defer resp.Close()

		var v map[string]any
		assert.ErrorContains(t, resp.DecodeJSON(&v), "decode json body")
	})
}

func TestWithResponse(t *testing.T) {
	t.Run("closes after success", func(t *testing.T) {
		resp, body := newTestResponse([]byte("ok"), "")

		var got string
		err := WithResponse(resp, nil, func(r *Response) error {
			data, err := r.Read()
			got = string(data)
			return err
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, int32(1), body.closes.Load())
	})

	t.Run("closes when fn fails without reading", func(t *testing.T) {
		resp, body := newTestResponse([]byte("unread"), "")
		boom := errors.New("boom")

		err := WithResponse(resp, nil, func(*Response) error { return boom })

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int32(1), body.closes.Load())
	})

	t.Run("closes when fn panics", func(t *testing.T) {
		resp, body := newTestResponse([]byte("x"), "")

		assert.Panics(t, func() {
			_ = WithResponse(resp, nil, func(*Response) error { panic("inside scope") })
		})
		assert.Equal(t, int32(1), body.closes.Load())
	})

	t.Run("request error skips fn", func(t *testing.T) {
		reqErr := NewHTTPError("not found", 404, nil)
		called := false

		err := WithResponse(nil, reqErr, func(*Response) error {
			called = true
			return nil
		})

		assert.Equal(t, reqErr, err)
		assert.False(t, called)
	})
}
