package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mmdrender "github.com/alnah/go-mmdrender"
)

// fastRetry keeps retry tests in the millisecond range.
var fastRetry = WithRetry(2, time.Millisecond, 2*time.Millisecond)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, fastRetry)
	require.NoError(t, err)
	return c, &hits
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

func TestNew_InvalidBaseURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "localhost:8080", "ftp://example.com", "http://", "://bad"} {
		t.Run(raw, func(t *testing.T) {
			t.Parallel()
			_, err := New(raw)
			assert.ErrorIs(t, err, ErrInvalidBaseURL)
		})
	}
}

func TestRenderSVG(t *testing.T) {
	t.Parallel()

	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/render", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "graph TD; A-->B", body["text"])
		assert.Equal(t, "svg", body["format"])
		assert.NotContains(t, body, "scale")

		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write([]byte("<svg>ok</svg>"))
	})

	svg, err := c.RenderSVG(context.Background(), "graph TD; A-->B")
	require.NoError(t, err)
	assert.Equal(t, "<svg>ok</svg>", svg)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRender_PNG(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "png", body["format"])
		assert.Equal(t, 2.0, body["scale"])

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Image-Width", "240")
		w.Header().Set("X-Image-Height", "160")
		_, _ = w.Write([]byte("\x89PNG"))
	})

	res, err := c.Render(context.Background(), mmdrender.Request{Text: "graph TD", Format: mmdrender.FormatPNG, Scale: 2})
	require.NoError(t, err)
	assert.Equal(t, mmdrender.ContentTypePNG, res.ContentType)
	assert.Equal(t, []byte("\x89PNG"), res.Data)
	assert.Equal(t, 240, res.Width)
	assert.Equal(t, 160, res.Height)
	assert.Empty(t, res.SVG())
}

func TestRender_BadRequestIsNotRetried(t *testing.T) {
	t.Parallel()

	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusBadRequest, "render failed")
	})

	_, err := c.RenderSVG(context.Background(), "not a diagram")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "render failed", apiErr.Message)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRender_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write([]byte("<svg/>"))
	})

	svg, err := c.RenderSVG(context.Background(), "graph TD")
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", svg)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRender_GivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
	})

	_, err := c.RenderSVG(context.Background(), "graph TD")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "rate limit exceeded", apiErr.Message)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRender_NonJSONError(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no route", http.StatusNotFound)
	})

	_, err := c.RenderSVG(context.Background(), "graph TD")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "no route", apiErr.Message)
	assert.Equal(t, "server returned 404: no route", apiErr.Error())
}

func TestRender_CanceledContext(t *testing.T) {
	t.Parallel()

	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<svg/>"))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.RenderSVG(ctx, "graph TD")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), hits.Load())
}

func TestHealth(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/healthz", r.URL.Path)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		assert.NoError(t, c.Health(context.Background()))
	})

	t.Run("unhealthy", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeMessage(w, http.StatusNotFound, "not found")
		})
		var apiErr *APIError
		require.True(t, errors.As(c.Health(context.Background()), &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	})
}

func TestMediaType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"image/svg+xml", "image/svg+xml"},
		{"image/svg+xml; charset=utf-8", "image/svg+xml"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mediaType(tt.in))
	}
}
