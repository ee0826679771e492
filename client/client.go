// Package client calls a running mmdrender server.
//
//	c, err := client.New("http://localhost:8080")
//	svg, err := c.RenderSVG(ctx, "graph TD; A-->B")
//
// Connection errors, 429 and 5xx responses are retried with backoff.
// A 400 is final: it names the pipeline step that failed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	mmdrender "github.com/alnah/go-mmdrender"
)

// Sentinel errors.
var (
	ErrInvalidBaseURL   = errors.New("invalid base URL")
	ErrResponseTooLarge = errors.New("response too large")
)

// Defaults.
const (
	DefaultTimeout      = 60 * time.Second
	DefaultRetryMax     = 3
	DefaultRetryWaitMin = 250 * time.Millisecond
	DefaultRetryWaitMax = 5 * time.Second

	// MaxResponseSize caps the image read from the server.
	MaxResponseSize = 64 << 20
)

const (
	renderPath = "/render"
	healthPath = "/healthz"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client renders diagrams through the HTTP API. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.HTTPClient.Timeout = d
		}
	}
}

// WithRetry sets the retry count and the backoff bounds.
func WithRetry(max int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		if max >= 0 {
			c.http.RetryMax = max
		}
		if waitMin > 0 {
			c.http.RetryWaitMin = waitMin
		}
		if waitMax > 0 {
			c.http.RetryWaitMax = waitMax
		}
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http.HTTPClient = hc
		}
	}
}

// New creates a Client for the server at baseURL (scheme and host, optional
// path prefix).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q (want http(s)://host[:port])", ErrInvalidBaseURL, baseURL)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = DefaultRetryMax
	rc.RetryWaitMin = DefaultRetryWaitMin
	rc.RetryWaitMax = DefaultRetryWaitMax
	rc.HTTPClient.Timeout = DefaultTimeout
	rc.Logger = nil
	// Hand the last response back so its message reaches the caller.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    rc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// renderBody mirrors the server's POST /render body.
type renderBody struct {
	Text   string  `json:"text"`
	Format string  `json:"format,omitempty"`
	Scale  float64 `json:"scale,omitempty"`
}

// Render sends req and returns the image. Failures reported by the server
// are *APIError.
func (c *Client) Render(ctx context.Context, req mmdrender.Request) (*mmdrender.Result, error) {
	payload, err := json.Marshal(renderBody{
		Text:   req.Text,
		Format: string(req.Format),
		Scale:  req.Scale,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+renderPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", renderPath, err)
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body)
	}

	res := &mmdrender.Result{
		Data:        body,
		ContentType: mediaType(resp.Header.Get("Content-Type")),
		Duration:    time.Since(start),
	}
	res.Width, _ = strconv.Atoi(resp.Header.Get("X-Image-Width"))
	res.Height, _ = strconv.Atoi(resp.Header.Get("X-Image-Height"))
	return res, nil
}

// RenderSVG renders text to SVG markup.
func (c *Client) RenderSVG(ctx context.Context, text string) (string, error) {
	res, err := c.Render(ctx, mmdrender.Request{Text: text, Format: mmdrender.FormatSVG})
	if err != nil {
		return "", err
	}
	return res.SVG(), nil
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", healthPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := readLimited(resp.Body)
		return apiError(resp.StatusCode, body)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// do sends req. When retries are exhausted on a 429 or 5xx the last
// response is returned without error so its body can be decoded.
func (c *Client) do(req *retryablehttp.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

func readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrResponseTooLarge, MaxResponseSize)
	}
	return body, nil
}

// apiError decodes {"message": ...}; a non-JSON body is kept verbatim.
func apiError(status int, body []byte) error {
	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &msg); err != nil || msg.Message == "" {
		msg.Message = strings.TrimSpace(string(body))
	}
	return &APIError{StatusCode: status, Message: msg.Message}
}

// mediaType strips parameters such as "; charset=utf-8".
func mediaType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}
