// Package transport is the JSON-over-HTTP layer shared by the audit engine
// and identity clients. It owns request ids, bearer authentication and the
// normalisation of remote error payloads; it does not classify failures into
// the audit error taxonomy, which is the callers' job.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries a per-request id so engine logs can be matched to
// client logs.
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 8 << 20

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	StatusCode int

	// Message is the remote error message extracted from the body, or the
	// HTTP status text when the body carried none.
	Message string

	// Structured is true when Message came from a recognised JSON error
	// payload rather than from the status line or an opaque body.
	Structured bool
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Unauthorized reports whether the response was 401 or 403.
func (e *HTTPError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Client sends requests relative to a base URL.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	token     string
	userAgent string
	logger    *zap.Logger
	requestID func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL:   u,
		http:      &http.Client{Timeout: 30 * time.Second},
		logger:    zap.NewNop(),
		requestID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// DoJSON sends in (when non-nil) as a JSON body and decodes a 2xx response
// into out (when non-nil). Non-2xx responses return *HTTPError.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	data, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// Do sends a request and returns the raw body of a 2xx response.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	target := c.baseURL.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	reqID := c.requestID()
	req.Header.Set(RequestIDHeader, reqID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, structured := ExtractMessage(data)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: msg, Structured: structured}
	}
	return data, nil
}

// AsHTTPError returns the *HTTPError in err's chain, if any.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}
