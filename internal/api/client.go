package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"earnings/internal/logger"
)

// TokenSource supplies the bearer token for one request.
type TokenSource func(ctx context.Context) (string, error)

// Client is a JSON-over-HTTP client bound to one base URL.
type Client struct {
	http    *http.Client
	baseURL string
	headers http.Header
	verbose bool
	limiter *RateLimiter
	retry   *RetryConfig
	token   TokenSource
}

type ClientOption func(*Client)

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = timeout }
}

// WithBaseURL prefixes every request path. A trailing slash is dropped.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHeader sends key: value on every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) { c.headers.Set(key, value) }
}

// WithLogging logs requests, responses and retries.
func WithLogging(enabled bool) ClientOption {
	return func(c *Client) { c.verbose = enabled }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithRateLimiter takes a token from rl before each attempt.
func WithRateLimiter(rl *RateLimiter) ClientOption {
	return func(c *Client) { c.limiter = rl }
}

// WithRetry sets the policy GET requests are retried with.
func WithRetry(cfg *RetryConfig) ClientOption {
	return func(c *Client) { c.retry = cfg }
}

// WithTokenSource authorizes every request with "Authorization: Bearer".
func WithTokenSource(ts TokenSource) ClientOption {
	return func(c *Client) { c.token = ts }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		headers: http.Header{},
		retry:   DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is a fully read 2xx/3xx response.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

func (r *Response) ParseJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

// GET is retried per the client's retry policy.
func (c *Client) GET(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.withRetry(ctx, func() (*Response, error) {
		return c.Do(ctx, http.MethodGet, path, query, nil)
	})
}

// POST is never retried: a lost response may still have created an order.
func (c *Client) POST(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body)
}

func (c *Client) PUT(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, nil, body)
}

func (c *Client) DELETE(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// encodeBody form-encodes url.Values and JSON-encodes anything else.
func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case url.Values:
		return strings.NewReader(b.Encode()), "application/x-www-form-urlencoded", nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		return bytes.NewReader(raw), "application/json", nil
	}
}

// Do sends one request. Status codes >= 400 come back as *APIError and
// network failures as *TransportError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	reader, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header[k] = v
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != nil {
		tok, err := c.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("authorize request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if c.verbose {
			logger.Error(ctx, "HTTP request failed", "method", method, "url", target, "error", err)
		}
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response body: %w", err)}
	}
	if c.verbose {
		logger.Debug(ctx, "HTTP response", "method", method, "url", target, "status", resp.StatusCode, "duration", time.Since(start), "bytes", len(data))
	}

	if resp.StatusCode >= 400 {
		if c.verbose {
			logger.Warn(ctx, "HTTP error response", "method", method, "url", target, "status", resp.StatusCode, "body", string(data))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Body: data}
	}
	return &Response{StatusCode: resp.StatusCode, Body: data, Header: resp.Header}, nil
}
