// Package transport is the shared HTTP plumbing used by the Reddit, WordPress and
// image-generation clients: timeouts, retry of idempotent requests, charset-aware
// body reading and uniform API errors.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"golang.org/x/net/html/charset"
)

const (
	MaxHops         = 15
	maxErrorPayload = 2048
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status from an error chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type Options struct {
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// RequestBuilder creates a fresh request per attempt so retried bodies are rewound.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

type Client struct {
	http      *http.Client
	executor  failsafe.Executor[*http.Response]
	userAgent string
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 200 * time.Millisecond
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = 5 * time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= MaxHops {
					return fmt.Errorf("stopped after %d redirects (MaxHops exceeded)", MaxHops)
				}
				return nil
			},
		}
	}

	policy := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(opts.BaseDelay, opts.MaxDelay).
		WithMaxRetries(opts.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(ShouldRetry).
		ReturnLastFailure().
		Build()

	return &Client{
		http:      httpClient,
		executor:  failsafe.With(policy),
		userAgent: opts.UserAgent,
	}
}

// ShouldRetry retries network errors, rate limits and gateway-class failures.
func ShouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Do sends the request. Only GET requests go through the retry executor; writes
// are sent once because the collaborators give no idempotency guarantees.
func (c *Client) Do(ctx context.Context, build RequestBuilder) (*http.Response, error) {
	req, err := c.prepare(ctx, build)
	if err != nil {
		return nil, err
	}
	if req.Method != http.MethodGet {
		return c.http.Do(req)
	}

	next := req
	resp, err := c.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		attempt := next
		if attempt == nil {
			var buildErr error
			if attempt, buildErr = c.prepare(ctx, build); buildErr != nil {
				return nil, buildErr
			}
		}
		next = nil
		resp, doErr := c.http.Do(attempt)
		if ShouldRetry(resp, doErr) && resp != nil {
			_ = resp.Body.Close()
		}
		return resp, doErr
	})
	if resp != nil && ShouldRetry(resp, nil) {
		// the body was closed when the attempt was judged retryable
		return nil, &APIError{Method: req.Method, URL: req.URL.String(), StatusCode: resp.StatusCode, Body: "retries exhausted"}
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) prepare(ctx context.Context, build RequestBuilder) (*http.Request, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

// DoJSON sends the request, fails with *APIError on non-2xx and decodes the body
// into out when out is non-nil. The raw body is returned for logging.
func (c *Client) DoJSON(ctx context.Context, build RequestBuilder, out any) ([]byte, error) {
	resp, err := c.Do(ctx, build)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := ReadBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, &APIError{
			Method:     resp.Request.Method,
			URL:        resp.Request.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(body)), maxErrorPayload),
		}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return body, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return body, fmt.Errorf("decode %s response: %w", resp.Request.URL.Path, err)
	}
	return body, nil
}

// Fetch downloads a binary payload (images) without charset decoding.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &APIError{Method: http.MethodGet, URL: url, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// ReadBody reads a textual body, transcoding to UTF-8 based on Content-Type.
func ReadBody(resp *http.Response) ([]byte, error) {
	utf8Reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		utf8Reader = resp.Body
	}
	return io.ReadAll(utf8Reader)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
