// Package netutil provides the outbound HTTP request client used for
// fetching remote resources (geo dataset refreshes, upload callbacks).
package netutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPStatusError indicates the server responded, but with an unexpected
// HTTP status code. This is a non-network failure.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("netutil: unexpected status %d from %s", e.StatusCode, e.URL)
}

// NonRetryableError indicates request setup failed before any transport
// attempt was made (for example, malformed URL).
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("netutil: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// Fetcher fetches remote resources.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Client fetches via a standard HTTP client. Timeout and User-Agent come
// from callbacks so live config changes apply to the next request.
type Client struct {
	HTTP        *http.Client
	TimeoutFn   func() time.Duration
	UserAgentFn func() string
}

// NewClient creates a request client that pulls timeout/user-agent from
// callbacks on each request.
func NewClient(timeoutFn func() time.Duration, userAgentFn func() string) *Client {
	if timeoutFn == nil {
		panic("netutil: NewClient requires non-nil timeoutFn")
	}
	if userAgentFn == nil {
		panic("netutil: NewClient requires non-nil userAgentFn")
	}
	return &Client{
		HTTP:        &http.Client{},
		TimeoutFn:   timeoutFn,
		UserAgentFn: userAgentFn,
	}
}

// Fetch GETs the URL and returns the response body.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := c.TimeoutFn()
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NonRetryableError{Err: err}
	}
	if ua := c.UserAgentFn(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("netutil: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("netutil: %w", err)
	}
	return body, nil
}
