package netutil

import (
	"context"
	"errors"
	"time"
)

// RetryClient decorates a Fetcher with bounded retries for transient
// transport failures. HTTP status errors and setup errors are never retried.
type RetryClient struct {
	Inner Fetcher
	// Attempts is the total try count; values < 1 behave as 1.
	Attempts int
	// Backoff is the pause between tries; doubled after each failure.
	Backoff time.Duration
}

// Fetch tries the inner client until success, a non-retryable failure, or
// the attempt budget runs out. The last error is returned.
func (r *RetryClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := r.Backoff

	var lastErr error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, ctx.Err()
		}

		body, err := r.Inner.Fetch(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}

		if backoff > 0 && i < attempts-1 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, lastErr
			case <-timer.C:
			}
			backoff *= 2
		}
	}
	return nil, lastErr
}

func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return false
	}
	var nonRetryable *NonRetryableError
	return !errors.As(err, &nonRetryable)
}
