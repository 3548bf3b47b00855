package api

import (
	"context"
	"fmt"
	"time"

	"earnings/internal/logger"
)

// RetryConfig is an exponential backoff policy.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{MaxAttempts: 3, InitialWait: time.Second, MaxWait: 5 * time.Second}
}

// withRetry runs attempt until it succeeds, fails with a non-retryable
// error or the policy runs out. The wait doubles after each failure.
func (c *Client) withRetry(ctx context.Context, attempt func() (*Response, error)) (*Response, error) {
	cfg := c.retry
	if cfg == nil || cfg.MaxAttempts < 1 {
		cfg = DefaultRetryConfig()
	}

	wait := cfg.InitialWait
	var lastErr error
	for n := 1; n <= cfg.MaxAttempts; n++ {
		resp, err := attempt()
		if err == nil {
			return resp, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
		if n == cfg.MaxAttempts {
			break
		}

		if c.verbose {
			logger.Warn(ctx, "Request failed, retrying", "attempt", n, "wait", wait, "error", err)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, cfg.MaxWait)
	}

	return nil, fmt.Errorf("all %d retry attempts failed: %w", cfg.MaxAttempts, lastErr)
}
