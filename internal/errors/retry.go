package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig controls how often a failing upstream fetch is attempted
// again and how long to wait in between.
type RetryConfig struct {
	// MaxRetries counts attempts after the first one. Zero means a single try.
	MaxRetries int

	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps the wait between attempts.
	MaxDelay time.Duration

	// Multiplier scales the wait after every failed attempt.
	Multiplier float64

	// Jitter shortens each wait by a random factor in [0.5, 1).
	Jitter bool
}

// DefaultRetryConfig is used by the scraper when no policy is configured:
// two more attempts, 500ms then 1s apart.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
	}
}

// backoff returns the wait after the given wait, capped at MaxDelay.
func (c RetryConfig) backoff(prev time.Duration) time.Duration {
	next := time.Duration(float64(prev) * c.Multiplier)
	if c.MaxDelay > 0 && next > c.MaxDelay {
		return c.MaxDelay
	}
	return next
}

func (c RetryConfig) jittered(d time.Duration) time.Duration {
	if !c.Jitter {
		return d
	}
	return time.Duration(float64(d) * (0.5 + rand.Float64()*0.5))
}

// Retry calls fn until it succeeds or the attempts run out.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	return RetryIf(ctx, cfg, func(error) bool { return true }, fn)
}

// RetryIf calls fn until it succeeds, returns an error shouldRetry rejects,
// or the attempts run out. A rejected error is returned unwrapped. When the
// attempts run out the last error is wrapped with the retry count.
func RetryIf(ctx context.Context, cfg RetryConfig, shouldRetry func(error) bool, fn func() error) error {
	wait := cfg.InitialDelay
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		timer := time.NewTimer(cfg.jittered(wait))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait = cfg.backoff(wait)
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
