// Package retry wraps outbound adapter calls (source-host, issue-tracker,
// chat) with bounded exponential backoff and a circuit breaker, so a flaky
// or down dependency degrades instead of cascading into the dispatcher.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Config configures retry behavior.
type Config struct {
	MaxAttempts  int           // Maximum number of attempts
	InitialDelay time.Duration // Initial delay before first retry
	MaxDelay     time.Duration // Maximum delay between retries
	Multiplier   float64       // Exponential backoff multiplier
	Jitter       bool          // Add random jitter to delays
}

// DefaultConfig returns the retry policy used for idempotent adapter reads:
// three attempts, starting at 100ms, doubling up to 30s, with jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// RetryableError marks an error as one Do should retry. Errors not wrapped
// this way are treated as permanent and returned immediately.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return fmt.Sprintf("retryable error: %v", e.Err) }
func (e *RetryableError) Unwrap() error { return e.Err }

// NewRetryableError wraps err as retryable.
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err was wrapped with NewRetryableError.
func IsRetryable(err error) bool {
	_, ok := err.(*RetryableError)
	return ok
}

// Do runs fn, retrying per cfg on retryable errors until it succeeds, a
// non-retryable error is returned, attempts are exhausted, or ctx is done.
func Do(ctx context.Context, cfg Config, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		if attempt < cfg.MaxAttempts-1 {
			delay := calculateDelay(cfg, attempt)
			log.Ctx(ctx).Warn().
				Err(err).
				Int("attempt", attempt+1).
				Dur("backoff", delay).
				Msg("retrying after failed call")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("max attempts (%d) reached: %w", cfg.MaxAttempts, lastErr)
}

func calculateDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	duration := time.Duration(delay)
	if cfg.Jitter {
		jitter := time.Duration(rand.Int63n(int64(duration)/4 + 1))
		duration += jitter
	}
	return duration
}

// WithTimeout bounds the whole retry loop (not just a single attempt) by
// timeout.
func WithTimeout(ctx context.Context, timeout time.Duration, cfg Config, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return Do(ctx, cfg, fn)
}
