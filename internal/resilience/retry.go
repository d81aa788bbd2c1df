// Package resilience provides retry, circuit breaker, and error
// classification for outbound supplier and service calls.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// attemptCap is the hard ceiling on attempts per logical call. Config can
// lower it, never raise it.
const attemptCap = 3

// RetryConfig controls retry behavior with exponential backoff and jitter.
// The hard invariants are that successive delays strictly increase and the
// attempt count never exceeds attemptCap; everything else is tunable.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default and maximum: 3.
	MaxAttempts int

	// InitialBackoff is the base delay before the first retry. Default: 1.5s.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Default: 30s.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each attempt. Default: 2.0.
	Multiplier float64

	// JitterFraction adds random jitter as a fraction of the computed delay
	// (0.0 = no jitter, 0.5 = ±50%). Jitter never reorders delays: the
	// jittered value stays within the gap to the neighboring attempts.
	// Default: 0.2.
	JitterFraction float64

	// ShouldRetry optionally overrides the default retryable-error check.
	// If nil, IsRetryable is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with attempt number and error.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the process-wide retry defaults for supplier
// API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// Do executes fn with retry logic according to cfg. Only errors the policy
// deems retryable are retried; context cancellation stops retries
// immediately.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal executes fn returning a value with retry logic. Same semantics as
// Do but preserves the return value from the successful call.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		// Don't retry on context cancellation.
		if ctx.Err() != nil {
			return zero, lastErr
		}

		if !shouldRetry(lastErr) {
			return zero, lastErr
		}

		// Don't sleep after the last attempt.
		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(Backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 || cfg.MaxAttempts > attemptCap {
		cfg.MaxAttempts = attemptCap
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	// The first delay must land strictly under the cap, jitter included,
	// or the whole schedule saturates and delays stop increasing.
	if cfg.InitialBackoff > cfg.MaxBackoff/2 {
		cfg.InitialBackoff = cfg.MaxBackoff / 2
	}
	return cfg
}

// Backoff computes the delay before retry number attempt+1. Delays strictly
// increase across attempts: jitter is bounded so the jittered delay for
// attempt n never reaches the un-jittered delay of attempt n-1 or n+1, and
// it is applied before the MaxBackoff cap so capping cannot push a later
// delay under an earlier one.
func Backoff(attempt int, cfg RetryConfig) time.Duration {
	cfg = applyDefaults(cfg)

	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))

	if cfg.JitterFraction > 0 {
		// Cap jitter at just under half the gap between successive delays
		// so ordering is preserved.
		frac := math.Min(cfg.JitterFraction, (cfg.Multiplier-1)/(2*cfg.Multiplier))
		jitterRange := delay * frac
		delay += (rand.Float64()*2 - 1) * jitterRange
	}

	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
