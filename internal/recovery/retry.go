package recovery

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// RetryConfig configures a retry policy.
type RetryConfig struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int `json:"maxAttempts"`
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration `json:"initialDelay"`
	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration `json:"maxDelay"`
	// Base is the exponential backoff multiplier.
	Base float64 `json:"base"`
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Base:         2.0,
	}
}

// RetryPolicy wraps fallible operations with bounded exponential-backoff
// retries. Errors classified as non-retryable propagate immediately without
// consuming retry budget.
type RetryPolicy struct {
	logger *zap.Logger
	config RetryConfig

	// OnRetry, when set, runs before each backoff sleep with the 1-based
	// attempt number that just failed. Set it before the first Execute.
	OnRetry func(attempt int)
}

// NewRetryPolicy creates a retry policy.
func NewRetryPolicy(logger *zap.Logger, config RetryConfig) *RetryPolicy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 60 * time.Second
	}
	if config.Base <= 1 {
		config.Base = 2.0
	}
	return &RetryPolicy{
		logger: logger.Named("retry"),
		config: config,
	}
}

// Execute invokes op, retrying transient failures up to MaxAttempts total
// invocations with delay min(initial * base^(attempt-1), max) between them.
func (rp *RetryPolicy) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= rp.config.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				rp.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return nil
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}

		if attempt == rp.config.MaxAttempts {
			break
		}

		if rp.OnRetry != nil {
			rp.OnRetry(attempt)
		}

		delay := rp.backoff(attempt)
		rp.logger.Warn("attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", rp.config.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	rp.logger.Error("all attempts failed",
		zap.Int("maxAttempts", rp.config.MaxAttempts),
		zap.Error(lastErr),
	)
	return lastErr
}

// backoff returns the delay after the given 1-based attempt.
func (rp *RetryPolicy) backoff(attempt int) time.Duration {
	d := time.Duration(float64(rp.config.InitialDelay) * math.Pow(rp.config.Base, float64(attempt-1)))
	if d > rp.config.MaxDelay {
		d = rp.config.MaxDelay
	}
	return d
}
