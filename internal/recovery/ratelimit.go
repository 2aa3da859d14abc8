package recovery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimitConfig configures a rate limiter.
type RateLimitConfig struct {
	// MaxCalls is the number of calls admitted per window.
	MaxCalls int `json:"maxCalls"`
	// Window is the sliding window size.
	Window time.Duration `json:"window"`
}

// DefaultRateLimitConfig returns sensible defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxCalls: 100,
		Window:   60 * time.Second,
	}
}

// RateLimiter bounds outbound calls to at most MaxCalls within any sliding
// Window. Acquire blocks without busy-spinning until a slot is free. It is
// shared by the execution engine and the position monitor; admission is
// serialized so a burst from one loop cannot starve the other.
type RateLimiter struct {
	logger *zap.Logger
	config RateLimitConfig

	// admitMu serializes admissions. Waiters queue on the mutex, which the
	// runtime hands off in arrival order under contention.
	admitMu sync.Mutex

	mu    sync.Mutex
	calls []time.Time
}

// NewRateLimiter creates a sliding-window rate limiter.
func NewRateLimiter(logger *zap.Logger, config RateLimitConfig) *RateLimiter {
	if config.MaxCalls <= 0 {
		config.MaxCalls = 100
	}
	if config.Window <= 0 {
		config.Window = 60 * time.Second
	}
	return &RateLimiter{
		logger: logger.Named("ratelimit"),
		config: config,
		calls:  make([]time.Time, 0, config.MaxCalls),
	}
}

// Acquire blocks until a call slot is available or ctx is done.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	rl.admitMu.Lock()
	defer rl.admitMu.Unlock()

	for {
		rl.mu.Lock()
		now := time.Now()
		rl.prune(now)
		if len(rl.calls) < rl.config.MaxCalls {
			rl.calls = append(rl.calls, now)
			rl.mu.Unlock()
			return nil
		}
		// The oldest recorded call leaving the window frees the next slot.
		wait := rl.calls[0].Add(rl.config.Window).Sub(now)
		rl.mu.Unlock()

		rl.logger.Debug("rate limit reached, waiting", zap.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// prune drops call records older than the window. Records are appended in
// time order, so the prefix is the expired part.
func (rl *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-rl.config.Window)
	i := 0
	for i < len(rl.calls) && !rl.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		rl.calls = append(rl.calls[:0], rl.calls[i:]...)
	}
}

// InWindow returns the number of calls recorded within the current window.
func (rl *RateLimiter) InWindow() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.prune(time.Now())
	return len(rl.calls)
}

// Reset clears the call history.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.calls = rl.calls[:0]
}
