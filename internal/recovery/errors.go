// Package recovery provides the error-recovery toolkit that wraps every
// external call the bot makes: circuit breaker, retry policy, rate limiter
// and error tracker.
package recovery

import (
	"context"
	"errors"
)

// ErrCircuitOpen is returned by CircuitBreaker.Do while the circuit is open
// and the recovery timeout has not elapsed. The protected operation is not
// invoked.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Classifier is implemented by errors that know whether they are worth
// retrying. Validation and configuration errors report false; timeouts,
// connection resets and rate-limit responses report true.
type Classifier interface {
	Retryable() bool
}

// IsRetryable reports whether an error is plausibly transient. Errors that
// implement Classifier decide for themselves; context cancellation is never
// retried; anything else is assumed transient, matching the treatment of
// unknown infrastructure failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Retrying against an open circuit defeats its purpose: the breaker
	// already decided the dependency needs a cool-down.
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var c Classifier
	if errors.As(err, &c) {
		return c.Retryable()
	}
	return true
}
