package recovery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState is the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker.
	FailureThreshold int `json:"failureThreshold"`
	// RecoveryTimeout is how long the breaker stays open before allowing
	// a single trial call.
	RecoveryTimeout time.Duration `json:"recoveryTimeout"`
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// CircuitBreaker short-circuits calls to a failing dependency. One breaker
// protects one external resource; all call sites against that resource
// share the instance.
type CircuitBreaker struct {
	logger *zap.Logger
	config BreakerConfig

	mu            sync.Mutex
	state         CircuitState
	failures      int
	lastFailure   time.Time
	openedAt      time.Time
	trialInFlight bool
}

// NewCircuitBreaker creates a circuit breaker in the closed state.
func NewCircuitBreaker(logger *zap.Logger, config BreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		logger: logger.Named("breaker"),
		config: config,
		state:  CircuitClosed,
	}
}

// Do executes op under circuit breaker protection. While the circuit is
// open and within the recovery window it returns ErrCircuitOpen without
// invoking op. After the recovery timeout elapses exactly one trial call is
// admitted; its outcome decides the next state.
func (cb *CircuitBreaker) Do(ctx context.Context, op func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := op(ctx)
	cb.record(err)
	return err
}

// admit decides whether a call may proceed and performs the OPEN->HALF_OPEN
// transition when the recovery timeout has elapsed.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if time.Since(cb.openedAt) < cb.config.RecoveryTimeout {
			return ErrCircuitOpen
		}
		cb.state = CircuitHalfOpen
		cb.trialInFlight = true
		cb.logger.Info("circuit breaker entering half-open state")
		return nil
	case CircuitHalfOpen:
		// Only the single trial call is admitted.
		if cb.trialInFlight {
			return ErrCircuitOpen
		}
		cb.trialInFlight = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.trialInFlight = false

	if err == nil {
		if cb.state == CircuitHalfOpen {
			cb.logger.Info("circuit breaker recovered, closing")
		}
		cb.failures = 0
		cb.state = CircuitClosed
		return
	}

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.state == CircuitHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.state = CircuitOpen
		cb.openedAt = time.Now()
		cb.logger.Error("circuit breaker tripped",
			zap.Int("failures", cb.failures),
			zap.Duration("recoveryTimeout", cb.config.RecoveryTimeout),
		)
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset manually closes the breaker and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failures = 0
	cb.lastFailure = time.Time{}
	cb.trialInFlight = false
	cb.logger.Info("circuit breaker manually reset")
}
