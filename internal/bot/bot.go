// Package bot implements the autonomous trading control loop: the
// orchestrator state machine, the per-cycle execution pipeline and the
// position monitor. All external calls go through the recovery toolkit.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oakmont-labs/tradebot/internal/events"
	"github.com/oakmont-labs/tradebot/internal/exchange"
	"github.com/oakmont-labs/tradebot/internal/metrics"
	"github.com/oakmont-labs/tradebot/internal/portfolio"
	"github.com/oakmont-labs/tradebot/internal/recovery"
	"github.com/oakmont-labs/tradebot/internal/strategy"
	"github.com/oakmont-labs/tradebot/internal/validator"
	"github.com/oakmont-labs/tradebot/pkg/types"
	"github.com/oakmont-labs/tradebot/pkg/utils"
)

// Config contains the control loop settings.
type Config struct {
	Timeframe          types.Timeframe `json:"timeframe"`
	CandleLimit        int             `json:"candleLimit"`
	ExecutionInterval  time.Duration   `json:"executionInterval"`
	MonitorInterval    time.Duration   `json:"monitorInterval"`
	SnapshotInterval   time.Duration   `json:"snapshotInterval"`
	AutoPauseThreshold int             `json:"autoPauseThreshold"`
	DegradedThreshold  int             `json:"degradedThreshold"`
	UnhealthyAfter     time.Duration   `json:"unhealthyAfter"`
	ErrorWindow        time.Duration   `json:"errorWindow"`
}

// DefaultConfig returns the default control loop settings.
func DefaultConfig() Config {
	return Config{
		Timeframe:          types.Timeframe1h,
		CandleLimit:        100,
		ExecutionInterval:  60 * time.Second,
		MonitorInterval:    10 * time.Second,
		SnapshotInterval:   300 * time.Second,
		AutoPauseThreshold: 10,
		DegradedThreshold:  5,
		UnhealthyAfter:     5 * time.Minute,
		ErrorWindow:        time.Hour,
	}
}

// Binding ties a strategy instance to a symbol.
type Binding struct {
	ID           string             `json:"id"`
	StrategyName string             `json:"strategyName"`
	Symbol       string             `json:"symbol"`
	Params       map[string]float64 `json:"params"`

	strategy strategy.Strategy
}

// TradingBot is the orchestrator. It owns the portfolio, the strategy
// bindings and the recovery toolkit, and drives the three periodic loops.
type TradingBot struct {
	logger    *zap.Logger
	config    Config
	gateway   exchange.Gateway
	portfolio *portfolio.Manager
	registry  *strategy.Registry
	validator validator.Validator
	bus       *events.Bus
	metrics   *metrics.Metrics

	breaker *recovery.CircuitBreaker
	retry   *recovery.RetryPolicy
	limiter *recovery.RateLimiter
	tracker *recovery.ErrorTracker

	stateMu sync.RWMutex
	state   types.BotState

	bindingsMu sync.RWMutex
	bindings   map[string]*Binding

	loopCtx    context.Context
	loopCancel context.CancelFunc
	loopWg     sync.WaitGroup
	inflightWg sync.WaitGroup
}

// Options bundles the bot's collaborators.
type Options struct {
	Logger    *zap.Logger
	Config    Config
	Gateway   exchange.Gateway
	Portfolio *portfolio.Manager
	Registry  *strategy.Registry
	Validator validator.Validator
	Bus       *events.Bus
	Metrics   *metrics.Metrics

	BreakerConfig   recovery.BreakerConfig
	RetryConfig     recovery.RetryConfig
	RateLimitConfig recovery.RateLimitConfig
}

// New creates a stopped trading bot.
func New(opts Options) *TradingBot {
	logger := opts.Logger.Named("bot")
	if opts.Validator == nil {
		opts.Validator = validator.Noop{}
	}
	if opts.Config.ErrorWindow <= 0 {
		opts.Config.ErrorWindow = DefaultConfig().ErrorWindow
	}

	b := &TradingBot{
		logger:    logger,
		config:    opts.Config,
		gateway:   opts.Gateway,
		portfolio: opts.Portfolio,
		registry:  opts.Registry,
		validator: opts.Validator,
		bus:       opts.Bus,
		metrics:   opts.Metrics,
		breaker:   recovery.NewCircuitBreaker(logger, opts.BreakerConfig),
		retry:     recovery.NewRetryPolicy(logger, opts.RetryConfig),
		limiter:   recovery.NewRateLimiter(logger, opts.RateLimitConfig),
		tracker:   recovery.NewErrorTracker(opts.Config.ErrorWindow),
		state:     types.BotStateStopped,
		bindings:  make(map[string]*Binding),
	}
	b.retry.OnRetry = func(int) {
		if b.metrics != nil {
			b.metrics.RetriesTotal.Inc()
		}
	}
	return b
}

// State returns the current lifecycle state.
func (b *TradingBot) State() types.BotState {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

// Start begins the periodic loops. Starting a running or paused bot is a
// no-op; the first start also resumes from a clean error slate.
func (b *TradingBot) Start() error {
	b.stateMu.Lock()
	if b.state != types.BotStateStopped {
		b.stateMu.Unlock()
		b.logger.Debug("start ignored", zap.String("state", string(b.state)))
		return nil
	}
	b.state = types.BotStateRunning
	b.loopCtx, b.loopCancel = context.WithCancel(context.Background())
	b.stateMu.Unlock()

	b.tracker.RecordSuccess()

	b.loopWg.Add(3)
	go b.executionLoop()
	go b.monitorLoop()
	go b.snapshotLoop()

	b.logger.Info("bot started",
		zap.Duration("execution_interval", b.config.ExecutionInterval),
		zap.Duration("monitor_interval", b.config.MonitorInterval))
	b.publish(events.EventBotStarted, nil)
	return nil
}

// Stop cancels the loops and waits for them and any in-flight order
// submissions to finish. Stopping a stopped bot is a no-op.
func (b *TradingBot) Stop() error {
	b.stateMu.Lock()
	if b.state == types.BotStateStopped {
		b.stateMu.Unlock()
		return nil
	}
	b.state = types.BotStateStopped
	cancel := b.loopCancel
	b.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.loopWg.Wait()
	b.inflightWg.Wait()

	b.logger.Info("bot stopped")
	b.publish(events.EventBotStopped, nil)
	return nil
}

// Pause suspends new position entries. The monitor loop keeps running so
// stops and targets on open positions still fire.
func (b *TradingBot) Pause(reason string) error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	if b.state != types.BotStateRunning {
		return fmt.Errorf("bot: cannot pause from state %s", b.state)
	}
	b.state = types.BotStatePaused

	b.logger.Warn("bot paused", zap.String("reason", reason))
	b.publish(events.EventBotPaused, map[string]any{"reason": reason})
	return nil
}

// Resume lifts a pause.
func (b *TradingBot) Resume() error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	if b.state != types.BotStatePaused {
		return fmt.Errorf("bot: cannot resume from state %s", b.state)
	}
	b.state = types.BotStateRunning

	b.logger.Info("bot resumed")
	b.publish(events.EventBotResumed, nil)
	return nil
}

// AddStrategy binds a strategy to a symbol. Parameters are validated by
// the strategy factory; a bad parameter set fails here and nothing is
// bound. A symbol can carry at most one binding per strategy name.
func (b *TradingBot) AddStrategy(name, symbol string, params map[string]float64) (*Binding, error) {
	symbol = utils.FormatSymbol(symbol)
	inst, err := b.registry.Create(name, params)
	if err != nil {
		return nil, err
	}

	b.bindingsMu.Lock()
	defer b.bindingsMu.Unlock()

	for _, bind := range b.bindings {
		if bind.StrategyName == name && bind.Symbol == symbol {
			return nil, fmt.Errorf("bot: strategy %s already bound to %s", name, symbol)
		}
	}

	bind := &Binding{
		ID:           uuid.New().String(),
		StrategyName: name,
		Symbol:       symbol,
		Params:       params,
		strategy:     inst,
	}
	b.bindings[bind.ID] = bind

	if b.metrics != nil {
		b.metrics.ActiveStrategies.Set(float64(len(b.bindings)))
	}
	b.logger.Info("strategy bound",
		zap.String("binding_id", bind.ID),
		zap.String("strategy", name),
		zap.String("symbol", symbol))
	return bind, nil
}

// RemoveStrategy unbinds by binding ID. Open positions opened by the
// binding are left to the monitor loop.
func (b *TradingBot) RemoveStrategy(bindingID string) error {
	b.bindingsMu.Lock()
	defer b.bindingsMu.Unlock()

	if _, ok := b.bindings[bindingID]; !ok {
		return fmt.Errorf("bot: no binding %s", bindingID)
	}
	delete(b.bindings, bindingID)

	if b.metrics != nil {
		b.metrics.ActiveStrategies.Set(float64(len(b.bindings)))
	}
	b.logger.Info("strategy unbound", zap.String("binding_id", bindingID))
	return nil
}

// Bindings returns a snapshot of the current strategy bindings.
func (b *TradingBot) Bindings() []*Binding {
	b.bindingsMu.RLock()
	defer b.bindingsMu.RUnlock()
	out := make([]*Binding, 0, len(b.bindings))
	for _, bind := range b.bindings {
		cp := *bind
		out = append(out, &cp)
	}
	return out
}

// Portfolio exposes the portfolio manager.
func (b *TradingBot) Portfolio() *portfolio.Manager { return b.portfolio }

// Registry exposes the strategy registry.
func (b *TradingBot) Registry() *strategy.Registry { return b.registry }

// ResetErrors clears the error tracker and closes the circuit breaker.
// Intended for operator use after fixing the underlying problem.
func (b *TradingBot) ResetErrors() {
	b.tracker.Clear()
	b.breaker.Reset()
	b.logger.Info("error state reset")
}

// publish emits an event if a bus is attached.
func (b *TradingBot) publish(eventType events.EventType, data map[string]any) {
	if b.bus != nil {
		b.bus.Publish(events.New(eventType, "bot", data))
	}
}

// callExternal wraps an external call in the recovery toolkit: rate
// limiter first, then the retry policy around the circuit breaker.
func (b *TradingBot) callExternal(ctx context.Context, op func(context.Context) error) error {
	if err := b.limiter.Acquire(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return b.retry.Execute(ctx, func(ctx context.Context) error {
		return b.breaker.Do(ctx, op)
	})
}

// recordError tracks a failure and auto-pauses the bot once consecutive
// errors reach the configured threshold.
func (b *TradingBot) recordError(category string, err error) {
	b.tracker.Record(category, err.Error())
	if b.metrics != nil {
		b.metrics.ErrorsTotal.WithLabelValues(category).Inc()
	}
	b.publish(events.EventError, map[string]any{
		"category": category,
		"message":  err.Error(),
	})

	consecutive := b.tracker.ConsecutiveErrors()
	if consecutive >= b.config.AutoPauseThreshold && b.State() == types.BotStateRunning {
		b.logger.Error("auto-pausing after repeated errors",
			zap.Int("consecutive_errors", consecutive))
		if perr := b.Pause(fmt.Sprintf("auto-pause after %d consecutive errors", consecutive)); perr != nil {
			b.logger.Warn("auto-pause failed", zap.Error(perr))
		}
	}
}

// errorCategory maps an error to a tracker category.
func errorCategory(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, recovery.ErrCircuitOpen) {
		return "circuit_open"
	}
	var exErr *exchange.Error
	if errors.As(err, &exErr) {
		return string(exErr.Kind)
	}
	return "internal"
}

// GetHealth assembles the bot's health snapshot. Health is derived, never
// stored: stopped and paused map directly from the lifecycle state,
// degraded means the consecutive-error count crossed its threshold, and
// unhealthy means too long has passed since the last successful cycle.
func (b *TradingBot) GetHealth() types.HealthSnapshot {
	state := b.State()
	consecutive := b.tracker.ConsecutiveErrors()
	lastSuccess := b.tracker.LastSuccess()
	sinceSuccess := time.Duration(0)
	if !lastSuccess.IsZero() {
		sinceSuccess = time.Since(lastSuccess)
	}

	status := types.HealthStatusHealthy
	switch {
	case state == types.BotStateStopped:
		status = types.HealthStatusStopped
	case state == types.BotStatePaused:
		status = types.HealthStatusPaused
	case consecutive >= b.config.DegradedThreshold:
		status = types.HealthStatusDegraded
	case !lastSuccess.IsZero() && sinceSuccess > b.config.UnhealthyAfter:
		status = types.HealthStatusUnhealthy
	}

	b.bindingsMu.RLock()
	bindingCount := len(b.bindings)
	b.bindingsMu.RUnlock()

	return types.HealthSnapshot{
		Status:               status,
		State:                state,
		CircuitBreakerState:  string(b.breaker.State()),
		ConsecutiveErrors:    consecutive,
		ErrorCounts:          b.tracker.Counts(),
		LastSuccessfulUpdate: lastSuccess,
		TimeSinceUpdate:      sinceSuccess,
		OpenPositions:        len(b.portfolio.OpenPositions()),
		ActiveStrategies:     bindingCount,
	}
}
