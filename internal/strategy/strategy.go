// Package strategy provides trading strategy implementations. Strategies
// are pure: they evaluate a candle series and emit buy/sell/hold, with no
// knowledge of orders, positions or risk.
package strategy

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/oakmont-labs/tradebot/pkg/types"
)

// Strategy is the interface all strategies implement. Evaluate inspects
// the candle series, oldest first, and returns a signal for the most
// recent candle.
type Strategy interface {
	Name() string
	Description() string
	Params() map[string]float64
	MinCandles() int
	Evaluate(candles []types.OHLCV) (types.SignalAction, error)
}

// Factory builds a strategy instance from parameters. It validates the
// parameters and fails construction on anything out of range.
type Factory func(params map[string]float64) (Strategy, error)

// Registry manages available strategy factories.
type Registry struct {
	logger    *zap.Logger
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in strategies registered.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		logger:    logger.Named("strategy"),
		factories: make(map[string]Factory),
	}

	r.Register("ma_crossover", NewMACrossover)
	r.Register("rsi", NewRSI)

	return r
}

// Register adds a strategy factory.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create instantiates a strategy by name with the given parameters.
// Unknown names and invalid parameters both fail here, before the
// strategy is ever bound to a symbol.
func (r *Registry) Create(name string, params map[string]float64) (Strategy, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("strategy: unknown strategy %q", name)
	}
	return factory(params)
}

// List returns the registered strategy names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// paramOrDefault reads a parameter with a fallback.
func paramOrDefault(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}
