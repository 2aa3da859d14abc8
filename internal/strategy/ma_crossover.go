package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/oakmont-labs/tradebot/pkg/types"
)

// MACrossover signals buy when the fast moving average crosses above the
// slow one on the most recent candle, and sell when it crosses below.
type MACrossover struct {
	fastPeriod int
	slowPeriod int
}

// NewMACrossover builds a moving-average crossover strategy.
// Parameters: fast_period (default 10), slow_period (default 30).
func NewMACrossover(params map[string]float64) (Strategy, error) {
	fast := int(paramOrDefault(params, "fast_period", 10))
	slow := int(paramOrDefault(params, "slow_period", 30))

	if fast < 2 {
		return nil, fmt.Errorf("strategy: ma_crossover fast_period must be >= 2, got %d", fast)
	}
	if slow <= fast {
		return nil, fmt.Errorf("strategy: ma_crossover slow_period (%d) must exceed fast_period (%d)", slow, fast)
	}

	return &MACrossover{fastPeriod: fast, slowPeriod: slow}, nil
}

func (s *MACrossover) Name() string { return "ma_crossover" }

func (s *MACrossover) Description() string {
	return "Buys on fast/slow moving average bullish crossover, sells on bearish crossover"
}

func (s *MACrossover) Params() map[string]float64 {
	return map[string]float64{
		"fast_period": float64(s.fastPeriod),
		"slow_period": float64(s.slowPeriod),
	}
}

// MinCandles returns the slow period plus one candle for the crossover
// comparison.
func (s *MACrossover) MinCandles() int { return s.slowPeriod + 1 }

func (s *MACrossover) Evaluate(candles []types.OHLCV) (types.SignalAction, error) {
	if len(candles) < s.MinCandles() {
		return types.SignalHold, fmt.Errorf("strategy: ma_crossover needs %d candles, got %d", s.MinCandles(), len(candles))
	}

	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	last := len(closes) - 1
	fastNow := sma(closes, last, s.fastPeriod)
	slowNow := sma(closes, last, s.slowPeriod)
	fastPrev := sma(closes, last-1, s.fastPeriod)
	slowPrev := sma(closes, last-1, s.slowPeriod)

	crossedUp := fastPrev.LessThanOrEqual(slowPrev) && fastNow.GreaterThan(slowNow)
	crossedDown := fastPrev.GreaterThanOrEqual(slowPrev) && fastNow.LessThan(slowNow)

	switch {
	case crossedUp:
		return types.SignalBuy, nil
	case crossedDown:
		return types.SignalSell, nil
	default:
		return types.SignalHold, nil
	}
}
