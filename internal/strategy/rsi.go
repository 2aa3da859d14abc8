package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/oakmont-labs/tradebot/pkg/types"
)

// RSIStrategy signals buy when RSI falls below the oversold threshold and
// sell when it rises above the overbought threshold.
type RSIStrategy struct {
	period     int
	oversold   decimal.Decimal
	overbought decimal.Decimal
}

// NewRSI builds an RSI threshold strategy.
// Parameters: period (default 14), oversold (default 30), overbought
// (default 70).
func NewRSI(params map[string]float64) (Strategy, error) {
	period := int(paramOrDefault(params, "period", 14))
	oversold := paramOrDefault(params, "oversold", 30)
	overbought := paramOrDefault(params, "overbought", 70)

	if period < 2 {
		return nil, fmt.Errorf("strategy: rsi period must be >= 2, got %d", period)
	}
	if oversold <= 0 || overbought >= 100 || oversold >= overbought {
		return nil, fmt.Errorf("strategy: rsi thresholds must satisfy 0 < oversold < overbought < 100, got %v/%v", oversold, overbought)
	}

	return &RSIStrategy{
		period:     period,
		oversold:   decimal.NewFromFloat(oversold),
		overbought: decimal.NewFromFloat(overbought),
	}, nil
}

func (s *RSIStrategy) Name() string { return "rsi" }

func (s *RSIStrategy) Description() string {
	return "Buys when RSI drops below the oversold threshold, sells above overbought"
}

func (s *RSIStrategy) Params() map[string]float64 {
	oversold, _ := s.oversold.Float64()
	overbought, _ := s.overbought.Float64()
	return map[string]float64{
		"period":     float64(s.period),
		"oversold":   oversold,
		"overbought": overbought,
	}
}

// MinCandles returns the period plus one candle for the first price change.
func (s *RSIStrategy) MinCandles() int { return s.period + 1 }

func (s *RSIStrategy) Evaluate(candles []types.OHLCV) (types.SignalAction, error) {
	if len(candles) < s.MinCandles() {
		return types.SignalHold, fmt.Errorf("strategy: rsi needs %d candles, got %d", s.MinCandles(), len(candles))
	}

	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	value := rsi(closes, s.period)
	switch {
	case value.LessThan(s.oversold):
		return types.SignalBuy, nil
	case value.GreaterThan(s.overbought):
		return types.SignalSell, nil
	default:
		return types.SignalHold, nil
	}
}
