// Package validator provides a pre-trade signal validation hook. A
// validator sees the proposed trade and can veto it or scale its size.
// Validation failure is treated as a veto: when the validator errors,
// the trade does not happen.
package validator

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oakmont-labs/tradebot/pkg/types"
	"github.com/oakmont-labs/tradebot/pkg/utils"
)

// Request describes a proposed trade.
type Request struct {
	Symbol   string
	Action   types.SignalAction
	Amount   decimal.Decimal
	Price    decimal.Decimal
	Strategy string
	Candles  []types.OHLCV
}

// Result is the validator's verdict. SizeMultiplier scales the proposed
// amount and is clamped to [0.5, 1.5] before use.
type Result struct {
	Approved       bool            `json:"approved"`
	Confidence     decimal.Decimal `json:"confidence"`
	SizeMultiplier decimal.Decimal `json:"sizeMultiplier"`
	Reason         string          `json:"reason,omitempty"`
}

// Validator inspects a proposed trade before submission.
type Validator interface {
	Name() string
	Validate(ctx context.Context, req Request) (Result, error)
}

var (
	minMultiplier = decimal.RequireFromString("0.5")
	maxMultiplier = decimal.RequireFromString("1.5")
)

// ClampMultiplier bounds a size multiplier to [0.5, 1.5]. Zero (unset)
// becomes 1.
func ClampMultiplier(m decimal.Decimal) decimal.Decimal {
	if m.IsZero() {
		return decimal.NewFromInt(1)
	}
	return utils.ClampDecimal(m, minMultiplier, maxMultiplier)
}

// Noop approves every trade at full size. It is the default validator
// when no external validation service is configured.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Validate(ctx context.Context, req Request) (Result, error) {
	return Result{
		Approved:       true,
		Confidence:     decimal.NewFromInt(1),
		SizeMultiplier: decimal.NewFromInt(1),
	}, nil
}

// Apply runs the validator and resolves its verdict into a final amount.
// A validation error or an unapproved result both reject the trade.
func Apply(ctx context.Context, logger *zap.Logger, v Validator, req Request) (decimal.Decimal, bool) {
	result, err := v.Validate(ctx, req)
	if err != nil {
		logger.Warn("validator error, rejecting trade",
			zap.String("validator", v.Name()),
			zap.String("symbol", req.Symbol),
			zap.Error(err))
		return decimal.Zero, false
	}
	if !result.Approved {
		logger.Info("trade rejected by validator",
			zap.String("validator", v.Name()),
			zap.String("symbol", req.Symbol),
			zap.String("reason", result.Reason))
		return decimal.Zero, false
	}

	return req.Amount.Mul(ClampMultiplier(result.SizeMultiplier)), true
}
