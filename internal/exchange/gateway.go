// Package exchange provides the exchange gateway the bot trades through.
// The gateway is an opaque capability: market data in, orders out. Its
// error taxonomy classifies failures as retryable or not so the recovery
// toolkit can decide what to do with them.
package exchange

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oakmont-labs/tradebot/pkg/types"
)

// Gateway is the narrow contract the core consumes. Calls may suspend on
// I/O; every error carries a retryable classification.
type Gateway interface {
	Name() string
	FetchOHLCV(ctx context.Context, symbol string, timeframe types.Timeframe, limit int) ([]types.OHLCV, error)
	FetchTicker(ctx context.Context, symbol string) (types.Ticker, error)
	CreateOrder(ctx context.Context, symbol string, side types.OrderSide, amount decimal.Decimal, orderType types.OrderType) (*types.Order, error)
}

// ErrorKind classifies gateway failures.
type ErrorKind string

const (
	ErrKindTimeout           ErrorKind = "timeout"
	ErrKindConnection        ErrorKind = "connection"
	ErrKindRateLimited       ErrorKind = "rate_limited"
	ErrKindValidation        ErrorKind = "validation"
	ErrKindInsufficientFunds ErrorKind = "insufficient_funds"
)

// Error is a classified gateway failure.
type Error struct {
	Kind   ErrorKind
	Op     string
	Symbol string
	Err    error
}

func (e *Error) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("exchange: %s %s: %s: %v", e.Op, e.Symbol, e.Kind, e.Err)
	}
	return fmt.Sprintf("exchange: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is plausibly transient. Timeouts,
// connection resets and rate-limit responses are; validation and
// insufficient-funds errors are not.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrKindTimeout, ErrKindConnection, ErrKindRateLimited:
		return true
	default:
		return false
	}
}

// Config configures gateway construction.
type Config struct {
	Name         string `json:"name"`
	PaperTrading bool   `json:"paperTrading"`
	APIKey       string `json:"apiKey"`
	APISecret    string `json:"apiSecret"`
}

// New constructs a gateway. Live (non-paper) mode requires credentials; a
// missing key pair is a configuration error surfaced immediately.
func New(logger *zap.Logger, config Config) (Gateway, error) {
	if config.PaperTrading {
		return NewPaperGateway(logger, config.Name), nil
	}
	if config.APIKey == "" || config.APISecret == "" {
		return nil, &Error{
			Kind: ErrKindValidation,
			Op:   "new",
			Err:  fmt.Errorf("live trading on %s requires API credentials", config.Name),
		}
	}
	// Live connectivity lives outside this core; paper fills stand in for
	// it so the control loop is exercised end to end.
	return NewPaperGateway(logger, config.Name), nil
}
