package exchange

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oakmont-labs/tradebot/pkg/types"
)

const paperFeeRate = "0.001" // 0.1% taker fee on notional

// PaperGateway simulates an exchange in memory. Prices are set by the host
// (tests, replay feeds) via SetPrice; market orders fill immediately at the
// current price with the paper fee applied.
type PaperGateway struct {
	name   string
	logger *zap.Logger

	mu     sync.RWMutex
	prices map[string]decimal.Decimal
	orders map[string]*types.Order
}

// NewPaperGateway creates a paper gateway with no prices seeded.
func NewPaperGateway(logger *zap.Logger, name string) *PaperGateway {
	if name == "" {
		name = "paper"
	}
	return &PaperGateway{
		name:   name,
		logger: logger.Named("exchange"),
		prices: make(map[string]decimal.Decimal),
		orders: make(map[string]*types.Order),
	}
}

// Name returns the configured exchange name.
func (g *PaperGateway) Name() string { return g.name }

// SetPrice sets the current price for a symbol.
func (g *PaperGateway) SetPrice(symbol string, price decimal.Decimal) {
	g.mu.Lock()
	g.prices[symbol] = price
	g.mu.Unlock()
}

// FetchTicker returns the current quote for a symbol.
func (g *PaperGateway) FetchTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return types.Ticker{}, &Error{Kind: ErrKindTimeout, Op: "fetch_ticker", Symbol: symbol, Err: err}
	}

	g.mu.RLock()
	price, ok := g.prices[symbol]
	g.mu.RUnlock()
	if !ok {
		return types.Ticker{}, &Error{
			Kind:   ErrKindValidation,
			Op:     "fetch_ticker",
			Symbol: symbol,
			Err:    fmt.Errorf("no price for symbol"),
		}
	}

	spread := price.Mul(decimal.RequireFromString("0.0005"))
	return types.Ticker{
		Symbol:    symbol,
		Last:      price,
		Bid:       price.Sub(spread),
		Ask:       price.Add(spread),
		Timestamp: time.Now(),
	}, nil
}

// FetchOHLCV synthesizes a candle series converging on the current price.
// The series is deterministic for a given price and limit so strategy
// behavior is reproducible in tests and replays.
func (g *PaperGateway) FetchOHLCV(ctx context.Context, symbol string, timeframe types.Timeframe, limit int) ([]types.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: ErrKindTimeout, Op: "fetch_ohlcv", Symbol: symbol, Err: err}
	}
	if limit <= 0 {
		return nil, &Error{
			Kind:   ErrKindValidation,
			Op:     "fetch_ohlcv",
			Symbol: symbol,
			Err:    fmt.Errorf("limit must be positive, got %d", limit),
		}
	}

	g.mu.RLock()
	price, ok := g.prices[symbol]
	g.mu.RUnlock()
	if !ok {
		return nil, &Error{
			Kind:   ErrKindValidation,
			Op:     "fetch_ohlcv",
			Symbol: symbol,
			Err:    fmt.Errorf("no price for symbol"),
		}
	}

	step := timeframeDuration(timeframe)
	now := time.Now().Truncate(step)
	candles := make([]types.OHLCV, limit)
	for i := 0; i < limit; i++ {
		// Small deterministic oscillation around the set price, damped
		// toward the most recent candle.
		age := limit - 1 - i
		wave := math.Sin(float64(i)*0.7) * 0.002 * float64(age) / float64(limit)
		c := price.Mul(decimal.NewFromFloat(1 + wave))
		o := price.Mul(decimal.NewFromFloat(1 + wave*0.5))
		hi := decimal.Max(o, c).Mul(decimal.RequireFromString("1.001"))
		lo := decimal.Min(o, c).Mul(decimal.RequireFromString("0.999"))
		candles[i] = types.OHLCV{
			Timestamp: now.Add(-time.Duration(age) * step),
			Open:      o,
			High:      hi,
			Low:       lo,
			Close:     c,
			Volume:    decimal.NewFromInt(100),
		}
	}
	// Last candle closes at the exact current price.
	candles[limit-1].Close = price
	return candles, nil
}

// CreateOrder fills an order at the current price. The paper venue has no
// order book, so limit orders fill immediately like market orders.
func (g *PaperGateway) CreateOrder(ctx context.Context, symbol string, side types.OrderSide, amount decimal.Decimal, orderType types.OrderType) (*types.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: ErrKindTimeout, Op: "create_order", Symbol: symbol, Err: err}
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, &Error{
			Kind:   ErrKindValidation,
			Op:     "create_order",
			Symbol: symbol,
			Err:    fmt.Errorf("amount must be positive, got %s", amount),
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	price, ok := g.prices[symbol]
	if !ok {
		return nil, &Error{
			Kind:   ErrKindValidation,
			Op:     "create_order",
			Symbol: symbol,
			Err:    fmt.Errorf("no price for symbol"),
		}
	}

	now := time.Now()
	fee := price.Mul(amount).Mul(decimal.RequireFromString(paperFeeRate))
	order := &types.Order{
		ID:           uuid.New().String(),
		Symbol:       symbol,
		Side:         side,
		Type:         orderType,
		Amount:       amount,
		Price:        price,
		Status:       types.OrderStatusFilled,
		FilledAmount: amount,
		AvgFillPrice: price,
		Fee:          fee,
		CreatedAt:    now,
		FilledAt:     &now,
	}
	g.orders[order.ID] = order

	g.logger.Debug("paper order filled",
		zap.String("order_id", order.ID),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("amount", amount.String()),
		zap.String("price", price.String()))

	return order, nil
}

// Order returns a previously created order by ID.
func (g *PaperGateway) Order(id string) (*types.Order, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	o, ok := g.orders[id]
	return o, ok
}

func timeframeDuration(tf types.Timeframe) time.Duration {
	switch tf {
	case types.Timeframe1m:
		return time.Minute
	case types.Timeframe5m:
		return 5 * time.Minute
	case types.Timeframe15m:
		return 15 * time.Minute
	case types.Timeframe1h:
		return time.Hour
	case types.Timeframe4h:
		return 4 * time.Hour
	case types.Timeframe1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}
