// Package types provides shared type definitions for the trading bot.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalAction is the decision a strategy produces for a symbol.
type SignalAction string

const (
	SignalBuy  SignalAction = "buy"
	SignalSell SignalAction = "sell"
	SignalHold SignalAction = "hold"
)

// OrderSide represents buy or sell
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType represents the type of order
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PositionSide represents long or short position
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// Sign returns +1 for long and -1 for short, used in P&L math.
func (s PositionSide) Sign() decimal.Decimal {
	if s == PositionSideShort {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Timeframe represents trading timeframes
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// OHLCV represents a single candlestick
type OHLCV struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// Ticker is a point-in-time price quote for a symbol.
type Ticker struct {
	Symbol    string          `json:"symbol"`
	Last      decimal.Decimal `json:"last"`
	Bid       decimal.Decimal `json:"bid,omitempty"`
	Ask       decimal.Decimal `json:"ask,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Order represents a trading order
type Order struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Side         OrderSide       `json:"side"`
	Type         OrderType       `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price,omitempty"`
	Status       OrderStatus     `json:"status"`
	FilledAmount decimal.Decimal `json:"filledAmount"`
	AvgFillPrice decimal.Decimal `json:"avgFillPrice"`
	Fee          decimal.Decimal `json:"fee"`
	CreatedAt    time.Time       `json:"createdAt"`
	FilledAt     *time.Time      `json:"filledAt,omitempty"`
}

// Position represents a tracked exposure. It is owned by the portfolio
// manager; once closed only the terminal P&L fields remain meaningful.
type Position struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	Side          PositionSide    `json:"side"`
	Amount        decimal.Decimal `json:"amount"`
	EntryPrice    decimal.Decimal `json:"entryPrice"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	StopLoss      decimal.Decimal `json:"stopLoss,omitempty"`
	TakeProfit    decimal.Decimal `json:"takeProfit,omitempty"`
	StrategyName  string          `json:"strategyName"`
	IsOpen        bool            `json:"isOpen"`
	OpenedAt      time.Time       `json:"openedAt"`
	ClosedAt      *time.Time      `json:"closedAt,omitempty"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
	RealizedPnL   decimal.Decimal `json:"realizedPnl"`
	Fees          decimal.Decimal `json:"fees"`
}

// UpdatePnL refreshes the current price and unrealized P&L.
func (p *Position) UpdatePnL(price decimal.Decimal) {
	p.CurrentPrice = price
	p.UnrealizedPnL = price.Sub(p.EntryPrice).Mul(p.Amount).Mul(p.Side.Sign())
}

// CloseReason explains why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss   CloseReason = "stop_loss"
	CloseReasonTakeProfit CloseReason = "take_profit"
	CloseReasonSignal     CloseReason = "signal"
	CloseReasonManual     CloseReason = "manual"
)

// ShouldClose reports whether the current price has crossed the stop-loss
// or take-profit threshold. Long positions close at price <= stop or
// >= target; short positions are inverted.
func (p *Position) ShouldClose() (bool, CloseReason) {
	if !p.IsOpen || p.CurrentPrice.IsZero() {
		return false, ""
	}

	if p.Side == PositionSideLong {
		if !p.StopLoss.IsZero() && p.CurrentPrice.LessThanOrEqual(p.StopLoss) {
			return true, CloseReasonStopLoss
		}
		if !p.TakeProfit.IsZero() && p.CurrentPrice.GreaterThanOrEqual(p.TakeProfit) {
			return true, CloseReasonTakeProfit
		}
		return false, ""
	}

	if !p.StopLoss.IsZero() && p.CurrentPrice.GreaterThanOrEqual(p.StopLoss) {
		return true, CloseReasonStopLoss
	}
	if !p.TakeProfit.IsZero() && p.CurrentPrice.LessThanOrEqual(p.TakeProfit) {
		return true, CloseReasonTakeProfit
	}
	return false, ""
}

// BotState is the orchestrator lifecycle state.
type BotState string

const (
	BotStateStopped BotState = "stopped"
	BotStateRunning BotState = "running"
	BotStatePaused  BotState = "paused"
)

// HealthStatus summarizes the bot's operational health.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusPaused    HealthStatus = "paused"
	HealthStatusStopped   HealthStatus = "stopped"
)

// HealthSnapshot is a derived, read-only view of bot health. It is
// assembled on demand and never persisted.
type HealthSnapshot struct {
	Status               HealthStatus   `json:"status"`
	State                BotState       `json:"state"`
	CircuitBreakerState  string         `json:"circuitBreakerState"`
	ConsecutiveErrors    int            `json:"consecutiveErrors"`
	ErrorCounts          map[string]int `json:"errorCounts"`
	LastSuccessfulUpdate time.Time      `json:"lastSuccessfulUpdate"`
	TimeSinceUpdate      time.Duration  `json:"timeSinceUpdate"`
	OpenPositions        int            `json:"openPositions"`
	ActiveStrategies     int            `json:"activeStrategies"`
}
