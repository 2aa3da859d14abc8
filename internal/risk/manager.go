// Package risk enforces position sizing and exposure limits. Every order
// the bot places passes through the risk manager before it reaches the
// exchange; a rejection here is final for the cycle.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oakmont-labs/tradebot/pkg/types"
)

// Config contains risk management limits.
type Config struct {
	RiskPerTrade     decimal.Decimal `json:"riskPerTrade"`     // fraction of balance risked per trade
	MaxPositionValue decimal.Decimal `json:"maxPositionValue"` // cap on notional per position
	MaxDailyLoss     decimal.Decimal `json:"maxDailyLoss"`     // realized loss that halts new entries
	MaxOpenPositions int             `json:"maxOpenPositions"`
	StopLossPct      decimal.Decimal `json:"stopLossPct"`
	TakeProfitPct    decimal.Decimal `json:"takeProfitPct"`
}

// DefaultConfig returns the default risk limits.
func DefaultConfig() Config {
	return Config{
		RiskPerTrade:     decimal.RequireFromString("0.02"),
		MaxPositionValue: decimal.NewFromInt(1000),
		MaxDailyLoss:     decimal.NewFromInt(500),
		MaxOpenPositions: 5,
		StopLossPct:      decimal.RequireFromString("0.03"),
		TakeProfitPct:    decimal.RequireFromString("0.06"),
	}
}

// Validate checks the limits for internal consistency.
func (c Config) Validate() error {
	if c.RiskPerTrade.LessThanOrEqual(decimal.Zero) || c.RiskPerTrade.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("riskPerTrade must be in (0, 1], got %s", c.RiskPerTrade)
	}
	if c.MaxPositionValue.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("maxPositionValue must be positive, got %s", c.MaxPositionValue)
	}
	if c.MaxDailyLoss.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("maxDailyLoss must be positive, got %s", c.MaxDailyLoss)
	}
	if c.MaxOpenPositions <= 0 {
		return fmt.Errorf("maxOpenPositions must be positive, got %d", c.MaxOpenPositions)
	}
	if c.StopLossPct.LessThanOrEqual(decimal.Zero) || c.StopLossPct.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("stopLossPct must be in (0, 1), got %s", c.StopLossPct)
	}
	if c.TakeProfitPct.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("takeProfitPct must be positive, got %s", c.TakeProfitPct)
	}
	return nil
}

// Manager tracks daily P&L and applies the configured limits.
// Safe for concurrent use.
type Manager struct {
	logger *zap.Logger
	config Config

	mu       sync.RWMutex
	dailyPnL decimal.Decimal
	dayStart time.Time
}

// NewManager creates a risk manager.
func NewManager(logger *zap.Logger, config Config) *Manager {
	return &Manager{
		logger:   logger.Named("risk"),
		config:   config,
		dailyPnL: decimal.Zero,
		dayStart: time.Now(),
	}
}

// Config returns the active limits.
func (m *Manager) Config() Config { return m.config }

// PositionSize computes the amount to trade for a given balance, entry and
// stop price. The amount risks RiskPerTrade of the balance down to the stop
// and is then capped so the notional stays under MaxPositionValue.
func (m *Manager) PositionSize(balance, entryPrice, stopPrice decimal.Decimal) (decimal.Decimal, error) {
	if entryPrice.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("risk: entry price must be positive, got %s", entryPrice)
	}
	stopDistance := entryPrice.Sub(stopPrice).Abs()
	if stopDistance.IsZero() {
		return decimal.Zero, fmt.Errorf("risk: stop price equals entry price %s", entryPrice)
	}

	riskAmount := balance.Mul(m.config.RiskPerTrade)
	amount := riskAmount.Div(stopDistance)

	maxAmount := m.config.MaxPositionValue.Div(entryPrice)
	if amount.GreaterThan(maxAmount) {
		amount = maxAmount
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("risk: computed size is zero for balance %s", balance)
	}
	return amount, nil
}

// CanOpen reports whether a new position may be opened given the current
// open-position count and daily P&L. A false result carries the reason.
func (m *Manager) CanOpen(openPositions int, notional decimal.Decimal) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked()

	if openPositions >= m.config.MaxOpenPositions {
		return false, fmt.Sprintf("max open positions reached (%d)", m.config.MaxOpenPositions)
	}
	if notional.GreaterThan(m.config.MaxPositionValue) {
		return false, fmt.Sprintf("position value %s exceeds limit %s", notional, m.config.MaxPositionValue)
	}
	if m.dailyPnL.LessThanOrEqual(m.config.MaxDailyLoss.Neg()) {
		return false, fmt.Sprintf("daily loss limit hit (%s)", m.dailyPnL)
	}
	return true, ""
}

// RecordPnL adds realized P&L to the daily total.
func (m *Manager) RecordPnL(pnl decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked()
	m.dailyPnL = m.dailyPnL.Add(pnl)

	if m.dailyPnL.LessThanOrEqual(m.config.MaxDailyLoss.Neg()) {
		m.logger.Warn("daily loss limit reached",
			zap.String("daily_pnl", m.dailyPnL.String()),
			zap.String("limit", m.config.MaxDailyLoss.String()))
	}
}

// DailyPnL returns today's realized P&L.
func (m *Manager) DailyPnL() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked()
	return m.dailyPnL
}

// ResetDaily clears the daily P&L counter.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyPnL = decimal.Zero
	m.dayStart = time.Now()
	m.logger.Info("daily risk stats reset")
}

// rolloverLocked resets the daily counter when a new UTC day begins.
func (m *Manager) rolloverLocked() {
	now := time.Now()
	if now.UTC().YearDay() != m.dayStart.UTC().YearDay() || now.UTC().Year() != m.dayStart.UTC().Year() {
		m.dailyPnL = decimal.Zero
		m.dayStart = now
	}
}

// StopLossPrice returns the stop price for an entry at the configured
// percentage. Long stops sit below entry, short stops above.
func (m *Manager) StopLossPrice(entryPrice decimal.Decimal, side types.PositionSide) decimal.Decimal {
	offset := entryPrice.Mul(m.config.StopLossPct)
	if side == types.PositionSideShort {
		return entryPrice.Add(offset)
	}
	return entryPrice.Sub(offset)
}

// TakeProfitPrice returns the target price for an entry at the configured
// percentage.
func (m *Manager) TakeProfitPrice(entryPrice decimal.Decimal, side types.PositionSide) decimal.Decimal {
	offset := entryPrice.Mul(m.config.TakeProfitPct)
	if side == types.PositionSideShort {
		return entryPrice.Sub(offset)
	}
	return entryPrice.Add(offset)
}
