// Package portfolio tracks open positions, balance and realized P&L. The
// manager owns the risk manager: opens take their stop and target from its
// config, and every close feeds realized P&L back into the daily limits.
package portfolio

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oakmont-labs/tradebot/internal/risk"
	"github.com/oakmont-labs/tradebot/pkg/types"
	"github.com/oakmont-labs/tradebot/pkg/utils"
)

// Stats is a point-in-time portfolio summary.
type Stats struct {
	Balance       decimal.Decimal `json:"balance"`
	Equity        decimal.Decimal `json:"equity"`
	OpenPositions int             `json:"openPositions"`
	TotalTrades   int             `json:"totalTrades"`
	WinningTrades int             `json:"winningTrades"`
	RealizedPnL   decimal.Decimal `json:"realizedPnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
	TotalFees     decimal.Decimal `json:"totalFees"`
	DailyPnL      decimal.Decimal `json:"dailyPnl"`
	WinRate       decimal.Decimal `json:"winRate"`
	ProfitFactor  decimal.Decimal `json:"profitFactor"`
}

// Manager is the portfolio bookkeeper. Safe for concurrent use.
type Manager struct {
	logger *zap.Logger
	risk   *risk.Manager

	mu          sync.RWMutex
	balance     decimal.Decimal
	positions   map[string]*types.Position // by position ID
	closed      []*types.Position
	realizedPnL decimal.Decimal
	totalFees   decimal.Decimal
	wins        int
}

// NewManager creates a portfolio manager with the given starting balance.
func NewManager(logger *zap.Logger, riskManager *risk.Manager, initialBalance decimal.Decimal) *Manager {
	return &Manager{
		logger:      logger.Named("portfolio"),
		risk:        riskManager,
		balance:     initialBalance,
		positions:   make(map[string]*types.Position),
		realizedPnL: decimal.Zero,
		totalFees:   decimal.Zero,
	}
}

// Risk exposes the owned risk manager.
func (m *Manager) Risk() *risk.Manager { return m.risk }

// OpenRequest describes a position to open.
type OpenRequest struct {
	Symbol       string
	Side         types.PositionSide
	Amount       decimal.Decimal
	EntryPrice   decimal.Decimal
	Fee          decimal.Decimal
	StrategyName string
}

// OpenPosition records a new position, deriving its stop and target from
// the risk configuration. Risk gating happens upstream before the order is
// submitted: a filled order must always be recorded, so this path refuses
// only malformed or duplicate requests. The entry fee is deducted from the
// balance immediately.
func (m *Manager) OpenPosition(req OpenRequest) (*types.Position, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("portfolio: amount must be positive, got %s", req.Amount)
	}
	if req.EntryPrice.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("portfolio: entry price must be positive, got %s", req.EntryPrice)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasOpenLocked(req.Symbol, req.StrategyName) {
		return nil, fmt.Errorf("portfolio: %s already has an open position for strategy %s", req.Symbol, req.StrategyName)
	}

	pos := &types.Position{
		ID:            uuid.New().String(),
		Symbol:        req.Symbol,
		Side:          req.Side,
		Amount:        req.Amount,
		EntryPrice:    req.EntryPrice,
		CurrentPrice:  req.EntryPrice,
		StopLoss:      m.risk.StopLossPrice(req.EntryPrice, req.Side),
		TakeProfit:    m.risk.TakeProfitPrice(req.EntryPrice, req.Side),
		StrategyName:  req.StrategyName,
		IsOpen:        true,
		OpenedAt:      time.Now(),
		UnrealizedPnL: decimal.Zero,
		RealizedPnL:   decimal.Zero,
		Fees:          req.Fee,
	}
	m.positions[pos.ID] = pos
	m.balance = m.balance.Sub(req.Fee)
	m.totalFees = m.totalFees.Add(req.Fee)

	m.logger.Info("position opened",
		zap.String("id", pos.ID),
		zap.String("symbol", pos.Symbol),
		zap.String("side", string(pos.Side)),
		zap.String("amount", pos.Amount.String()),
		zap.String("entry", pos.EntryPrice.String()),
		zap.String("stop_loss", pos.StopLoss.String()),
		zap.String("take_profit", pos.TakeProfit.String()),
		zap.String("strategy", pos.StrategyName))

	cp := *pos
	return &cp, nil
}

// ClosePosition settles an open position at the given exit price. Realized
// P&L is side-signed price movement times amount minus total fees, and is
// applied to both the balance and the daily risk counters.
func (m *Manager) ClosePosition(positionID string, exitPrice, exitFee decimal.Decimal, reason types.CloseReason) (*types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[positionID]
	if !ok {
		return nil, fmt.Errorf("portfolio: no open position %s", positionID)
	}

	gross := exitPrice.Sub(pos.EntryPrice).Mul(pos.Amount).Mul(pos.Side.Sign())
	pos.Fees = pos.Fees.Add(exitFee)
	pos.RealizedPnL = gross.Sub(pos.Fees)
	pos.CurrentPrice = exitPrice
	pos.UnrealizedPnL = decimal.Zero
	pos.IsOpen = false
	now := time.Now()
	pos.ClosedAt = &now

	delete(m.positions, positionID)
	m.closed = append(m.closed, pos)

	m.balance = m.balance.Add(gross).Sub(exitFee)
	m.realizedPnL = m.realizedPnL.Add(pos.RealizedPnL)
	m.totalFees = m.totalFees.Add(exitFee)
	if pos.RealizedPnL.GreaterThan(decimal.Zero) {
		m.wins++
	}

	m.risk.RecordPnL(pos.RealizedPnL)

	m.logger.Info("position closed",
		zap.String("id", pos.ID),
		zap.String("symbol", pos.Symbol),
		zap.String("exit", exitPrice.String()),
		zap.String("realized_pnl", pos.RealizedPnL.String()),
		zap.String("reason", string(reason)))

	cp := *pos
	return &cp, nil
}

// UpdatePrice refreshes unrealized P&L for all open positions on a symbol
// and returns the positions whose stop-loss or take-profit triggered. The
// returned positions are detached copies: callers read them without the
// manager lock while other goroutines keep mutating the live structs.
func (m *Manager) UpdatePrice(symbol string, price decimal.Decimal) []*types.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	var triggered []*types.Position
	for _, pos := range m.positions {
		if pos.Symbol != symbol {
			continue
		}
		pos.UpdatePnL(price)
		if hit, _ := pos.ShouldClose(); hit {
			cp := *pos
			triggered = append(triggered, &cp)
		}
	}
	return triggered
}

// Position returns a copy of an open position by ID.
func (m *Manager) Position(id string) (*types.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.positions[id]
	if !ok {
		return nil, false
	}
	cp := *pos
	return &cp, true
}

// OpenPositions returns a snapshot copy of all open positions.
func (m *Manager) OpenPositions() []*types.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		cp := *pos
		out = append(out, &cp)
	}
	return out
}

// ClosedPositions returns a snapshot copy of the closed-position history.
func (m *Manager) ClosedPositions() []*types.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Position, 0, len(m.closed))
	for _, pos := range m.closed {
		cp := *pos
		out = append(out, &cp)
	}
	return out
}

// HasOpen reports whether a symbol has an open position for a strategy.
func (m *Manager) HasOpen(symbol, strategyName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasOpenLocked(symbol, strategyName)
}

func (m *Manager) hasOpenLocked(symbol, strategyName string) bool {
	for _, pos := range m.positions {
		if pos.Symbol == symbol && pos.StrategyName == strategyName {
			return true
		}
	}
	return false
}

// Balance returns the current cash balance.
func (m *Manager) Balance() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balance
}

// GetStats returns a portfolio summary. Equity is balance plus the sum of
// unrealized P&L across open positions.
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	unrealized := decimal.Zero
	for _, pos := range m.positions {
		unrealized = unrealized.Add(pos.UnrealizedPnL)
	}

	pnls := make([]decimal.Decimal, len(m.closed))
	for i, pos := range m.closed {
		pnls[i] = pos.RealizedPnL
	}

	return Stats{
		Balance:       m.balance,
		Equity:        m.balance.Add(unrealized),
		OpenPositions: len(m.positions),
		TotalTrades:   len(m.closed),
		WinningTrades: m.wins,
		RealizedPnL:   m.realizedPnL,
		UnrealizedPnL: unrealized,
		TotalFees:     m.totalFees,
		DailyPnL:      m.risk.DailyPnL(),
		WinRate:       utils.CalculateWinRate(pnls),
		ProfitFactor:  utils.CalculateProfitFactor(pnls),
	}
}
