package bot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/oakmont-labs/tradebot/pkg/types"
)

// monitorLoop sweeps open positions for stop-loss and take-profit hits.
// It runs in every non-stopped state: a paused bot still protects its
// open positions.
func (b *TradingBot) monitorLoop() {
	defer b.loopWg.Done()

	ticker := time.NewTicker(b.config.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.loopCtx.Done():
			return
		case <-ticker.C:
			b.monitorPositions(b.loopCtx)
		}
	}
}

// monitorPositions refreshes prices for every symbol with exposure and
// closes positions whose stop or target triggered. Monitoring errors are
// tracked but never auto-close anything: a failed price fetch leaves the
// position as it was.
func (b *TradingBot) monitorPositions(ctx context.Context) {
	symbols := make(map[string]struct{})
	for _, pos := range b.portfolio.OpenPositions() {
		symbols[pos.Symbol] = struct{}{}
	}
	if len(symbols) == 0 {
		return
	}

	for symbol := range symbols {
		if ctx.Err() != nil {
			return
		}

		ticker, err := b.fetchTicker(ctx, symbol)
		if err != nil {
			category := errorCategory(err)
			b.logger.Warn("position monitor fetch failed",
				zap.String("symbol", symbol),
				zap.String("category", category),
				zap.Error(err))
			b.recordError(category, err)
			continue
		}

		triggered := b.portfolio.UpdatePrice(symbol, ticker.Last)
		for _, pos := range triggered {
			_, reason := pos.ShouldClose()
			b.logger.Info("exit trigger hit",
				zap.String("position_id", pos.ID),
				zap.String("symbol", pos.Symbol),
				zap.String("price", ticker.Last.String()),
				zap.String("reason", string(reason)))
			if _, err := b.closePosition(ctx, pos, reason); err != nil {
				category := errorCategory(err)
				b.logger.Error("triggered close failed",
					zap.String("position_id", pos.ID),
					zap.String("category", category),
					zap.Error(err))
				b.recordError(category, err)
			}
		}
	}

	if b.metrics != nil {
		b.metrics.OpenPositions.Set(float64(len(b.portfolio.OpenPositions())))
	}
}

// fetchTicker pulls a quote through the recovery toolkit.
func (b *TradingBot) fetchTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	var ticker types.Ticker
	err := b.callExternal(ctx, func(ctx context.Context) error {
		var opErr error
		ticker, opErr = b.gateway.FetchTicker(ctx, symbol)
		return opErr
	})
	return ticker, err
}

// snapshotLoop periodically logs the portfolio summary and refreshes the
// portfolio gauges.
func (b *TradingBot) snapshotLoop() {
	defer b.loopWg.Done()

	ticker := time.NewTicker(b.config.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.loopCtx.Done():
			return
		case <-ticker.C:
			b.logSnapshot()
		}
	}
}

func (b *TradingBot) logSnapshot() {
	stats := b.portfolio.GetStats()
	b.logger.Info("portfolio snapshot",
		zap.String("balance", stats.Balance.String()),
		zap.String("equity", stats.Equity.String()),
		zap.Int("open_positions", stats.OpenPositions),
		zap.Int("total_trades", stats.TotalTrades),
		zap.String("realized_pnl", stats.RealizedPnL.String()),
		zap.String("unrealized_pnl", stats.UnrealizedPnL.String()),
		zap.String("daily_pnl", stats.DailyPnL.String()))

	if b.metrics != nil {
		balance, _ := stats.Balance.Float64()
		realized, _ := stats.RealizedPnL.Float64()
		b.metrics.Balance.Set(balance)
		b.metrics.RealizedPnL.Set(realized)
		b.metrics.OpenPositions.Set(float64(stats.OpenPositions))
		if b.bus != nil {
			b.metrics.EventsDropped.Set(float64(b.bus.GetStats().Dropped))
		}
	}
}
