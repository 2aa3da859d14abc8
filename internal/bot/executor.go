package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oakmont-labs/tradebot/internal/events"
	"github.com/oakmont-labs/tradebot/internal/portfolio"
	"github.com/oakmont-labs/tradebot/internal/validator"
	"github.com/oakmont-labs/tradebot/pkg/types"
)

// executionLoop drives the strategy evaluation cycle.
func (b *TradingBot) executionLoop() {
	defer b.loopWg.Done()

	ticker := time.NewTicker(b.config.ExecutionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.loopCtx.Done():
			return
		case <-ticker.C:
			b.executeCycle(b.loopCtx)
		}
	}
}

// executeCycle runs every binding through the pipeline. A failing binding
// is recorded and skipped; it never blocks the others. A cycle with no
// failed bindings counts as a success for the error tracker.
func (b *TradingBot) executeCycle(ctx context.Context) {
	start := time.Now()
	bindings := b.Bindings()
	if len(bindings) == 0 {
		return
	}

	failures := 0
	for _, bind := range bindings {
		if ctx.Err() != nil {
			return
		}
		if err := b.processBinding(ctx, bind); err != nil {
			failures++
			category := errorCategory(err)
			b.logger.Error("binding cycle failed",
				zap.String("strategy", bind.StrategyName),
				zap.String("symbol", bind.Symbol),
				zap.String("category", category),
				zap.Error(err))
			b.recordError(category, err)
		}
	}

	outcome := "ok"
	if failures > 0 {
		outcome = "error"
	} else {
		b.tracker.RecordSuccess()
	}
	if b.metrics != nil {
		b.metrics.CyclesTotal.WithLabelValues(outcome).Inc()
		b.metrics.CycleDuration.Observe(time.Since(start).Seconds())
		b.metrics.BreakerState.Set(breakerStateValue(string(b.breaker.State())))
	}
}

// processBinding runs one strategy binding: fetch candles, evaluate,
// act on the signal.
func (b *TradingBot) processBinding(ctx context.Context, bind *Binding) error {
	candles, err := b.fetchCandles(ctx, bind.Symbol)
	if err != nil {
		return fmt.Errorf("fetch candles for %s: %w", bind.Symbol, err)
	}

	action, err := bind.strategy.Evaluate(candles)
	if err != nil {
		return fmt.Errorf("evaluate %s on %s: %w", bind.StrategyName, bind.Symbol, err)
	}

	switch action {
	case types.SignalBuy:
		return b.handleBuy(ctx, bind, candles)
	case types.SignalSell:
		return b.handleSell(ctx, bind)
	default:
		return nil
	}
}

// fetchCandles pulls market data through the recovery toolkit.
func (b *TradingBot) fetchCandles(ctx context.Context, symbol string) ([]types.OHLCV, error) {
	var candles []types.OHLCV
	err := b.callExternal(ctx, func(ctx context.Context) error {
		var opErr error
		candles, opErr = b.gateway.FetchOHLCV(ctx, symbol, b.config.Timeframe, b.config.CandleLimit)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return candles, nil
}

// handleBuy opens a long position for the binding. Entries are gated on
// the running state: a paused bot evaluates but does not enter. Risk
// checks run before the order goes out, so a limit rejection costs no
// exchange call.
func (b *TradingBot) handleBuy(ctx context.Context, bind *Binding, candles []types.OHLCV) error {
	if b.State() != types.BotStateRunning {
		b.logger.Debug("entry skipped, bot not running",
			zap.String("symbol", bind.Symbol),
			zap.String("strategy", bind.StrategyName))
		return nil
	}
	if b.portfolio.HasOpen(bind.Symbol, bind.StrategyName) {
		return nil
	}

	price := candles[len(candles)-1].Close
	balance := b.portfolio.Balance()
	stopPrice := b.portfolio.Risk().StopLossPrice(price, types.PositionSideLong)

	amount, err := b.portfolio.Risk().PositionSize(balance, price, stopPrice)
	if err != nil {
		return fmt.Errorf("size position: %w", err)
	}

	amount, approved := validator.Apply(ctx, b.logger, b.validator, validator.Request{
		Symbol:   bind.Symbol,
		Action:   types.SignalBuy,
		Amount:   amount,
		Price:    price,
		Strategy: bind.StrategyName,
		Candles:  candles,
	})
	if !approved {
		return nil
	}

	// Gate on the final amount: the validator may have scaled it up, and
	// once the order is submitted a fill is always recorded.
	if ok, reason := b.portfolio.Risk().CanOpen(len(b.portfolio.OpenPositions()), price.Mul(amount)); !ok {
		b.publish(events.EventRiskLimitHit, map[string]any{
			"symbol": bind.Symbol,
			"reason": reason,
		})
		b.logger.Warn("entry blocked by risk limits",
			zap.String("symbol", bind.Symbol),
			zap.String("reason", reason))
		return nil
	}

	b.publish(events.EventSignalBuy, map[string]any{
		"symbol":   bind.Symbol,
		"strategy": bind.StrategyName,
		"price":    price.String(),
		"amount":   amount.String(),
	})

	order, err := b.submitOrder(ctx, bind.Symbol, types.OrderSideBuy, amount)
	if err != nil {
		b.publish(events.EventOrderFailed, map[string]any{
			"symbol": bind.Symbol,
			"side":   string(types.OrderSideBuy),
			"error":  err.Error(),
		})
		return fmt.Errorf("submit buy order: %w", err)
	}

	pos, err := b.portfolio.OpenPosition(portfolio.OpenRequest{
		Symbol:       bind.Symbol,
		Side:         types.PositionSideLong,
		Amount:       order.FilledAmount,
		EntryPrice:   order.AvgFillPrice,
		Fee:          order.Fee,
		StrategyName: bind.StrategyName,
	})
	if err != nil {
		return fmt.Errorf("record position: %w", err)
	}

	b.publish(events.EventPositionOpened, map[string]any{
		"position_id": pos.ID,
		"symbol":      pos.Symbol,
		"entry":       pos.EntryPrice.String(),
		"amount":      pos.Amount.String(),
		"strategy":    pos.StrategyName,
	})
	return nil
}

// handleSell closes the binding's open position on a sell signal. Closes
// are allowed even while paused: pause gates entries, not exits.
func (b *TradingBot) handleSell(ctx context.Context, bind *Binding) error {
	var target *types.Position
	for _, pos := range b.portfolio.OpenPositions() {
		if pos.Symbol == bind.Symbol && pos.StrategyName == bind.StrategyName {
			target = pos
			break
		}
	}
	if target == nil {
		return nil
	}

	b.publish(events.EventSignalSell, map[string]any{
		"symbol":   bind.Symbol,
		"strategy": bind.StrategyName,
	})
	_, err := b.closePosition(ctx, target, types.CloseReasonSignal)
	return err
}

// ClosePositionManual closes an open position at market on operator
// request, regardless of lifecycle state.
func (b *TradingBot) ClosePositionManual(ctx context.Context, positionID string) (*types.Position, error) {
	pos, ok := b.portfolio.Position(positionID)
	if !ok {
		return nil, fmt.Errorf("bot: no open position %s", positionID)
	}
	return b.closePosition(ctx, pos, types.CloseReasonManual)
}

// closePosition submits the closing order and settles the position.
func (b *TradingBot) closePosition(ctx context.Context, pos *types.Position, reason types.CloseReason) (*types.Position, error) {
	side := types.OrderSideSell
	if pos.Side == types.PositionSideShort {
		side = types.OrderSideBuy
	}

	order, err := b.submitOrder(ctx, pos.Symbol, side, pos.Amount)
	if err != nil {
		b.publish(events.EventOrderFailed, map[string]any{
			"symbol": pos.Symbol,
			"side":   string(side),
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("submit close order: %w", err)
	}

	closed, err := b.portfolio.ClosePosition(pos.ID, order.AvgFillPrice, order.Fee, reason)
	if err != nil {
		return nil, fmt.Errorf("settle position: %w", err)
	}

	b.publish(events.EventPositionClosed, map[string]any{
		"position_id":  closed.ID,
		"symbol":       closed.Symbol,
		"exit":         order.AvgFillPrice.String(),
		"realized_pnl": closed.RealizedPnL.String(),
		"reason":       string(reason),
	})
	return closed, nil
}

// submitOrder places an order through the recovery toolkit. The submission
// is detached from loop cancellation so a Stop() never abandons an order
// mid-flight; the in-flight group lets Stop wait for completion instead.
func (b *TradingBot) submitOrder(ctx context.Context, symbol string, side types.OrderSide, amount decimal.Decimal) (*types.Order, error) {
	b.inflightWg.Add(1)
	defer b.inflightWg.Done()

	detached := context.WithoutCancel(ctx)

	var order *types.Order
	err := b.callExternal(detached, func(ctx context.Context) error {
		var opErr error
		order, opErr = b.gateway.CreateOrder(ctx, symbol, side, amount, types.OrderTypeMarket)
		return opErr
	})

	status := "filled"
	if err != nil {
		status = "failed"
	}
	if b.metrics != nil {
		b.metrics.OrdersTotal.WithLabelValues(string(side), status).Inc()
	}
	if err != nil {
		return nil, err
	}

	b.publish(events.EventOrderFilled, map[string]any{
		"order_id": order.ID,
		"symbol":   order.Symbol,
		"side":     string(order.Side),
		"amount":   order.FilledAmount.String(),
		"price":    order.AvgFillPrice.String(),
	})
	return order, nil
}

func breakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half_open":
		return 1
	default:
		return 0
	}
}
