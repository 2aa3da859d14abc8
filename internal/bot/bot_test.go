package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oakmont-labs/tradebot/internal/events"
	"github.com/oakmont-labs/tradebot/internal/exchange"
	"github.com/oakmont-labs/tradebot/internal/portfolio"
	"github.com/oakmont-labs/tradebot/internal/recovery"
	"github.com/oakmont-labs/tradebot/internal/risk"
	"github.com/oakmont-labs/tradebot/internal/strategy"
	"github.com/oakmont-labs/tradebot/internal/validator"
	"github.com/oakmont-labs/tradebot/pkg/types"
)

// scriptedStrategy emits whatever action the test sets.
type scriptedStrategy struct {
	mu     sync.Mutex
	action types.SignalAction
}

func (s *scriptedStrategy) set(action types.SignalAction) {
	s.mu.Lock()
	s.action = action
	s.mu.Unlock()
}

func (s *scriptedStrategy) Name() string                { return "scripted" }
func (s *scriptedStrategy) Description() string         { return "test strategy" }
func (s *scriptedStrategy) Params() map[string]float64  { return nil }
func (s *scriptedStrategy) MinCandles() int             { return 1 }
func (s *scriptedStrategy) Evaluate([]types.OHLCV) (types.SignalAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.action, nil
}

type testHarness struct {
	bot     *TradingBot
	gateway *exchange.PaperGateway
	script  *scriptedStrategy
	bus     *events.Bus
}

func newHarness(t *testing.T, riskCfg risk.Config, gw exchange.Gateway) *testHarness {
	t.Helper()
	logger := zap.NewNop()

	paper := exchange.NewPaperGateway(logger, "paper")
	if gw == nil {
		gw = paper
	}

	rm := risk.NewManager(logger, riskCfg)
	pm := portfolio.NewManager(logger, rm, decimal.NewFromInt(10000))
	bus := events.NewBus(logger, events.BusConfig{NumWorkers: 2, BufferSize: 256})
	t.Cleanup(bus.Stop)

	registry := strategy.NewRegistry(logger)
	script := &scriptedStrategy{action: types.SignalHold}
	registry.Register("scripted", func(map[string]float64) (strategy.Strategy, error) {
		return script, nil
	})

	cfg := DefaultConfig()
	cfg.AutoPauseThreshold = 3
	cfg.DegradedThreshold = 2

	b := New(Options{
		Logger:    logger,
		Config:    cfg,
		Gateway:   gw,
		Portfolio: pm,
		Registry:  registry,
		Bus:       bus,
		BreakerConfig: recovery.BreakerConfig{
			FailureThreshold: 10,
			RecoveryTimeout:  50 * time.Millisecond,
		},
		RetryConfig: recovery.RetryConfig{
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Base:         2,
		},
		RateLimitConfig: recovery.RateLimitConfig{
			MaxCalls: 10000,
			Window:   time.Minute,
		},
	})

	return &testHarness{bot: b, gateway: paper, script: script, bus: bus}
}

func riskConfigForTests() risk.Config {
	cfg := risk.DefaultConfig()
	// Stops at 98 and targets at 110 for a 100 entry.
	cfg.StopLossPct = decimal.RequireFromString("0.02")
	cfg.TakeProfitPct = decimal.RequireFromString("0.10")
	return cfg
}

func (h *testHarness) bindScripted(t *testing.T, symbol string) *Binding {
	t.Helper()
	bind, err := h.bot.AddStrategy("scripted", symbol, nil)
	if err != nil {
		t.Fatalf("AddStrategy failed: %v", err)
	}
	return bind
}

func TestStartStopLifecycle(t *testing.T) {
	h := newHarness(t, riskConfigForTests(), nil)

	if h.bot.State() != types.BotStateStopped {
		t.Fatalf("new bot should be stopped, got %s", h.bot.State())
	}
	if err := h.bot.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if h.bot.State() != types.BotStateRunning {
		t.Errorf("expected running, got %s", h.bot.State())
	}
	// Second start is a no-op.
	if err := h.bot.Start(); err != nil {
		t.Errorf("repeated Start should be a no-op: %v", err)
	}

	if err := h.bot.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if h.bot.State() != types.BotStateStopped {
		t.Errorf("expected stopped, got %s", h.bot.State())
	}
	if err := h.bot.Stop(); err != nil {
		t.Errorf("repeated Stop should be a no-op: %v", err)
	}
}

func TestPauseResumeTransitions(t *testing.T) {
	h := newHarness(t, riskConfigForTests(), nil)

	if err := h.bot.Pause("test"); err == nil {
		t.Error("pause from stopped must fail")
	}

	if err := h.bot.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.bot.Stop()

	if err := h.bot.Pause("test"); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if h.bot.State() != types.BotStatePaused {
		t.Errorf("expected paused, got %s", h.bot.State())
	}
	if err := h.bot.Pause("again"); err == nil {
		t.Error("double pause must fail")
	}
	if err := h.bot.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if err := h.bot.Resume(); err == nil {
		t.Error("resume while running must fail")
	}
}

func TestAddStrategyValidatesParams(t *testing.T) {
	h := newHarness(t, riskConfigForTests(), nil)

	if _, err := h.bot.AddStrategy("ma_crossover", "BTC/USDT", map[string]float64{"fast_period": 50, "slow_period": 10}); err == nil {
		t.Error("invalid params must fail binding")
	}
	if len(h.bot.Bindings()) != 0 {
		t.Error("failed bind must not register")
	}

	bind := h.bindScripted(t, "BTC/USDT")
	if _, err := h.bot.AddStrategy("scripted", "BTC/USDT", nil); err == nil {
		t.Error("duplicate binding must fail")
	}

	if err := h.bot.RemoveStrategy("missing"); err == nil {
		t.Error("removing unknown binding must fail")
	}
	if err := h.bot.RemoveStrategy(bind.ID); err != nil {
		t.Errorf("RemoveStrategy failed: %v", err)
	}
	if len(h.bot.Bindings()) != 0 {
		t.Error("binding should be gone")
	}
}

func TestBuySignalOpensPosition(t *testing.T) {
	h := newHarness(t, riskConfigForTests(), nil)
	h.gateway.SetPrice("BTC/USDT", decimal.NewFromInt(100))
	h.bindScripted(t, "BTC/USDT")
	h.script.set(types.SignalBuy)

	if err := h.bot.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.bot.Stop()

	h.bot.executeCycle(context.Background())

	open := h.bot.Portfolio().OpenPositions()
	if len(open) != 1 {
		t.Fatalf("expected 1 open position, got %d", len(open))
	}
	pos := open[0]
	if !pos.EntryPrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected entry 100, got %s", pos.EntryPrice)
	}
	if !pos.StopLoss.Equal(decimal.NewFromInt(98)) {
		t.Errorf("expected stop 98, got %s", pos.StopLoss)
	}
	if !pos.TakeProfit.Equal(decimal.NewFromInt(110)) {
		t.Errorf("expected target 110, got %s", pos.TakeProfit)
	}

	// A second buy cycle must not stack a duplicate position.
	h.bot.executeCycle(context.Background())
	if got := len(h.bot.Portfolio().OpenPositions()); got != 1 {
		t.Errorf("expected 1 position after repeat buy, got %d", got)
	}
}

func TestPausedBotSkipsEntriesButEvaluates(t *testing.T) {
	h := newHarness(t, riskConfigForTests(), nil)
	h.gateway.SetPrice("BTC/USDT", decimal.NewFromInt(100))
	h.bindScripted(t, "BTC/USDT")
	h.script.set(types.SignalBuy)

	if err := h.bot.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.bot.Stop()
	if err := h.bot.Pause("test"); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}

	h.bot.executeCycle(context.Background())
	if got := len(h.bot.Portfolio().OpenPositions()); got != 0 {
		t.Errorf("paused bot must not enter, got %d positions", got)
	}

	if err := h.bot.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	h.bot.executeCycle(context.Background())
	if got := len(h.bot.Portfolio().OpenPositions()); got != 1 {
		t.Errorf("resumed bot should enter, got %d positions", got)
	}
}

func TestSellSignalClosesPosition(t *testing.T) {
	h := newHarness(t, riskConfigForTests(), nil)
	h.gateway.SetPrice("BTC/USDT", decimal.NewFromInt(100))
	h.bindScripted(t, "BTC/USDT")
	h.script.set(types.SignalBuy)

	if err := h.bot.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.bot.Stop()

	h.bot.executeCycle(context.Background())
	if len(h.bot.Portfolio().OpenPositions()) != 1 {
		t.Fatal("setup: position not opened")
	}

	h.gateway.SetPrice("BTC/USDT", decimal.NewFromInt(104))
	h.script.set(types.SignalSell)
	h.bot.executeCycle(context.Background())

	if got := len(h.bot.Portfolio().OpenPositions()); got != 0 {
		t.Fatalf("expected position closed on sell, %d still open", got)
	}
	closed := h.bot.Portfolio().ClosedPositions()
	if len(closed) != 1 {
		t.Fatalf("expected 1 closed position, got %d", len(closed))
	}
	if !closed[0].RealizedPnL.GreaterThan(decimal.Zero) {
		t.Errorf("expected a gain closing at 104, got %s", closed[0].RealizedPnL)
	}
}

func TestRiskLimitBlocksEntryWithoutPosition(t *testing.T) {
	h := newHarness(t, riskConfigForTests(), nil)
	h.gateway.SetPrice("BTC/USDT", decimal.NewFromInt(100))
	h.bindScripted(t, "BTC/USDT")
	h.script.set(types.SignalBuy)

	limitHit := make(chan events.Event, 1)
	h.bus.Subscribe(events.EventRiskLimitHit, func(e events.Event) {
		select {
		case limitHit <- e:
		default:
		}
	})

	if err := h.bot.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.bot.Stop()

	// Trip the daily loss limit, then signal a buy.
	h.bot.Portfolio().Risk().RecordPnL(decimal.NewFromInt(-600))
	h.bot.executeCycle(context.Background())

	if got := len(h.bot.Portfolio().OpenPositions()); got != 0 {
		t.Fatalf("risk-blocked entry must not open a position, got %d", got)
	}
	select {
	case <-limitHit:
	case <-time.After(2 * time.Second):
		t.Error("expected risk_limit_hit event")
	}
	// A risk block is a decision, not an error.
	if h.bot.tracker.ConsecutiveErrors() != 0 {
		t.Errorf("risk block must not count as an error, got %d", h.bot.tracker.ConsecutiveErrors())
	}
}

// inflatingValidator approves every trade at maximum size.
type inflatingValidator struct{}

func (inflatingValidator) Name() string { return "inflating" }

func (inflatingValidator) Validate(context.Context, validator.Request) (validator.Result, error) {
	return validator.Result{
		Approved:       true,
		Confidence:     decimal.NewFromInt(1),
		SizeMultiplier: decimal.RequireFromString("1.5"),
	}, nil
}

func TestRiskGateAppliesToValidatorScaledAmount(t *testing.T) {
	h := newHarness(t, riskConfigForTests(), nil)
	h.bot.validator = inflatingValidator{}
	h.gateway.SetPrice("BTC/USDT", decimal.NewFromInt(100))
	h.bindScripted(t, "BTC/USDT")
	h.script.set(types.SignalBuy)

	limitHit := make(chan events.Event, 1)
	filled := make(chan events.Event, 1)
	h.bus.Subscribe(events.EventRiskLimitHit, func(e events.Event) {
		select {
		case limitHit <- e:
		default:
		}
	})
	h.bus.Subscribe(events.EventOrderFilled, func(e events.Event) {
		select {
		case filled <- e:
		default:
		}
	})

	if err := h.bot.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.bot.Stop()

	// Sizing yields 10 units (notional 1000, right at the cap); the
	// validator scales it to 15 (notional 1500), which the gate must
	// refuse before any order goes out.
	h.bot.executeCycle(context.Background())

	if got := len(h.bot.Portfolio().OpenPositions()); got != 0 {
		t.Fatalf("scaled entry over the cap must not open a position, got %d", got)
	}
	select {
	case <-limitHit:
	case <-time.After(2 * time.Second):
		t.Error("expected risk_limit_hit event")
	}
	select {
	case <-filled:
		t.Error("no order may be filled for a risk-rejected entry")
	case <-time.After(100 * time.Millisecond):
	}
	if h.bot.tracker.ConsecutiveErrors() != 0 {
		t.Errorf("risk block must not count as an error, got %d", h.bot.tracker.ConsecutiveErrors())
	}
}

// faultyGateway fails every call with a retryable error.
type faultyGateway struct{}

func (faultyGateway) Name() string { return "faulty" }

func (faultyGateway) FetchOHLCV(context.Context, string, types.Timeframe, int) ([]types.OHLCV, error) {
	return nil, &exchange.Error{Kind: exchange.ErrKindConnection, Op: "fetch_ohlcv", Err: errors.New("refused")}
}

func (faultyGateway) FetchTicker(context.Context, string) (types.Ticker, error) {
	return types.Ticker{}, &exchange.Error{Kind: exchange.ErrKindConnection, Op: "fetch_ticker", Err: errors.New("refused")}
}

func (faultyGateway) CreateOrder(context.Context, string, types.OrderSide, decimal.Decimal, types.OrderType) (*types.Order, error) {
	return nil, &exchange.Error{Kind: exchange.ErrKindConnection, Op: "create_order", Err: errors.New("refused")}
}

func TestAutoPauseAfterConsecutiveErrors(t *testing.T) {
	h := newHarness(t, riskConfigForTests(), faultyGateway{})
	h.bindScripted(t, "BTC/USDT")
	h.script.set(types.SignalBuy)

	if err := h.bot.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.bot.Stop()

	// AutoPauseThreshold is 3 in the harness.
	for i := 0; i < 3; i++ {
		if h.bot.State() != types.BotStateRunning {
			t.Fatalf("bot paused early after %d cycles", i)
		}
		h.bot.executeCycle(context.Background())
	}
	if h.bot.State() != types.BotStatePaused {
		t.Fatalf("expected auto-pause after 3 failing cycles, state %s", h.bot.State())
	}

	health := h.bot.GetHealth()
	if health.Status != types.HealthStatusPaused {
		t.Errorf("expected paused health, got %s", health.Status)
	}
	if health.ErrorCounts["connection"] == 0 {
		t.Error("expected connection errors in the counts")
	}
}

func TestErrorIsolationBetweenBindings(t *testing.T) {
	h := newHarness(t, riskConfigForTests(), nil)
	// ETH has a price, BTC does not: the BTC binding fails every cycle.
	h.gateway.SetPrice("ETH/USDT", decimal.NewFromInt(100))
	h.bindScripted(t, "BTC/USDT")
	h.bindScripted(t, "ETH/USDT")
	h.script.set(types.SignalBuy)

	if err := h.bot.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.bot.Stop()

	h.bot.executeCycle(context.Background())

	open := h.bot.Portfolio().OpenPositions()
	if len(open) != 1 || open[0].Symbol != "ETH/USDT" {
		t.Fatalf("healthy binding must trade despite the failing one, open=%v", open)
	}
	if h.bot.tracker.ConsecutiveErrors() == 0 {
		t.Error("failing binding should be tracked")
	}
}

func TestResetErrorsClearsState(t *testing.T) {
	h := newHarness(t, riskConfigForTests(), faultyGateway{})
	h.bindScripted(t, "BTC/USDT")
	h.script.set(types.SignalBuy)

	if err := h.bot.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.bot.Stop()

	h.bot.executeCycle(context.Background())
	if h.bot.tracker.ConsecutiveErrors() == 0 {
		t.Fatal("setup: expected tracked errors")
	}

	h.bot.ResetErrors()
	if h.bot.tracker.ConsecutiveErrors() != 0 {
		t.Error("ResetErrors must clear consecutive errors")
	}
	if h.bot.breaker.State() != recovery.CircuitClosed {
		t.Error("ResetErrors must close the breaker")
	}
}

func TestHealthDegradesWithErrors(t *testing.T) {
	h := newHarness(t, riskConfigForTests(), nil)

	if h.bot.GetHealth().Status != types.HealthStatusStopped {
		t.Errorf("stopped bot must report stopped health")
	}

	if err := h.bot.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.bot.Stop()

	if h.bot.GetHealth().Status != types.HealthStatusHealthy {
		t.Errorf("fresh running bot must be healthy, got %s", h.bot.GetHealth().Status)
	}

	// DegradedThreshold is 2 in the harness.
	h.bot.tracker.Record("internal", "boom")
	h.bot.tracker.Record("internal", "boom")
	if got := h.bot.GetHealth().Status; got != types.HealthStatusDegraded {
		t.Errorf("expected degraded after repeated errors, got %s", got)
	}
}

func TestHealthDegradedPrecedesUnhealthy(t *testing.T) {
	h := newHarness(t, riskConfigForTests(), nil)
	h.bot.config.UnhealthyAfter = time.Millisecond

	if err := h.bot.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.bot.Stop()

	// One error stays below the degraded threshold of 2: staleness alone
	// reports unhealthy.
	h.bot.tracker.Record("internal", "boom")
	time.Sleep(5 * time.Millisecond)
	if got := h.bot.GetHealth().Status; got != types.HealthStatusUnhealthy {
		t.Errorf("expected unhealthy from stale success, got %s", got)
	}

	// Once the error streak crosses the threshold too, degraded wins.
	h.bot.tracker.Record("internal", "boom")
	if got := h.bot.GetHealth().Status; got != types.HealthStatusDegraded {
		t.Errorf("expected degraded to take precedence, got %s", got)
	}
}

// slowGateway delays order creation and aborts it if the call context is
// cancelled, to prove submissions survive Stop.
type slowGateway struct {
	*exchange.PaperGateway
	delay time.Duration
}

func (g *slowGateway) CreateOrder(ctx context.Context, symbol string, side types.OrderSide, amount decimal.Decimal, orderType types.OrderType) (*types.Order, error) {
	select {
	case <-ctx.Done():
		return nil, &exchange.Error{Kind: exchange.ErrKindTimeout, Op: "create_order", Symbol: symbol, Err: ctx.Err()}
	case <-time.After(g.delay):
	}
	return g.PaperGateway.CreateOrder(ctx, symbol, side, amount, orderType)
}

func TestStopWaitsForInflightOrder(t *testing.T) {
	paper := exchange.NewPaperGateway(zap.NewNop(), "paper")
	slow := &slowGateway{PaperGateway: paper, delay: 150 * time.Millisecond}

	h := newHarness(t, riskConfigForTests(), slow)
	h.gateway = paper
	paper.SetPrice("BTC/USDT", decimal.NewFromInt(100))
	h.bindScripted(t, "BTC/USDT")
	h.script.set(types.SignalBuy)

	if err := h.bot.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		h.bot.executeCycle(h.bot.loopCtx)
		close(done)
	}()

	// Let the cycle reach the slow order, then stop the bot.
	time.Sleep(50 * time.Millisecond)
	if err := h.bot.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	<-done

	// The submission was in flight when Stop hit: it must have completed,
	// not been aborted by cancellation.
	if got := len(h.bot.Portfolio().OpenPositions()); got != 1 {
		t.Fatalf("in-flight order should complete through Stop, got %d positions", got)
	}
}

func TestMonitorClosesOnStopAndTarget(t *testing.T) {
	for _, tc := range []struct {
		name   string
		tick   int64
		reason types.CloseReason
		gain   bool
	}{
		{"stop loss at 97", 97, types.CloseReasonStopLoss, false},
		{"take profit at 111", 111, types.CloseReasonTakeProfit, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, riskConfigForTests(), nil)
			h.gateway.SetPrice("BTC/USDT", decimal.NewFromInt(100))
			h.bindScripted(t, "BTC/USDT")
			h.script.set(types.SignalBuy)

			if err := h.bot.Start(); err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			defer h.bot.Stop()

			h.bot.executeCycle(context.Background())
			if len(h.bot.Portfolio().OpenPositions()) != 1 {
				t.Fatal("setup: position not opened")
			}

			// Inside the band nothing triggers.
			h.gateway.SetPrice("BTC/USDT", decimal.NewFromInt(105))
			h.bot.monitorPositions(context.Background())
			if len(h.bot.Portfolio().OpenPositions()) != 1 {
				t.Fatal("position must stay open at 105")
			}

			h.gateway.SetPrice("BTC/USDT", decimal.NewFromInt(tc.tick))
			h.bot.monitorPositions(context.Background())

			if got := len(h.bot.Portfolio().OpenPositions()); got != 0 {
				t.Fatalf("expected close at %d, %d still open", tc.tick, got)
			}
			closed := h.bot.Portfolio().ClosedPositions()
			if len(closed) != 1 {
				t.Fatalf("expected 1 closed position, got %d", len(closed))
			}
			if tc.gain && !closed[0].RealizedPnL.GreaterThan(decimal.Zero) {
				t.Errorf("expected gain, got %s", closed[0].RealizedPnL)
			}
			if !tc.gain && !closed[0].RealizedPnL.LessThan(decimal.Zero) {
				t.Errorf("expected loss, got %s", closed[0].RealizedPnL)
			}
		})
	}
}

// splitGateway serves one symbol from the paper book and fails the other.
type splitGateway struct {
	*exchange.PaperGateway
	failSymbol string
}

func (g *splitGateway) FetchTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	if symbol == g.failSymbol {
		return types.Ticker{}, &exchange.Error{Kind: exchange.ErrKindTimeout, Op: "fetch_ticker", Symbol: symbol, Err: fmt.Errorf("feed down")}
	}
	return g.PaperGateway.FetchTicker(ctx, symbol)
}

func TestMonitorToleratesSingleSymbolFailure(t *testing.T) {
	paper := exchange.NewPaperGateway(zap.NewNop(), "paper")
	split := &splitGateway{PaperGateway: paper, failSymbol: "BTC/USDT"}

	h := newHarness(t, riskConfigForTests(), split)
	h.gateway = paper
	paper.SetPrice("BTC/USDT", decimal.NewFromInt(100))
	paper.SetPrice("ETH/USDT", decimal.NewFromInt(100))
	h.bindScripted(t, "BTC/USDT")
	h.bindScripted(t, "ETH/USDT")
	h.script.set(types.SignalBuy)

	if err := h.bot.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.bot.Stop()

	h.bot.executeCycle(context.Background())
	if len(h.bot.Portfolio().OpenPositions()) != 2 {
		t.Fatal("setup: expected 2 open positions")
	}

	// ETH crashes through its stop; the BTC feed is down but must not
	// block the ETH close.
	paper.SetPrice("ETH/USDT", decimal.NewFromInt(90))
	h.bot.monitorPositions(context.Background())

	open := h.bot.Portfolio().OpenPositions()
	if len(open) != 1 || open[0].Symbol != "BTC/USDT" {
		t.Fatalf("expected only BTC/USDT to remain open, got %v", open)
	}
}
