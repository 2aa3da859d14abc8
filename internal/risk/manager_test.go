package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oakmont-labs/tradebot/pkg/types"
)

func newTestManager() *Manager {
	return NewManager(zap.NewNop(), DefaultConfig())
}

func TestPositionSizeRiskBased(t *testing.T) {
	m := newTestManager()

	// Balance 10000, 2% risk = 200 at risk. Entry 100, stop 97, distance 3.
	// Size = 200/3 = 66.67 but notional 6667 > 1000 cap, so cap to 1000/100 = 10.
	size, err := m.PositionSize(decimal.NewFromInt(10000), decimal.NewFromInt(100), decimal.NewFromInt(97))
	if err != nil {
		t.Fatalf("PositionSize failed: %v", err)
	}
	if !size.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected capped size 10, got %s", size)
	}
}

func TestPositionSizeUncapped(t *testing.T) {
	m := newTestManager()

	// Balance 1000, 2% = 20 at risk. Entry 100, stop 90, distance 10.
	// Size = 2, notional 200, under the cap.
	size, err := m.PositionSize(decimal.NewFromInt(1000), decimal.NewFromInt(100), decimal.NewFromInt(90))
	if err != nil {
		t.Fatalf("PositionSize failed: %v", err)
	}
	if !size.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected size 2, got %s", size)
	}
}

func TestPositionSizeRejectsDegenerateInputs(t *testing.T) {
	m := newTestManager()

	if _, err := m.PositionSize(decimal.NewFromInt(1000), decimal.NewFromInt(100), decimal.NewFromInt(100)); err == nil {
		t.Error("expected error when stop equals entry")
	}
	if _, err := m.PositionSize(decimal.NewFromInt(1000), decimal.Zero, decimal.NewFromInt(90)); err == nil {
		t.Error("expected error for zero entry price")
	}
}

func TestCanOpenLimits(t *testing.T) {
	m := newTestManager()

	if ok, _ := m.CanOpen(0, decimal.NewFromInt(500)); !ok {
		t.Error("expected open allowed under limits")
	}
	if ok, reason := m.CanOpen(5, decimal.NewFromInt(500)); ok {
		t.Error("expected rejection at max open positions")
	} else if reason == "" {
		t.Error("rejection should carry a reason")
	}
	if ok, _ := m.CanOpen(0, decimal.NewFromInt(1001)); ok {
		t.Error("expected rejection over max position value")
	}
}

func TestDailyLossLimitBlocksEntries(t *testing.T) {
	m := newTestManager()

	m.RecordPnL(decimal.NewFromInt(-499))
	if ok, _ := m.CanOpen(0, decimal.NewFromInt(100)); !ok {
		t.Error("expected open allowed just under daily loss limit")
	}

	m.RecordPnL(decimal.NewFromInt(-1))
	if ok, reason := m.CanOpen(0, decimal.NewFromInt(100)); ok {
		t.Error("expected rejection at daily loss limit")
	} else if reason == "" {
		t.Error("rejection should carry a reason")
	}

	m.ResetDaily()
	if ok, _ := m.CanOpen(0, decimal.NewFromInt(100)); !ok {
		t.Error("expected open allowed after daily reset")
	}
}

func TestDailyPnLAccumulates(t *testing.T) {
	m := newTestManager()

	m.RecordPnL(decimal.NewFromInt(100))
	m.RecordPnL(decimal.NewFromInt(-30))
	if pnl := m.DailyPnL(); !pnl.Equal(decimal.NewFromInt(70)) {
		t.Errorf("expected daily pnl 70, got %s", pnl)
	}
}

func TestStopAndTargetPrices(t *testing.T) {
	m := newTestManager()
	entry := decimal.NewFromInt(100)

	if sl := m.StopLossPrice(entry, types.PositionSideLong); !sl.Equal(decimal.NewFromInt(97)) {
		t.Errorf("expected long stop 97, got %s", sl)
	}
	if tp := m.TakeProfitPrice(entry, types.PositionSideLong); !tp.Equal(decimal.NewFromInt(106)) {
		t.Errorf("expected long target 106, got %s", tp)
	}
	if sl := m.StopLossPrice(entry, types.PositionSideShort); !sl.Equal(decimal.NewFromInt(103)) {
		t.Errorf("expected short stop 103, got %s", sl)
	}
	if tp := m.TakeProfitPrice(entry, types.PositionSideShort); !tp.Equal(decimal.NewFromInt(94)) {
		t.Errorf("expected short target 94, got %s", tp)
	}
}

func TestConfigValidate(t *testing.T) {
	good := DefaultConfig()
	if err := good.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	bad := DefaultConfig()
	bad.RiskPerTrade = decimal.Zero
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero riskPerTrade")
	}

	bad = DefaultConfig()
	bad.MaxOpenPositions = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero maxOpenPositions")
	}

	bad = DefaultConfig()
	bad.StopLossPct = decimal.NewFromInt(1)
	if err := bad.Validate(); err == nil {
		t.Error("expected error for stopLossPct >= 1")
	}
}
