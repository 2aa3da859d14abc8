package strategy

import "github.com/shopspring/decimal"

// sma computes the simple moving average of the last period closes ending
// at index end (inclusive). Callers guarantee enough candles.
func sma(closes []decimal.Decimal, end, period int) decimal.Decimal {
	sum := decimal.Zero
	for i := end - period + 1; i <= end; i++ {
		sum = sum.Add(closes[i])
	}
	return sum.Div(decimal.NewFromInt(int64(period)))
}

// rsi computes the Wilder RSI over the last period changes ending at the
// final close. Returns 50 when there is no movement at all.
func rsi(closes []decimal.Decimal, period int) decimal.Decimal {
	gains := decimal.Zero
	losses := decimal.Zero
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		change := closes[i].Sub(closes[i-1])
		if change.GreaterThan(decimal.Zero) {
			gains = gains.Add(change)
		} else {
			losses = losses.Add(change.Neg())
		}
	}

	if losses.IsZero() {
		if gains.IsZero() {
			return decimal.NewFromInt(50)
		}
		return decimal.NewFromInt(100)
	}

	rs := gains.Div(losses)
	hundred := decimal.NewFromInt(100)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}
