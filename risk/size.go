package risk

import (
	"errors"
	"math"
)

// ErrInvalidRiskInput rejects sizing requests that cannot produce a
// tradable quantity: non-positive balance or risk, a stop equal to the
// entry (zero stop distance), or a size that truncates to zero at the
// instrument's quantity precision.
var ErrInvalidRiskInput = errors.New("risk: invalid sizing input")

// DefaultPrecision is the quantity precision (decimal places) applied
// when the instrument does not specify one.
const DefaultPrecision = 8

// Size computes the position quantity for a stop-risk budget at the
// default precision. See SizeAt.
func Size(balance, riskPct, entry, stop float64) (float64, error) {
	return SizeAt(balance, riskPct, entry, stop, DefaultPrecision)
}

// SizeAt returns a quantity such that losing the full stop distance
// costs approximately riskPct percent of balance:
//
//	qty = balance * (riskPct/100) / |entry - stop|
//
// The result is truncated toward zero at the given precision. This is
// the single rounding policy for the whole engine: sizes are never
// rounded up, so realized risk never exceeds the budget.
func SizeAt(balance, riskPct, entry, stop float64, precision int) (float64, error) {
	if balance <= 0 || riskPct <= 0 {
		return 0, ErrInvalidRiskInput
	}
	dist := math.Abs(entry - stop)
	if dist == 0 {
		return 0, ErrInvalidRiskInput
	}
	if precision < 0 {
		precision = DefaultPrecision
	}

	qty := balance * (riskPct / 100) / dist

	pow := math.Pow(10, float64(precision))
	qty = math.Trunc(qty*pow) / pow
	if qty <= 0 {
		return 0, ErrInvalidRiskInput
	}
	return qty, nil
}

// RR returns the reward-to-risk ratio of a planned trade, or 0 when the
// stop distance is zero.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(takeProfit-entry) / risk
}
