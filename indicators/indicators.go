// Package indicators provides streaming technical indicators over
// confirmed bars.
package indicators

import "github.com/culda/skalpit/market"

// Indicator computes a single streaming value from confirmed bars.
// Deterministic: the same bar sequence always yields the same value.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "ATR(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next confirmed bar.
	Update(b market.Bar)

	// Ready reports whether Value is meaningful.
	Ready() bool

	// Value returns the current indicator value, or 0 before warmup.
	// Callers should always check Ready first.
	Value() float64
}
