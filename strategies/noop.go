package strategies

import "github.com/culda/skalpit/market"

// Noop never signals. Useful for soak-testing the event loop and
// reconciliation without placing trades.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) OnBar(view market.View) Signal {
	return Signal{Direction: None}
}

func init() {
	Register("noop", func(Config) (Strategy, error) {
		return Noop{}, nil
	})
}
