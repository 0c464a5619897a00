package strategies

import (
	"fmt"
	"time"

	"github.com/culda/skalpit/indicators"
	"github.com/culda/skalpit/market"
)

// EMAATR signals on a fast/slow EMA cross of the signal timeframe and
// sizes its stop and take-profit distances as ATR multiples, the same
// shape as the original scalping setup.
type EMAATR struct {
	tf      market.Timeframe
	fast    *indicators.ExponentialMA
	slow    *indicators.ExponentialMA
	atr     *indicators.ATR
	stopATR float64
	takeATR float64

	lastSeen  time.Time
	prevDelta float64
	hasPrev   bool
}

// NewEMAATR validates periods and multiples.
func NewEMAATR(cfg Config) (*EMAATR, error) {
	if cfg.FastPeriod <= 0 || cfg.SlowPeriod <= 0 || cfg.FastPeriod >= cfg.SlowPeriod {
		return nil, fmt.Errorf("ema-atr: need 0 < fast < slow, got %d/%d", cfg.FastPeriod, cfg.SlowPeriod)
	}
	if cfg.ATRPeriod <= 0 {
		return nil, fmt.Errorf("ema-atr: atr period must be positive, got %d", cfg.ATRPeriod)
	}
	if cfg.StopATR <= 0 || cfg.TakeATR <= 0 {
		return nil, fmt.Errorf("ema-atr: stop/take multiples must be positive, got %.2f/%.2f", cfg.StopATR, cfg.TakeATR)
	}
	return &EMAATR{
		tf:      cfg.Timeframe,
		fast:    indicators.NewEMA(cfg.FastPeriod),
		slow:    indicators.NewEMA(cfg.SlowPeriod),
		atr:     indicators.NewATR(cfg.ATRPeriod),
		stopATR: cfg.StopATR,
		takeATR: cfg.TakeATR,
	}, nil
}

func (s *EMAATR) Name() string { return "ema-atr" }

// OnBar feeds any newly confirmed bars into the streaming indicators,
// then reports a signal only on the bar where fast crosses slow.
func (s *EMAATR) OnBar(view market.View) Signal {
	advanced := false
	for _, b := range view.Confirmed(s.tf) {
		if !b.Start.After(s.lastSeen) {
			continue
		}
		// Capture the delta before this bar so a cross is detected
		// against the previous confirmed bar.
		if s.fast.Ready() && s.slow.Ready() {
			s.prevDelta = s.fast.Value() - s.slow.Value()
			s.hasPrev = true
		}
		s.fast.Update(b)
		s.slow.Update(b)
		s.atr.Update(b)
		s.lastSeen = b.Start
		advanced = true
	}

	if !advanced || !s.hasPrev || !s.fast.Ready() || !s.slow.Ready() || !s.atr.Ready() {
		return Signal{Direction: None}
	}

	atr := s.atr.Value()
	if atr <= 0 {
		return Signal{Direction: None}
	}

	delta := s.fast.Value() - s.slow.Value()
	switch {
	case delta > 0 && s.prevDelta <= 0:
		return Signal{Direction: Long, Stop: s.stopATR * atr, Take: s.takeATR * atr}
	case delta < 0 && s.prevDelta >= 0:
		return Signal{Direction: Short, Stop: s.stopATR * atr, Take: s.takeATR * atr}
	default:
		return Signal{Direction: None}
	}
}

func init() {
	Register("ema-atr", func(cfg Config) (Strategy, error) {
		return NewEMAATR(cfg)
	})
}
