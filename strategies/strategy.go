// Package strategies defines the signal service consumed by the
// engine. A strategy reads confirmed bar history and answers with a
// direction and stop/take distances; everything else (sizing, order
// placement, reconciliation) is the engine's job.
package strategies

import (
	"fmt"
	"strings"

	"github.com/culda/skalpit/market"
)

// Direction is the signal's verdict for the next trade.
type Direction int

const (
	None Direction = iota
	Long
	Short
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "none"
	}
}

// Signal carries the strategy's decision. Stop and Take are absolute
// price distances from the entry; both must be positive when Direction
// is not None.
type Signal struct {
	Direction Direction
	Stop      float64
	Take      float64
}

// Strategy is evaluated once per confirmed signal-frame bar.
type Strategy interface {
	Name() string
	OnBar(view market.View) Signal
}

var registry = make(map[string]func(Config) (Strategy, error))

// Config passes tunables through to strategy constructors.
type Config struct {
	Timeframe  market.Timeframe
	FastPeriod int
	SlowPeriod int
	ATRPeriod  int
	StopATR    float64
	TakeATR    float64
}

// Register makes a strategy constructor available by name.
func Register(name string, build func(Config) (Strategy, error)) {
	registry[name] = build
}

// ByName builds a registered strategy.
func ByName(name string, cfg Config) (Strategy, error) {
	build, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return build(cfg)
}

// Names lists the registered strategy names.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}
