package market

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// View is the read-only bar history handed to signal evaluation.
type View interface {
	// Confirmed returns the confirmed bars for a timeframe, oldest first.
	Confirmed(tf Timeframe) []Bar
	// Forming returns the still-forming bar for a timeframe, if any.
	Forming(tf Timeframe) (Bar, bool)
}

// ConfirmFunc is invoked after a bar is confirmed. series holds the
// freshly confirmed bar as its last confirmed element with the new
// forming bar on top.
type ConfirmFunc func(tf Timeframe, series *Series)

// Aggregator fans a kline tick stream out into one Series per
// timeframe and fires the confirm callback on every bar transition.
// It is owned by the engine's event loop; no locking.
type Aggregator struct {
	series    map[Timeframe]*Series
	frames    []Timeframe
	onConfirm ConfirmFunc
	log       *logrus.Entry
}

// NewAggregator builds a series per timeframe. onConfirm may be nil.
func NewAggregator(frames []Timeframe, capacity int, onConfirm ConfirmFunc, log *logrus.Entry) *Aggregator {
	a := &Aggregator{
		series:    make(map[Timeframe]*Series, len(frames)),
		frames:    append([]Timeframe(nil), frames...),
		onConfirm: onConfirm,
		log:       log,
	}
	for _, tf := range frames {
		a.series[tf] = NewSeries(tf, capacity)
	}
	return a
}

// Ingest applies ticks in order to the timeframe's series. Stale ticks
// are logged and skipped without disturbing the buffer; every confirmed
// transition fires the callback exactly once.
func (a *Aggregator) Ingest(tf Timeframe, ticks ...Bar) error {
	s, ok := a.series[tf]
	if !ok {
		return fmt.Errorf("market: untracked timeframe %q", tf)
	}
	for _, tick := range ticks {
		confirmed, err := s.Ingest(tick)
		if err != nil {
			a.log.WithFields(logrus.Fields{
				"timeframe": tf,
				"start":     tick.Start,
			}).Warn("out-of-order tick rejected")
			continue
		}
		if confirmed && a.onConfirm != nil {
			a.onConfirm(tf, s)
		}
	}
	return nil
}

// Series returns the buffer for a timeframe, or nil if untracked.
func (a *Aggregator) Series(tf Timeframe) *Series {
	return a.series[tf]
}

// Warm reports whether every timeframe has at least min confirmed bars.
func (a *Aggregator) Warm(min int) bool {
	for _, tf := range a.frames {
		if a.series[tf].ConfirmedCount() < min {
			return false
		}
	}
	return true
}

// Confirmed implements View.
func (a *Aggregator) Confirmed(tf Timeframe) []Bar {
	s, ok := a.series[tf]
	if !ok {
		return nil
	}
	return s.Confirmed()
}

// Forming implements View.
func (a *Aggregator) Forming(tf Timeframe) (Bar, bool) {
	s, ok := a.series[tf]
	if !ok {
		return Bar{}, false
	}
	return s.Forming()
}
