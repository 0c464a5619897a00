package market

import "errors"

// ErrStaleBar is returned when a tick's Start precedes the forming bar.
// After seeding, the feed only ever repeats or advances the Start; an
// older Start is an anomaly worth surfacing.
var ErrStaleBar = errors.New("market: tick older than forming bar")

// DefaultCapacity bounds each series to roughly what the indicators and
// strategies need for warmup plus generous history.
const DefaultCapacity = 2000

// Series is a bounded, time-ordered bar buffer for one timeframe.
// The final element is always the forming (unconfirmed) bar; every
// earlier element is immutable once superseded. When the buffer is
// full the oldest bar is evicted first.
//
// Series is owned by the engine's event loop and is not safe for
// concurrent use.
type Series struct {
	tf   Timeframe
	cap  int
	bars []Bar
}

// NewSeries creates an empty series with the given capacity.
func NewSeries(tf Timeframe, capacity int) *Series {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Series{
		tf:   tf,
		cap:  capacity,
		bars: make([]Bar, 0, capacity),
	}
}

// Timeframe returns the interval this series tracks.
func (s *Series) Timeframe() Timeframe { return s.tf }

// Len returns the number of bars held, including the forming bar.
func (s *Series) Len() int { return len(s.bars) }

// Forming returns the current forming bar, if any.
func (s *Series) Forming() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Confirmed returns a copy of every bar except the forming one, oldest
// first. Callers may retain the slice.
func (s *Series) Confirmed() []Bar {
	if len(s.bars) < 2 {
		return nil
	}
	out := make([]Bar, len(s.bars)-1)
	copy(out, s.bars[:len(s.bars)-1])
	return out
}

// ConfirmedCount returns the number of confirmed bars without copying.
func (s *Series) ConfirmedCount() int {
	if len(s.bars) < 2 {
		return 0
	}
	return len(s.bars) - 1
}

// LastConfirmed returns the most recent confirmed bar, if any.
func (s *Series) LastConfirmed() (Bar, bool) {
	if len(s.bars) < 2 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-2], true
}

// Ingest applies one tick of the forming bar.
//
// An empty series adopts the tick as the forming bar. A tick with the
// forming bar's Start replaces it in place (intrabar update). A strictly
// newer Start confirms the previous forming bar and starts a new one;
// confirmed reports true in that case so the caller can run bar-close
// logic. An older Start is rejected with ErrStaleBar and the series is
// left untouched, which makes reconnect replays idempotent.
func (s *Series) Ingest(b Bar) (confirmed bool, err error) {
	n := len(s.bars)
	if n == 0 {
		s.bars = append(s.bars, b)
		return false, nil
	}

	last := s.bars[n-1]
	switch {
	case b.Start.Equal(last.Start):
		s.bars[n-1] = b
		return false, nil
	case b.Start.After(last.Start):
		if n == s.cap {
			copy(s.bars, s.bars[1:])
			s.bars[n-1] = b
		} else {
			s.bars = append(s.bars, b)
		}
		return true, nil
	default:
		return false, ErrStaleBar
	}
}
