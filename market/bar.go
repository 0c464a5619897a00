package market

import (
	"fmt"
	"time"
)

// Timeframe identifies a bar interval. The engine runs three frames
// concurrently; the short frame drives signal evaluation.
type Timeframe string

const (
	M1  Timeframe = "1m"
	M15 Timeframe = "15m"
	H1  Timeframe = "1h"
)

// Duration returns the bar interval length.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case M1:
		return time.Minute
	case M15:
		return 15 * time.Minute
	case H1:
		return time.Hour
	default:
		return 0
	}
}

func (tf Timeframe) String() string { return string(tf) }

// ParseTimeframe converts a config string into a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case M1, M15, H1:
		return Timeframe(s), nil
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// Bar is one OHLCV bucket. Start identifies the bucket; the exchange
// streams the forming bar repeatedly under the same Start until a tick
// with a newer Start supersedes it.
type Bar struct {
	Start    time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Turnover float64
}

// SameDay reports whether both times fall on the same UTC calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
