package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func bar(start time.Time, close float64) Bar {
	return Bar{Start: start, Open: close, High: close, Low: close, Close: close}
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSeriesFirstBarIsForming(t *testing.T) {
	t.Parallel()

	s := NewSeries(M1, 10)

	confirmed, err := s.Ingest(bar(t0, 100))
	assert.NoError(t, err)
	assert.False(t, confirmed)

	f, ok := s.Forming()
	assert.True(t, ok)
	assert.Equal(t, 100.0, f.Close)
	assert.Equal(t, 0, s.ConfirmedCount())
}

func TestSeriesSameStartReplacesForming(t *testing.T) {
	t.Parallel()

	s := NewSeries(M1, 10)

	_, err := s.Ingest(bar(t0, 100))
	assert.NoError(t, err)

	confirmed, err := s.Ingest(bar(t0, 105))
	assert.NoError(t, err)
	assert.False(t, confirmed)

	f, _ := s.Forming()
	assert.Equal(t, 105.0, f.Close)
	assert.Equal(t, 1, s.Len())
}

func TestSeriesNewerStartConfirms(t *testing.T) {
	t.Parallel()

	s := NewSeries(M1, 10)

	_, err := s.Ingest(bar(t0, 100))
	assert.NoError(t, err)

	confirmed, err := s.Ingest(bar(t0.Add(time.Minute), 101))
	assert.NoError(t, err)
	assert.True(t, confirmed)

	last, ok := s.LastConfirmed()
	assert.True(t, ok)
	assert.Equal(t, 100.0, last.Close)

	f, _ := s.Forming()
	assert.Equal(t, 101.0, f.Close)
}

func TestSeriesOlderStartRejected(t *testing.T) {
	t.Parallel()

	s := NewSeries(M1, 10)

	_, err := s.Ingest(bar(t0.Add(time.Minute), 101))
	assert.NoError(t, err)

	confirmed, err := s.Ingest(bar(t0, 100))
	assert.ErrorIs(t, err, ErrStaleBar)
	assert.False(t, confirmed)

	f, _ := s.Forming()
	assert.Equal(t, 101.0, f.Close)
}

func TestSeriesEvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()

	s := NewSeries(M1, 3)

	for i := 0; i < 5; i++ {
		_, err := s.Ingest(bar(t0.Add(time.Duration(i)*time.Minute), float64(100+i)))
		assert.NoError(t, err)
	}

	assert.Equal(t, 3, s.Len())

	confirmed := s.Confirmed()
	assert.Len(t, confirmed, 2)
	assert.Equal(t, 102.0, confirmed[0].Close)
	assert.Equal(t, 103.0, confirmed[1].Close)

	f, _ := s.Forming()
	assert.Equal(t, 104.0, f.Close)
}

func TestSeriesReplayIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewSeries(M1, 10)

	feed := func() {
		for i := 0; i < 4; i++ {
			s.Ingest(bar(t0.Add(time.Duration(i)*time.Minute), float64(100+i)))
		}
	}

	feed()
	n := s.ConfirmedCount()

	// A reconnect replays the same history; only the stale portion is
	// rejected and the bar count is unchanged.
	feed()
	assert.Equal(t, n, s.ConfirmedCount())
	assert.Equal(t, 4, s.Len())
}

func TestSeriesConfirmedReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewSeries(M1, 10)
	s.Ingest(bar(t0, 100))
	s.Ingest(bar(t0.Add(time.Minute), 101))

	c := s.Confirmed()
	c[0].Close = 999

	again := s.Confirmed()
	assert.Equal(t, 100.0, again[0].Close)
}

func TestParseTimeframe(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		in   string
		want Timeframe
	}{
		{"1m", M1},
		{"15m", M15},
		{"1h", H1},
	} {
		tf, err := ParseTimeframe(tc.in)
		assert.NoError(t, err)
		assert.Equal(t, tc.want, tf)
	}

	_, err := ParseTimeframe("3d")
	assert.Error(t, err)
}

func TestTimeframeDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Minute, M1.Duration())
	assert.Equal(t, 15*time.Minute, M15.Duration())
	assert.Equal(t, time.Hour, H1.Duration())
}

func TestSameDayUsesUTC(t *testing.T) {
	t.Parallel()

	assert.True(t, SameDay(t0, t0.Add(11*time.Hour)))
	assert.False(t, SameDay(t0, t0.Add(12*time.Hour)))

	// Wall-clock dates differ but the UTC date matches.
	east := time.FixedZone("UTC+10", 10*3600)
	assert.True(t, SameDay(
		time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 9, 30, 0, 0, east),
	))
}
