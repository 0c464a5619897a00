package market

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestAggregatorFiresConfirmOncePerTransition(t *testing.T) {
	t.Parallel()

	var confirms []Timeframe
	a := NewAggregator([]Timeframe{M1}, 10, func(tf Timeframe, s *Series) {
		confirms = append(confirms, tf)
	}, testLogger())

	// Intrabar updates on the same start must not confirm.
	assert.NoError(t, a.Ingest(M1, bar(t0, 100)))
	assert.NoError(t, a.Ingest(M1, bar(t0, 101)))
	assert.Empty(t, confirms)

	assert.NoError(t, a.Ingest(M1, bar(t0.Add(time.Minute), 102)))
	assert.Equal(t, []Timeframe{M1}, confirms)

	// Replaying the same tick confirms nothing further.
	assert.NoError(t, a.Ingest(M1, bar(t0.Add(time.Minute), 102)))
	assert.Equal(t, []Timeframe{M1}, confirms)
}

func TestAggregatorStaleTickSkippedNotFatal(t *testing.T) {
	t.Parallel()

	var confirms int
	a := NewAggregator([]Timeframe{M1}, 10, func(Timeframe, *Series) { confirms++ }, testLogger())

	err := a.Ingest(M1,
		bar(t0, 100),
		bar(t0.Add(time.Minute), 101),
		bar(t0, 99), // stale, skipped
		bar(t0.Add(2*time.Minute), 102),
	)
	assert.NoError(t, err)
	assert.Equal(t, 2, confirms)

	f, _ := a.Forming(M1)
	assert.Equal(t, 102.0, f.Close)
}

func TestAggregatorUntrackedTimeframe(t *testing.T) {
	t.Parallel()

	a := NewAggregator([]Timeframe{M1}, 10, nil, testLogger())
	assert.Error(t, a.Ingest(H1, bar(t0, 100)))
}

func TestAggregatorWarm(t *testing.T) {
	t.Parallel()

	a := NewAggregator([]Timeframe{M1, M15}, 10, nil, testLogger())

	for i := 0; i < 4; i++ {
		a.Ingest(M1, bar(t0.Add(time.Duration(i)*time.Minute), 100))
	}
	assert.False(t, a.Warm(3), "m15 has no bars yet")

	for i := 0; i < 4; i++ {
		a.Ingest(M15, bar(t0.Add(time.Duration(i)*15*time.Minute), 100))
	}
	assert.True(t, a.Warm(3))
	assert.False(t, a.Warm(4))
}

func TestAggregatorSeedThenLiveOverlap(t *testing.T) {
	t.Parallel()

	var confirms int
	a := NewAggregator([]Timeframe{M1}, 100, func(Timeframe, *Series) { confirms++ }, testLogger())

	// REST seed delivers a closed history batch.
	seed := make([]Bar, 5)
	for i := range seed {
		seed[i] = bar(t0.Add(time.Duration(i)*time.Minute), float64(100+i))
	}
	assert.NoError(t, a.Ingest(M1, seed...))
	assert.Equal(t, 4, confirms)

	// The live stream starts on the seed's last bar and moves on.
	assert.NoError(t, a.Ingest(M1, bar(t0.Add(4*time.Minute), 104.5)))
	assert.NoError(t, a.Ingest(M1, bar(t0.Add(5*time.Minute), 105)))
	assert.Equal(t, 5, confirms)

	last, _ := a.Series(M1).LastConfirmed()
	assert.Equal(t, 104.5, last.Close)
}
