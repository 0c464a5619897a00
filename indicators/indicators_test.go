package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/culda/skalpit/market"
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func closeBar(i int, close float64) market.Bar {
	return market.Bar{
		Start: start.Add(time.Duration(i) * time.Minute),
		Open:  close, High: close, Low: close, Close: close,
	}
}

func TestSimpleMA(t *testing.T) {
	t.Parallel()

	ma := NewMA(3)
	assert.Equal(t, 3, ma.Warmup())

	ma.Update(closeBar(0, 10))
	ma.Update(closeBar(1, 20))
	assert.False(t, ma.Ready())
	assert.Equal(t, 0.0, ma.Value())

	ma.Update(closeBar(2, 30))
	assert.True(t, ma.Ready())
	assert.InDelta(t, 20.0, ma.Value(), 1e-9)

	// Window slides: drops 10, picks up 40.
	ma.Update(closeBar(3, 40))
	assert.InDelta(t, 30.0, ma.Value(), 1e-9)
}

func TestSimpleMAReset(t *testing.T) {
	t.Parallel()

	ma := NewMA(2)
	ma.Update(closeBar(0, 10))
	ma.Update(closeBar(1, 20))
	assert.True(t, ma.Ready())

	ma.Reset()
	assert.False(t, ma.Ready())
}

func TestExponentialMASeedsWithSMA(t *testing.T) {
	t.Parallel()

	ema := NewEMA(3)

	ema.Update(closeBar(0, 10))
	ema.Update(closeBar(1, 20))
	assert.False(t, ema.Ready())

	ema.Update(closeBar(2, 30))
	assert.True(t, ema.Ready())
	assert.InDelta(t, 20.0, ema.Value(), 1e-9)

	// multiplier = 2/(3+1) = 0.5; next value = (40-20)*0.5 + 20 = 30.
	ema.Update(closeBar(3, 40))
	assert.InDelta(t, 30.0, ema.Value(), 1e-9)
}

func TestATRWarmupAndSmoothing(t *testing.T) {
	t.Parallel()

	atr := NewATR(2)
	assert.Equal(t, 3, atr.Warmup())

	rangeBar := func(i int, low, high float64) market.Bar {
		return market.Bar{
			Start: start.Add(time.Duration(i) * time.Minute),
			Open:  low, High: high, Low: low, Close: high,
		}
	}

	atr.Update(rangeBar(0, 100, 110)) // establishes the previous bar
	assert.False(t, atr.Ready())

	atr.Update(rangeBar(1, 108, 112)) // TR = max(4, |112-110|, |108-110|) = 4
	assert.False(t, atr.Ready())

	atr.Update(rangeBar(2, 110, 116)) // TR = max(6, 4, 2) = 6
	assert.True(t, atr.Ready())
	assert.InDelta(t, 5.0, atr.Value(), 1e-9)

	// TR = max(12, 8, 4) = 12; Wilder: (5*1 + 12) / 2 = 8.5.
	atr.Update(rangeBar(3, 112, 124))
	assert.InDelta(t, 8.5, atr.Value(), 1e-9)
}

func TestATRGapUsesPreviousClose(t *testing.T) {
	t.Parallel()

	atr := NewATR(1)

	atr.Update(market.Bar{Start: start, Open: 100, High: 105, Low: 95, Close: 100})
	// Gap up: high-low is 2 but the distance from the previous close is 20.
	atr.Update(market.Bar{Start: start.Add(time.Minute), Open: 119, High: 120, Low: 118, Close: 120})

	assert.True(t, atr.Ready())
	assert.InDelta(t, 20.0, atr.Value(), 1e-9)
}
