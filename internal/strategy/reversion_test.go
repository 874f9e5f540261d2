package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosensan/algo-trading/internal/domain"
)

// quietCandles builds n candles with zero range at the given price, so
// bands collapse onto the price and a single tweaked candle drives the
// outcome.
func quietCandles(n int, price float64) []*domain.Candle {
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Candle, n)
	for i := range out {
		out[i] = &domain.Candle{
			OpenTime: base.Add(time.Duration(i) * 4 * time.Hour),
			Open:     price, High: price, Low: price, Close: price,
		}
	}
	return out
}

func newTestReversion() *Reversion {
	return NewReversion(ReversionConfig{Symbol: "EURUSD", Timeframe: "4h"}, nopLogger{})
}

func TestReversion_NoSignalInsideBands(t *testing.T) {
	r := newTestReversion()
	assert.Nil(t, r.CheckEntry(context.Background(), quietCandles(25, 100)))
}

func TestReversion_ShortOnUpperBandReentry(t *testing.T) {
	r := newTestReversion()
	candles := quietCandles(25, 100)
	prev := candles[len(candles)-2]
	prev.High = 105 // pierced the band, closed back inside

	signal := r.CheckEntry(context.Background(), candles)

	require.NotNil(t, signal)
	assert.Equal(t, domain.Sell, signal.Side)
	assert.Greater(t, signal.StopLoss, 100.0)        // stop above entry for a short
	assert.InDelta(t, 100.0, signal.TakeProfit, 0.1) // target at the middle band
}

func TestReversion_LongOnLowerBandReentry(t *testing.T) {
	r := newTestReversion()
	candles := quietCandles(25, 100)
	prev := candles[len(candles)-2]
	prev.Low = 95

	signal := r.CheckEntry(context.Background(), candles)

	require.NotNil(t, signal)
	assert.Equal(t, domain.Buy, signal.Side)
	assert.Less(t, signal.StopLoss, 100.0)
}

func TestReversion_OneEntryPerDay(t *testing.T) {
	r := newTestReversion()
	candles := quietCandles(25, 100)
	candles[len(candles)-2].Low = 95

	require.NotNil(t, r.CheckEntry(context.Background(), candles))

	// Same trading day: blocked even though the condition still holds.
	assert.Nil(t, r.CheckEntry(context.Background(), candles))

	// Next day: allowed again.
	for _, c := range candles {
		c.OpenTime = c.OpenTime.Add(24 * time.Hour)
	}
	assert.NotNil(t, r.CheckEntry(context.Background(), candles))
}

func TestReversion_MarkEnteredTodayBlocksEntry(t *testing.T) {
	r := newTestReversion()
	candles := quietCandles(25, 100)
	candles[len(candles)-2].Low = 95

	r.MarkEnteredToday(candles[len(candles)-1].OpenTime)
	assert.Nil(t, r.CheckEntry(context.Background(), candles))

	// The guard covers only that day.
	for _, c := range candles {
		c.OpenTime = c.OpenTime.Add(24 * time.Hour)
	}
	assert.NotNil(t, r.CheckEntry(context.Background(), candles))
}

func TestReversion_InsufficientWindow(t *testing.T) {
	r := newTestReversion()
	assert.Nil(t, r.CheckEntry(context.Background(), quietCandles(20, 100)))
}

func TestReversion_ExitOnMiddleBandCross(t *testing.T) {
	r := newTestReversion()

	t.Run("long exits above the middle", func(t *testing.T) {
		candles := quietCandles(25, 100)
		candles[len(candles)-1].Close = 101
		position := &domain.Position{Ticket: 1, Side: domain.Buy}
		assert.True(t, r.CheckExit(context.Background(), position, candles))
	})

	t.Run("short exits below the middle", func(t *testing.T) {
		candles := quietCandles(25, 100)
		candles[len(candles)-1].Close = 99
		position := &domain.Position{Ticket: 2, Side: domain.Sell}
		assert.True(t, r.CheckExit(context.Background(), position, candles))
	})

	t.Run("long holds below the middle", func(t *testing.T) {
		candles := quietCandles(25, 100)
		candles[len(candles)-1].Close = 99
		position := &domain.Position{
			Ticket:          3,
			Side:            domain.Buy,
			EntryCandleTime: candles[len(candles)-2].OpenTime,
		}
		assert.False(t, r.CheckExit(context.Background(), position, candles))
	})
}

func TestReversion_TimeExit(t *testing.T) {
	r := newTestReversion()
	candles := quietCandles(25, 100)

	// Close sits on the middle band, so only elapsed bars can trigger.
	position := &domain.Position{
		Ticket:          1,
		Side:            domain.Buy,
		EntryCandleTime: candles[0].OpenTime,
	}

	// 24 bars separate the first and last candle.
	assert.True(t, r.CheckExit(context.Background(), position, candles))

	recent := &domain.Position{
		Ticket:          2,
		Side:            domain.Buy,
		EntryCandleTime: candles[len(candles)-5].OpenTime,
	}
	assert.False(t, r.CheckExit(context.Background(), recent, candles))
}
