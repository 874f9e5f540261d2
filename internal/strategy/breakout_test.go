package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosensan/algo-trading/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// flatCandles builds a window of identical candles, latest last.
func flatCandles(n int, high, low float64) []*domain.Candle {
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Candle, n)
	for i := range out {
		mid := (high + low) / 2
		out[i] = &domain.Candle{
			OpenTime: base.Add(time.Duration(i) * 4 * time.Hour),
			Open:     mid, High: high, Low: low, Close: mid,
		}
	}
	return out
}

func newTestBreakout() *Breakout {
	return NewBreakout(BreakoutConfig{Symbol: "XAUUSD", Timeframe: "4h", Period: 10}, nopLogger{})
}

func TestBreakout_NoSignalInsideChannel(t *testing.T) {
	b := newTestBreakout()
	candles := flatCandles(12, 2410, 2390)

	// The completed candle shares the channel extremes with the rest of
	// the window, which counts as touching the edge, so carve it inward.
	candles[10].High = 2405
	candles[10].Low = 2395

	assert.Nil(t, b.CheckEntry(context.Background(), candles))
}

func TestBreakout_LongOnNewHigh(t *testing.T) {
	b := newTestBreakout()
	candles := flatCandles(12, 2410, 2390)
	candles[10].High = 2420 // completed candle sets the period high

	signal := b.CheckEntry(context.Background(), candles)

	require.NotNil(t, signal)
	assert.Equal(t, domain.Buy, signal.Side)
	assert.Equal(t, 2390.0, signal.StopLoss) // opposite channel bound
	assert.Zero(t, signal.TakeProfit)
}

func TestBreakout_ShortOnNewLow(t *testing.T) {
	b := newTestBreakout()
	candles := flatCandles(12, 2410, 2390)
	candles[10].High = 2405 // stays off the period high
	candles[10].Low = 2380  // completed candle sets the period low

	signal := b.CheckEntry(context.Background(), candles)

	require.NotNil(t, signal)
	assert.Equal(t, domain.Sell, signal.Side)
	assert.Equal(t, 2410.0, signal.StopLoss)
}

func TestBreakout_InsufficientWindow(t *testing.T) {
	b := newTestBreakout()
	candles := flatCandles(10, 2410, 2390)

	assert.Nil(t, b.CheckEntry(context.Background(), candles))
}

func TestBreakout_TimeExit(t *testing.T) {
	b := newTestBreakout()
	entryCandle := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	position := &domain.Position{Ticket: 1, Side: domain.Buy, EntryCandleTime: entryCandle}

	tests := []struct {
		name        string
		barsElapsed int
		exit        bool
	}{
		{"11 bars", 11, false},
		{"12 bars", 12, true},
		{"20 bars", 20, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			candles := []*domain.Candle{
				{OpenTime: entryCandle.Add(time.Duration(tc.barsElapsed) * 4 * time.Hour)},
			}
			assert.Equal(t, tc.exit, b.CheckExit(context.Background(), position, candles))
		})
	}
}

func TestBreakout_NoExitWithoutEntryCandleTime(t *testing.T) {
	b := newTestBreakout()
	position := &domain.Position{Ticket: 1, Side: domain.Buy}
	candles := flatCandles(15, 2410, 2390)

	assert.False(t, b.CheckExit(context.Background(), position, candles))
}
