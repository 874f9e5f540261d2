package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gosensan/algo-trading/internal/domain"
)

func TestDailyStats_RecordRealizedTrade(t *testing.T) {
	stats := NewDailyStats(nopLogger{}, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))

	stats.RecordRealizedTrade(-5.0)
	stats.RecordRealizedTrade(-3.0)
	assert.Equal(t, 2, stats.ConsecutiveLosses())
	assert.Equal(t, -8.0, stats.RealizedPnL())

	stats.RecordRealizedTrade(12.0)
	assert.Equal(t, 0, stats.ConsecutiveLosses())
	assert.Equal(t, 4.0, stats.RealizedPnL())
	assert.Equal(t, 3, stats.TradeCount())
}

func TestDailyStats_Rollover(t *testing.T) {
	day1 := time.Date(2026, 9, 1, 23, 50, 0, 0, time.UTC)
	stats := NewDailyStats(nopLogger{}, day1)
	stats.RecordRealizedTrade(-10.0)

	t.Run("same day is a no-op", func(t *testing.T) {
		rolled := stats.RolloverIfNeeded(context.Background(), day1.Add(5*time.Minute))
		assert.False(t, rolled)
		assert.Equal(t, -10.0, stats.RealizedPnL())
	})

	t.Run("next day resets everything", func(t *testing.T) {
		rolled := stats.RolloverIfNeeded(context.Background(), day1.Add(15*time.Minute))
		assert.True(t, rolled)
		assert.Zero(t, stats.RealizedPnL())
		assert.Zero(t, stats.TradeCount())
		assert.Zero(t, stats.ConsecutiveLosses())
		assert.Equal(t, time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), stats.Day())
	})
}

func TestDailyStats_Seed(t *testing.T) {
	now := time.Date(2026, 9, 2, 8, 0, 0, 0, time.UTC)
	stats := NewDailyStats(nopLogger{}, now)

	events := []*domain.TradeEvent{
		// Yesterday's exit must be ignored.
		{Kind: domain.EventExit, Timestamp: now.Add(-30 * time.Hour), CloseTime: now.Add(-26 * time.Hour), Profit: -50.0},
		// Entries never count.
		{Kind: domain.EventEntry, Timestamp: now.Add(-2 * time.Hour)},
		// Today's exits replay in order.
		{Kind: domain.EventExit, Timestamp: now.Add(-6 * time.Hour), CloseTime: now.Add(-3 * time.Hour), Profit: -4.0},
		{Kind: domain.EventExit, Timestamp: now.Add(-5 * time.Hour), CloseTime: now.Add(-1 * time.Hour), Profit: -6.0},
	}

	stats.Seed(events)

	assert.Equal(t, -10.0, stats.RealizedPnL())
	assert.Equal(t, 2, stats.TradeCount())
	assert.Equal(t, 2, stats.ConsecutiveLosses())
}
