package risk

import (
	"context"
	"time"

	"github.com/gosensan/algo-trading/internal/domain"
	"github.com/gosensan/algo-trading/internal/ports"
)

// DailyStats accumulates realized results for the current local day and
// rolls over lazily when a new day is observed. Not safe for concurrent
// use; the engine touches it from a single goroutine.
type DailyStats struct {
	logger ports.Logger

	day               time.Time // midnight, local
	realizedPnL       float64
	tradeCount        int
	consecutiveLosses int
}

// NewDailyStats creates stats anchored to the day containing now.
func NewDailyStats(logger ports.Logger, now time.Time) *DailyStats {
	return &DailyStats{logger: logger, day: midnight(now)}
}

// RolloverIfNeeded resets the counters when now falls on a later day than
// the tracked one. Returns true when a rollover happened.
func (s *DailyStats) RolloverIfNeeded(ctx context.Context, now time.Time) bool {
	today := midnight(now)
	if !today.After(s.day) {
		return false
	}

	s.logger.Info(ctx, "Daily stats rollover", map[string]interface{}{
		"previous_day": s.day.Format("2006-01-02"),
		"realized_pnl": s.realizedPnL,
		"trades":       s.tradeCount,
	})

	s.day = today
	s.realizedPnL = 0
	s.tradeCount = 0
	s.consecutiveLosses = 0
	return true
}

// RecordRealizedTrade folds a closed trade's profit into the day's totals.
func (s *DailyStats) RecordRealizedTrade(profit float64) {
	s.realizedPnL += profit
	s.tradeCount++
	if profit < 0 {
		s.consecutiveLosses++
	} else {
		s.consecutiveLosses = 0
	}
}

// Seed replays persisted trade events to rebuild today's totals after a
// restart. Events from earlier days are ignored; the caller passes events
// in chronological order so the loss streak reconstructs correctly.
func (s *DailyStats) Seed(events []*domain.TradeEvent) {
	for _, ev := range events {
		if ev.Kind != domain.EventExit {
			continue
		}
		when := ev.CloseTime
		if when.IsZero() {
			when = ev.Timestamp
		}
		if midnight(when).Before(s.day) {
			continue
		}
		s.RecordRealizedTrade(ev.Profit)
	}
}

// RealizedPnL returns today's realized profit and loss.
func (s *DailyStats) RealizedPnL() float64 { return s.realizedPnL }

// TradeCount returns the number of trades closed today.
func (s *DailyStats) TradeCount() int { return s.tradeCount }

// ConsecutiveLosses returns the current losing streak.
func (s *DailyStats) ConsecutiveLosses() int { return s.consecutiveLosses }

// Day returns the midnight anchor of the tracked day.
func (s *DailyStats) Day() time.Time { return s.day }

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
