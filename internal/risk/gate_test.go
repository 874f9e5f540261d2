package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gosensan/algo-trading/internal/domain"
)

// nopLogger discards all output.
type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.EconomicEvents = []EconomicEvent{
		{
			Name:         "FOMC Rate Decision",
			Time:         time.Date(2026, 9, 16, 18, 0, 0, 0, time.UTC),
			BlockMinutes: 60,
		},
	}
	return cfg
}

func TestGate_AdmitsPlainEntry(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	gate := NewGate(testConfig(), nopLogger{}, fixedNow(now))

	ok, reason := gate.CanEnter(context.Background(), nil, "XAUUSD", domain.Buy, 2400.0, 2390.0, 0.01)

	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestGate_EventBlackout(t *testing.T) {
	event := time.Date(2026, 9, 16, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		now   time.Time
		admit bool
	}{
		{"59 minutes before", event.Add(-59 * time.Minute), false},
		{"59 minutes after", event.Add(59 * time.Minute), false},
		{"exactly 60 minutes before", event.Add(-60 * time.Minute), false},
		{"61 minutes before", event.Add(-61 * time.Minute), true},
		{"61 minutes after", event.Add(61 * time.Minute), true},
		{"at the event", event, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gate := NewGate(testConfig(), nopLogger{}, fixedNow(tc.now))
			ok, reason := gate.CanEnter(context.Background(), nil, "XAUUSD", domain.Buy, 2400.0, 2390.0, 0.01)
			assert.Equal(t, tc.admit, ok)
			if !tc.admit {
				assert.Contains(t, reason, "FOMC")
			}
		})
	}
}

func TestGate_CorrelationConflict(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	openLong := []*domain.Position{
		{Ticket: 1, Symbol: "GBPUSD", Side: domain.Buy, EntryPrice: 1.27, StopLoss: 1.26, Volume: 0.1},
	}

	t.Run("same direction in group blocked", func(t *testing.T) {
		gate := NewGate(testConfig(), nopLogger{}, fixedNow(now))
		ok, reason := gate.CanEnter(context.Background(), openLong, "EURUSD", domain.Buy, 1.08, 1.075, 0.1)
		assert.False(t, ok)
		assert.Contains(t, reason, "GBPUSD")
	})

	t.Run("opposite direction in group allowed", func(t *testing.T) {
		gate := NewGate(testConfig(), nopLogger{}, fixedNow(now))
		ok, _ := gate.CanEnter(context.Background(), openLong, "EURUSD", domain.Sell, 1.08, 1.085, 0.1)
		assert.True(t, ok)
	})

	t.Run("same symbol same direction blocked", func(t *testing.T) {
		open := []*domain.Position{
			{Ticket: 4, Symbol: "EURUSD", Side: domain.Buy, EntryPrice: 1.08, StopLoss: 1.07, Volume: 0.1},
		}
		gate := NewGate(testConfig(), nopLogger{}, fixedNow(now))
		ok, reason := gate.CanEnter(context.Background(), open, "EURUSD", domain.Buy, 1.08, 1.075, 0.1)
		assert.False(t, ok)
		assert.Contains(t, reason, "EURUSD")
	})

	t.Run("symbol outside any group ignores open set", func(t *testing.T) {
		gate := NewGate(testConfig(), nopLogger{}, fixedNow(now))
		ok, _ := gate.CanEnter(context.Background(), openLong, "XAUUSD", domain.Buy, 2400.0, 2390.0, 0.01)
		assert.True(t, ok)
	})
}

func TestGate_RiskCeiling(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	t.Run("aggregate over ceiling rejected", func(t *testing.T) {
		// Open position risk: |2400-2350|/2400 * 0.5 * 100 = 1.0417%
		open := []*domain.Position{
			{Ticket: 2, Symbol: "XAUUSD", Side: domain.Buy, EntryPrice: 2400.0, StopLoss: 2350.0, Volume: 0.5},
		}
		gate := NewGate(testConfig(), nopLogger{}, fixedNow(now))

		// Candidate risk: |1.08-1.07|/1.08 * 1.0 * 100 = 0.926%; total 1.97% > 1.5%
		ok, reason := gate.CanEnter(context.Background(), open, "USDJPY", domain.Buy, 1.08, 1.07, 1.0)
		assert.False(t, ok)
		assert.Contains(t, reason, "ceiling")
	})

	t.Run("stop-less open position contributes zero", func(t *testing.T) {
		open := []*domain.Position{
			{Ticket: 3, Symbol: "XAUUSD", Side: domain.Buy, EntryPrice: 2400.0, StopLoss: 0, Volume: 10.0},
		}
		gate := NewGate(testConfig(), nopLogger{}, fixedNow(now))

		ok, _ := gate.CanEnter(context.Background(), open, "USDJPY", domain.Buy, 150.0, 149.0, 0.1)
		assert.True(t, ok)
	})

	t.Run("stop-less candidate contributes zero", func(t *testing.T) {
		gate := NewGate(testConfig(), nopLogger{}, fixedNow(now))
		ok, _ := gate.CanEnter(context.Background(), nil, "XAUUSD", domain.Buy, 2400.0, 0, 100.0)
		assert.True(t, ok)
	})
}

func TestGate_TradingHours(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) // Tuesday

	t.Run("day without window blocked", func(t *testing.T) {
		cfg := testConfig()
		delete(cfg.TradingHours, "Tuesday")
		gate := NewGate(cfg, nopLogger{}, fixedNow(now))

		ok, reason := gate.CanEnter(context.Background(), nil, "XAUUSD", domain.Buy, 2400.0, 2390.0, 0.01)
		assert.False(t, ok)
		assert.Contains(t, reason, "Tuesday")
	})

	t.Run("time outside window blocked", func(t *testing.T) {
		cfg := testConfig()
		cfg.TradingHours["Tuesday"] = [2]string{"12:00", "16:00"}
		gate := NewGate(cfg, nopLogger{}, fixedNow(now))

		ok, _ := gate.CanEnter(context.Background(), nil, "XAUUSD", domain.Buy, 2400.0, 2390.0, 0.01)
		assert.False(t, ok)
	})

	t.Run("time inside window admitted", func(t *testing.T) {
		cfg := testConfig()
		cfg.TradingHours["Tuesday"] = [2]string{"08:00", "16:00"}
		gate := NewGate(cfg, nopLogger{}, fixedNow(now))

		ok, _ := gate.CanEnter(context.Background(), nil, "XAUUSD", domain.Buy, 2400.0, 2390.0, 0.01)
		assert.True(t, ok)
	})

	t.Run("window end minute admitted", func(t *testing.T) {
		cfg := testConfig()
		cfg.TradingHours["Tuesday"] = [2]string{"08:00", "10:00"} // now is 10:00 exactly
		gate := NewGate(cfg, nopLogger{}, fixedNow(now))

		ok, _ := gate.CanEnter(context.Background(), nil, "XAUUSD", domain.Buy, 2400.0, 2390.0, 0.01)
		assert.True(t, ok)
	})
}

func TestPositionRisk(t *testing.T) {
	assert.InDelta(t, 0.4167, positionRisk(2400.0, 2390.0, 1.0), 0.001)
	assert.Zero(t, positionRisk(2400.0, 0, 1.0))
	assert.Zero(t, positionRisk(0, 2390.0, 1.0))
}
