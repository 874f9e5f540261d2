package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gosensan/algo-trading/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func pos(ticket int64, magic int, symbol string) *domain.Position {
	return &domain.Position{
		Ticket:     ticket,
		Magic:      magic,
		Symbol:     symbol,
		Side:       domain.Buy,
		EntryPrice: 100.0,
		EntryTime:  time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		Volume:     0.1,
	}
}

func TestLedger_ReconcileAddsUpdatesRemoves(t *testing.T) {
	ctx := context.Background()
	l := New(nopLogger{})

	l.Reconcile(ctx, []*domain.Position{pos(1, 1001, "EURUSD"), pos(2, 2001, "XAUUSD")})
	assert.Equal(t, 2, l.Count())

	// Ticket 2 vanished, ticket 3 appeared, ticket 1 moved its stop.
	updated := pos(1, 1001, "EURUSD")
	updated.StopLoss = 99.0
	l.Reconcile(ctx, []*domain.Position{updated, pos(3, 2001, "XAUUSD")})

	assert.Equal(t, 2, l.Count())
	assert.Nil(t, l.Get(2))
	assert.Equal(t, 99.0, l.Get(1).StopLoss)
	assert.NotNil(t, l.Get(3))
}

func TestLedger_ReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := New(nopLogger{})
	snapshot := []*domain.Position{pos(1, 1001, "EURUSD")}

	l.Reconcile(ctx, snapshot)
	l.Reconcile(ctx, snapshot)

	assert.Equal(t, 1, l.Count())
}

func TestLedger_ReconcilePreservesEntryCandleTime(t *testing.T) {
	ctx := context.Background()
	l := New(nopLogger{})
	candleTime := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	tracked := pos(1, 1001, "EURUSD")
	tracked.EntryCandleTime = candleTime
	l.Track(tracked)

	// The venue snapshot never carries a candle time.
	l.Reconcile(ctx, []*domain.Position{pos(1, 1001, "EURUSD")})

	assert.Equal(t, candleTime, l.Get(1).EntryCandleTime)
}

func TestLedger_BackfillCandleTimes(t *testing.T) {
	ctx := context.Background()
	l := New(nopLogger{})

	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	candles := []*domain.Candle{
		&domain.Candle{OpenTime: base, Symbol: "EURUSD"},
		&domain.Candle{OpenTime: base.Add(4 * time.Hour), Symbol: "EURUSD"},
		&domain.Candle{OpenTime: base.Add(8 * time.Hour), Symbol: "EURUSD"},
	}

	inWindow := pos(1, 1001, "EURUSD")
	inWindow.EntryTime = base.Add(5 * time.Hour)
	l.Track(inWindow)

	beforeWindow := pos(2, 1001, "EURUSD")
	beforeWindow.EntryTime = base.Add(-time.Hour)
	l.Track(beforeWindow)

	noCandles := pos(3, 2001, "XAUUSD")
	l.Track(noCandles)

	alreadySet := pos(4, 1001, "EURUSD")
	alreadySet.EntryTime = base.Add(9 * time.Hour)
	alreadySet.EntryCandleTime = base
	l.Track(alreadySet)

	l.BackfillCandleTimes(ctx, map[string][]*domain.Candle{"EURUSD": candles})

	assert.Equal(t, base.Add(4*time.Hour), l.Get(1).EntryCandleTime)
	assert.True(t, l.Get(2).EntryCandleTime.IsZero())
	assert.True(t, l.Get(3).EntryCandleTime.IsZero())
	assert.Equal(t, base, l.Get(4).EntryCandleTime)
}

func TestLedger_FindByStrategy(t *testing.T) {
	ctx := context.Background()
	l := New(nopLogger{})
	l.Reconcile(ctx, []*domain.Position{
		pos(1, 1001, "EURUSD"),
		pos(2, 1001, "GBPUSD"),
		pos(3, 2001, "EURUSD"),
	})

	found := l.FindByStrategy(1001, "EURUSD")

	assert.Len(t, found, 1)
	assert.Equal(t, int64(1), found[0].Ticket)
}

func TestLedger_TrackCopies(t *testing.T) {
	l := New(nopLogger{})
	p := pos(1, 1001, "EURUSD")
	l.Track(p)

	p.StopLoss = 42.0

	assert.Zero(t, l.Get(1).StopLoss)
}
