package ledger

import (
	"context"
	"time"

	"github.com/gosensan/algo-trading/internal/domain"
	"github.com/gosensan/algo-trading/internal/ports"
)

// Ledger is the in-memory mirror of the venue's open positions, keyed by
// ticket. The venue is the source of truth; Reconcile folds each cycle's
// snapshot into the ledger so decisions always run against fresh state.
// Not safe for concurrent use; the engine owns it from a single goroutine.
type Ledger struct {
	logger    ports.Logger
	positions map[int64]*domain.Position
}

// New creates an empty ledger.
func New(logger ports.Logger) *Ledger {
	return &Ledger{
		logger:    logger,
		positions: make(map[int64]*domain.Position),
	}
}

// Reconcile replaces the ledger contents with the venue snapshot. New
// tickets are inserted, vanished tickets dropped, and known tickets
// updated in place. A nonzero EntryCandleTime on a known ticket is
// preserved; the venue never reports it.
func (l *Ledger) Reconcile(ctx context.Context, venuePositions []*domain.Position) {
	seen := make(map[int64]bool, len(venuePositions))

	for _, vp := range venuePositions {
		seen[vp.Ticket] = true
		existing, ok := l.positions[vp.Ticket]
		if !ok {
			cp := *vp
			l.positions[vp.Ticket] = &cp
			l.logger.Info(ctx, "Ledger: adopted venue position", map[string]interface{}{
				"ticket": vp.Ticket,
				"symbol": vp.Symbol,
				"magic":  vp.Magic,
				"side":   string(vp.Side),
			})
			continue
		}

		candleTime := existing.EntryCandleTime
		*existing = *vp
		if !candleTime.IsZero() {
			existing.EntryCandleTime = candleTime
		}
	}

	for ticket := range l.positions {
		if !seen[ticket] {
			l.logger.Info(ctx, "Ledger: position closed at venue", map[string]interface{}{
				"ticket": ticket,
				"symbol": l.positions[ticket].Symbol,
			})
			delete(l.positions, ticket)
		}
	}
}

// Track inserts a position the engine just opened, ahead of the next
// reconcile. Re-tracking an existing ticket overwrites it.
func (l *Ledger) Track(pos *domain.Position) {
	cp := *pos
	l.positions[pos.Ticket] = &cp
}

// BackfillCandleTimes stamps EntryCandleTime on positions that lack one,
// using the open time of the candle containing the entry. Positions whose
// symbol has no candles, or whose entry predates the window, are left for
// a later cycle. A time already set is never overwritten.
func (l *Ledger) BackfillCandleTimes(ctx context.Context, candlesBySymbol map[string][]*domain.Candle) {
	for _, pos := range l.positions {
		if !pos.EntryCandleTime.IsZero() {
			continue
		}
		candles := candlesBySymbol[pos.Symbol]
		if len(candles) == 0 {
			continue
		}
		if t, ok := containingCandle(candles, pos.EntryTime); ok {
			pos.EntryCandleTime = t
			l.logger.Debug(ctx, "Ledger: backfilled entry candle time", map[string]interface{}{
				"ticket":      pos.Ticket,
				"candle_time": t.Format(time.RFC3339),
			})
		}
	}
}

// containingCandle finds the open time of the candle whose span covers t.
// Candles are ordered oldest to newest; the last candle covers everything
// from its open onward.
func containingCandle(candles []*domain.Candle, t time.Time) (time.Time, bool) {
	if t.Before(candles[0].OpenTime) {
		return time.Time{}, false
	}
	for i := len(candles) - 1; i >= 0; i-- {
		if !t.Before(candles[i].OpenTime) {
			return candles[i].OpenTime, true
		}
	}
	return time.Time{}, false
}

// Remove drops a position the engine just closed, ahead of the next
// reconcile. Unknown tickets are a no-op.
func (l *Ledger) Remove(ticket int64) {
	delete(l.positions, ticket)
}

// Get returns the position for a ticket, or nil.
func (l *Ledger) Get(ticket int64) *domain.Position {
	return l.positions[ticket]
}

// All returns the open positions in no particular order.
func (l *Ledger) All() []*domain.Position {
	out := make([]*domain.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, pos)
	}
	return out
}

// Count returns the number of open positions.
func (l *Ledger) Count() int {
	return len(l.positions)
}

// FindByStrategy returns the open positions carrying the given magic
// number on the given symbol.
func (l *Ledger) FindByStrategy(magic int, symbol string) []*domain.Position {
	var out []*domain.Position
	for _, pos := range l.positions {
		if pos.Magic == magic && pos.Symbol == symbol {
			out = append(out, pos)
		}
	}
	return out
}
