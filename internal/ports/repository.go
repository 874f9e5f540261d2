package ports

import (
	"context"
	"time"

	"github.com/gosensan/algo-trading/internal/domain"
)

// TradeEventRepository stores queryable trade history. Unlike the journal it
// can be read back, which the engine uses to rebuild daily risk statistics
// after a restart.
type TradeEventRepository interface {
	// Record saves one trade event.
	Record(ctx context.Context, event *domain.TradeEvent) error
	// FindSince retrieves events whose close (or entry, for entry rows) time
	// is at or after since, oldest first.
	FindSince(ctx context.Context, since time.Time) ([]*domain.TradeEvent, error)
	// CountEntriesToday counts entry events recorded today for a strategy.
	CountEntriesToday(ctx context.Context, magic int) (int, error)
	// Close releases the underlying store.
	Close() error
}
