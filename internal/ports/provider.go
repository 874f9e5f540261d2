package ports

import (
	"context"

	"github.com/gosensan/algo-trading/internal/domain"
)

// SignalProvider is the contract every strategy implements. The engine holds
// a list of providers and never special-cases by name.
type SignalProvider interface {
	// Name identifies the provider in logs and journal rows.
	Name() string

	// Magic is the stable strategy identifier stamped on every order.
	Magic() int

	// Symbol is the instrument this provider trades.
	Symbol() string

	// Timeframe is the bar timeframe this provider evaluates (e.g., "4h").
	Timeframe() string

	// MinimumWindow is the smallest candle window CheckEntry can work with.
	MinimumWindow() int

	// CheckEntry evaluates the window and returns an entry signal, or nil.
	CheckEntry(ctx context.Context, candles []*domain.Candle) *domain.Signal

	// CheckExit reports whether the open position should be closed.
	CheckExit(ctx context.Context, position *domain.Position, candles []*domain.Candle) bool
}
