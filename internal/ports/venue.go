package ports

import (
	"context"
	"time"

	"github.com/gosensan/algo-trading/internal/domain"
)

// AccountInfo holds the account snapshot the venue reports.
type AccountInfo struct {
	Balance    float64
	Equity     float64
	Margin     float64
	MarginFree float64
	Currency   string
}

// Quote is the current top-of-book price for a symbol.
type Quote struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

// OrderRequest describes a market order with protective levels attached.
type OrderRequest struct {
	Symbol     string
	Side       domain.Side
	Volume     float64
	StopLoss   float64 // 0 to omit
	TakeProfit float64 // 0 to omit
	Comment    string
	Magic      int
}

// OrderResult is the venue's confirmation of a filled market order.
type OrderResult struct {
	Ticket      int64
	FilledPrice float64
	FilledAt    time.Time // Zero if the venue did not report a fill time
}

// CloseResult reports the outcome of closing a position.
type CloseResult struct {
	Profit       float64
	BalanceAfter float64
}

// VenueClient is the narrow surface of the trading venue the engine consumes.
// Implementations own connect/retry mechanics; a transport failure marks the
// client down until a later call succeeds.
type VenueClient interface {
	// Connect establishes the session. Fatal at startup if it fails.
	Connect(ctx context.Context) error

	// Disconnect tears the session down; safe to call when not connected.
	Disconnect()

	// IsConnected reports whether the last venue interaction succeeded.
	IsConnected() bool

	// GetAccountInfo retrieves the current account snapshot.
	GetAccountInfo(ctx context.Context) (*AccountInfo, error)

	// GetCandles retrieves up to count most recent bars, oldest first.
	GetCandles(ctx context.Context, symbol, timeframe string, count int) ([]*domain.Candle, error)

	// GetQuote retrieves the current bid/ask for a symbol.
	GetQuote(ctx context.Context, symbol string) (*Quote, error)

	// GetOpenPositions returns the authoritative open-position list for the
	// given symbols.
	GetOpenPositions(ctx context.Context, symbols []string) ([]*domain.Position, error)

	// SubmitMarketOrder places a market order with the attached stop/target.
	SubmitMarketOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)

	// ClosePosition closes the full volume of an open position by ticket.
	ClosePosition(ctx context.Context, ticket int64) (*CloseResult, error)
}
