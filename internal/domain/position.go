package domain

import "time"

// Position represents one open trade as the engine sees it. The venue's
// open-position list is the ground truth; the ledger keeps these records
// consistent with it every cycle.
type Position struct {
	Ticket     int64     // Venue-assigned identifier, unique per position
	Magic      int       // Identifier of the strategy that owns the position
	Symbol     string    // Instrument symbol
	Side       Side      // buy (long) or sell (short)
	EntryPrice float64   // Fill price at entry
	EntryTime  time.Time // Time the venue reports the position was opened

	// EntryCandleTime is the open time of the timeframe bar during which the
	// entry happened. Bar-count exits are measured from it. Once set it is
	// never cleared; after a restart it is backfilled from candle data.
	EntryCandleTime time.Time

	Volume     float64
	StopLoss   float64 // 0 means no stop attached
	TakeProfit float64 // 0 means no target
	Comment    string  // Free-text tag set at order time
}

// IsLong reports whether the position is on the buy side.
func (p *Position) IsLong() bool {
	return p.Side == Buy
}
