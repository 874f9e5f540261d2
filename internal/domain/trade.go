package domain

import "time"

// TradeEvent is one row of the trade record: an entry or a close. The same
// shape is appended to the journal file and recorded in the history store.
type TradeEvent struct {
	Kind       EventKind
	Timestamp  time.Time // Entry time for both kinds; close rows carry it too
	CloseTime  time.Time // Zero on entry rows
	Strategy   string
	Magic      int
	Symbol     string
	Side       Side
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64 // 0 means none
	Volume     float64
	Ticket     int64

	// Close-only fields.
	Profit       float64
	BalanceAfter float64
}
