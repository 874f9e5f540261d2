package domain

import "time"

// Candle represents a single OHLC bar for a fixed timeframe.
type Candle struct {
	OpenTime  time.Time // Start time of the bar
	Symbol    string    // Instrument symbol
	Timeframe string    // Bar timeframe (e.g., "4h")
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
