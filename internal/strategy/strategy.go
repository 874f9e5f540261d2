// Package strategy contains the signal providers the engine consults each
// cycle. Providers are pure decision logic: they never talk to the venue
// and never mutate positions.
package strategy

import (
	"strings"
	"time"
)

// pointFor infers the minimum price increment from the symbol name. Used
// for breakout tolerance when the venue does not report tick size.
func pointFor(symbol string) float64 {
	upper := strings.ToUpper(symbol)
	switch {
	case strings.Contains(upper, "JPY"):
		return 0.001
	case strings.Contains(upper, "XAU"), strings.Contains(upper, "GOLD"):
		return 0.01
	default:
		return 0.00001
	}
}

// timeframeDuration converts a timeframe label like "4h" or "15m" into a
// duration. Unknown labels fall back to four hours, the system default.
func timeframeDuration(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	}
	if d, err := time.ParseDuration(timeframe); err == nil && d > 0 {
		return d
	}
	return 4 * time.Hour
}

// barsElapsed counts completed bars between two candle open times.
func barsElapsed(entryCandle, currentCandle time.Time, bar time.Duration) int {
	if entryCandle.IsZero() || currentCandle.Before(entryCandle) {
		return 0
	}
	return int(currentCandle.Sub(entryCandle) / bar)
}
