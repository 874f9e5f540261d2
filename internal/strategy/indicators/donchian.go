package indicators

import (
	"context"
	"fmt"

	"github.com/gosensan/algo-trading/internal/domain"
)

// DonchianConfig holds configuration for the Donchian channel indicator
type DonchianConfig struct {
	IndicatorConfig
}

// Donchian computes the price channel over the lookback period: the
// highest high and lowest low of the most recent Period candles.
type Donchian struct {
	config DonchianConfig
}

// NewDonchian creates a new Donchian channel indicator instance
func NewDonchian(config DonchianConfig) *Donchian {
	return &Donchian{
		config: config,
	}
}

// Name returns the name of the indicator
func (d *Donchian) Name() string {
	return fmt.Sprintf("Donchian(%d)", d.config.Period)
}

// RequiredDataPoints returns the minimum number of candles needed for calculation
func (d *Donchian) RequiredDataPoints() int {
	return d.config.Period
}

// Channel computes the upper and lower channel bounds over the last
// Period candles ending at the given offset from the end. An offset of 1
// excludes the most recent candle, which is the usual breakout reference.
func (d *Donchian) Channel(ctx context.Context, candles []*domain.Candle, offset int) (upper, lower float64, err error) {
	period := d.config.Period
	if len(candles) < period+offset {
		return 0, 0, fmt.Errorf("not enough data points for Donchian calculation: need %d, got %d", period+offset, len(candles))
	}

	end := len(candles) - offset
	start := end - period

	upper = candles[start].High
	lower = candles[start].Low
	for i := start + 1; i < end; i++ {
		if candles[i].High > upper {
			upper = candles[i].High
		}
		if candles[i].Low < lower {
			lower = candles[i].Low
		}
	}
	return upper, lower, nil
}

// Calculate returns the upper channel bound excluding the latest candle.
func (d *Donchian) Calculate(ctx context.Context, candles []*domain.Candle) (float64, error) {
	upper, _, err := d.Channel(ctx, candles, 1)
	return upper, err
}
