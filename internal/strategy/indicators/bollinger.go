package indicators

import (
	"context"
	"fmt"
	"math"

	"github.com/gosensan/algo-trading/internal/domain"
)

// BollingerConfig holds configuration for the Bollinger band indicator
type BollingerConfig struct {
	IndicatorConfig
	StdDevMultiplier float64
}

// Bollinger computes the moving average band: a simple moving average of
// closes plus and minus a multiple of the standard deviation.
type Bollinger struct {
	config BollingerConfig
}

// NewBollinger creates a new Bollinger band indicator instance
func NewBollinger(config BollingerConfig) *Bollinger {
	if config.StdDevMultiplier == 0 {
		config.StdDevMultiplier = 2.0
	}
	return &Bollinger{
		config: config,
	}
}

// Name returns the name of the indicator
func (b *Bollinger) Name() string {
	return fmt.Sprintf("Bollinger(%d,%.1f)", b.config.Period, b.config.StdDevMultiplier)
}

// RequiredDataPoints returns the minimum number of candles needed for calculation
func (b *Bollinger) RequiredDataPoints() int {
	return b.config.Period
}

// Bands computes the upper, middle and lower band over the last Period
// candles ending at the given offset from the end. An offset of 1
// excludes the most recent candle.
func (b *Bollinger) Bands(ctx context.Context, candles []*domain.Candle, offset int) (upper, middle, lower float64, err error) {
	period := b.config.Period
	if len(candles) < period+offset {
		return 0, 0, 0, fmt.Errorf("not enough data points for Bollinger calculation: need %d, got %d", period+offset, len(candles))
	}

	end := len(candles) - offset
	start := end - period

	sum := 0.0
	for i := start; i < end; i++ {
		sum += candles[i].Close
	}
	middle = sum / float64(period)

	// Sample standard deviation (n-1 divisor).
	variance := 0.0
	for i := start; i < end; i++ {
		diff := candles[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period-1))

	upper = middle + b.config.StdDevMultiplier*stdDev
	lower = middle - b.config.StdDevMultiplier*stdDev
	return upper, middle, lower, nil
}

// Calculate returns the middle band over the most recent Period candles.
func (b *Bollinger) Calculate(ctx context.Context, candles []*domain.Candle) (float64, error) {
	_, middle, _, err := b.Bands(ctx, candles, 0)
	return middle, err
}
