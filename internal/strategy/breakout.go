package strategy

import (
	"context"
	"time"

	"github.com/gosensan/algo-trading/internal/domain"
	"github.com/gosensan/algo-trading/internal/ports"
	"github.com/gosensan/algo-trading/internal/strategy/indicators"
)

const (
	breakoutMagic    = 2001
	breakoutExitBars = 12
)

// BreakoutConfig holds configuration for the channel breakout provider.
type BreakoutConfig struct {
	Symbol    string
	Timeframe string
	Period    int // Channel lookback, default 10
}

// Breakout enters when the last completed candle touched the edge of its
// own channel: its high reached the period high (long) or its low reached
// the period low (short), within half a point of tolerance. The stop goes
// at the opposite channel bound; there is no profit target, the position
// closes after a fixed number of bars.
type Breakout struct {
	cfg      BreakoutConfig
	logger   ports.Logger
	donchian *indicators.Donchian
	bar      time.Duration
}

// NewBreakout creates the Donchian breakout provider.
func NewBreakout(cfg BreakoutConfig, logger ports.Logger) *Breakout {
	if cfg.Period <= 0 {
		cfg.Period = 10
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "4h"
	}
	return &Breakout{
		cfg:      cfg,
		logger:   logger,
		donchian: indicators.NewDonchian(indicators.DonchianConfig{IndicatorConfig: indicators.IndicatorConfig{Period: cfg.Period}}),
		bar:      timeframeDuration(cfg.Timeframe),
	}
}

func (b *Breakout) Name() string      { return "donchian_breakout" }
func (b *Breakout) Magic() int        { return breakoutMagic }
func (b *Breakout) Symbol() string    { return b.cfg.Symbol }
func (b *Breakout) Timeframe() string { return b.cfg.Timeframe }

// MinimumWindow needs the channel lookback plus the forming candle.
func (b *Breakout) MinimumWindow() int { return b.cfg.Period + 1 }

// CheckEntry evaluates the breakout condition on the last completed
// candle. The channel window ends at that candle, so the condition holds
// only when it set the period extreme itself.
func (b *Breakout) CheckEntry(ctx context.Context, candles []*domain.Candle) *domain.Signal {
	if len(candles) < b.MinimumWindow() {
		return nil
	}

	upper, lower, err := b.donchian.Channel(ctx, candles, 1)
	if err != nil {
		b.logger.Error(ctx, err, "Breakout: channel calculation failed", map[string]interface{}{
			"symbol": b.cfg.Symbol,
		})
		return nil
	}

	prev := candles[len(candles)-2]
	tol := pointFor(b.cfg.Symbol) * 0.5

	var signal *domain.Signal
	switch {
	case prev.High >= upper-tol:
		signal = &domain.Signal{Side: domain.Buy, StopLoss: lower}
	case prev.Low <= lower+tol:
		signal = &domain.Signal{Side: domain.Sell, StopLoss: upper}
	default:
		return nil
	}

	b.logger.Info(ctx, "Breakout: entry signal", map[string]interface{}{
		"symbol":    b.cfg.Symbol,
		"side":      string(signal.Side),
		"upper":     upper,
		"lower":     lower,
		"prev_high": prev.High,
		"prev_low":  prev.Low,
	})
	return signal
}

// CheckExit closes the position once enough bars have passed since the
// entry candle. A position whose entry candle is not yet known stays open
// until the ledger backfills it.
func (b *Breakout) CheckExit(ctx context.Context, position *domain.Position, candles []*domain.Candle) bool {
	if position == nil || len(candles) == 0 || position.EntryCandleTime.IsZero() {
		return false
	}

	current := candles[len(candles)-1].OpenTime
	elapsed := barsElapsed(position.EntryCandleTime, current, b.bar)
	if elapsed >= breakoutExitBars {
		b.logger.Info(ctx, "Breakout: time exit", map[string]interface{}{
			"ticket":       position.Ticket,
			"bars_elapsed": elapsed,
		})
		return true
	}
	return false
}
