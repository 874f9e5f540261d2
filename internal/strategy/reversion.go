package strategy

import (
	"context"
	"time"

	"github.com/gosensan/algo-trading/internal/domain"
	"github.com/gosensan/algo-trading/internal/ports"
	"github.com/gosensan/algo-trading/internal/strategy/indicators"
)

const (
	reversionMagic      = 1001
	reversionBandPeriod = 20
	reversionATRPeriod  = 14
	reversionExitBars   = 18
	reversionATRMult    = 3.0
)

// ReversionConfig holds configuration for the band reversion provider.
type ReversionConfig struct {
	Symbol    string
	Timeframe string
}

// Reversion trades the return from a Bollinger band excursion: when the
// last completed candle pierced a band but closed back inside, it enters
// toward the middle band. The stop sits a multiple of ATR away, the
// target is the middle band, and at most one entry per calendar day is
// taken.
type Reversion struct {
	cfg       ReversionConfig
	logger    ports.Logger
	bollinger *indicators.Bollinger
	atr       *indicators.ATR
	bar       time.Duration

	lastEntryDay time.Time
}

// NewReversion creates the Bollinger reversion provider.
func NewReversion(cfg ReversionConfig, logger ports.Logger) *Reversion {
	if cfg.Timeframe == "" {
		cfg.Timeframe = "4h"
	}
	return &Reversion{
		cfg:       cfg,
		logger:    logger,
		bollinger: indicators.NewBollinger(indicators.BollingerConfig{IndicatorConfig: indicators.IndicatorConfig{Period: reversionBandPeriod}, StdDevMultiplier: 2.0}),
		atr:       indicators.NewATR(indicators.ATRConfig{IndicatorConfig: indicators.IndicatorConfig{Period: reversionATRPeriod}}),
		bar:       timeframeDuration(cfg.Timeframe),
	}
}

func (r *Reversion) Name() string      { return "bollinger" }
func (r *Reversion) Magic() int        { return reversionMagic }
func (r *Reversion) Symbol() string    { return r.cfg.Symbol }
func (r *Reversion) Timeframe() string { return r.cfg.Timeframe }

// MinimumWindow covers the band period plus the forming candle.
func (r *Reversion) MinimumWindow() int { return reversionBandPeriod + 1 }

// MarkEnteredToday blocks further entries on the day containing now.
// Called at startup when the trade history already holds an entry for
// today, so a restart cannot reset the daily guard.
func (r *Reversion) MarkEnteredToday(now time.Time) {
	r.lastEntryDay = dateOf(now)
}

// CheckEntry evaluates the band re-entry condition on the last completed
// candle. The calendar-day guard keys off the latest candle's open time,
// not the wall clock, so a cycle re-run inside the same bar cannot
// double-enter.
func (r *Reversion) CheckEntry(ctx context.Context, candles []*domain.Candle) *domain.Signal {
	if len(candles) < r.MinimumWindow() {
		return nil
	}

	last := candles[len(candles)-1]
	day := dateOf(last.OpenTime)
	if day.Equal(r.lastEntryDay) {
		return nil
	}

	prevUpper, _, prevLower, err := r.bollinger.Bands(ctx, candles, 1)
	if err != nil {
		r.logger.Error(ctx, err, "Reversion: band calculation failed", map[string]interface{}{
			"symbol": r.cfg.Symbol,
		})
		return nil
	}

	prev := candles[len(candles)-2]

	var side domain.Side
	switch {
	case prev.High > prevUpper && prev.Close <= prevUpper:
		side = domain.Sell
	case prev.Low < prevLower && prev.Close >= prevLower:
		side = domain.Buy
	default:
		return nil
	}

	atr, err := r.atr.Calculate(ctx, candles)
	if err != nil {
		r.logger.Error(ctx, err, "Reversion: ATR calculation failed", map[string]interface{}{
			"symbol": r.cfg.Symbol,
		})
		return nil
	}

	_, middle, _, err := r.bollinger.Bands(ctx, candles, 0)
	if err != nil {
		return nil
	}

	signal := &domain.Signal{Side: side, TakeProfit: middle}
	if side == domain.Buy {
		signal.StopLoss = last.Close - reversionATRMult*atr
	} else {
		signal.StopLoss = last.Close + reversionATRMult*atr
	}

	r.lastEntryDay = day
	r.logger.Info(ctx, "Reversion: entry signal", map[string]interface{}{
		"symbol":     r.cfg.Symbol,
		"side":       string(side),
		"stop_loss":  signal.StopLoss,
		"target":     signal.TakeProfit,
		"atr":        atr,
		"band_upper": prevUpper,
		"band_lower": prevLower,
	})
	return signal
}

// CheckExit closes on a middle-band cross, or after the bar limit when
// the band never gets reached.
func (r *Reversion) CheckExit(ctx context.Context, position *domain.Position, candles []*domain.Candle) bool {
	if position == nil || len(candles) == 0 {
		return false
	}

	if len(candles) >= reversionBandPeriod {
		_, middle, _, err := r.bollinger.Bands(ctx, candles, 0)
		if err == nil {
			lastClose := candles[len(candles)-1].Close
			crossed := (position.Side == domain.Buy && lastClose > middle) ||
				(position.Side == domain.Sell && lastClose < middle)
			if crossed {
				r.logger.Info(ctx, "Reversion: middle band reached", map[string]interface{}{
					"ticket": position.Ticket,
					"close":  lastClose,
					"middle": middle,
				})
				return true
			}
		}
	}

	if position.EntryCandleTime.IsZero() {
		return false
	}
	current := candles[len(candles)-1].OpenTime
	elapsed := barsElapsed(position.EntryCandleTime, current, r.bar)
	if elapsed >= reversionExitBars {
		r.logger.Info(ctx, "Reversion: time exit", map[string]interface{}{
			"ticket":       position.Ticket,
			"bars_elapsed": elapsed,
		})
		return true
	}
	return false
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
