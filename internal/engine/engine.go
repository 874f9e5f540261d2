// Package engine runs the trade execution cycle: reconcile the position
// ledger against the venue, ask every signal provider for entries, pass
// candidates through the risk gate, then evaluate exits. Everything runs
// on a single goroutine at a fixed interval.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/gosensan/algo-trading/internal/domain"
	"github.com/gosensan/algo-trading/internal/ledger"
	"github.com/gosensan/algo-trading/internal/ports"
	"github.com/gosensan/algo-trading/internal/risk"
)

// Deps bundles everything the engine needs. All fields are required
// except Now, which defaults to time.Now.
type Deps struct {
	Logger    ports.Logger
	Venue     ports.VenueClient
	Journal   ports.TradeJournal
	History   ports.TradeEventRepository
	Gate      *risk.Gate
	Stats     *risk.DailyStats
	RiskCfg   *risk.Config
	Providers []ports.SignalProvider

	CycleInterval time.Duration
	CandleWindow  int
	DefaultVolume float64
	// Volume override per provider name; falls back to DefaultVolume.
	Volumes map[string]float64

	Now func() time.Time
}

// Engine orchestrates one trading process.
type Engine struct {
	logger    ports.Logger
	venue     ports.VenueClient
	journal   ports.TradeJournal
	history   ports.TradeEventRepository
	gate      *risk.Gate
	stats     *risk.DailyStats
	riskCfg   *risk.Config
	providers []ports.SignalProvider
	ledger    *ledger.Ledger

	cycleInterval time.Duration
	candleWindow  int
	defaultVolume float64
	volumes       map[string]float64
	now           func() time.Time
}

// New validates dependencies and builds an engine with an empty ledger.
func New(deps Deps) (*Engine, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Venue == nil:
		return nil, fmt.Errorf("venue client is required")
	case deps.Journal == nil:
		return nil, fmt.Errorf("trade journal is required")
	case deps.History == nil:
		return nil, fmt.Errorf("history repository is required")
	case deps.Gate == nil:
		return nil, fmt.Errorf("risk gate is required")
	case deps.Stats == nil:
		return nil, fmt.Errorf("daily stats is required")
	case deps.RiskCfg == nil:
		return nil, fmt.Errorf("risk config is required")
	case len(deps.Providers) == 0:
		return nil, fmt.Errorf("at least one signal provider is required")
	}
	if deps.CycleInterval <= 0 {
		deps.CycleInterval = 300 * time.Second
	}
	if deps.CandleWindow <= 0 {
		deps.CandleWindow = 100
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Engine{
		logger:        deps.Logger,
		venue:         deps.Venue,
		journal:       deps.Journal,
		history:       deps.History,
		gate:          deps.Gate,
		stats:         deps.Stats,
		riskCfg:       deps.RiskCfg,
		providers:     deps.Providers,
		ledger:        ledger.New(deps.Logger),
		cycleInterval: deps.CycleInterval,
		candleWindow:  deps.CandleWindow,
		defaultVolume: deps.DefaultVolume,
		volumes:       deps.Volumes,
		now:           deps.Now,
	}, nil
}

// Run executes cycles until the context is cancelled. The current cycle
// always completes before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	e.seedStats(ctx)

	e.logger.Info(ctx, "Engine started", map[string]interface{}{
		"cycle_interval": e.cycleInterval.String(),
		"providers":      len(e.providers),
	})

	ticker := time.NewTicker(e.cycleInterval)
	defer ticker.Stop()

	e.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info(ctx, "Engine stopping", nil)
			return ctx.Err()
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

// seedStats replays today's persisted trade events so the daily counters
// survive restarts.
func (e *Engine) seedStats(ctx context.Context) {
	events, err := e.history.FindSince(ctx, e.stats.Day())
	if err != nil {
		e.logger.Warn(ctx, "Could not seed daily stats from history", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	e.stats.Seed(events)
	e.logger.Info(ctx, "Daily stats seeded from history", map[string]interface{}{
		"events":       len(events),
		"realized_pnl": e.stats.RealizedPnL(),
	})
}

// RunCycle executes one full reconcile/entry/exit pass. Exported so the
// composition root can trigger an immediate pass and tests can drive the
// engine without the ticker.
func (e *Engine) RunCycle(ctx context.Context) {
	e.stats.RolloverIfNeeded(ctx, e.now())

	if !e.venue.IsConnected() {
		if err := e.venue.Connect(ctx); err != nil {
			e.logger.Warn(ctx, "Venue unreachable, skipping cycle", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
	}

	venuePositions, err := e.venue.GetOpenPositions(ctx, e.symbols())
	if err != nil {
		e.logger.Warn(ctx, "Position fetch failed, skipping cycle", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	e.ledger.Reconcile(ctx, venuePositions)

	candles := e.fetchCandles(ctx)
	e.ledger.BackfillCandleTimes(ctx, candles)

	// Entries run before exits, so a just-closed position cannot free a
	// slot inside the same cycle. Positions opened in this pass are held
	// out of the exit checks until the next cycle.
	opened := make(map[int64]bool)
	for _, provider := range e.providers {
		e.checkEntry(ctx, provider, candles[provider.Symbol()], opened)
	}
	for _, provider := range e.providers {
		e.checkExit(ctx, provider, candles[provider.Symbol()], opened)
	}
}

// symbols returns the distinct symbols across providers.
func (e *Engine) symbols() []string {
	seen := make(map[string]bool, len(e.providers))
	var out []string
	for _, p := range e.providers {
		if !seen[p.Symbol()] {
			seen[p.Symbol()] = true
			out = append(out, p.Symbol())
		}
	}
	return out
}

// fetchCandles loads one window per distinct symbol. A failed fetch leaves
// the symbol absent, which downstream checks treat as "skip this provider".
func (e *Engine) fetchCandles(ctx context.Context) map[string][]*domain.Candle {
	out := make(map[string][]*domain.Candle)
	for _, p := range e.providers {
		if _, ok := out[p.Symbol()]; ok {
			continue
		}
		candles, err := e.venue.GetCandles(ctx, p.Symbol(), p.Timeframe(), e.candleWindow)
		if err != nil {
			e.logger.Warn(ctx, "Candle fetch failed", map[string]interface{}{
				"symbol": p.Symbol(),
				"error":  err.Error(),
			})
			continue
		}
		out[p.Symbol()] = candles
	}
	return out
}

func (e *Engine) checkEntry(ctx context.Context, provider ports.SignalProvider, candles []*domain.Candle, opened map[int64]bool) {
	if len(candles) < provider.MinimumWindow() {
		e.logger.Debug(ctx, "Window too small for entry check", map[string]interface{}{
			"provider": provider.Name(),
			"have":     len(candles),
			"need":     provider.MinimumWindow(),
		})
		return
	}

	signal := provider.CheckEntry(ctx, candles)
	if signal == nil {
		return
	}

	entryPrice := e.resolveEntryPrice(ctx, provider.Symbol(), signal.Side, candles)

	if e.ledger.Count() >= e.riskCfg.PositionLimits.MaxTotal {
		e.logger.Info(ctx, "Entry rejected: position ceiling reached", map[string]interface{}{
			"provider": provider.Name(),
			"open":     e.ledger.Count(),
			"max":      e.riskCfg.PositionLimits.MaxTotal,
		})
		return
	}
	if len(e.ledger.FindByStrategy(provider.Magic(), provider.Symbol())) >= e.riskCfg.PositionLimits.MaxPerSymbol {
		e.logger.Info(ctx, "Entry rejected: strategy already holds this symbol", map[string]interface{}{
			"provider": provider.Name(),
			"symbol":   provider.Symbol(),
		})
		return
	}

	volume := e.volumeFor(provider.Name())
	ok, reason := e.gate.CanEnter(ctx, e.ledger.All(), provider.Symbol(), signal.Side, entryPrice, signal.StopLoss, volume)
	if !ok {
		e.logger.Info(ctx, "Entry rejected by risk gate", map[string]interface{}{
			"provider": provider.Name(),
			"reason":   reason,
		})
		return
	}

	result, err := e.venue.SubmitMarketOrder(ctx, ports.OrderRequest{
		Symbol:     provider.Symbol(),
		Side:       signal.Side,
		Volume:     volume,
		StopLoss:   signal.StopLoss,
		TakeProfit: signal.TakeProfit,
		Comment:    provider.Name(),
		Magic:      provider.Magic(),
	})
	if err != nil {
		e.logger.Error(ctx, err, "Order submission failed", map[string]interface{}{
			"provider": provider.Name(),
			"symbol":   provider.Symbol(),
		})
		return
	}

	filledPrice := result.FilledPrice
	if filledPrice == 0 {
		filledPrice = entryPrice
	}
	entryTime := result.FilledAt
	if entryTime.IsZero() {
		entryTime = e.now()
	}

	position := &domain.Position{
		Ticket:          result.Ticket,
		Magic:           provider.Magic(),
		Symbol:          provider.Symbol(),
		Side:            signal.Side,
		EntryPrice:      filledPrice,
		EntryTime:       entryTime,
		EntryCandleTime: candles[len(candles)-1].OpenTime,
		Volume:          volume,
		StopLoss:        signal.StopLoss,
		TakeProfit:      signal.TakeProfit,
		Comment:         provider.Name(),
	}
	e.ledger.Track(position)
	opened[result.Ticket] = true

	event := &domain.TradeEvent{
		Kind:       domain.EventEntry,
		Timestamp:  entryTime,
		Strategy:   provider.Name(),
		Magic:      provider.Magic(),
		Symbol:     provider.Symbol(),
		Side:       signal.Side,
		EntryPrice: filledPrice,
		StopLoss:   signal.StopLoss,
		TakeProfit: signal.TakeProfit,
		Volume:     volume,
		Ticket:     result.Ticket,
	}
	if err := e.journal.LogEntry(event); err != nil {
		e.logger.Error(ctx, err, "Journal entry write failed", map[string]interface{}{"ticket": result.Ticket})
	}
	if err := e.history.Record(ctx, event); err != nil {
		e.logger.Error(ctx, err, "History entry record failed", map[string]interface{}{"ticket": result.Ticket})
	}

	e.logger.Info(ctx, "Position opened", map[string]interface{}{
		"provider": provider.Name(),
		"symbol":   provider.Symbol(),
		"side":     string(signal.Side),
		"ticket":   result.Ticket,
		"price":    filledPrice,
		"volume":   volume,
	})
}

// resolveEntryPrice asks for a live quote and falls back to the latest
// candle's open when the venue cannot serve one.
func (e *Engine) resolveEntryPrice(ctx context.Context, symbol string, side domain.Side, candles []*domain.Candle) float64 {
	quote, err := e.venue.GetQuote(ctx, symbol)
	if err != nil {
		e.logger.Warn(ctx, "Quote unavailable, using last candle open", map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		})
		return candles[len(candles)-1].Open
	}
	if side == domain.Buy {
		return quote.Ask
	}
	return quote.Bid
}

func (e *Engine) volumeFor(providerName string) float64 {
	if v, ok := e.volumes[providerName]; ok && v > 0 {
		return v
	}
	return e.defaultVolume
}

func (e *Engine) checkExit(ctx context.Context, provider ports.SignalProvider, candles []*domain.Candle, opened map[int64]bool) {
	for _, position := range e.ledger.FindByStrategy(provider.Magic(), provider.Symbol()) {
		// A position opened this cycle becomes eligible next cycle.
		if opened[position.Ticket] {
			continue
		}
		if !provider.CheckExit(ctx, position, candles) {
			continue
		}

		result, err := e.venue.ClosePosition(ctx, position.Ticket)
		if err != nil {
			// The position stays tracked; the next cycle retries.
			e.logger.Error(ctx, err, "Close failed", map[string]interface{}{
				"provider": provider.Name(),
				"ticket":   position.Ticket,
			})
			continue
		}

		e.ledger.Remove(position.Ticket)
		e.stats.RecordRealizedTrade(result.Profit)

		event := &domain.TradeEvent{
			Kind:         domain.EventExit,
			Timestamp:    position.EntryTime,
			CloseTime:    e.now(),
			Strategy:     provider.Name(),
			Magic:        provider.Magic(),
			Symbol:       position.Symbol,
			Side:         position.Side,
			EntryPrice:   position.EntryPrice,
			StopLoss:     position.StopLoss,
			TakeProfit:   position.TakeProfit,
			Volume:       position.Volume,
			Ticket:       position.Ticket,
			Profit:       result.Profit,
			BalanceAfter: result.BalanceAfter,
		}
		if err := e.journal.LogClose(event); err != nil {
			e.logger.Error(ctx, err, "Journal close write failed", map[string]interface{}{"ticket": position.Ticket})
		}
		if err := e.history.Record(ctx, event); err != nil {
			e.logger.Error(ctx, err, "History close record failed", map[string]interface{}{"ticket": position.Ticket})
		}

		e.logger.Info(ctx, "Position closed", map[string]interface{}{
			"provider":      provider.Name(),
			"ticket":        position.Ticket,
			"profit":        result.Profit,
			"daily_pnl":     e.stats.RealizedPnL(),
			"loss_streak":   e.stats.ConsecutiveLosses(),
			"balance_after": result.BalanceAfter,
		})
	}
}
