package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gosensan/algo-trading/internal/domain"
	"github.com/gosensan/algo-trading/internal/ports"
)

// Gate decides whether a proposed entry is admissible. Checks run in a
// fixed order and short-circuit on the first rejection: trading hours,
// event blackout, correlation conflict, aggregate risk ceiling.
type Gate struct {
	cfg    *Config
	logger ports.Logger
	now    func() time.Time
}

// NewGate creates a risk gate. A nil now func defaults to time.Now.
func NewGate(cfg *Config, logger ports.Logger, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{cfg: cfg, logger: logger, now: now}
}

// CanEnter evaluates a proposed entry against the open position set.
// It returns false with the rejection reason on the first failed check.
func (g *Gate) CanEnter(ctx context.Context, open []*domain.Position, symbol string, side domain.Side, entryPrice, stopPrice, volume float64) (bool, string) {
	now := g.now()

	if reason, ok := g.withinTradingHours(now); !ok {
		g.logger.Info(ctx, "Entry rejected: outside trading hours", map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
		})
		return false, reason
	}

	if reason, blocked := g.eventBlackout(now); blocked {
		g.logger.Info(ctx, "Entry rejected: event blackout", map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
		})
		return false, reason
	}

	if reason, blocked := g.correlationConflict(open, symbol, side); blocked {
		g.logger.Info(ctx, "Entry rejected: correlation conflict", map[string]interface{}{
			"symbol": symbol,
			"side":   string(side),
			"reason": reason,
		})
		return false, reason
	}

	if reason, blocked := g.exceedsRiskCeiling(ctx, open, entryPrice, stopPrice, volume); blocked {
		g.logger.Info(ctx, "Entry rejected: risk ceiling", map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
		})
		return false, reason
	}

	return true, ""
}

// withinTradingHours checks the configured window for the current weekday.
// A weekday absent from the config blocks trading for that day.
func (g *Gate) withinTradingHours(now time.Time) (string, bool) {
	day := now.Weekday().String()
	window, ok := g.cfg.TradingHours[day]
	if !ok {
		return fmt.Sprintf("no trading window configured for %s", day), false
	}

	start, err := parseClock(window[0])
	if err != nil {
		return fmt.Sprintf("invalid trading window start for %s: %v", day, err), false
	}
	end, err := parseClock(window[1])
	if err != nil {
		return fmt.Sprintf("invalid trading window end for %s: %v", day, err), false
	}

	// The window is inclusive on both ends, so a "23:59" end still
	// admits the final minute.
	minutes := now.Hour()*60 + now.Minute()
	if minutes < start || minutes > end {
		return fmt.Sprintf("current time outside %s window %s-%s", day, window[0], window[1]), false
	}
	return "", true
}

// parseClock converts "HH:MM" into minutes since midnight. "24:00" is
// accepted as end of day.
func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return h*60 + m, nil
}

// eventBlackout blocks entries when now is within block_minutes of any
// configured event, on either side of the release time.
func (g *Gate) eventBlackout(now time.Time) (string, bool) {
	for _, ev := range g.cfg.EconomicEvents {
		window := time.Duration(ev.BlockMinutes) * time.Minute
		diff := now.Sub(ev.Time)
		if diff < 0 {
			diff = -diff
		}
		if diff <= window {
			return fmt.Sprintf("within %dm of %s", ev.BlockMinutes, ev.Name), true
		}
	}
	return "", false
}

// correlationConflict blocks an entry when an open position on a symbol
// in the candidate's correlation group already trades in the same
// direction. The candidate's own symbol counts as a group member, so a
// second strategy stacking onto the same symbol is blocked too. Opposite
// directions in a group are allowed.
func (g *Gate) correlationConflict(open []*domain.Position, symbol string, side domain.Side) (string, bool) {
	group := g.cfg.groupOf(symbol)
	if group == nil {
		return "", false
	}

	members := make(map[string]bool, len(group))
	for _, m := range group {
		members[m] = true
	}

	for _, pos := range open {
		if members[pos.Symbol] && pos.Side == side {
			return fmt.Sprintf("correlated position already open: %s %s (ticket %d)", pos.Symbol, pos.Side, pos.Ticket), true
		}
	}
	return "", false
}

// exceedsRiskCeiling sums the risk of each open position with the
// candidate entry and compares against the configured ceiling. A
// position without a stop has unbounded theoretical risk but contributes
// zero here; it is logged so the gap is visible in operation.
func (g *Gate) exceedsRiskCeiling(ctx context.Context, open []*domain.Position, entryPrice, stopPrice, volume float64) (string, bool) {
	total := positionRisk(entryPrice, stopPrice, volume)
	for _, pos := range open {
		if pos.StopLoss == 0 {
			g.logger.Warn(ctx, "Open position has no stop, contributes zero risk", map[string]interface{}{
				"ticket": pos.Ticket,
				"symbol": pos.Symbol,
			})
			continue
		}
		total += positionRisk(pos.EntryPrice, pos.StopLoss, pos.Volume)
	}

	if total > g.cfg.MaxTotalRiskPercent {
		return fmt.Sprintf("aggregate risk %.2f%% exceeds ceiling %.2f%%", total, g.cfg.MaxTotalRiskPercent), true
	}
	return "", false
}

// positionRisk returns |entry-stop|/entry * volume * 100. A zero stop or
// entry yields zero.
func positionRisk(entryPrice, stopPrice, volume float64) float64 {
	if entryPrice == 0 || stopPrice == 0 {
		return 0
	}
	return math.Abs(entryPrice-stopPrice) / entryPrice * volume * 100
}
