package risk

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gosensan/algo-trading/internal/ports"
)

// Config holds the risk gate parameters. Loaded from a YAML file at
// startup; a missing or malformed file falls back to built-in defaults.
type Config struct {
	MaxTotalRiskPercent float64              `yaml:"max_total_risk_percent"`
	CorrelationGroups   map[string][]string  `yaml:"correlation_groups"`
	EconomicEvents      []EconomicEvent      `yaml:"economic_events"`
	TradingHours        map[string][2]string `yaml:"trading_hours"`
	PositionLimits      PositionLimits       `yaml:"position_limits"`
}

// EconomicEvent is a scheduled release around which entries are blocked.
type EconomicEvent struct {
	Name         string    `yaml:"name"`
	Time         time.Time `yaml:"time"`
	BlockMinutes int       `yaml:"block_minutes"`
}

// PositionLimits caps position counts independently of the risk formula.
type PositionLimits struct {
	MaxPerSymbol int `yaml:"max_per_symbol"`
	MaxTotal     int `yaml:"max_total"`
}

// DefaultConfig returns the built-in risk parameters used when no config
// file is present.
func DefaultConfig() *Config {
	return &Config{
		MaxTotalRiskPercent: 1.5,
		CorrelationGroups: map[string][]string{
			"crypto_majors": {"BTCUSDT", "ETHUSDT"},
			"usd_majors":    {"EURUSD", "GBPUSD", "AUDUSD"},
			"jpy_pairs":     {"USDJPY", "EURJPY", "GBPJPY"},
		},
		EconomicEvents: []EconomicEvent{
			{
				Name:         "FOMC Rate Decision",
				Time:         time.Date(2026, 9, 16, 18, 0, 0, 0, time.UTC),
				BlockMinutes: 60,
			},
			{
				Name:         "Non-Farm Payrolls",
				Time:         time.Date(2026, 9, 4, 12, 30, 0, 0, time.UTC),
				BlockMinutes: 60,
			},
		},
		TradingHours: map[string][2]string{
			"Monday":    {"00:00", "24:00"},
			"Tuesday":   {"00:00", "24:00"},
			"Wednesday": {"00:00", "24:00"},
			"Thursday":  {"00:00", "24:00"},
			"Friday":    {"00:00", "24:00"},
			"Saturday":  {"00:00", "24:00"},
			"Sunday":    {"00:00", "24:00"},
		},
		PositionLimits: PositionLimits{
			MaxPerSymbol: 1,
			MaxTotal:     2,
		},
	}
}

// LoadConfig reads risk parameters from path. Any failure (missing file,
// bad YAML, invalid values) logs a warning and returns the defaults so
// the engine always starts with a working gate.
func LoadConfig(path string, log ports.Logger) *Config {
	ctx := context.Background()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn(ctx, "Risk config not readable, using defaults", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return DefaultConfig()
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		log.Warn(ctx, "Risk config malformed, using defaults", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return DefaultConfig()
	}

	cfg := DefaultConfig()
	cfg.overlay(&file)

	if err := cfg.validate(); err != nil {
		log.Warn(ctx, "Risk config invalid, using defaults", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return DefaultConfig()
	}

	log.Info(ctx, "Risk config loaded", map[string]interface{}{
		"path":               path,
		"max_total_risk_pct": cfg.MaxTotalRiskPercent,
		"economic_events":    len(cfg.EconomicEvents),
	})
	return cfg
}

// overlay replaces defaults with the fields the file actually sets.
// Mapping sections replace wholesale, never merge: a trading_hours section
// listing only some days blocks the omitted days instead of inheriting
// their all-day defaults.
func (c *Config) overlay(file *Config) {
	if file.MaxTotalRiskPercent != 0 {
		c.MaxTotalRiskPercent = file.MaxTotalRiskPercent
	}
	if file.CorrelationGroups != nil {
		c.CorrelationGroups = file.CorrelationGroups
	}
	if file.EconomicEvents != nil {
		c.EconomicEvents = file.EconomicEvents
	}
	if file.TradingHours != nil {
		c.TradingHours = file.TradingHours
	}
	if file.PositionLimits.MaxPerSymbol != 0 {
		c.PositionLimits.MaxPerSymbol = file.PositionLimits.MaxPerSymbol
	}
	if file.PositionLimits.MaxTotal != 0 {
		c.PositionLimits.MaxTotal = file.PositionLimits.MaxTotal
	}
}

func (c *Config) validate() error {
	if c.MaxTotalRiskPercent <= 0 {
		return fmt.Errorf("max_total_risk_percent must be positive, got %v", c.MaxTotalRiskPercent)
	}
	if c.PositionLimits.MaxTotal <= 0 {
		return fmt.Errorf("position_limits.max_total must be positive, got %d", c.PositionLimits.MaxTotal)
	}
	if c.PositionLimits.MaxPerSymbol <= 0 {
		return fmt.Errorf("position_limits.max_per_symbol must be positive, got %d", c.PositionLimits.MaxPerSymbol)
	}
	for _, ev := range c.EconomicEvents {
		if ev.BlockMinutes < 0 {
			return fmt.Errorf("economic event %q has negative block_minutes", ev.Name)
		}
	}
	return nil
}

// groupOf returns the correlation group members for a symbol, or nil when
// the symbol belongs to no group.
func (c *Config) groupOf(symbol string) []string {
	for _, members := range c.CorrelationGroups {
		for _, m := range members {
			if m == symbol {
				return members
			}
		}
	}
	return nil
}
