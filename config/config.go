package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/gosensan/algo-trading/internal/adapters/logger"
)

// Config holds all process configuration. Loaded once at startup and
// immutable thereafter.
type Config struct {
	// Venue API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Execution parameters
	CycleInterval time.Duration // Time between engine cycles
	CandleWindow  int           // Candles fetched per provider per cycle
	DefaultVolume float64       // Order volume when no per-strategy override exists

	// Strategy parameters
	BreakoutSymbol    string
	BreakoutPeriod    int
	ReversionSymbol   string
	StrategyTimeframe string             // Bar timeframe shared by both providers
	StrategyVolumes   map[string]float64 // Per-strategy volume overrides, keyed by name or symbol

	// Files
	RiskConfigPath string
	JournalPath    string
	DBPath         string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	cfg.APIKey = getEnv("VENUE_API_KEY", "")
	cfg.SecretKey = getEnv("VENUE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	if cfg.APIKey == "" {
		errs = append(errs, "VENUE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "VENUE_API_SECRET must be set")
	}

	cycleSeconds := getEnvAsInt("CYCLE_INTERVAL_SECONDS", 300)
	if cycleSeconds <= 0 {
		errs = append(errs, "CYCLE_INTERVAL_SECONDS must be positive")
	}
	cfg.CycleInterval = time.Duration(cycleSeconds) * time.Second

	cfg.CandleWindow = getEnvAsInt("CANDLE_WINDOW", 100)
	if cfg.CandleWindow <= 0 {
		errs = append(errs, "CANDLE_WINDOW must be positive")
	}

	cfg.DefaultVolume, err = getEnvAsFloatRequired("DEFAULT_VOLUME", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_VOLUME: %v", err))
	} else if cfg.DefaultVolume <= 0 {
		errs = append(errs, "DEFAULT_VOLUME must be positive")
	}

	cfg.BreakoutSymbol = getEnv("BREAKOUT_SYMBOL", "BTCUSDT")
	cfg.ReversionSymbol = getEnv("REVERSION_SYMBOL", "ETHUSDT")
	if cfg.BreakoutSymbol == "" || cfg.ReversionSymbol == "" {
		errs = append(errs, "BREAKOUT_SYMBOL and REVERSION_SYMBOL must be set")
	}

	cfg.BreakoutPeriod = getEnvAsInt("BREAKOUT_PERIOD", 10)
	if cfg.BreakoutPeriod <= 0 {
		errs = append(errs, "BREAKOUT_PERIOD must be positive")
	}

	cfg.StrategyTimeframe = getEnv("STRATEGY_TIMEFRAME", "4h")

	// Per-strategy volume overrides, keyed by symbol. Fall back to
	// DEFAULT_VOLUME when unset.
	cfg.StrategyVolumes = map[string]float64{}
	breakoutVol, err := getEnvAsFloatRequired("BREAKOUT_VOLUME", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BREAKOUT_VOLUME: %v", err))
	} else if breakoutVol > 0 {
		cfg.StrategyVolumes[cfg.BreakoutSymbol] = breakoutVol
	}
	reversionVol, err := getEnvAsFloatRequired("REVERSION_VOLUME", 0.1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid REVERSION_VOLUME: %v", err))
	} else if reversionVol > 0 {
		cfg.StrategyVolumes[cfg.ReversionSymbol] = reversionVol
	}

	cfg.RiskConfigPath = getEnv("RISK_CONFIG_PATH", "./config/risk.yaml")
	cfg.JournalPath = getEnv("JOURNAL_PATH", "./logs/trades.csv")
	if cfg.JournalPath == "" {
		errs = append(errs, "JOURNAL_PATH must be set")
	}
	cfg.DBPath = getEnv("DB_PATH", "./data/trade_history.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// VolumeFor resolves the order volume for a provider, preferring a name
// override, then a symbol override, then the system default.
func (c *Config) VolumeFor(name, symbol string) float64 {
	if v, ok := c.StrategyVolumes[name]; ok {
		return v
	}
	if v, ok := c.StrategyVolumes[symbol]; ok {
		return v
	}
	return c.DefaultVolume
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
