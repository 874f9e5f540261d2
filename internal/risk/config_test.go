package risk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileFallsBack(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nopLogger{})

	assert.Equal(t, 1.5, cfg.MaxTotalRiskPercent)
	assert.Equal(t, 2, cfg.PositionLimits.MaxTotal)
}

func TestLoadConfig_MalformedFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_total_risk_percent: [not a number"), 0o644))

	cfg := LoadConfig(path, nopLogger{})

	assert.Equal(t, 1.5, cfg.MaxTotalRiskPercent)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_total_risk_percent: -2.0\n"), 0o644))

	cfg := LoadConfig(path, nopLogger{})

	assert.Equal(t, 1.5, cfg.MaxTotalRiskPercent)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.yaml")
	content := `
max_total_risk_percent: 3.0
position_limits:
  max_per_symbol: 2
  max_total: 4
correlation_groups:
  metals: [XAUUSD, XAGUSD]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := LoadConfig(path, nopLogger{})

	assert.Equal(t, 3.0, cfg.MaxTotalRiskPercent)
	assert.Equal(t, 4, cfg.PositionLimits.MaxTotal)
	assert.Equal(t, []string{"XAUUSD", "XAGUSD"}, cfg.groupOf("XAGUSD"))

	// A correlation_groups section replaces the defaults wholesale.
	assert.Nil(t, cfg.groupOf("EURUSD"))
}

func TestLoadConfig_PartialTradingHoursReplaceDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.yaml")
	content := `
trading_hours:
  Monday: ["09:00", "17:00"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := LoadConfig(path, nopLogger{})

	assert.Equal(t, [2]string{"09:00", "17:00"}, cfg.TradingHours["Monday"])

	// Days omitted from the file block trading, they do not inherit the
	// all-day defaults.
	_, ok := cfg.TradingHours["Tuesday"]
	assert.False(t, ok)

	// Sections absent from the file keep their defaults.
	assert.Equal(t, 1.5, cfg.MaxTotalRiskPercent)
	assert.Equal(t, 2, cfg.PositionLimits.MaxTotal)
}
