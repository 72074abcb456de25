package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationops/compliance-engine/config"
	"github.com/stationops/compliance-engine/engine"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_NoFile_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "compliance.db", cfg.Database.Path)
	assert.Equal(t, engine.RoundUp, cfg.Rounding())
	assert.Equal(t, time.Hour, cfg.Alerts.SweepInterval.Duration)
	assert.True(t, cfg.Thresholds().CompliantPct.Equal(decimal.NewFromInt(100)))
	assert.True(t, cfg.Thresholds().AtRiskPct.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 90, cfg.Thresholds().ExpiryHorizonDays)
}

func TestLoad_MissingFile_Defaults(t *testing.T) {
	cfg, err := config.Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_PartialFile_OverridesOnlyWhatItNames(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
evaluation:
  rounding: nearest
  expiry_horizon_days: 60
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, engine.RoundNearest, cfg.Rounding())
	assert.Equal(t, 60, cfg.Thresholds().ExpiryHorizonDays)
	// Untouched defaults survive.
	assert.Equal(t, "compliance.db", cfg.Database.Path)
	assert.True(t, cfg.Thresholds().CompliantPct.Equal(decimal.NewFromInt(100)))
}

func TestLoad_UnknownRounding_Rejected(t *testing.T) {
	path := writeConfig(t, `
evaluation:
  rounding: banker
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_ThresholdOrder_Validated(t *testing.T) {
	path := writeConfig(t, `
evaluation:
  compliant_percent: 40
  at_risk_percent: 50
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_SweepInterval_Parsed(t *testing.T) {
	path := writeConfig(t, `
alerts:
  sweep_interval: 15m
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.Alerts.SweepInterval.Duration)
}
