/*
Package config loads engine configuration from YAML.

PURPOSE:
  One document controls the tunable knobs: HTTP port, database path,
  proration rounding, status thresholds, the certification expiry horizon,
  and the alert sweep cadence. Everything has a compiled-in default so the
  binary runs with no file at all.

EXAMPLE:
  server:
    port: 8080
  database:
    path: compliance.db
  evaluation:
    rounding: round_up
    compliant_percent: 100
    at_risk_percent: 50
    expiry_horizon_days: 90
    matrix_workers: 8
  alerts:
    sweep_interval: 1h

SEE ALSO:
  - engine/evaluate.go: StatusThresholds consumed from here
  - engine/proration.go: RoundingMode values
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/stationops/compliance-engine/engine"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Alerts     AlertsConfig     `yaml:"alerts"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type EvaluationConfig struct {
	Rounding          string `yaml:"rounding"`
	CompliantPercent  int    `yaml:"compliant_percent"`
	AtRiskPercent     int    `yaml:"at_risk_percent"`
	ExpiryHorizonDays int    `yaml:"expiry_horizon_days"`
	MatrixWorkers     int    `yaml:"matrix_workers"`
}

type AlertsConfig struct {
	SweepInterval Duration `yaml:"sweep_interval"`
}

// Duration wraps time.Duration so YAML can carry "1h" / "15m" strings.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "compliance.db"},
		Evaluation: EvaluationConfig{
			Rounding:          string(engine.RoundUp),
			CompliantPercent:  100,
			AtRiskPercent:     50,
			ExpiryHorizonDays: 90,
			MatrixWorkers:     8,
		},
		Alerts: AlertsConfig{SweepInterval: Duration{time.Hour}},
	}
}

// Load reads the YAML file at path over the defaults. A missing path (or an
// empty path argument) is not an error: defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch engine.RoundingMode(c.Evaluation.Rounding) {
	case engine.RoundUp, engine.RoundNearest, engine.RoundNone:
	default:
		return fmt.Errorf("unknown rounding mode %q", c.Evaluation.Rounding)
	}
	if c.Evaluation.AtRiskPercent > c.Evaluation.CompliantPercent {
		return fmt.Errorf("at_risk_percent (%d) exceeds compliant_percent (%d)",
			c.Evaluation.AtRiskPercent, c.Evaluation.CompliantPercent)
	}
	if c.Alerts.SweepInterval.Duration <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}
	return nil
}

// Thresholds converts the evaluation section to engine thresholds.
func (c Config) Thresholds() engine.StatusThresholds {
	return engine.StatusThresholds{
		CompliantPct:      decimal.NewFromInt(int64(c.Evaluation.CompliantPercent)),
		AtRiskPct:         decimal.NewFromInt(int64(c.Evaluation.AtRiskPercent)),
		ExpiryHorizonDays: c.Evaluation.ExpiryHorizonDays,
	}
}

// Rounding converts the evaluation section's rounding mode.
func (c Config) Rounding() engine.RoundingMode {
	return engine.RoundingMode(c.Evaluation.Rounding)
}
