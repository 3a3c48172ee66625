// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string
	Env         string
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Risk encodes the sizing rule and the guard-rails applied on top of it.
// The live detector deployments disagree on the exact constants, so every one
// of them is configuration, never a compiled-in protocol value.
type Risk struct {
	RiskFraction         float64 `yaml:"risk_fraction"`
	DailyCeilingFraction float64 `yaml:"daily_ceiling_fraction"`
	MinATRPips           float64 `yaml:"min_atr_pips"`
	MaxATRPips           float64 `yaml:"max_atr_pips"`
	RewardRiskMultiple   float64 `yaml:"reward_risk_multiple"`
}

// Poll tunes the mailbox and collaborator wait bounds.
type Poll struct {
	IntervalMs       int `yaml:"interval_ms"`
	ConsumeTimeoutMs int `yaml:"consume_timeout_ms"`
	BrokerTimeoutMs  int `yaml:"broker_timeout_ms"`
}

// Channel names one detector mailbox pairing and its bridge paths.
type Channel struct {
	Symbol      string  `yaml:"symbol"`
	SignalPath  string  `yaml:"signal_path"`
	CommandPath string  `yaml:"command_path"`
	ResultPath  string  `yaml:"result_path"`
	ATRPips     float64 `yaml:"atr_pips"`
}

// Asset overrides one asset-class profile row in the classifier table.
type Asset struct {
	Class            string   `yaml:"class"`
	Match            []string `yaml:"match"`
	PipSize          float64  `yaml:"pip_size"`
	USDPerPipPerUnit float64  `yaml:"usd_per_pip_per_unit"`
	MinUnits         float64  `yaml:"min_units"`
	MaxUnits         float64  `yaml:"max_units"`
	UnitStep         float64  `yaml:"unit_step"`
}

// Audit configures the decision store.
type Audit struct {
	Path string `yaml:"path"`
}

// Broker selects and configures the execution collaborator.
type Broker struct {
	Mode          string  `yaml:"mode"` // paper | bridge
	PaperBalance  float64 `yaml:"paper_balance"`
	PaperCurrency string  `yaml:"paper_currency"`
	ResultPollMs  int     `yaml:"result_poll_ms"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App       `yaml:"app"`
	Risk     Risk      `yaml:"risk"`
	Poll     Poll      `yaml:"poll"`
	Channels []Channel `yaml:"channels"`
	Assets   []Asset   `yaml:"assets"`
	Audit    Audit     `yaml:"audit"`
	Broker   Broker    `yaml:"broker"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyDefaults()
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Risk.RiskFraction <= 0 {
		c.Risk.RiskFraction = 0.0055
	}
	if c.Risk.DailyCeilingFraction <= 0 {
		c.Risk.DailyCeilingFraction = 0.02
	}
	if c.Risk.MinATRPips <= 0 {
		c.Risk.MinATRPips = 4
	}
	if c.Risk.MaxATRPips <= 0 {
		c.Risk.MaxATRPips = 15
	}
	if c.Risk.RewardRiskMultiple <= 0 {
		c.Risk.RewardRiskMultiple = 2.0
	}
	if c.Poll.IntervalMs <= 0 {
		c.Poll.IntervalMs = 250
	}
	if c.Poll.ConsumeTimeoutMs <= 0 {
		c.Poll.ConsumeTimeoutMs = 10000
	}
	if c.Poll.BrokerTimeoutMs <= 0 {
		c.Poll.BrokerTimeoutMs = 5000
	}
	if c.Broker.Mode == "" {
		c.Broker.Mode = "paper"
	}
	if c.Broker.PaperBalance <= 0 {
		c.Broker.PaperBalance = 10000
	}
	if c.Broker.PaperCurrency == "" {
		c.Broker.PaperCurrency = "USD"
	}
	if c.Broker.ResultPollMs <= 0 {
		c.Broker.ResultPollMs = 100
	}
	if c.Audit.Path == "" {
		c.Audit.Path = "data/decisions.jsonl"
	}
}

// GetEnv returns the environment value when set, the fallback otherwise.
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
