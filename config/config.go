// Package config holds the file-backed runtime configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/culda/skalpit/market"
	"github.com/culda/skalpit/strategies"
)

// Config is the complete runtime configuration.
type Config struct {
	Exchange ExchangeConfig `json:"exchange" yaml:"exchange"`
	Account  AccountConfig  `json:"account" yaml:"account"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Stream   StreamConfig   `json:"stream" yaml:"stream"`
}

// ExchangeConfig names the venue endpoints. API credentials never live
// in the file; they come from the environment variables named here.
type ExchangeConfig struct {
	Symbol    string `json:"symbol" yaml:"symbol"`
	Coin      string `json:"coin" yaml:"coin"`
	Testnet   bool   `json:"testnet" yaml:"testnet"`
	KeyEnv    string `json:"key_env" yaml:"key_env"`
	SecretEnv string `json:"secret_env" yaml:"secret_env"`
}

// AccountConfig contains account bookkeeping parameters. Balance is
// only the paper-trading start balance; live balance comes from the
// exchange.
type AccountConfig struct {
	Balance        float64 `json:"balance" yaml:"balance"`
	GraceWindow    string  `json:"grace_window,omitempty" yaml:"grace_window,omitempty"`
	QtyPrecision   int     `json:"qty_precision" yaml:"qty_precision"`
	PricePrecision int     `json:"price_precision" yaml:"price_precision"`
}

// ParseGraceWindow converts the grace window string to a duration,
// empty meaning "use the built-in default".
func (a AccountConfig) ParseGraceWindow() (time.Duration, error) {
	if a.GraceWindow == "" {
		return 0, nil
	}
	return time.ParseDuration(a.GraceWindow)
}

// StrategyConfig contains strategy parameters. RiskPercent is in
// percent units: 1 means one percent of balance per trade.
type StrategyConfig struct {
	Name        string   `json:"name" yaml:"name"`
	RiskPercent float64  `json:"risk_percent" yaml:"risk_percent"`
	Timeframes  []string `json:"timeframes" yaml:"timeframes"`
	Signal      string   `json:"signal" yaml:"signal"`
	Warmup      int      `json:"warmup" yaml:"warmup"`
	FastPeriod  int      `json:"fast_period" yaml:"fast_period"`
	SlowPeriod  int      `json:"slow_period" yaml:"slow_period"`
	ATRPeriod   int      `json:"atr_period" yaml:"atr_period"`
	StopATR     float64  `json:"stop_atr" yaml:"stop_atr"`
	TakeATR     float64  `json:"take_atr" yaml:"take_atr"`
}

// StrategyOptions maps the file section onto the strategy registry's
// constructor config.
func (s StrategyConfig) Options() strategies.Config {
	return strategies.Config{
		Timeframe:  market.Timeframe(s.Signal),
		FastPeriod: s.FastPeriod,
		SlowPeriod: s.SlowPeriod,
		ATRPeriod:  s.ATRPeriod,
		StopATR:    s.StopATR,
		TakeATR:    s.TakeATR,
	}
}

// JournalConfig contains trade export parameters.
type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "file" or "sqlite"
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// StreamConfig contains websocket session parameters.
type StreamConfig struct {
	SeedBars       int    `json:"seed_bars" yaml:"seed_bars"`
	Capacity       int    `json:"capacity" yaml:"capacity"`
	ReadTimeout    string `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty"`
	PingInterval   string `json:"ping_interval,omitempty" yaml:"ping_interval,omitempty"`
	ReconnectDelay string `json:"reconnect_delay,omitempty" yaml:"reconnect_delay,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (format chosen by extension).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if (len(path) > 5 && path[len(path)-5:] == ".yaml") || (len(path) > 4 && path[len(path)-4:] == ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// ParsedTimeframes parses the configured frame names.
func (c *Config) ParsedTimeframes() ([]market.Timeframe, error) {
	frames := make([]market.Timeframe, 0, len(c.Strategy.Timeframes))
	for _, s := range c.Strategy.Timeframes {
		tf, err := market.ParseTimeframe(s)
		if err != nil {
			return nil, err
		}
		frames = append(frames, tf)
	}
	return frames, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Exchange.Symbol == "" {
		return fmt.Errorf("exchange.symbol is required")
	}
	if c.Exchange.Coin == "" {
		return fmt.Errorf("exchange.coin is required")
	}
	if c.Account.Balance < 0 {
		return fmt.Errorf("account.balance must not be negative")
	}
	if _, err := c.Account.ParseGraceWindow(); err != nil {
		return fmt.Errorf("account.grace_window: %w", err)
	}
	if c.Account.QtyPrecision < 0 || c.Account.PricePrecision < 0 {
		return fmt.Errorf("account precisions must not be negative")
	}
	if c.Strategy.RiskPercent <= 0 || c.Strategy.RiskPercent > 100 {
		return fmt.Errorf("strategy.risk_percent must be between 0 and 100")
	}
	if _, err := strategies.ByName(c.Strategy.Name, c.Strategy.Options()); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if len(c.Strategy.Timeframes) == 0 {
		return fmt.Errorf("strategy.timeframes is required")
	}
	frames, err := c.ParsedTimeframes()
	if err != nil {
		return fmt.Errorf("strategy.timeframes: %w", err)
	}
	signal, err := market.ParseTimeframe(c.Strategy.Signal)
	if err != nil {
		return fmt.Errorf("strategy.signal: %w", err)
	}
	found := false
	for _, tf := range frames {
		if tf == signal {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("strategy.signal %q must be one of strategy.timeframes", c.Strategy.Signal)
	}
	if c.Strategy.Warmup <= 0 {
		return fmt.Errorf("strategy.warmup must be positive")
	}
	if c.Journal.Type != "file" && c.Journal.Type != "sqlite" {
		return fmt.Errorf("journal.type must be 'file' or 'sqlite'")
	}
	if c.Journal.Type == "file" && c.Journal.Dir == "" {
		return fmt.Errorf("journal.dir required for file type")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path required for sqlite type")
	}
	for _, d := range []struct{ name, v string }{
		{"stream.read_timeout", c.Stream.ReadTimeout},
		{"stream.ping_interval", c.Stream.PingInterval},
		{"stream.reconnect_delay", c.Stream.ReconnectDelay},
	} {
		if d.v == "" {
			continue
		}
		if _, err := time.ParseDuration(d.v); err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Exchange: ExchangeConfig{
			Symbol:    "BTCUSD",
			Coin:      "BTC",
			Testnet:   true,
			KeyEnv:    "BYBIT_PUBLIC_TRADE",
			SecretEnv: "BYBIT_SECRET_TRADE",
		},
		Account: AccountConfig{
			Balance:        1,
			QtyPrecision:   8,
			PricePrecision: 2,
		},
		Strategy: StrategyConfig{
			Name:        "ema-atr",
			RiskPercent: 1,
			Timeframes:  []string{"1m", "15m", "1h"},
			Signal:      "15m",
			Warmup:      50,
			FastPeriod:  12,
			SlowPeriod:  26,
			ATRPeriod:   14,
			StopATR:     1.5,
			TakeATR:     3,
		},
		Journal: JournalConfig{
			Type: "file",
			Dir:  "./trades",
		},
		Stream: StreamConfig{
			SeedBars: 200,
			Capacity: 2000,
		},
	}
}
