package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/culda/skalpit/market"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Default().Validate())
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "skalpit.yaml")
	doc := `
exchange:
  symbol: BTCUSD
  coin: BTC
  testnet: true
  key_env: BYBIT_PUBLIC_TRADE
  secret_env: BYBIT_SECRET_TRADE
account:
  balance: 0.5
  grace_window: 5s
  qty_precision: 8
  price_precision: 2
strategy:
  name: ema-atr
  risk_percent: 2
  timeframes: [1m, 15m, 1h]
  signal: 15m
  warmup: 50
  fast_period: 12
  slow_period: 26
  atr_period: 14
  stop_atr: 1.5
  take_atr: 3
journal:
  type: sqlite
  db_path: ./trades.db
stream:
  seed_bars: 200
  capacity: 1000
  read_timeout: 10s
  ping_interval: 60s
  reconnect_delay: 5s
`
	assert.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadFromFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "BTCUSD", cfg.Exchange.Symbol)
	assert.Equal(t, 2.0, cfg.Strategy.RiskPercent)
	assert.Equal(t, "sqlite", cfg.Journal.Type)

	grace, err := cfg.Account.ParseGraceWindow()
	assert.NoError(t, err)
	assert.Equal(t, 5*time.Second, grace)

	frames, err := cfg.ParsedTimeframes()
	assert.NoError(t, err)
	assert.Equal(t, []market.Timeframe{market.M1, market.M15, market.H1}, frames)
}

func TestLoadFromJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "skalpit.json")
	cfg := Default()
	assert.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	assert.NoError(t, err)
	assert.Equal(t, cfg.Exchange.Symbol, loaded.Exchange.Symbol)
	assert.Equal(t, cfg.Strategy.Name, loaded.Strategy.Name)
}

func TestSaveYAMLRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "skalpit.yaml")
	cfg := Default()
	cfg.Strategy.RiskPercent = 4

	assert.NoError(t, cfg.SaveToFile(path))
	loaded, err := LoadFromFile(path)
	assert.NoError(t, err)
	assert.Equal(t, 4.0, loaded.Strategy.RiskPercent)
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing symbol", func(c *Config) { c.Exchange.Symbol = "" }},
		{"missing coin", func(c *Config) { c.Exchange.Coin = "" }},
		{"negative balance", func(c *Config) { c.Account.Balance = -1 }},
		{"bad grace window", func(c *Config) { c.Account.GraceWindow = "soon" }},
		{"zero risk", func(c *Config) { c.Strategy.RiskPercent = 0 }},
		{"risk above 100", func(c *Config) { c.Strategy.RiskPercent = 150 }},
		{"unknown strategy", func(c *Config) { c.Strategy.Name = "hodl" }},
		{"no timeframes", func(c *Config) { c.Strategy.Timeframes = nil }},
		{"bad timeframe", func(c *Config) { c.Strategy.Timeframes = []string{"3d"} }},
		{"signal not tracked", func(c *Config) { c.Strategy.Signal = "1h"; c.Strategy.Timeframes = []string{"1m"} }},
		{"zero warmup", func(c *Config) { c.Strategy.Warmup = 0 }},
		{"bad journal type", func(c *Config) { c.Journal.Type = "csv" }},
		{"sqlite without path", func(c *Config) { c.Journal.Type = "sqlite"; c.Journal.DBPath = "" }},
		{"file without dir", func(c *Config) { c.Journal.Type = "file"; c.Journal.Dir = "" }},
		{"bad read timeout", func(c *Config) { c.Stream.ReadTimeout = "often" }},
	} {
		cfg := Default()
		tc.mutate(cfg)
		assert.Error(t, cfg.Validate(), tc.name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
