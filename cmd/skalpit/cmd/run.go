package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/culda/skalpit/account"
	"github.com/culda/skalpit/config"
	"github.com/culda/skalpit/engine"
	"github.com/culda/skalpit/exchange/bybit"
	"github.com/culda/skalpit/journal"
	"github.com/culda/skalpit/market"
	"github.com/culda/skalpit/strategies"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Trade live from a config file",
	Long: `Run the bot against a live Bybit account.

Credentials are read from the environment variables named in the config
file (BYBIT_PUBLIC_TRADE and BYBIT_SECRET_TRADE by default). The start
balance is fetched from the exchange wallet.

Example:
  skalpit run -f skalpit.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	creds := bybit.Credentials{
		Key:    os.Getenv(cfg.Exchange.KeyEnv),
		Secret: os.Getenv(cfg.Exchange.SecretEnv),
	}
	if creds.Key == "" || creds.Secret == "" {
		return fmt.Errorf("credentials required: set %s and %s", cfg.Exchange.KeyEnv, cfg.Exchange.SecretEnv)
	}

	log := newLogger().WithField("symbol", cfg.Exchange.Symbol)
	rest := newREST(cfg, creds, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	balance, err := rest.WalletBalance(ctx, cfg.Exchange.Coin)
	if err != nil {
		return fmt.Errorf("fetch wallet balance: %w", err)
	}
	log.WithField("balance", balance).Info("starting live session")

	return trade(ctx, cfg, balance, account.LiveSettler{}, rest, creds, rest, false, log)
}

// trade wires the account, strategy, engine and stream together and
// blocks until the context ends. The entry exchange differs between
// live and paper; everything else is shared.
func trade(ctx context.Context, cfg *config.Config, balance float64, settler account.Settler,
	ex engine.Exchange, creds bybit.Credentials, rest *bybit.Client, simulate bool, log *logrus.Entry) error {

	j, err := buildJournal(cfg)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	grace, _ := cfg.Account.ParseGraceWindow()
	acct := account.New(account.Config{
		StartBalance: balance,
		GraceWindow:  grace,
		QtyPrecision: cfg.Account.QtyPrecision,
	}, settler, j, log)

	strat, err := strategies.ByName(cfg.Strategy.Name, cfg.Strategy.Options())
	if err != nil {
		return fmt.Errorf("build strategy: %w", err)
	}

	frames, err := cfg.ParsedTimeframes()
	if err != nil {
		return err
	}
	signalTF, err := market.ParseTimeframe(cfg.Strategy.Signal)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Config{
		Timeframes:      frames,
		SignalTimeframe: signalTF,
		Capacity:        cfg.Stream.Capacity,
		Warmup:          cfg.Strategy.Warmup,
		RiskPercent:     cfg.Strategy.RiskPercent,
		PricePrecision:  cfg.Account.PricePrecision,
		Simulate:        simulate,
	}, acct, strat, ex, log)

	ws := bybit.NewWS(bybit.WSConfig{
		URL:            wsURL(cfg),
		Symbol:         cfg.Exchange.Symbol,
		Timeframes:     frames,
		SeedBars:       cfg.Stream.SeedBars,
		ReadTimeout:    duration(cfg.Stream.ReadTimeout),
		PingInterval:   duration(cfg.Stream.PingInterval),
		ReconnectDelay: duration(cfg.Stream.ReconnectDelay),
	}, creds, rest, log)

	go ws.Run(ctx)
	err = eng.Run(ctx, ws.Events())

	stats := acct.Stats()
	log.WithFields(logrus.Fields{
		"balance":      stats.Balance,
		"trades":       stats.TotalTrades,
		"won":          stats.TotalWon,
		"lost":         stats.TotalLost,
		"max_drawdown": stats.MaxDrawdown,
	}).Info("session ended")

	if err == context.Canceled {
		return nil
	}
	return err
}

func buildJournal(cfg *config.Config) (journal.Journal, error) {
	if cfg.Journal.Type == "sqlite" {
		return journal.NewSQLite(cfg.Journal.DBPath)
	}
	return journal.NewFile(cfg.Journal.Dir)
}

func newREST(cfg *config.Config, creds bybit.Credentials, log *logrus.Entry) *bybit.Client {
	base := bybit.MainnetREST
	if cfg.Exchange.Testnet {
		base = bybit.TestnetREST
	}
	return bybit.NewClient(base, cfg.Exchange.Symbol, creds, log)
}

func wsURL(cfg *config.Config) string {
	if cfg.Exchange.Testnet {
		return bybit.TestnetWS
	}
	return bybit.MainnetWS
}

func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s) // validated at config load
	return d
}
