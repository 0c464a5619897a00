package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/culda/skalpit/account"
	"github.com/culda/skalpit/config"
	"github.com/culda/skalpit/engine"
	"github.com/culda/skalpit/exchange/bybit"
)

var paperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Paper trade against the live market feed",
	Long: `Run the bot against live Bybit market data without placing orders.

Positions are settled locally against the last close price and the
start balance comes from the config file. No credentials are needed.

Example:
  skalpit paper -f skalpit.yaml`,
	RunE: runPaper,
}

var paperConfigPath string

func init() {
	rootCmd.AddCommand(paperCmd)

	paperCmd.Flags().StringVarP(&paperConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	paperCmd.MarkFlagRequired("config")
}

func runPaper(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(paperConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive for paper trading")
	}

	log := newLogger().WithField("symbol", cfg.Exchange.Symbol)
	log.WithField("balance", cfg.Account.Balance).Info("starting paper session")

	// No credentials: the stream stays on public topics and the paper
	// exchange fills everything instantly on our side.
	rest := newREST(cfg, bybit.Credentials{}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return trade(ctx, cfg, cfg.Account.Balance, account.SimSettler{},
		&paperExchange{log: log}, bybit.Credentials{}, rest, true, log)
}

// paperExchange accepts every order without touching the exchange.
type paperExchange struct {
	log *logrus.Entry
}

var _ engine.Exchange = (*paperExchange)(nil)

func (p *paperExchange) PlaceEntry(ctx context.Context, side account.Side, qty, stopLoss float64) error {
	p.log.WithFields(logrus.Fields{"side": side, "qty": qty, "stop": stopLoss}).Info("paper entry")
	return nil
}

func (p *paperExchange) PlaceTakeProfit(ctx context.Context, side account.Side, qty, price float64) error {
	p.log.WithFields(logrus.Fields{"side": side, "qty": qty, "price": price}).Info("paper take-profit")
	return nil
}

func (p *paperExchange) CancelAll(ctx context.Context) error { return nil }
