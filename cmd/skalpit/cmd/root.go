package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "skalpit",
	Short: "An automated directional trading bot for Bybit inverse perpetuals",
	Long: `Skalpit trades a single instrument on Bybit, driven by confirmed
candles from the realtime stream.

It provides:
  - Live trading with exchange-authoritative balance tracking
  - Paper trading against the live market feed
  - Risk-based position sizing from a stop-loss distance
  - Pluggable candle-close strategies
  - Trade journaling to JSON files or SQLite`,
}

var verbose bool

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func newLogger() *logrus.Entry {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return logrus.NewEntry(log)
}
