package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"qka/internal/config"
	"qka/internal/util"
)

var rootCmd = &cobra.Command{
	Use:   "qka",
	Short: "Back-test equity strategies on daily bars",
	Long: `qka replays daily China A-share bars through a strategy against a
simulated brokerage account and reports the resulting equity curve.

Typical workflow:
  qka import bars.csv          load bars into the parquet store
  qka backtest                 run the configured strategy
  qka runs                     list journaled runs`,
	SilenceUsage: true,
}

var cfgFile string

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default $QKA_CONFIG or "+config.DefaultPath+")")
}

// loadConfig reads and validates the configuration selected by --config.
func loadConfig() (*config.Config, error) {
	path := config.ResolvePath(cfgFile)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// newLogger builds the configured logger and installs it as the slog
// default.
func newLogger(cfg *config.Config) *slog.Logger {
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)
	return logger
}
