package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"qka/internal/store"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List the symbols available in the parquet store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mkt := cfg.Backtest.Market
		if symbolsMarket != "" {
			mkt = symbolsMarket
		}
		syms, err := store.NewParquetStore(cfg.Storage.DataDir).ListSymbols(cmd.Context(), mkt)
		if err != nil {
			return fmt.Errorf("list symbols: %w", err)
		}
		for _, s := range syms {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
		return nil
	},
}

var symbolsMarket string

func init() {
	rootCmd.AddCommand(symbolsCmd)
	symbolsCmd.Flags().StringVar(&symbolsMarket, "market", "", "market to list (default from config)")
}
