package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"qka/internal/domain"
	"qka/internal/store"
	"qka/internal/util"
)

var importCmd = &cobra.Command{
	Use:   "import <csv>...",
	Short: "Load daily bars from CSV files into the parquet store",
	Long: `Each file must have the header

  date,symbol,open,high,low,close,volume,amount

Bars dated on a weekend or a configured holiday are dropped. Bars already stored for the same
symbol and date are replaced.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var importMarket string

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importMarket, "market", "", "market directory to write (default from config)")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	mkt := cfg.Backtest.Market
	if importMarket != "" {
		mkt = importMarket
	}

	ps := store.NewParquetStore(cfg.Storage.DataDir)
	cal := util.NewTradingCalendar(domain.Market(mkt))
	holidays, err := cfg.Holidays()
	if err != nil {
		return err
	}
	for _, h := range holidays {
		cal.AddHoliday(h)
	}
	var total int
	for _, path := range args {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		bars, err := readCSVFile(path)
		if err != nil {
			return err
		}

		kept := bars[:0]
		for _, b := range bars {
			if !cal.IsTradingDay(b.Timestamp) {
				logger.Warn("dropping bar on non-trading day",
					"file", path, "symbol", b.Symbol, "date", b.Timestamp.Format("2006-01-02"))
				continue
			}
			kept = append(kept, b)
		}
		if err := ps.WriteBarsForMarket(kept, mkt); err != nil {
			return fmt.Errorf("store %s: %w", path, err)
		}
		logger.Info("imported bars", "file", path, "bars", len(kept), "dropped", len(bars)-len(kept))
		total += len(kept)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d bars into %s/%s\n", total, cfg.Storage.DataDir, mkt)
	return nil
}

func readCSVFile(path string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bars, err := store.ReadBarsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}
