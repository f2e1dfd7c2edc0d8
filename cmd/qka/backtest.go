package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"qka/internal/broker"
	"qka/internal/config"
	"qka/internal/domain"
	"qka/internal/market"
	"qka/internal/report"
	"qka/internal/store"
	"qka/internal/strategy"
	"qka/internal/strategy/builtins"
	"qka/internal/util"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the configured strategy over stored bars",
	Long: `Replay the bars of the configured universe through a strategy and print
a performance summary. Unless --no-journal is given the run, its trades and
its equity snapshots are saved to the SQLite journal.`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

var (
	btStrategy  string
	btSymbols   []string
	btStart     string
	btEnd       string
	btCurveOut  string
	btTradesOut string
	btNoJournal bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	f := backtestCmd.Flags()
	f.StringVar(&btStrategy, "strategy", "", "strategy name (overrides config)")
	f.StringSliceVar(&btSymbols, "symbols", nil, "symbols to load (overrides config)")
	f.StringVar(&btStart, "start", "", "first date, YYYY-MM-DD (overrides config)")
	f.StringVar(&btEnd, "end", "", "last date, YYYY-MM-DD (overrides config)")
	f.StringVar(&btCurveOut, "curve", "", "write the equity curve as CSV to this file")
	f.StringVar(&btTradesOut, "trades", "", "write the trade log as CSV to this file")
	f.BoolVar(&btNoJournal, "no-journal", false, "do not save the run to the journal")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyBacktestFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	logger := newLogger(cfg)
	ctx := cmd.Context()

	start, end, err := backtestWindow(cfg, time.Now())
	if err != nil {
		return err
	}

	bcfg, err := cfg.BrokerConfig()
	if err != nil {
		return err
	}
	b, err := broker.NewSimulatorBroker(bcfg)
	if err != nil {
		return err
	}
	strat, err := builtins.NewRegistry().New(cfg.Backtest.Strategy, b, cfg.Backtest.Symbols, strategy.Params(cfg.Backtest.Params))
	if err != nil {
		return err
	}

	mkt := domain.Market(cfg.Backtest.Market)
	frame, err := market.LoadFrame(ctx, store.NewParquetStore(cfg.Storage.DataDir), mkt,
		cfg.Backtest.Symbols, start, end)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}
	if len(frame.Dates()) == 0 {
		return fmt.Errorf("no bars for %s between %s and %s in %s", mkt,
			start.Format(config.DateLayout), end.Format(config.DateLayout), cfg.Storage.DataDir)
	}
	logger.Info("bars loaded",
		"symbols", len(frame.Symbols()),
		"dates", len(frame.Dates()),
		"start", start.Format(config.DateLayout),
		"end", end.Format(config.DateLayout),
	)

	bt := strategy.NewBacktester(frame, strat, logger)
	res, runErr := bt.Run()
	if res == nil {
		return runErr
	}

	if !btNoJournal {
		if err := journalResult(ctx, cfg, res, mkt, logger); err != nil {
			return errors.Join(runErr, err)
		}
	}
	if err := writeCSV(btCurveOut, func(f *os.File) error { return report.WriteCurveCSV(f, res.Snapshots) }); err != nil {
		return errors.Join(runErr, err)
	}
	if err := writeCSV(btTradesOut, func(f *os.File) error { return report.WriteTradesCSV(f, res.Trades) }); err != nil {
		return errors.Join(runErr, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s  %s  %s .. %s\n", res.RunID, res.Strategy,
		res.Start.Format(config.DateLayout), res.End.Format(config.DateLayout))
	if err := res.Summary.WriteText(out); err != nil {
		return err
	}
	return runErr
}

func applyBacktestFlags(cfg *config.Config) {
	if btStrategy != "" {
		cfg.Backtest.Strategy = btStrategy
	}
	if len(btSymbols) > 0 {
		cfg.Backtest.Symbols = btSymbols
	}
	if btStart != "" {
		cfg.Backtest.StartDate = btStart
	}
	if btEnd != "" {
		cfg.Backtest.EndDate = btEnd
	}
}

// backtestWindow returns the configured date range. An unset end defaults to
// today and an unset start to one year before the end.
func backtestWindow(cfg *config.Config, now time.Time) (time.Time, time.Time, error) {
	start, err := cfg.Start()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := cfg.End()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.IsZero() {
		y, m, d := now.UTC().Date()
		end = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	if start.IsZero() {
		start = end.AddDate(-1, 0, 0)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s is before start %s",
			end.Format(config.DateLayout), start.Format(config.DateLayout))
	}
	return start, end, nil
}

// journalResult saves res to the SQLite journal. Writes are retried while
// another process holds the database lock.
func journalResult(ctx context.Context, cfg *config.Config, res *strategy.Result, mkt domain.Market, logger *slog.Logger) error {
	if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}
	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer db.Close()

	run := res.Run(mkt, time.Now().UTC())
	steps := []struct {
		name string
		fn   func() error
	}{
		{"run", func() error { return db.SaveRun(ctx, run) }},
		{"trades", func() error { return db.SaveTrades(ctx, run.ID, res.Trades) }},
		{"snapshots", func() error { return db.SaveSnapshots(ctx, run.ID, res.Snapshots) }},
	}
	for _, s := range steps {
		if err := util.RetryIf(ctx, 5, 100*time.Millisecond, isBusy, s.fn); err != nil {
			return fmt.Errorf("journal %s: %w", s.name, err)
		}
	}
	logger.Info("run journaled", "run_id", run.ID, "db", cfg.Storage.SQLitePath)
	return nil
}

// isBusy reports whether err is a SQLite lock conflict worth retrying.
// Extended codes such as SQLITE_BUSY_SNAPSHOT carry the primary code in
// the low byte.
func isBusy(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// writeCSV creates path and fills it with write. An empty path is a no-op.
func writeCSV(path string, write func(*os.File) error) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
