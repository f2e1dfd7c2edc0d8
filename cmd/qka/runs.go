package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"qka/internal/config"
	"qka/internal/report"
	"qka/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List journaled backtest runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the summary of a journaled run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsShowCmd)
}

func openJournal() (*store.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.Storage.SQLitePath); err != nil {
		return nil, fmt.Errorf("journal %s: %w", cfg.Storage.SQLitePath, err)
	}
	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return db, nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	db, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context())
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTRATEGY\tMARKET\tSTART\tEND\tCASH\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Strategy, r.Market,
			r.Start.Format(config.DateLayout), r.End.Format(config.DateLayout),
			r.InitialCash.StringFixed(2), r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	db, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	run, err := db.GetRun(ctx, args[0])
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no run with id %s", args[0])
	}
	if err != nil {
		return err
	}
	snaps, err := db.ListSnapshots(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	trades, err := db.ListTrades(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s  %s  %s .. %s\n", run.ID, run.Strategy,
		run.Start.Format(config.DateLayout), run.End.Format(config.DateLayout))
	summary := report.Summarize(report.NewEquityCurve(run.InitialCash, snaps), trades)
	return summary.WriteText(out)
}
