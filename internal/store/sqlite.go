package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"qka/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// schema is applied on open. Monetary values are stored as decimal TEXT so
// that a journal reloads exactly; dates are stored as YYYY-MM-DD.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	strategy     TEXT NOT NULL,
	market       TEXT NOT NULL,
	start_date   TEXT NOT NULL,
	end_date     TEXT NOT NULL,
	initial_cash TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	seq          INTEGER NOT NULL,
	id           TEXT NOT NULL,
	date         TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	side         TEXT NOT NULL,
	qty          INTEGER NOT NULL,
	price        TEXT NOT NULL,
	commission   TEXT NOT NULL,
	cash_delta   TEXT NOT NULL,
	realized_pnl TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS snapshots (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	date         TEXT NOT NULL,
	cash         TEXT NOT NULL,
	market_value TEXT NOT NULL,
	total_equity TEXT NOT NULL,
	PRIMARY KEY (run_id, date)
);
`

const dateLayout = "2006-01-02"

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// SaveRun inserts a run header.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, strategy, market, start_date, end_date, initial_cash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Strategy, string(run.Market),
		run.Start.Format(dateLayout), run.End.Format(dateLayout),
		run.InitialCash.String(), run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a run by its ID. It returns ErrNotFound when absent.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, strategy, market, start_date, end_date, initial_cash, created_at
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns all runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy, market, start_date, end_date, initial_cash, created_at
		FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (domain.Run, error) {
	var (
		run              domain.Run
		market           string
		start, end, cash string
		created          int64
	)
	if err := sc.Scan(&run.ID, &run.Strategy, &market, &start, &end, &cash, &created); err != nil {
		return domain.Run{}, err
	}
	run.Market = domain.Market(market)
	var err error
	if run.Start, err = time.Parse(dateLayout, start); err != nil {
		return domain.Run{}, err
	}
	if run.End, err = time.Parse(dateLayout, end); err != nil {
		return domain.Run{}, err
	}
	if err := parseDecimal(&run.InitialCash, cash); err != nil {
		return domain.Run{}, err
	}
	run.CreatedAt = time.UnixMilli(created).UTC()
	return run, nil
}

// ---------------------------------------------------------------------------
// Trades
// ---------------------------------------------------------------------------

// SaveTrades appends trades to the run's log in a single transaction,
// continuing the sequence after any trades already stored.
func (s *SQLiteStore) SaveTrades(ctx context.Context, runID string, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var next int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq) + 1, 0) FROM trades WHERE run_id = ?`, runID).Scan(&next); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO trades (run_id, seq, id, date, symbol, side, qty, price, commission, cash_delta, realized_pnl)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, t := range trades {
			if _, err := stmt.ExecContext(ctx,
				runID, next+int64(i), t.ID, t.Date.Format(dateLayout), t.Symbol, string(t.Side), t.Qty,
				t.Price.String(), t.Commission.String(), t.CashDelta.String(), t.RealizedPnL.String(),
			); err != nil {
				return fmt.Errorf("saving trade %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// ListTrades returns the trades of a run in execution order.
func (s *SQLiteStore) ListTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, symbol, side, qty, price, commission, cash_delta, realized_pnl
		FROM trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t                                   domain.Trade
			date, side                          string
			price, commission, delta, realized string
		)
		if err := rows.Scan(&t.ID, &date, &t.Symbol, &side, &t.Qty, &price, &commission, &delta, &realized); err != nil {
			return nil, err
		}
		t.Side = domain.Side(side)
		if t.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, err
		}
		if err := errors.Join(
			parseDecimal(&t.Price, price),
			parseDecimal(&t.Commission, commission),
			parseDecimal(&t.CashDelta, delta),
			parseDecimal(&t.RealizedPnL, realized),
		); err != nil {
			return nil, fmt.Errorf("trade %s: %w", t.ID, err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// SaveSnapshots appends equity snapshots of a run in a single transaction.
func (s *SQLiteStore) SaveSnapshots(ctx context.Context, runID string, snaps []domain.EquitySnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO snapshots (run_id, date, cash, market_value, total_equity)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, sn := range snaps {
			if _, err := stmt.ExecContext(ctx,
				runID, sn.Date.Format(dateLayout),
				sn.Cash.String(), sn.MarketValue.String(), sn.TotalEquity.String(),
			); err != nil {
				return fmt.Errorf("saving snapshot %s: %w", sn.Date.Format(dateLayout), err)
			}
		}
		return nil
	})
}

// ListSnapshots returns the equity snapshots of a run in date order.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, runID string) ([]domain.EquitySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, cash, market_value, total_equity
		FROM snapshots WHERE run_id = ? ORDER BY date`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []domain.EquitySnapshot
	for rows.Next() {
		var (
			sn                      domain.EquitySnapshot
			date, cash, mv, equity string
		)
		if err := rows.Scan(&date, &cash, &mv, &equity); err != nil {
			return nil, err
		}
		if sn.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, err
		}
		if err := errors.Join(
			parseDecimal(&sn.Cash, cash),
			parseDecimal(&sn.MarketValue, mv),
			parseDecimal(&sn.TotalEquity, equity),
		); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", date, err)
		}
		snaps = append(snaps, sn)
	}
	return snaps, rows.Err()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// parseDecimal decodes one TEXT money column into dst.
func parseDecimal(dst *decimal.Decimal, s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("decimal column %q: %w", s, err)
	}
	*dst = d
	return nil
}
