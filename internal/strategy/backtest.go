package strategy

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"qka/internal/broker"
	"qka/internal/domain"
	"qka/internal/market"
	"qka/internal/report"
)

// ErrAlreadyRun is returned by Run on a Backtester that has already run.
var ErrAlreadyRun = errors.New("backtester has already run")

// DataSource is the fully materialized market data of a run.
// *market.Frame implements it.
type DataSource interface {
	// Dates returns the trading dates. They must be strictly increasing.
	Dates() []time.Time

	// Symbols returns the exchange-qualified symbols the source prices.
	Symbols() []string

	// Column returns the readings of column on date keyed by bare code.
	Column(date time.Time, column string) (market.Series, error)

	// Price returns the valuation price of an exchange-qualified symbol on
	// date, and false when it did not trade.
	Price(date time.Time, symbol string) (decimal.Decimal, bool)
}

var _ DataSource = (*market.Frame)(nil)

// State is the lifecycle stage of a Backtester.
type State int

const (
	StateInitialized State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Result is the output of a run. On failure it holds everything produced
// before the failing bar.
type Result struct {
	RunID       string
	Strategy    string
	Start       time.Time // first snapshotted date
	End         time.Time // last snapshotted date
	InitialCash decimal.Decimal
	Snapshots   []domain.EquitySnapshot
	Trades      []domain.Trade
	Summary     report.Summary
}

// Curve returns the equity curve of the result.
func (r *Result) Curve() *report.EquityCurve {
	return report.NewEquityCurve(r.InitialCash, r.Snapshots)
}

// Run returns the journal header of the result.
func (r *Result) Run(mkt domain.Market, createdAt time.Time) *domain.Run {
	return &domain.Run{
		ID:          r.RunID,
		Strategy:    r.Strategy,
		Market:      mkt,
		Start:       r.Start,
		End:         r.End,
		InitialCash: r.InitialCash,
		CreatedAt:   createdAt,
	}
}

// Backtester replays a DataSource through one Strategy. Bars are processed
// strictly sequentially: the strategy callback and the equity snapshot of a
// date complete before the next date starts. A Backtester runs once.
type Backtester struct {
	src      DataSource
	strategy Strategy
	logger   *slog.Logger

	runID     string
	state     State
	initial   decimal.Decimal
	symbols   []string
	lastClose map[string]decimal.Decimal // symbol -> latest close up to the current bar
	snapshots []domain.EquitySnapshot
}

// NewBacktester creates a Backtester for strategy over src. A nil logger
// discards output.
func NewBacktester(src DataSource, strategy Strategy, logger *slog.Logger) *Backtester {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	runID := uuid.NewString()
	return &Backtester{
		src:       src,
		strategy:  strategy,
		logger:    logger.With("run_id", runID, "strategy", strategy.Name()),
		runID:     runID,
		state:     StateInitialized,
		lastClose: make(map[string]decimal.Decimal),
	}
}

// RunID returns the identifier of this run.
func (bt *Backtester) RunID() string { return bt.runID }

// State returns the current lifecycle state.
func (bt *Backtester) State() State { return bt.state }

// Run processes every date of the data source in order. Any error from the
// strategy, a broker rejection it did not handle, a missing valuation price
// or an out-of-order date aborts the run; the returned Result then holds the
// snapshots already produced.
func (bt *Backtester) Run() (*Result, error) {
	if bt.state != StateInitialized {
		return nil, fmt.Errorf("run %s is %s: %w", bt.runID, bt.state, ErrAlreadyRun)
	}
	bt.state = StateRunning

	b := bt.strategy.Broker()
	bt.initial = b.Cash()
	if len(b.Trades()) > 0 {
		bt.logger.Warn("broker already has trades; initial cash is the current balance")
	}

	dates := bt.src.Dates()
	bt.symbols = bt.src.Symbols()
	bt.logger.Info("backtest started", "dates", len(dates), "cash", bt.initial.StringFixed(2))

	var prev time.Time
	for i, date := range dates {
		if i > 0 && !date.After(prev) {
			return bt.fail(&domain.DataSourceContractError{Date: date, Previous: prev})
		}
		if err := bt.step(date, b); err != nil {
			return bt.fail(err)
		}
		prev = date
	}

	bt.state = StateCompleted
	res := bt.result(b)
	bt.logger.Info("backtest completed",
		"dates", len(res.Snapshots),
		"trades", len(res.Trades),
		"total_return", res.Summary.TotalReturn,
	)
	return res, nil
}

func (bt *Backtester) step(date time.Time, b broker.Broker) error {
	get := func(column string) (market.Series, error) {
		return bt.src.Column(date, column)
	}
	if err := bt.strategy.OnBar(date, get); err != nil {
		return fmt.Errorf("on bar %s: %w", date.Format(time.DateOnly), err)
	}

	bt.recordCloses(date)
	snap, err := b.Snapshot(date, bt.priceOn(date))
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", date.Format(time.DateOnly), err)
	}
	bt.snapshots = append(bt.snapshots, snap)
	bt.logger.Debug("bar processed",
		"date", date.Format(time.DateOnly),
		"cash", snap.Cash.StringFixed(2),
		"equity", snap.TotalEquity.StringFixed(2),
	)
	return nil
}

// recordCloses remembers the close of every symbol that traded on date,
// held or not, so a position opened during a suspension is valued at the
// symbol's latest close.
func (bt *Backtester) recordCloses(date time.Time) {
	for _, sym := range bt.symbols {
		if px, ok := bt.src.Price(date, sym); ok {
			bt.lastClose[sym] = px
		}
	}
}

// priceOn values holdings at the close of date. A held symbol without a
// close that day (suspended) is valued at its last close before date.
func (bt *Backtester) priceOn(date time.Time) broker.PriceFunc {
	return func(symbol string) (decimal.Decimal, error) {
		if px, ok := bt.src.Price(date, symbol); ok {
			return px, nil
		}
		if px, ok := bt.lastClose[symbol]; ok {
			return px, nil
		}
		return decimal.Zero, &domain.MissingPriceError{Symbol: symbol, Column: market.ColumnClose, Date: date}
	}
}

func (bt *Backtester) fail(err error) (*Result, error) {
	bt.state = StateFailed
	res := bt.result(bt.strategy.Broker())
	bt.logger.Error("backtest failed", "error", err, "dates", len(res.Snapshots))
	return res, err
}

func (bt *Backtester) result(b broker.Broker) *Result {
	res := &Result{
		RunID:       bt.runID,
		Strategy:    bt.strategy.Name(),
		InitialCash: bt.initial,
		Snapshots:   append([]domain.EquitySnapshot(nil), bt.snapshots...),
		Trades:      b.Trades(),
	}
	if n := len(res.Snapshots); n > 0 {
		res.Start = res.Snapshots[0].Date
		res.End = res.Snapshots[n-1].Date
	}
	res.Summary = report.Summarize(res.Curve(), res.Trades)
	return res
}
