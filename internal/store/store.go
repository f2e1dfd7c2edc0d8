// Package store defines storage interfaces for persisting and retrieving
// market bars and backtest journals (runs, trades, equity snapshots).
package store

import (
	"context"
	"errors"
	"time"

	"qka/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// RunStore journals completed or aborted backtest runs.
type RunStore interface {
	// SaveRun inserts a run header.
	SaveRun(ctx context.Context, run *domain.Run) error

	// GetRun retrieves a run by its ID.
	GetRun(ctx context.Context, id string) (*domain.Run, error)

	// ListRuns returns all runs, newest first.
	ListRuns(ctx context.Context) ([]domain.Run, error)

	// SaveTrades appends the trade log of a run.
	SaveTrades(ctx context.Context, runID string, trades []domain.Trade) error

	// ListTrades returns the trades of a run in execution order.
	ListTrades(ctx context.Context, runID string) ([]domain.Trade, error)

	// SaveSnapshots appends the equity snapshots of a run.
	SaveSnapshots(ctx context.Context, runID string, snaps []domain.EquitySnapshot) error

	// ListSnapshots returns the equity snapshots of a run in date order.
	ListSnapshots(ctx context.Context, runID string) ([]domain.EquitySnapshot, error)
}
