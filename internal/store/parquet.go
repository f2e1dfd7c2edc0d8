package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"qka/internal/domain"
)

// Compile-time interface check.
var _ BarStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore with one Parquet file per symbol and
// calendar year:
//
//	<DataDir>/<market>/daily/<SYMBOL>/<YYYY>.parquet
//
// Bars are keyed by symbol and UTC trading day. Rows of a file are kept in
// date order.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// On-disk schema
// ---------------------------------------------------------------------------

// BarRecord is the Parquet row of one daily bar. Date is midnight UTC of the
// trading day.
type BarRecord struct {
	Symbol string  `parquet:"symbol"`
	Date   int64   `parquet:"date,timestamp(millisecond)"` // Unix ms
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
	Volume int64   `parquet:"volume"`
	Amount float64 `parquet:"amount"`
}

func recordFromBar(symbol string, b domain.Bar) BarRecord {
	return BarRecord{
		Symbol: symbol,
		Date:   tradingDay(b.Timestamp).UnixMilli(),
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
		Amount: b.Amount,
	}
}

func (r BarRecord) bar() domain.Bar {
	return domain.Bar{
		Symbol:    r.Symbol,
		Timestamp: time.UnixMilli(r.Date).UTC(),
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
		Amount:    r.Amount,
	}
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars stores bars under the "cn" market. Use WriteBarsForMarket for
// other markets.
func (s *ParquetStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	return s.WriteBarsForMarket(bars, string(domain.MarketCN))
}

// WriteBarsForMarket merges bars into the year files of market. Symbols are
// normalized to exchange-qualified form and a bar replaces any stored bar of
// the same symbol and day. Each touched file is rewritten atomically.
func (s *ParquetStore) WriteBarsForMarket(bars []domain.Bar, market string) error {
	type partition struct {
		symbol string
		year   int
	}
	parts := make(map[partition][]BarRecord)
	for i, b := range bars {
		sym, err := domain.NormalizeSymbol(b.Symbol)
		if err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
		p := partition{symbol: sym, year: tradingDay(b.Timestamp).Year()}
		parts[p] = append(parts[p], recordFromBar(sym, b))
	}

	for p, incoming := range parts {
		path := s.barPath(p.symbol, market, p.year)
		existing, err := readParquetFile[BarRecord](path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading existing bars for %s/%d: %w", p.symbol, p.year, err)
		}
		if err := writeParquetFile(path, mergeBarRecords(existing, incoming)); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", p.symbol, p.year, err)
		}
	}
	return nil
}

// ReadBars returns the bars of symbol with a trading day in [start, end], in
// date order. Years without a file are skipped.
func (s *ParquetStore) ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error) {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	from, to := tradingDay(start), tradingDay(end)

	var bars []domain.Bar
	for year := from.Year(); year <= to.Year(); year++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := s.barPath(sym, market, year)
		records, err := readParquetFile[BarRecord](path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		for _, r := range records {
			if r.Date >= from.UnixMilli() && r.Date <= to.UnixMilli() {
				bars = append(bars, r.bar())
			}
		}
	}
	return bars, nil
}

// ListSymbols returns the sorted symbols of market that have a bar
// directory. Directories that are not valid symbols are ignored.
func (s *ParquetStore) ListSymbols(_ context.Context, market string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, market, "daily"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if sym, err := domain.NormalizeSymbol(e.Name()); err == nil && sym == e.Name() {
			symbols = append(symbols, sym)
		}
	}
	slices.Sort(symbols)
	return symbols, nil
}

// barPath returns the year file of symbol, which must be normalized.
func (s *ParquetStore) barPath(symbol, market string, year int) string {
	return filepath.Join(s.DataDir, market, "daily", symbol, strconv.Itoa(year)+".parquet")
}

func tradingDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

// writeParquetFile writes records to a temporary file beside path and renames
// it into place, so readers never see a partially written year.
func writeParquetFile[T any](path string, records []T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*.parquet")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := parquet.Write(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// readParquetFile returns an error matching fs.ErrNotExist when path is
// missing.
func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return parquet.ReadFile[T](path)
}

// mergeBarRecords combines two record sets of one symbol, letting incoming
// rows win on equal dates. The result is sorted by date.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	byDate := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		byDate[r.Date] = r
	}
	for _, r := range incoming {
		byDate[r.Date] = r
	}

	merged := make([]BarRecord, 0, len(byDate))
	for _, r := range byDate {
		merged = append(merged, r)
	}
	slices.SortFunc(merged, func(a, b BarRecord) int { return cmp.Compare(a.Date, b.Date) })
	return merged
}
