package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"qka/internal/domain"
	"qka/internal/store"
)

// Bar column names.
const (
	ColumnOpen   = "open"
	ColumnHigh   = "high"
	ColumnLow    = "low"
	ColumnClose  = "close"
	ColumnVolume = "volume"
	ColumnAmount = "amount"
)

// Frame is a dense date × symbol table. It is built completely before a
// backtest starts and is not modified while one runs.
type Frame struct {
	symbols []string             // exchange-qualified, sorted
	codes   map[string]string    // symbol -> bare code
	symIdx  map[string]int       // symbol -> position in symbols
	dates   []time.Time          // ascending, unique
	index   map[time.Time]int    // date -> row
	columns map[string][][]Value // column -> row -> symbol position
}

// NewFrame builds a Frame from bars of any number of symbols. Bar dates are
// truncated to the UTC day. A later bar for the same symbol and day replaces
// an earlier one. Two symbols sharing a bare code are rejected since Series
// keys would collide.
func NewFrame(bars []domain.Bar) (*Frame, error) {
	f := &Frame{
		codes:   make(map[string]string),
		symIdx:  make(map[string]int),
		index:   make(map[time.Time]int),
		columns: make(map[string][][]Value),
	}

	syms := make([]string, len(bars))
	owner := make(map[string]string) // bare code -> symbol
	seenDate := make(map[time.Time]bool)
	for i := range bars {
		sym, err := domain.NormalizeSymbol(bars[i].Symbol)
		if err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}
		syms[i] = sym
		if _, ok := f.codes[sym]; !ok {
			code := domain.StripSuffix(sym)
			if other, dup := owner[code]; dup {
				return nil, fmt.Errorf("symbols %s and %s share code %s", other, sym, code)
			}
			owner[code] = sym
			f.codes[sym] = code
			f.symbols = append(f.symbols, sym)
		}
		d := day(bars[i].Timestamp)
		if !seenDate[d] {
			seenDate[d] = true
			f.dates = append(f.dates, d)
		}
	}
	sort.Strings(f.symbols)
	for i, s := range f.symbols {
		f.symIdx[s] = i
	}
	sort.Slice(f.dates, func(i, j int) bool { return f.dates[i].Before(f.dates[j]) })
	for i, d := range f.dates {
		f.index[d] = i
	}

	for _, col := range []string{ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnVolume, ColumnAmount} {
		f.columns[col] = f.emptyColumn()
	}
	for i, b := range bars {
		row, c := f.index[day(b.Timestamp)], f.symIdx[syms[i]]
		f.columns[ColumnOpen][row][c] = reading(b.Open)
		f.columns[ColumnHigh][row][c] = reading(b.High)
		f.columns[ColumnLow][row][c] = reading(b.Low)
		f.columns[ColumnClose][row][c] = reading(b.Close)
		f.columns[ColumnVolume][row][c] = reading(float64(b.Volume))
		f.columns[ColumnAmount][row][c] = reading(b.Amount)
	}
	return f, nil
}

// LoadFrame reads daily bars for symbols in [start, end] from the store and
// materializes them into a Frame. When symbols is empty every symbol of the
// market is loaded.
func LoadFrame(ctx context.Context, bs store.BarStore, market domain.Market, symbols []string, start, end time.Time) (*Frame, error) {
	if len(symbols) == 0 {
		var err error
		symbols, err = bs.ListSymbols(ctx, string(market))
		if err != nil {
			return nil, fmt.Errorf("listing %s symbols: %w", market, err)
		}
	}

	var bars []domain.Bar
	for _, s := range symbols {
		sym, err := domain.NormalizeSymbol(s)
		if err != nil {
			return nil, err
		}
		got, err := bs.ReadBars(ctx, sym, string(market), start, end)
		if err != nil {
			return nil, fmt.Errorf("reading bars for %s: %w", sym, err)
		}
		bars = append(bars, got...)
	}
	return NewFrame(bars)
}

// SetFactor stores a user-computed column. values maps bare codes or
// exchange-qualified symbols to their reading on date. The frame must not be
// modified once a backtest has started.
func (f *Frame) SetFactor(name string, date time.Time, values map[string]float64) error {
	row, ok := f.index[day(date)]
	if !ok {
		return fmt.Errorf("set factor %s: date %s is not in the frame", name, date.Format("2006-01-02"))
	}
	col, ok := f.columns[name]
	if !ok {
		col = f.emptyColumn()
		f.columns[name] = col
	}
	for s, v := range values {
		sym, err := domain.NormalizeSymbol(s)
		if err != nil {
			return fmt.Errorf("set factor %s: %w", name, err)
		}
		c, ok := f.symIdx[sym]
		if !ok {
			return fmt.Errorf("set factor %s: symbol %s is not in the frame", name, sym)
		}
		col[row][c] = reading(v)
	}
	return nil
}

// Dates returns the trading dates in ascending order.
func (f *Frame) Dates() []time.Time {
	out := make([]time.Time, len(f.dates))
	copy(out, f.dates)
	return out
}

// Symbols returns the exchange-qualified symbols in the frame.
func (f *Frame) Symbols() []string {
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)
	return out
}

// Columns returns the available column names in ascending order.
func (f *Frame) Columns() []string {
	out := make([]string, 0, len(f.columns))
	for c := range f.columns {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Column returns the readings of column on date keyed by bare code. An
// unknown column or date yields a MissingPriceError.
func (f *Frame) Column(date time.Time, column string) (Series, error) {
	col, ok := f.columns[column]
	if !ok {
		return nil, missingPrice("", column, date)
	}
	row, ok := f.index[day(date)]
	if !ok {
		return nil, missingPrice("", column, date)
	}
	s := make(Series, len(f.symbols))
	for i, sym := range f.symbols {
		s[f.codes[sym]] = col[row][i]
	}
	return s, nil
}

// Price returns the close of symbol on date. ok is false when the symbol
// did not trade that day or its close is not a positive number.
func (f *Frame) Price(date time.Time, symbol string) (decimal.Decimal, bool) {
	row, ok := f.index[day(date)]
	if !ok {
		return decimal.Zero, false
	}
	c, ok := f.symIdx[symbol]
	if !ok {
		return decimal.Zero, false
	}
	v := f.columns[ColumnClose][row][c]
	if !v.priceable() {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(v.Float), true
}

func (f *Frame) emptyColumn() [][]Value {
	rows := make([][]Value, len(f.dates))
	for i := range rows {
		rows[i] = make([]Value, len(f.symbols))
	}
	return rows
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
