// Package market provides the in-memory, read-only market data a backtest
// replays: a wide date × symbol table of bar columns and user factors.
package market

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"qka/internal/domain"
)

// Value is one reading of a column for one symbol on one date. Valid is
// false when the symbol has no data for that date.
type Value struct {
	Float float64
	Valid bool
}

// reading wraps f as a Value. NaN and infinities are not readings.
func reading(f float64) Value {
	return Value{Float: f, Valid: finite(f)}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// priceable reports whether v can be used as a price.
func (v Value) priceable() bool {
	return v.Valid && finite(v.Float) && v.Float > 0
}

// Series maps bare stock codes (without exchange suffix) to the reading of
// one column on one date. Every symbol in the frame has an entry; symbols
// without data carry an invalid Value.
type Series map[string]Value

// Get returns the reading for code and whether it is present.
func (s Series) Get(code string) (float64, bool) {
	v, ok := s[code]
	if !ok || !v.Valid || !finite(v.Float) {
		return 0, false
	}
	return v.Float, true
}

// Price returns the reading for code as a positive decimal price, or a
// MissingPriceError.
func (s Series) Price(code string) (decimal.Decimal, error) {
	v, ok := s[code]
	if !ok || !v.priceable() {
		return decimal.Zero, &domain.MissingPriceError{Symbol: code}
	}
	return decimal.NewFromFloat(v.Float), nil
}

// Codes returns the keys of s in ascending order.
func (s Series) Codes() []string {
	codes := make([]string, 0, len(s))
	for c := range s {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Valid returns the codes that have a reading, in ascending order.
func (s Series) Valid() []string {
	codes := make([]string, 0, len(s))
	for c, v := range s {
		if v.Valid && finite(v.Float) {
			codes = append(codes, c)
		}
	}
	sort.Strings(codes)
	return codes
}

// missingPrice builds a MissingPriceError for a frame lookup.
func missingPrice(symbol, column string, date time.Time) error {
	return &domain.MissingPriceError{Symbol: symbol, Column: column, Date: date}
}
