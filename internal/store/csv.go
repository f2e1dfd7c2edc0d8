package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"qka/internal/domain"
)

// csvHeader is the column order accepted by ReadBarsCSV.
var csvHeader = []string{"date", "symbol", "open", "high", "low", "close", "volume", "amount"}

// ReadBarsCSV parses daily bars from r. The first row must be the header
//
//	date,symbol,open,high,low,close,volume,amount
//
// Dates are YYYY-MM-DD. Symbols are normalized to exchange-qualified form.
// An empty amount is read as zero.
func ReadBarsCSV(r io.Reader) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	for i, want := range csvHeader {
		if got := strings.ToLower(strings.TrimSpace(header[i])); got != want {
			return nil, fmt.Errorf("csv header column %d: got %q, want %q", i+1, header[i], want)
		}
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		bar, err := parseBarRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarRecord(rec []string) (domain.Bar, error) {
	var b domain.Bar
	ts, err := time.Parse(dateLayout, rec[0])
	if err != nil {
		return b, fmt.Errorf("date: %w", err)
	}
	sym, err := domain.NormalizeSymbol(rec[1])
	if err != nil {
		return b, err
	}
	b.Symbol = sym
	b.Timestamp = ts

	floats := []*float64{&b.Open, &b.High, &b.Low, &b.Close}
	for i, dst := range floats {
		if *dst, err = parseFinite(rec[2+i]); err != nil {
			return b, fmt.Errorf("%s: %w", csvHeader[2+i], err)
		}
	}
	if b.Volume, err = strconv.ParseInt(rec[6], 10, 64); err != nil {
		// Some exports write volume as a float.
		v, ferr := parseFinite(rec[6])
		if ferr != nil {
			return b, fmt.Errorf("volume: %w", ferr)
		}
		b.Volume = int64(v)
	}
	if rec[7] != "" {
		if b.Amount, err = parseFinite(rec[7]); err != nil {
			return b, fmt.Errorf("amount: %w", err)
		}
	}
	return b, nil
}

// parseFinite parses s as a float and rejects NaN and infinities, which
// strconv accepts but no price or volume can be.
func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return f, nil
}
