package market

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qka/internal/domain"
	"qka/internal/store"
)

var (
	mon = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	tue = time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	wed = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
)

func sampleBars() []domain.Bar {
	return []domain.Bar{
		{Symbol: "600519.SH", Timestamp: tue, Open: 1600, High: 1620, Low: 1590, Close: 1610, Volume: 30000, Amount: 4.8e7},
		{Symbol: "000001.SZ", Timestamp: mon, Open: 9.9, High: 10.1, Low: 9.8, Close: 10.0, Volume: 1000000, Amount: 1e7},
		{Symbol: "000001.SZ", Timestamp: tue, Open: 10.0, High: 10.5, Low: 9.9, Close: 10.4, Volume: 1200000, Amount: 1.2e7},
		// 600519 suspended on wed, 000001 trades.
		{Symbol: "000001", Timestamp: wed.Add(15 * time.Hour), Open: 10.4, High: 10.6, Low: 10.2, Close: 10.5, Volume: 900000, Amount: 9e6},
		{Symbol: "600519.SH", Timestamp: mon, Open: 1590, High: 1605, Low: 1580, Close: 1600, Volume: 25000, Amount: 4e7},
	}
}

func TestNewFrameDatesAndSymbols(t *testing.T) {
	f, err := NewFrame(sampleBars())
	require.NoError(t, err)

	assert.Equal(t, []time.Time{mon, tue, wed}, f.Dates())
	assert.Equal(t, []string{"000001.SZ", "600519.SH"}, f.Symbols())
	assert.Contains(t, f.Columns(), ColumnClose)
	assert.Contains(t, f.Columns(), ColumnAmount)
}

func TestFrameColumnMarksMissing(t *testing.T) {
	f, err := NewFrame(sampleBars())
	require.NoError(t, err)

	s, err := f.Column(wed, ColumnClose)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001", "600519"}, s.Codes(), "every symbol is present")

	v, ok := s.Get("000001")
	assert.True(t, ok)
	assert.Equal(t, 10.5, v)

	_, ok = s.Get("600519")
	assert.False(t, ok, "suspended symbol has no value, not zero")
	assert.False(t, s["600519"].Valid)
	assert.Equal(t, []string{"000001"}, s.Valid())

	_, err = s.Price("600519")
	assert.ErrorIs(t, err, domain.ErrMissingPrice)

	px, err := s.Price("000001")
	require.NoError(t, err)
	assert.True(t, px.Equal(decimal.RequireFromString("10.5")))
}

func TestFrameUnknownColumnOrDate(t *testing.T) {
	f, err := NewFrame(sampleBars())
	require.NoError(t, err)

	_, err = f.Column(mon, "pe_ratio")
	assert.ErrorIs(t, err, domain.ErrMissingPrice)

	_, err = f.Column(time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), ColumnClose)
	assert.ErrorIs(t, err, domain.ErrMissingPrice)
}

func TestFramePrice(t *testing.T) {
	f, err := NewFrame(sampleBars())
	require.NoError(t, err)

	px, ok := f.Price(tue, "600519.SH")
	require.True(t, ok)
	assert.True(t, px.Equal(decimal.NewFromInt(1610)))

	_, ok = f.Price(wed, "600519.SH")
	assert.False(t, ok)
	_, ok = f.Price(wed, "300750.SZ")
	assert.False(t, ok)
}

func TestFrameNonFiniteReadingsAreMissing(t *testing.T) {
	f, err := NewFrame([]domain.Bar{
		{Symbol: "000001.SZ", Timestamp: mon, Open: 10, Close: math.NaN(), Volume: 100},
		{Symbol: "600519.SH", Timestamp: mon, Open: math.Inf(1), Close: 1600, Volume: 100},
	})
	require.NoError(t, err)

	_, ok := f.Price(mon, "000001.SZ")
	assert.False(t, ok)
	px, ok := f.Price(mon, "600519.SH")
	require.True(t, ok)
	assert.True(t, px.Equal(decimal.NewFromInt(1600)))

	closes, err := f.Column(mon, ColumnClose)
	require.NoError(t, err)
	assert.Equal(t, []string{"600519"}, closes.Valid())
	_, err = closes.Price("000001")
	assert.ErrorIs(t, err, domain.ErrMissingPrice)

	opens, err := f.Column(mon, ColumnOpen)
	require.NoError(t, err)
	_, ok = opens.Get("600519")
	assert.False(t, ok)

	require.NoError(t, f.SetFactor("score", mon, map[string]float64{"000001": math.NaN()}))
	scores, err := f.Column(mon, "score")
	require.NoError(t, err)
	assert.Empty(t, scores.Valid())
}

func TestSeriesPriceRejectsNonFinite(t *testing.T) {
	s := Series{
		"000001": {Float: math.NaN(), Valid: true},
		"600519": {Float: math.Inf(1), Valid: true},
	}
	for _, code := range []string{"000001", "600519"} {
		_, err := s.Price(code)
		assert.ErrorIs(t, err, domain.ErrMissingPrice, code)
	}
}

func TestFrameSetFactor(t *testing.T) {
	f, err := NewFrame(sampleBars())
	require.NoError(t, err)

	require.NoError(t, f.SetFactor("momentum", tue, map[string]float64{"000001": 0.04, "600519.SH": 0.006}))

	s, err := f.Column(tue, "momentum")
	require.NoError(t, err)
	v, ok := s.Get("000001")
	assert.True(t, ok)
	assert.Equal(t, 0.04, v)

	s, err = f.Column(mon, "momentum")
	require.NoError(t, err)
	assert.Empty(t, s.Valid(), "factor unset on other dates")

	assert.Error(t, f.SetFactor("momentum", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), nil))
	assert.Error(t, f.SetFactor("momentum", tue, map[string]float64{"300750": 1}))
}

func TestNewFrameRejectsCodeCollision(t *testing.T) {
	_, err := NewFrame([]domain.Bar{
		{Symbol: "000001.SZ", Timestamp: mon, Close: 10},
		{Symbol: "000001.SH", Timestamp: mon, Close: 3000},
	})
	assert.Error(t, err)
}

func TestLoadFrameFromParquet(t *testing.T) {
	ps := store.NewParquetStore(t.TempDir())
	ctx := context.Background()
	bars := sampleBars()
	for i := range bars {
		bars[i].Symbol, _ = domain.NormalizeSymbol(bars[i].Symbol)
	}
	require.NoError(t, ps.WriteBarsForMarket(bars, string(domain.MarketCN)))

	f, err := LoadFrame(ctx, ps, domain.MarketCN, nil, mon, wed.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"000001.SZ", "600519.SH"}, f.Symbols())
	assert.Len(t, f.Dates(), 3)

	f, err = LoadFrame(ctx, ps, domain.MarketCN, []string{"600519"}, mon, tue)
	require.NoError(t, err)
	assert.Equal(t, []string{"600519.SH"}, f.Symbols())
	assert.Equal(t, []time.Time{mon, tue}, f.Dates())
}
