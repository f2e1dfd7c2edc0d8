package report

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qka/internal/domain"
)

var (
	d1 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	d3 = time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func snap(date time.Time, cash, mv string) domain.EquitySnapshot {
	return domain.EquitySnapshot{Date: date, Cash: dec(cash), MarketValue: dec(mv), TotalEquity: dec(cash).Add(dec(mv))}
}

// scenarioCurve is the buy-at-10, mark-at-12, sell-at-12 round trip.
func scenarioCurve() *EquityCurve {
	return NewEquityCurve(dec("100000"), []domain.EquitySnapshot{
		snap(d1, "98999.00", "1000.00"),
		snap(d2, "98999.00", "1200.00"),
		snap(d3, "100197.80", "0"),
	})
}

func scenarioTrades() []domain.Trade {
	return []domain.Trade{
		{ID: "a", Date: d1, Symbol: "000001.SZ", Side: domain.SideBuy, Qty: 100, Price: dec("10"),
			Commission: dec("1.00"), CashDelta: dec("-1001.00"), RealizedPnL: decimal.Zero},
		{ID: "b", Date: d3, Symbol: "000001.SZ", Side: domain.SideSell, Qty: 100, Price: dec("12"),
			Commission: dec("1.20"), CashDelta: dec("1198.80"), RealizedPnL: dec("198.80")},
	}
}

func TestEquityCurveScenario(t *testing.T) {
	c := scenarioCurve()

	require.Equal(t, 3, c.Len())
	last, ok := c.Final()
	require.True(t, ok)
	assert.True(t, last.TotalEquity.Equal(dec("100197.80")))

	assert.InDelta(t, 0.001978, c.TotalReturn(), 1e-12)

	rets := c.Returns()
	require.Len(t, rets, 3)
	assert.InDelta(t, -1.0/100000, rets[0], 1e-12)
	assert.InDelta(t, 200.0/99999, rets[1], 1e-12)
	assert.InDelta(t, -1.2/100199, rets[2], 1e-12)

	assert.InDelta(t, 1.2/100199, c.MaxDrawdown(), 1e-12)
}

func TestEquityCurveEmpty(t *testing.T) {
	c := NewEquityCurve(dec("100000"), nil)

	_, ok := c.Final()
	assert.False(t, ok)
	assert.Zero(t, c.TotalReturn())
	assert.Nil(t, c.Returns())
	assert.Zero(t, c.MaxDrawdown())
	assert.Zero(t, c.AnnualizedReturn())
	assert.Zero(t, c.Volatility())
	assert.Zero(t, c.SharpeRatio())
}

func TestEquityCurveCopiesInput(t *testing.T) {
	snaps := []domain.EquitySnapshot{snap(d1, "100", "0")}
	c := NewEquityCurve(dec("100"), snaps)
	snaps[0].TotalEquity = dec("1")

	last, _ := c.Final()
	assert.True(t, last.TotalEquity.Equal(dec("100")))

	out := c.Snapshots()
	out[0].TotalEquity = dec("2")
	last, _ = c.Final()
	assert.True(t, last.TotalEquity.Equal(dec("100")))
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   float64
	}{
		{"monotonic up", []string{"110", "120", "130"}, 0},
		{"single dip", []string{"90", "120"}, 0.1},
		{"later deeper trough", []string{"120", "108", "130", "91"}, 0.3},
		{"flat", []string{"100", "100"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snaps := make([]domain.EquitySnapshot, len(tt.values))
			for i, v := range tt.values {
				snaps[i] = snap(d1.AddDate(0, 0, i), v, "0")
			}
			c := NewEquityCurve(dec("100"), snaps)
			assert.InDelta(t, tt.want, c.MaxDrawdown(), 1e-12)
		})
	}
}

func TestAnnualizedAndRiskMetrics(t *testing.T) {
	// Exactly one year of bars, so annualizing leaves the return unchanged.
	snaps := make([]domain.EquitySnapshot, 252)
	equity := 100000.0
	for i := range snaps {
		if i%2 == 0 {
			equity *= 1.002
		}
		snaps[i] = domain.EquitySnapshot{Date: d1.AddDate(0, 0, i), TotalEquity: decimal.NewFromFloat(equity)}
	}
	c := NewEquityCurve(dec("100000"), snaps)

	assert.InDelta(t, c.TotalReturn(), c.AnnualizedReturn(), 1e-9, "one year of bars")

	rets := c.Returns()
	var sum float64
	for _, r := range rets {
		sum += r
	}
	mean := sum / float64(len(rets))
	var ss float64
	for _, r := range rets {
		ss += (r - mean) * (r - mean)
	}
	std := math.Sqrt(ss / float64(len(rets)-1))

	assert.InDelta(t, std*math.Sqrt(252), c.Volatility(), 1e-9)
	assert.InDelta(t, mean/std*math.Sqrt(252), c.SharpeRatio(), 1e-6)
	assert.Greater(t, c.SharpeRatio(), 0.0)
}

func TestSharpeZeroWhenFlat(t *testing.T) {
	c := NewEquityCurve(dec("100"), []domain.EquitySnapshot{
		snap(d1, "100", "0"), snap(d2, "100", "0"), snap(d3, "100", "0"),
	})
	assert.Zero(t, c.SharpeRatio())
	assert.Zero(t, c.Volatility())
}

func TestSummarizeScenario(t *testing.T) {
	s := Summarize(scenarioCurve(), scenarioTrades())

	assert.Equal(t, 2, s.TotalTrades)
	assert.Equal(t, 1.0, s.WinRate)
	assert.True(t, math.IsInf(s.ProfitFactor, 1))
	assert.True(t, s.RealizedPnL.Equal(dec("198.80")), "realized %s", s.RealizedPnL)
	assert.True(t, s.Commission.Equal(dec("2.20")), "commission %s", s.Commission)
	assert.InDelta(t, 0.001978, s.TotalReturn, 1e-12)
}

func TestSummarizeWinsAndLosses(t *testing.T) {
	trades := []domain.Trade{
		{Side: domain.SideSell, RealizedPnL: dec("300"), Commission: dec("5")},
		{Side: domain.SideSell, RealizedPnL: dec("-100"), Commission: dec("5")},
		{Side: domain.SideSell, RealizedPnL: dec("-50"), Commission: dec("5")},
		{Side: domain.SideBuy, Commission: dec("5")},
	}
	s := Summarize(NewEquityCurve(dec("100000"), nil), trades)

	assert.InDelta(t, 1.0/3, s.WinRate, 1e-12)
	assert.InDelta(t, 2.0, s.ProfitFactor, 1e-12)
	assert.True(t, s.RealizedPnL.Equal(dec("150")))
	assert.True(t, s.Commission.Equal(dec("20")))

	none := Summarize(NewEquityCurve(dec("100000"), nil), nil)
	assert.Zero(t, none.WinRate)
	assert.Zero(t, none.ProfitFactor)
}

func TestSummaryWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summarize(scenarioCurve(), scenarioTrades()).WriteText(&buf))

	out := buf.String()
	assert.Contains(t, out, "Total return")
	assert.Contains(t, out, "0.20%")
	assert.Contains(t, out, "198.80")
	assert.Contains(t, out, "2.20")
}

func TestWriteCurveCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCurveCSV(&buf, scenarioCurve().Snapshots()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "date,cash,market_value,total_equity", lines[0])
	assert.Equal(t, "2024-01-03,98999.00,1200.00,100199.00", lines[2])
	assert.Equal(t, "2024-01-04,100197.80,0.00,100197.80", lines[3])
}

func TestWriteTradesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTradesCSV(&buf, scenarioTrades()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,date,symbol,side,qty,price,commission,cash_delta,realized_pnl", lines[0])
	assert.Equal(t, "b,2024-01-04,000001.SZ,sell,100,12,1.20,1198.80,198.80", lines[2])
}
