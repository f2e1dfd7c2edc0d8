package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"qka/internal/domain"
)

// Summary holds the headline metrics of a run.
type Summary struct {
	TotalReturn      float64
	AnnualizedReturn float64
	SharpeRatio      float64
	MaxDrawdown      float64
	Volatility       float64
	TotalTrades      int
	WinRate          float64 // share of sells with positive realized P&L
	ProfitFactor     float64 // gross sell profit over gross sell loss
	RealizedPnL      decimal.Decimal
	Commission       decimal.Decimal
}

// Summarize computes a Summary from a curve and its trade log. ProfitFactor
// is +Inf when there are profits but no losses, and zero when there are
// neither.
func Summarize(curve *EquityCurve, trades []domain.Trade) Summary {
	s := Summary{
		TotalReturn:      curve.TotalReturn(),
		AnnualizedReturn: curve.AnnualizedReturn(),
		SharpeRatio:      curve.SharpeRatio(),
		MaxDrawdown:      curve.MaxDrawdown(),
		Volatility:       curve.Volatility(),
		TotalTrades:      len(trades),
		RealizedPnL:      decimal.Zero,
		Commission:       decimal.Zero,
	}

	var sells, wins int
	grossProfit, grossLoss := decimal.Zero, decimal.Zero
	for _, t := range trades {
		s.Commission = s.Commission.Add(t.Commission)
		if t.Side != domain.SideSell {
			continue
		}
		sells++
		s.RealizedPnL = s.RealizedPnL.Add(t.RealizedPnL)
		switch t.RealizedPnL.Sign() {
		case 1:
			wins++
			grossProfit = grossProfit.Add(t.RealizedPnL)
		case -1:
			grossLoss = grossLoss.Sub(t.RealizedPnL)
		}
	}

	if sells > 0 {
		s.WinRate = float64(wins) / float64(sells)
	}
	switch {
	case grossLoss.IsPositive():
		s.ProfitFactor = grossProfit.Div(grossLoss).InexactFloat64()
	case grossProfit.IsPositive():
		s.ProfitFactor = math.Inf(1)
	}
	return s
}

// WriteText renders s as an aligned two-column table.
func (s Summary) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Total return", pct(s.TotalReturn)},
		{"Annualized return", pct(s.AnnualizedReturn)},
		{"Sharpe ratio", fmt.Sprintf("%.2f", s.SharpeRatio)},
		{"Max drawdown", pct(s.MaxDrawdown)},
		{"Volatility", pct(s.Volatility)},
		{"Trades", fmt.Sprintf("%d", s.TotalTrades)},
		{"Win rate", pct(s.WinRate)},
		{"Profit factor", fmt.Sprintf("%.2f", s.ProfitFactor)},
		{"Realized P&L", s.RealizedPnL.StringFixed(2)},
		{"Commission", s.Commission.StringFixed(2)},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func pct(f float64) string {
	return fmt.Sprintf("%.2f%%", f*100)
}
