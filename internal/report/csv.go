package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"qka/internal/domain"
)

const dateLayout = "2006-01-02"

// WriteCurveCSV writes one row per snapshot:
//
//	date,cash,market_value,total_equity
func WriteCurveCSV(w io.Writer, snaps []domain.EquitySnapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "cash", "market_value", "total_equity"}); err != nil {
		return err
	}
	for _, s := range snaps {
		if err := cw.Write([]string{
			s.Date.Format(dateLayout),
			s.Cash.StringFixed(2),
			s.MarketValue.StringFixed(2),
			s.TotalEquity.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTradesCSV writes one row per trade in execution order:
//
//	id,date,symbol,side,qty,price,commission,cash_delta,realized_pnl
func WriteTradesCSV(w io.Writer, trades []domain.Trade) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "date", "symbol", "side", "qty", "price", "commission", "cash_delta", "realized_pnl"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range trades {
		if err := cw.Write([]string{
			t.ID,
			t.Date.Format(dateLayout),
			t.Symbol,
			string(t.Side),
			strconv.FormatInt(t.Qty, 10),
			t.Price.String(),
			t.Commission.StringFixed(2),
			t.CashDelta.StringFixed(2),
			t.RealizedPnL.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
