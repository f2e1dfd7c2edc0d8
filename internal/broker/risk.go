package broker

import (
	"github.com/shopspring/decimal"

	"qka/internal/domain"
)

// bookEquity is cash plus every holding at average cost. The broker only
// sees market prices in Snapshot, so pre-trade limits are measured at cost.
func (b *SimulatorBroker) bookEquity() decimal.Decimal {
	equity := b.ledger.Cash()
	for _, p := range b.ledger.Positions() {
		equity = equity.Add(p.AvgCost.Mul(decimal.NewFromInt(p.Qty)))
	}
	return equity
}

// checkPositionLimit rejects a buy of notional in sym when the resulting
// holding cost would exceed MaxPositionPct of book equity.
func (b *SimulatorBroker) checkPositionLimit(sym string, notional decimal.Decimal) error {
	if !b.cfg.MaxPositionPct.IsPositive() {
		return nil
	}
	exposure := notional
	if pos, ok := b.ledger.Position(sym); ok {
		exposure = exposure.Add(pos.AvgCost.Mul(decimal.NewFromInt(pos.Qty)))
	}
	limit := b.bookEquity().Mul(b.cfg.MaxPositionPct)
	if exposure.GreaterThan(limit) {
		return &domain.RiskLimitError{Symbol: sym, Exposure: exposure, Limit: limit}
	}
	return nil
}

// MaxBuyQty returns the largest whole-lot quantity of symbol at price whose
// notional plus commission fits in min(budget, cash) and whose holding cost
// stays within MaxPositionPct. Commission rounding to the cent can still
// push Buy over by one lot, so callers step down from the result.
func (b *SimulatorBroker) MaxBuyQty(symbol string, price, budget decimal.Decimal) int64 {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil || !price.IsPositive() {
		return 0
	}
	budget = decimal.Min(budget, b.ledger.Cash())

	// n + max(n*rate, min) <= budget splits into two linear bounds.
	limit := budget.Div(price.Mul(decimal.NewFromInt(1).Add(b.cfg.CommissionRate)))
	if b.cfg.MinCommission.IsPositive() {
		limit = decimal.Min(limit, budget.Sub(b.cfg.MinCommission).Div(price))
	}
	if b.cfg.MaxPositionPct.IsPositive() {
		headroom := b.bookEquity().Mul(b.cfg.MaxPositionPct)
		if pos, ok := b.ledger.Position(sym); ok {
			headroom = headroom.Sub(pos.AvgCost.Mul(decimal.NewFromInt(pos.Qty)))
		}
		limit = decimal.Min(limit, headroom.Div(price))
	}

	qty := limit.Floor().IntPart()
	if lot := b.cfg.LotSize; lot > 1 {
		qty -= qty % lot
	}
	return max(qty, 0)
}
