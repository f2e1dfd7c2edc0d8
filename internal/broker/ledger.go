package broker

import (
	"sort"

	"github.com/shopspring/decimal"

	"qka/internal/domain"
)

// Ledger is the cash balance, open positions and trade log of one account.
// Its fields are unexported and its mutators package-private so that only
// SimulatorBroker can change it. Fully sold positions are removed.
type Ledger struct {
	cash      decimal.Decimal
	positions map[string]*domain.Position
	trades    []domain.Trade
	realized  decimal.Decimal
}

func newLedger(cash decimal.Decimal) *Ledger {
	return &Ledger{
		cash:      cash,
		positions: make(map[string]*domain.Position),
	}
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() decimal.Decimal { return l.cash }

// RealizedPnL returns the cumulative realized profit of all sells.
func (l *Ledger) RealizedPnL() decimal.Decimal { return l.realized }

// Position returns a copy of the open position in symbol.
func (l *Ledger) Position(symbol string) (domain.Position, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// Positions returns copies of all open positions sorted by symbol.
func (l *Ledger) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Trades returns a copy of the trade log in execution order.
func (l *Ledger) Trades() []domain.Trade {
	out := make([]domain.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// applyBuy books a validated, funded buy. The caller guarantees that
// cash covers the trade.
func (l *Ledger) applyBuy(t domain.Trade) {
	l.cash = l.cash.Add(t.CashDelta)

	p, ok := l.positions[t.Symbol]
	if !ok {
		p = &domain.Position{Symbol: t.Symbol}
		l.positions[t.Symbol] = p
	}
	held := decimal.NewFromInt(p.Qty)
	newQty := p.Qty + t.Qty
	p.AvgCost = p.AvgCost.Mul(held).Add(t.Notional()).Div(decimal.NewFromInt(newQty))
	p.Qty = newQty

	l.trades = append(l.trades, t)
}

// applySell books a validated sell covered by the current holding.
func (l *Ledger) applySell(t domain.Trade) {
	l.cash = l.cash.Add(t.CashDelta)
	l.realized = l.realized.Add(t.RealizedPnL)

	p := l.positions[t.Symbol]
	p.Qty -= t.Qty
	if p.Qty == 0 {
		delete(l.positions, t.Symbol)
	}

	l.trades = append(l.trades, t)
}
