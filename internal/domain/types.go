// Package domain defines the core value types shared across qka: bars,
// positions, trades, equity snapshots and backtest runs.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market identifies the exchange group a symbol trades on.
type Market string

const (
	MarketCN Market = "cn"
	MarketUS Market = "us"
)

// Bar is one daily OHLCV observation for a symbol.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	Amount    float64 // turnover in quote currency
}

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Position is the holding of a single symbol. AvgCost is the volume-weighted
// purchase price of the shares currently held; commissions are not included.
type Position struct {
	Symbol  string
	Qty     int64
	AvgCost decimal.Decimal
}

// MarketValue returns Qty × price.
func (p Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(p.Qty))
}

// Trade is the immutable record of one executed order.
type Trade struct {
	ID         string
	Date       time.Time
	Symbol     string
	Side       Side
	Qty        int64
	Price      decimal.Decimal
	Commission decimal.Decimal

	// CashDelta is the signed change in cash caused by the trade: negative
	// for buys, positive for sells.
	CashDelta decimal.Decimal

	// RealizedPnL is proceeds − commission − Qty × AvgCost for sells, zero
	// for buys.
	RealizedPnL decimal.Decimal
}

// Notional returns Qty × Price.
func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Qty))
}

// EquitySnapshot is the account valuation recorded after one bar.
type EquitySnapshot struct {
	Date        time.Time
	Cash        decimal.Decimal
	MarketValue decimal.Decimal
	TotalEquity decimal.Decimal
}

// Run describes one backtest execution.
type Run struct {
	ID          string
	Strategy    string
	Market      Market
	Start       time.Time
	End         time.Time
	InitialCash decimal.Decimal
	CreatedAt   time.Time
}
