// Package broker defines the Broker interface and the simulated brokerage
// used for backtesting. A SimulatorBroker exclusively owns its Ledger and is
// the only code path that mutates cash, positions or the trade log.
package broker

import (
	"time"

	"github.com/shopspring/decimal"

	"qka/internal/domain"
)

// PriceFunc returns the valuation price of a symbol.
type PriceFunc func(symbol string) (decimal.Decimal, error)

// Broker abstracts order execution and account state for a strategy.
type Broker interface {
	// Name returns the broker identifier (e.g. "simulator").
	Name() string

	// Buy fills a market buy of qty shares of symbol at price on date.
	Buy(symbol string, qty int64, price decimal.Decimal, date time.Time) (domain.Trade, error)

	// Sell fills a market sell of qty shares of symbol at price on date.
	Sell(symbol string, qty int64, price decimal.Decimal, date time.Time) (domain.Trade, error)

	// Cash returns the available cash balance.
	Cash() decimal.Decimal

	// Position returns the holding for symbol, if any.
	Position(symbol string) (domain.Position, bool)

	// Positions returns all open positions sorted by symbol.
	Positions() []domain.Position

	// Trades returns the trade log in execution order.
	Trades() []domain.Trade

	// Snapshot values the account on date using price for every holding.
	Snapshot(date time.Time, price PriceFunc) (domain.EquitySnapshot, error)
}
