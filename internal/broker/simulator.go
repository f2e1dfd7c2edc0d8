package broker

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"qka/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

// SimulatorBroker implements the Broker interface for backtesting. Orders
// fill immediately and completely at the caller's price, or are rejected
// without any change to the ledger.
//
// SimulatorBroker performs no I/O and never reads the clock; every date
// comes from the caller. It is not safe for concurrent use.
type SimulatorBroker struct {
	cfg     Config
	ledger  *Ledger
	entropy io.Reader
}

// NewSimulatorBroker creates a SimulatorBroker whose ledger starts with
// cfg.InitialCash.
func NewSimulatorBroker(cfg Config) (*SimulatorBroker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("broker config: %w", err)
	}
	if cfg.LotPolicy == "" {
		cfg.LotPolicy = LotRoundDown
	}
	return &SimulatorBroker{
		cfg:     cfg,
		ledger:  newLedger(cfg.InitialCash),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// NewDefaultSimulatorBroker creates a SimulatorBroker with DefaultConfig.
func NewDefaultSimulatorBroker() *SimulatorBroker {
	b, err := NewSimulatorBroker(DefaultConfig())
	if err != nil {
		panic(err) // DefaultConfig is always valid
	}
	return b
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// Config returns the account parameters.
func (b *SimulatorBroker) Config() Config { return b.cfg }

// Ledger returns the read-only view of the account.
func (b *SimulatorBroker) Ledger() *Ledger { return b.ledger }

// Cash returns the available cash balance.
func (b *SimulatorBroker) Cash() decimal.Decimal { return b.ledger.Cash() }

// Position returns the holding for symbol, if any. Bare codes are accepted.
func (b *SimulatorBroker) Position(symbol string) (domain.Position, bool) {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return domain.Position{}, false
	}
	return b.ledger.Position(sym)
}

// Positions returns all open positions sorted by symbol.
func (b *SimulatorBroker) Positions() []domain.Position { return b.ledger.Positions() }

// Trades returns the trade log in execution order.
func (b *SimulatorBroker) Trades() []domain.Trade { return b.ledger.Trades() }

// Buy purchases qty shares of symbol at price. The quantity is adjusted by
// the lot policy first. The trade is rejected with RiskLimitError when it
// breaches MaxPositionPct, and with InsufficientFundsError when cash does
// not cover notional plus commission.
func (b *SimulatorBroker) Buy(symbol string, qty int64, price decimal.Decimal, date time.Time) (domain.Trade, error) {
	sym, err := b.validate(symbol, qty, price)
	if err != nil {
		return domain.Trade{}, err
	}
	qty, reason := b.cfg.roundLot(qty)
	if reason != "" {
		return domain.Trade{}, &domain.InvalidOrderError{Symbol: sym, Reason: reason}
	}

	notional := price.Mul(decimal.NewFromInt(qty))
	if err := b.checkPositionLimit(sym, notional); err != nil {
		return domain.Trade{}, err
	}
	commission := b.cfg.commission(notional)
	required := notional.Add(commission)
	if b.ledger.Cash().LessThan(required) {
		return domain.Trade{}, &domain.InsufficientFundsError{
			Symbol:    sym,
			Required:  required,
			Available: b.ledger.Cash(),
		}
	}

	t := domain.Trade{
		ID:          b.newTradeID(date),
		Date:        date,
		Symbol:      sym,
		Side:        domain.SideBuy,
		Qty:         qty,
		Price:       price,
		Commission:  commission,
		CashDelta:   required.Neg(),
		RealizedPnL: decimal.Zero,
	}
	b.ledger.applyBuy(t)
	return t, nil
}

// Sell disposes of qty shares of symbol at price. Selling more than is held
// fails with InsufficientPositionError. Selling the entire holding is always
// allowed; any other quantity is subject to the lot policy.
func (b *SimulatorBroker) Sell(symbol string, qty int64, price decimal.Decimal, date time.Time) (domain.Trade, error) {
	sym, err := b.validate(symbol, qty, price)
	if err != nil {
		return domain.Trade{}, err
	}
	pos, ok := b.ledger.Position(sym)
	if !ok || pos.Qty < qty {
		return domain.Trade{}, &domain.InsufficientPositionError{
			Symbol:    sym,
			Requested: qty,
			Held:      pos.Qty,
		}
	}
	if qty != pos.Qty {
		var reason string
		qty, reason = b.cfg.roundLot(qty)
		if reason != "" {
			return domain.Trade{}, &domain.InvalidOrderError{Symbol: sym, Reason: reason}
		}
	}

	proceeds := price.Mul(decimal.NewFromInt(qty))
	commission := b.cfg.commission(proceeds)
	net := proceeds.Sub(commission)
	// A minimum commission can exceed tiny proceeds.
	if b.ledger.Cash().Add(net).IsNegative() {
		return domain.Trade{}, &domain.InsufficientFundsError{
			Symbol:    sym,
			Required:  commission,
			Available: b.ledger.Cash().Add(proceeds),
		}
	}
	costBasis := pos.AvgCost.Mul(decimal.NewFromInt(qty))

	t := domain.Trade{
		ID:          b.newTradeID(date),
		Date:        date,
		Symbol:      sym,
		Side:        domain.SideSell,
		Qty:         qty,
		Price:       price,
		Commission:  commission,
		CashDelta:   net,
		RealizedPnL: net.Sub(costBasis),
	}
	b.ledger.applySell(t)
	return t, nil
}

// Snapshot values every open position with price and returns the account
// equity on date. It does not modify the ledger.
func (b *SimulatorBroker) Snapshot(date time.Time, price PriceFunc) (domain.EquitySnapshot, error) {
	marketValue := decimal.Zero
	for _, p := range b.ledger.Positions() {
		px, err := price(p.Symbol)
		if err != nil {
			return domain.EquitySnapshot{}, err
		}
		marketValue = marketValue.Add(p.MarketValue(px))
	}
	cash := b.ledger.Cash()
	return domain.EquitySnapshot{
		Date:        date,
		Cash:        cash,
		MarketValue: marketValue,
		TotalEquity: cash.Add(marketValue),
	}, nil
}

func (b *SimulatorBroker) validate(symbol string, qty int64, price decimal.Decimal) (string, error) {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return "", &domain.InvalidOrderError{Symbol: symbol, Reason: err.Error()}
	}
	if qty <= 0 {
		return "", &domain.InvalidOrderError{Symbol: sym, Reason: fmt.Sprintf("quantity must be positive, got %d", qty)}
	}
	if !price.IsPositive() {
		return "", &domain.InvalidOrderError{Symbol: sym, Reason: fmt.Sprintf("price must be positive, got %s", price)}
	}
	return sym, nil
}

// newTradeID returns a ULID timestamped with the trade date so that IDs sort
// in bar order.
func (b *SimulatorBroker) newTradeID(date time.Time) string {
	id, err := ulid.New(ulid.Timestamp(date), b.entropy)
	if err != nil {
		// Monotonic entropy overflows only after 2^80 IDs in one millisecond.
		id = ulid.Make()
	}
	return id.String()
}
