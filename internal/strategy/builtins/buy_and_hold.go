package builtins

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"qka/internal/broker"
	"qka/internal/domain"
	"qka/internal/market"
	"qka/internal/strategy"
)

var _ strategy.Strategy = (*BuyAndHold)(nil)

// BuyAndHoldName is the registry name of BuyAndHold.
const BuyAndHoldName = "buy_and_hold"

// BuyAndHold splits the account equally across a set of stocks on the first
// bar where all of them trade, then holds.
type BuyAndHold struct {
	strategy.Base

	codes  []string // bare codes; empty means every symbol trading that bar
	bought bool
}

// NewBuyAndHold creates a BuyAndHold over symbols, given as bare codes or
// exchange-qualified symbols.
func NewBuyAndHold(b *broker.SimulatorBroker, symbols []string) (*BuyAndHold, error) {
	codes := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym, err := domain.NormalizeSymbol(s)
		if err != nil {
			return nil, err
		}
		codes = append(codes, domain.StripSuffix(sym))
	}
	return &BuyAndHold{Base: strategy.NewBase(b), codes: codes}, nil
}

// Name returns "buy_and_hold".
func (s *BuyAndHold) Name() string {
	return BuyAndHoldName
}

// OnBar buys once. Each stock gets cash/n. The quantity starts at the
// broker's closed-form bound for that budget and the position limit, and
// drops a lot at a time only while cent rounding of the commission still
// leaves it short.
func (s *BuyAndHold) OnBar(date time.Time, get strategy.Getter) error {
	if s.bought {
		return nil
	}
	closes, err := get(market.ColumnClose)
	if err != nil {
		return err
	}

	codes := s.codes
	if len(codes) == 0 {
		codes = closes.Valid()
	}
	if len(codes) == 0 {
		return nil
	}
	prices := make([]decimal.Decimal, len(codes))
	for i, code := range codes {
		px, err := closes.Price(code)
		if err != nil {
			// Wait for a bar where every target trades.
			return nil
		}
		prices[i] = px
	}

	b := s.Simulator()
	lot := b.Config().LotSize
	budget := b.Cash().Div(decimal.NewFromInt(int64(len(codes))))
	for i, code := range codes {
		sym, err := domain.NormalizeSymbol(code)
		if err != nil {
			return err
		}
		for qty := b.MaxBuyQty(sym, prices[i], budget); qty > 0; qty -= lot {
			_, err := b.Buy(sym, qty, prices[i], date)
			if err == nil {
				break
			}
			if !errors.Is(err, domain.ErrInsufficientFunds) && !errors.Is(err, domain.ErrRiskLimit) {
				return err
			}
		}
	}
	s.bought = true
	return nil
}
