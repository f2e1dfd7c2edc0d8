// Package builtins provides built-in strategy implementations that ship with
// qka.
package builtins

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"qka/internal/broker"
	"qka/internal/domain"
	"qka/internal/market"
	"qka/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACrossName is the registry name of SMACross.
const SMACrossName = "sma_cross"

// SMACross implements a simple moving average crossover strategy on every
// symbol of the data source. It buys a fixed number of lots when the
// short-period SMA of the close crosses above the long-period SMA, and sells
// the whole holding when it crosses below.
type SMACross struct {
	strategy.Base

	shortPeriod int
	longPeriod  int
	lots        int64

	closes map[string][]float64 // bare code -> last longPeriod+1 closes
}

// NewSMACross creates a new SMACross strategy trading lots board lots per
// entry with the specified short and long moving average periods.
func NewSMACross(b *broker.SimulatorBroker, short, long int, lots int64) (*SMACross, error) {
	if short < 1 || long <= short {
		return nil, fmt.Errorf("sma_cross: need 1 <= short < long, got short=%d long=%d", short, long)
	}
	if lots < 1 {
		return nil, fmt.Errorf("sma_cross: lots must be at least 1, got %d", lots)
	}
	return &SMACross{
		Base:        strategy.NewBase(b),
		shortPeriod: short,
		longPeriod:  long,
		lots:        lots,
		closes:      make(map[string][]float64),
	}, nil
}

// Name returns "sma_cross".
func (s *SMACross) Name() string {
	return SMACrossName
}

// OnBar appends the close of every trading symbol to its history and
// trades the symbols whose averages crossed. Suspended symbols are skipped
// and keep their history. Entries the account cannot afford or
// that breach the broker's position limit are skipped.
func (s *SMACross) OnBar(date time.Time, get strategy.Getter) error {
	closes, err := get(market.ColumnClose)
	if err != nil {
		return err
	}

	b := s.Simulator()
	for _, code := range closes.Valid() {
		px, _ := closes.Get(code)
		h := append(s.closes[code], px)
		if len(h) > s.longPeriod+1 {
			h = h[len(h)-s.longPeriod-1:]
		}
		s.closes[code] = h
		if len(h) < s.longPeriod+1 {
			continue
		}

		prev, cur := h[:len(h)-1], h[1:]
		prevShort, prevLong := sma(prev, s.shortPeriod), sma(prev, s.longPeriod)
		curShort, curLong := sma(cur, s.shortPeriod), sma(cur, s.longPeriod)

		sym, err := domain.NormalizeSymbol(code)
		if err != nil {
			return err
		}
		price := decimal.NewFromFloat(px)

		switch {
		case prevShort <= prevLong && curShort > curLong:
			if _, held := b.Position(sym); held {
				continue
			}
			qty := s.lots * b.Config().LotSize
			if _, err := b.Buy(sym, qty, price, date); err != nil {
				if errors.Is(err, domain.ErrInsufficientFunds) || errors.Is(err, domain.ErrRiskLimit) {
					continue
				}
				return err
			}
		case prevShort >= prevLong && curShort < curLong:
			pos, held := b.Position(sym)
			if !held {
				continue
			}
			if _, err := b.Sell(sym, pos.Qty, price, date); err != nil {
				return err
			}
		}
	}
	return nil
}

// sma is the mean of the last n values.
func sma(values []float64, n int) float64 {
	var sum float64
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n)
}
