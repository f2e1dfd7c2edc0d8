package builtins

import (
	"qka/internal/broker"
	"qka/internal/strategy"
)

// Default SMACross parameters.
const (
	DefaultShortPeriod = 5
	DefaultLongPeriod  = 20
	DefaultLots        = 1
)

// Register adds every built-in strategy to r.
//
//	sma_cross     params: short, long, lots
//	buy_and_hold  uses the configured symbols
func Register(r *strategy.Registry) {
	r.Register(SMACrossName, func(b *broker.SimulatorBroker, _ []string, p strategy.Params) (strategy.Strategy, error) {
		return NewSMACross(b,
			p.Int("short", DefaultShortPeriod),
			p.Int("long", DefaultLongPeriod),
			int64(p.Int("lots", DefaultLots)),
		)
	})
	r.Register(BuyAndHoldName, func(b *broker.SimulatorBroker, symbols []string, _ strategy.Params) (strategy.Strategy, error) {
		return NewBuyAndHold(b, symbols)
	})
}

// NewRegistry returns a registry holding the built-in strategies.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r)
	return r
}
