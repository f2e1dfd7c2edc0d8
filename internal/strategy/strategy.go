// Package strategy defines the Strategy contract, a Registry of named
// strategy factories, and the Backtester that replays a data source through
// a strategy one bar at a time.
package strategy

import (
	"fmt"
	"math"
	"sort"
	"time"

	"qka/internal/broker"
	"qka/internal/market"
)

// Getter returns the readings of one column for every symbol on the bar
// being processed, keyed by bare code.
type Getter func(column string) (market.Series, error)

// Strategy is the interface that all trading strategies must implement.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Broker returns the broker the strategy trades against. It is the same
	// broker for the lifetime of the strategy.
	Broker() broker.Broker

	// OnBar is called once per trading date in ascending order. get only
	// serves data for date. An error aborts the run.
	OnBar(date time.Time, get Getter) error
}

// Base holds the broker of a strategy. Embed it to satisfy Strategy.Broker.
type Base struct {
	broker *broker.SimulatorBroker
}

// NewBase returns a Base trading against b, or against a fresh simulator
// with broker.DefaultConfig when b is nil.
func NewBase(b *broker.SimulatorBroker) Base {
	if b == nil {
		b = broker.NewDefaultSimulatorBroker()
	}
	return Base{broker: b}
}

// Broker returns the strategy's broker, creating a default one on first use
// of a zero Base.
func (b *Base) Broker() broker.Broker {
	return b.Simulator()
}

// Simulator returns the concrete simulator behind Broker.
func (b *Base) Simulator() *broker.SimulatorBroker {
	if b.broker == nil {
		b.broker = broker.NewDefaultSimulatorBroker()
	}
	return b.broker
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Params are numeric strategy parameters read from configuration.
type Params map[string]float64

// Int returns the named parameter truncated to an int, or def when absent.
func (p Params) Int(name string, def int) int {
	if v, ok := p[name]; ok {
		return int(math.Trunc(v))
	}
	return def
}

// Float returns the named parameter, or def when absent.
func (p Params) Float(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Factory builds a strategy trading against b. symbols is the run's
// universe as configured; it may be empty.
type Factory func(b *broker.SimulatorBroker, symbols []string, params Params) (Strategy, error)

// Registry holds a named collection of strategy factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Get retrieves a factory by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// New builds the named strategy.
func (r *Registry) New(name string, b *broker.SimulatorBroker, symbols []string, params Params) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (registered: %v)", name, r.List())
	}
	return f(b, symbols, params)
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
