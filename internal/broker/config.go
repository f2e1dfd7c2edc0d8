package broker

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultLotSize is the board-lot size of China A-share buy orders.
const DefaultLotSize = 100

// LotPolicy decides what happens to an order quantity that is not a
// multiple of the lot size.
type LotPolicy string

const (
	// LotRoundDown truncates the quantity to the nearest lower lot multiple.
	LotRoundDown LotPolicy = "round-down"
	// LotReject fails the order with an InvalidOrderError.
	LotReject LotPolicy = "reject"
)

// ParseLotPolicy converts a configuration string into a LotPolicy. An empty
// string selects LotRoundDown.
func ParseLotPolicy(s string) (LotPolicy, error) {
	switch LotPolicy(s) {
	case "", LotRoundDown:
		return LotRoundDown, nil
	case LotReject:
		return LotReject, nil
	}
	return "", fmt.Errorf("unknown lot policy %q (supported: %s, %s)", s, LotRoundDown, LotReject)
}

// Config holds the static parameters of one simulated account.
type Config struct {
	InitialCash    decimal.Decimal
	CommissionRate decimal.Decimal // fraction of notional, e.g. 0.0003
	MinCommission  decimal.Decimal // floor per trade; zero disables it
	LotSize        int64
	LotPolicy      LotPolicy
	MaxPositionPct decimal.Decimal // cap on one symbol's share of equity; zero disables it
}

// DefaultConfig returns a 100,000 account with 0.03% commission, a 5.00
// minimum and 100-share lots rounded down.
func DefaultConfig() Config {
	return Config{
		InitialCash:    decimal.NewFromInt(100_000),
		CommissionRate: decimal.RequireFromString("0.0003"),
		MinCommission:  decimal.NewFromInt(5),
		LotSize:        DefaultLotSize,
		LotPolicy:      LotRoundDown,
	}
}

// Validate reports configuration values that would break ledger invariants.
func (c Config) Validate() error {
	if c.InitialCash.IsNegative() {
		return fmt.Errorf("initial cash must not be negative, got %s", c.InitialCash)
	}
	if c.CommissionRate.IsNegative() {
		return fmt.Errorf("commission rate must not be negative, got %s", c.CommissionRate)
	}
	if c.MinCommission.IsNegative() {
		return fmt.Errorf("min commission must not be negative, got %s", c.MinCommission)
	}
	if c.LotSize < 1 {
		return fmt.Errorf("lot size must be at least 1, got %d", c.LotSize)
	}
	if _, err := ParseLotPolicy(string(c.LotPolicy)); err != nil {
		return err
	}
	if c.MaxPositionPct.IsNegative() || c.MaxPositionPct.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("max position pct must be within [0, 1], got %s", c.MaxPositionPct)
	}
	return nil
}

// commission returns the fee for a fill of the given notional, rounded to
// the cent.
func (c Config) commission(notional decimal.Decimal) decimal.Decimal {
	fee := notional.Mul(c.CommissionRate)
	if c.MinCommission.IsPositive() && fee.LessThan(c.MinCommission) {
		fee = c.MinCommission
	}
	return fee.Round(2)
}

// roundLot applies the lot policy to qty. It returns the adjusted quantity,
// or a reason string when the order must be rejected.
func (c Config) roundLot(qty int64) (int64, string) {
	lot := c.LotSize
	if lot <= 1 || qty%lot == 0 {
		return qty, ""
	}
	if c.LotPolicy == LotReject {
		return 0, fmt.Sprintf("quantity %d is not a multiple of lot size %d", qty, lot)
	}
	rounded := qty - qty%lot
	if rounded == 0 {
		return 0, fmt.Sprintf("quantity %d is below one lot of %d", qty, lot)
	}
	return rounded, ""
}
