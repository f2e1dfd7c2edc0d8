package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors. The typed errors below match them with errors.Is.
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrInvalidOrder         = errors.New("invalid order")
	ErrMissingPrice         = errors.New("missing price")
	ErrDataSourceContract   = errors.New("data source contract violation")
	ErrRiskLimit            = errors.New("risk limit exceeded")
)

// InsufficientFundsError is returned when a buy costs more than the
// available cash.
type InsufficientFundsError struct {
	Symbol    string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds to buy %s: need %s, have %s",
		e.Symbol, e.Required.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

// InsufficientPositionError is returned when a sell asks for more shares
// than are held.
type InsufficientPositionError struct {
	Symbol    string
	Requested int64
	Held      int64
}

func (e *InsufficientPositionError) Error() string {
	return fmt.Sprintf("insufficient position in %s: requested %d, held %d",
		e.Symbol, e.Requested, e.Held)
}

func (e *InsufficientPositionError) Is(target error) bool { return target == ErrInsufficientPosition }

// InvalidOrderError is returned for orders rejected before touching the
// ledger: non-positive quantity or price, unknown symbol format, or a
// quantity that violates the lot-size policy.
type InvalidOrderError struct {
	Symbol string
	Reason string
}

func (e *InvalidOrderError) Error() string {
	if e.Symbol == "" {
		return "invalid order: " + e.Reason
	}
	return fmt.Sprintf("invalid order for %s: %s", e.Symbol, e.Reason)
}

func (e *InvalidOrderError) Is(target error) bool { return target == ErrInvalidOrder }

// MissingPriceError is returned when a column, date or symbol has no value.
type MissingPriceError struct {
	Symbol string
	Column string
	Date   time.Time
}

func (e *MissingPriceError) Error() string {
	msg := "missing price"
	if e.Column != "" {
		msg += " column=" + e.Column
	}
	if e.Symbol != "" {
		msg += " symbol=" + e.Symbol
	}
	if !e.Date.IsZero() {
		msg += " date=" + e.Date.Format("2006-01-02")
	}
	return msg
}

func (e *MissingPriceError) Is(target error) bool { return target == ErrMissingPrice }

// DataSourceContractError is returned when a data source yields dates out of
// order or more than once.
type DataSourceContractError struct {
	Date     time.Time
	Previous time.Time
}

func (e *DataSourceContractError) Error() string {
	return fmt.Sprintf("data source contract violation: date %s does not follow %s",
		e.Date.Format("2006-01-02"), e.Previous.Format("2006-01-02"))
}

func (e *DataSourceContractError) Is(target error) bool { return target == ErrDataSourceContract }

// RiskLimitError is returned when a buy would concentrate more of the
// account in one symbol than the broker allows.
type RiskLimitError struct {
	Symbol   string
	Exposure decimal.Decimal // holding cost after the fill
	Limit    decimal.Decimal
}

func (e *RiskLimitError) Error() string {
	return fmt.Sprintf("risk limit: %s exposure %s would exceed %s",
		e.Symbol, e.Exposure.StringFixed(2), e.Limit.StringFixed(2))
}

func (e *RiskLimitError) Is(target error) bool { return target == ErrRiskLimit }
