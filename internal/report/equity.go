// Package report computes post-hoc statistics over a backtest's equity
// snapshots and trade log. Nothing here mutates broker state.
package report

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"qka/internal/domain"
	"qka/internal/util"
)

// EquityCurve is a read-only view over the ordered snapshots of one run.
type EquityCurve struct {
	initial decimal.Decimal
	snaps   []domain.EquitySnapshot
}

// NewEquityCurve returns a curve starting from the initial account value.
// snaps must be in date order; they are copied.
func NewEquityCurve(initial decimal.Decimal, snaps []domain.EquitySnapshot) *EquityCurve {
	cp := make([]domain.EquitySnapshot, len(snaps))
	copy(cp, snaps)
	return &EquityCurve{initial: initial, snaps: cp}
}

// Len returns the number of snapshots.
func (c *EquityCurve) Len() int { return len(c.snaps) }

// Initial returns the account value before the first bar.
func (c *EquityCurve) Initial() decimal.Decimal { return c.initial }

// Snapshots returns a copy of the snapshots.
func (c *EquityCurve) Snapshots() []domain.EquitySnapshot {
	out := make([]domain.EquitySnapshot, len(c.snaps))
	copy(out, c.snaps)
	return out
}

// Final returns the last snapshot, if any.
func (c *EquityCurve) Final() (domain.EquitySnapshot, bool) {
	if len(c.snaps) == 0 {
		return domain.EquitySnapshot{}, false
	}
	return c.snaps[len(c.snaps)-1], true
}

// TotalReturn is final equity over initial value, minus one. It is zero for
// an empty curve or a non-positive initial value.
func (c *EquityCurve) TotalReturn() float64 {
	last, ok := c.Final()
	if !ok || !c.initial.IsPositive() {
		return 0
	}
	r, _ := last.TotalEquity.Div(c.initial).Sub(decimal.NewFromInt(1)).Float64()
	return r
}

// Returns are the per-bar simple returns, the first one measured against the
// initial value. Bars following a zero equity yield a zero return.
func (c *EquityCurve) Returns() []float64 {
	values := c.values()
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			out[i-1] = values[i]/values[i-1] - 1
		}
	}
	return out
}

// MaxDrawdown is the largest peak-to-trough decline as a positive fraction
// of the peak.
func (c *EquityCurve) MaxDrawdown() float64 {
	var peak, maxDD float64
	for _, v := range c.values() {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// AnnualizedReturn compounds TotalReturn to a yearly rate over the number of
// bars in the curve.
func (c *EquityCurve) AnnualizedReturn() float64 {
	n := len(c.snaps)
	if n == 0 {
		return 0
	}
	growth := 1 + c.TotalReturn()
	if growth <= 0 {
		return -1
	}
	return math.Pow(growth, float64(util.TradingDaysPerYear)/float64(n)) - 1
}

// Volatility is the annualized sample standard deviation of Returns.
func (c *EquityCurve) Volatility() float64 {
	rets := c.Returns()
	if len(rets) < 2 {
		return 0
	}
	return stat.StdDev(rets, nil) * math.Sqrt(util.TradingDaysPerYear)
}

// SharpeRatio is the annualized mean return over its standard deviation,
// with a zero risk-free rate. It is zero when returns do not vary.
func (c *EquityCurve) SharpeRatio() float64 {
	rets := c.Returns()
	if len(rets) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(rets, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(util.TradingDaysPerYear)
}

func (c *EquityCurve) values() []float64 {
	if len(c.snaps) == 0 {
		return nil
	}
	out := make([]float64, 0, len(c.snaps)+1)
	out = append(out, c.initial.InexactFloat64())
	for _, s := range c.snaps {
		out = append(out, s.TotalEquity.InexactFloat64())
	}
	return out
}
