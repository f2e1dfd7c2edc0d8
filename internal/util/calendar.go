package util

import (
	"time"

	"qka/internal/domain"
)

// TradingDaysPerYear is the number of sessions used to annualize daily
// statistics.
const TradingDaysPerYear = 252

// TradingCalendar answers whether a date is a trading session for a market.
// Only weekends are known closures; exchange holidays can be added with
// AddHoliday.
type TradingCalendar struct {
	market   domain.Market
	holidays map[time.Time]bool
}

// NewTradingCalendar creates a TradingCalendar for the given market.
func NewTradingCalendar(market domain.Market) *TradingCalendar {
	return &TradingCalendar{
		market:   market,
		holidays: make(map[time.Time]bool),
	}
}

// Market returns the calendar's market.
func (tc *TradingCalendar) Market() domain.Market { return tc.market }

// AddHoliday marks the day of t as closed.
func (tc *TradingCalendar) AddHoliday(t time.Time) {
	tc.holidays[truncateDay(t)] = true
}

// IsTradingDay reports whether the day of t is a session.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !tc.holidays[truncateDay(t)]
}

// NextTradingDay returns the first session strictly after the day of t.
func (tc *TradingCalendar) NextTradingDay(t time.Time) time.Time {
	d := truncateDay(t).AddDate(0, 0, 1)
	for !tc.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
