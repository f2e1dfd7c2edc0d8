package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTypesExist(t *testing.T) {
	// Verify Bar can be instantiated with zero values.
	bar := Bar{}
	if bar.Symbol != "" {
		t.Error("expected empty Symbol for zero-value Bar")
	}
	if !bar.Timestamp.IsZero() {
		t.Error("expected zero Timestamp for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 {
		t.Error("expected zero OHLC values for zero-value Bar")
	}
	if bar.Volume != 0 || bar.Amount != 0 {
		t.Error("expected zero Volume/Amount for zero-value Bar")
	}

	trade := Trade{}
	if trade.Side != "" || trade.Qty != 0 {
		t.Error("expected empty Side and zero Qty for zero-value Trade")
	}
	if !trade.Price.IsZero() || !trade.Commission.IsZero() {
		t.Error("expected zero Price/Commission for zero-value Trade")
	}

	// Verify enum constants are defined correctly.
	if SideBuy != "buy" || SideSell != "sell" {
		t.Errorf("Side constants = %q/%q, want buy/sell", SideBuy, SideSell)
	}
	if MarketUS != "us" || MarketCN != "cn" {
		t.Error("Market constants have unexpected values")
	}
}

func TestPositionMarketValue(t *testing.T) {
	pos := Position{Symbol: "000001.SZ", Qty: 100, AvgCost: decimal.NewFromInt(10)}
	got := pos.MarketValue(decimal.RequireFromString("12.00"))
	if !got.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("MarketValue = %s, want 1200", got)
	}
}

func TestTradeNotional(t *testing.T) {
	tr := Trade{Qty: 300, Price: decimal.RequireFromString("8.37")}
	if got := tr.Notional(); !got.Equal(decimal.RequireFromString("2511")) {
		t.Errorf("Notional = %s, want 2511", got)
	}
}

func TestAddSuffix(t *testing.T) {
	tests := []struct {
		code    string
		want    string
		wantErr bool
	}{
		{"000001", "000001.SZ", false},
		{"300750", "300750.SZ", false},
		{"159915", "159915.SZ", false},
		{"600519", "600519.SH", false},
		{"688981", "688981.SH", false},
		{"830799", "830799.BJ", false},
		{"430047", "430047.BJ", false},
		{"900901", "", true},
		{"12345", "", true},
		{"abcdef", "", true},
	}
	for _, tt := range tests {
		got, err := AddSuffix(tt.code)
		if tt.wantErr {
			if err == nil {
				t.Errorf("AddSuffix(%q) = %q, want error", tt.code, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("AddSuffix(%q) returned error: %v", tt.code, err)
			continue
		}
		if got != tt.want {
			t.Errorf("AddSuffix(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestNormalizeSymbol(t *testing.T) {
	got, err := NormalizeSymbol("600000.sh")
	if err != nil || got != "600000.SH" {
		t.Errorf("NormalizeSymbol(600000.sh) = %q, %v", got, err)
	}
	got, err = NormalizeSymbol(" 000002 ")
	if err != nil || got != "000002.SZ" {
		t.Errorf("NormalizeSymbol(000002) = %q, %v", got, err)
	}
}

func TestStripSuffix(t *testing.T) {
	if got := StripSuffix("000001.SZ"); got != "000001" {
		t.Errorf("StripSuffix = %q, want 000001", got)
	}
	if got := StripSuffix("000001"); got != "000001" {
		t.Errorf("StripSuffix on bare code = %q, want 000001", got)
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&InsufficientFundsError{Symbol: "000001.SZ"}, ErrInsufficientFunds},
		{&InsufficientPositionError{Symbol: "000001.SZ"}, ErrInsufficientPosition},
		{&InvalidOrderError{Reason: "qty"}, ErrInvalidOrder},
		{&MissingPriceError{Column: "close"}, ErrMissingPrice},
		{&DataSourceContractError{Date: time.Now()}, ErrDataSourceContract},
		{&RiskLimitError{Symbol: "600519.SH"}, ErrRiskLimit},
	}
	for _, tt := range tests {
		wrapped := fmt.Errorf("on bar: %w", tt.err)
		if !errors.Is(wrapped, tt.sentinel) {
			t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.sentinel)
		}
	}

	var funds *InsufficientFundsError
	err := fmt.Errorf("wrap: %w", &InsufficientFundsError{Symbol: "X", Required: decimal.NewFromInt(5)})
	if !errors.As(err, &funds) || funds.Symbol != "X" {
		t.Errorf("errors.As did not extract InsufficientFundsError from %v", err)
	}
	if errors.Is(err, ErrInsufficientPosition) {
		t.Error("InsufficientFundsError must not match ErrInsufficientPosition")
	}
}
