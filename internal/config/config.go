package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"qka/internal/broker"
	"qka/internal/domain"
)

// DefaultPath is used when neither --config nor QKA_CONFIG is given.
const DefaultPath = "config/qka.yaml"

// DateLayout is the format of start_date and end_date.
const DateLayout = "2006-01-02"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for qka.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Logging  Logging  `yaml:"logging"`
	Backtest Backtest `yaml:"backtest"`
	Broker   Broker   `yaml:"broker"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Backtest selects the data and strategy of a run.
type Backtest struct {
	Market    string             `yaml:"market"`
	Symbols   []string           `yaml:"symbols"`
	StartDate string             `yaml:"start_date"`
	EndDate   string             `yaml:"end_date"`
	Strategy  string             `yaml:"strategy"`
	Params    map[string]float64 `yaml:"params"`
	Holidays  []string           `yaml:"holidays"` // exchange closures on weekdays
}

// Broker holds the simulated account and cost model.
type Broker struct {
	InitialCash    float64 `yaml:"initial_cash"`
	CommissionRate float64 `yaml:"commission_rate"`
	MinCommission  float64 `yaml:"min_commission"`
	LotSize        int64   `yaml:"lot_size"`
	LotPolicy      string  `yaml:"lot_policy"`
	MaxPositionPct float64 `yaml:"max_position_pct"`
}

// Default returns the configuration used for fields a file leaves unset.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/qka.db",
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Backtest: Backtest{
			Market:   string(domain.MarketCN),
			Strategy: "buy_and_hold",
		},
		Broker: Broker{
			InitialCash:    100000,
			CommissionRate: 0.0003,
			MinCommission:  5,
			LotSize:        broker.DefaultLotSize,
			LotPolicy:      string(broker.LotRoundDown),
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path over Default(),
// and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ResolvePath returns flagPath if set, then $QKA_CONFIG, then DefaultPath.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if v := os.Getenv("QKA_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("QKA_INITIAL_CASH"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("QKA_INITIAL_CASH: %w", err)
		}
		cfg.Broker.InitialCash = f
	}

	if v := os.Getenv("QKA_COMMISSION_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("QKA_COMMISSION_RATE: %w", err)
		}
		cfg.Broker.CommissionRate = f
	}
	return nil
}

// ---------------------------------------------------------------------------
// Validation and conversion
// ---------------------------------------------------------------------------

// Validate reports every problem found in cfg.
func (c *Config) Validate() error {
	var errs []error
	if c.Broker.InitialCash < 0 {
		errs = append(errs, fmt.Errorf("broker.initial_cash must not be negative, got %v", c.Broker.InitialCash))
	}
	if c.Broker.CommissionRate < 0 {
		errs = append(errs, fmt.Errorf("broker.commission_rate must not be negative, got %v", c.Broker.CommissionRate))
	}
	if c.Broker.MinCommission < 0 {
		errs = append(errs, fmt.Errorf("broker.min_commission must not be negative, got %v", c.Broker.MinCommission))
	}
	if c.Broker.LotSize < 1 {
		errs = append(errs, fmt.Errorf("broker.lot_size must be at least 1, got %d", c.Broker.LotSize))
	}
	if _, err := broker.ParseLotPolicy(c.Broker.LotPolicy); err != nil {
		errs = append(errs, fmt.Errorf("broker.lot_policy: %w", err))
	}
	if c.Broker.MaxPositionPct < 0 || c.Broker.MaxPositionPct > 1 {
		errs = append(errs, fmt.Errorf("broker.max_position_pct must be within [0, 1], got %v", c.Broker.MaxPositionPct))
	}

	switch domain.Market(c.Backtest.Market) {
	case domain.MarketCN, domain.MarketUS:
	default:
		errs = append(errs, fmt.Errorf("backtest.market must be %q or %q, got %q", domain.MarketCN, domain.MarketUS, c.Backtest.Market))
	}
	start, serr := c.Start()
	if serr != nil {
		errs = append(errs, serr)
	}
	end, eerr := c.End()
	if eerr != nil {
		errs = append(errs, eerr)
	}
	if serr == nil && eerr == nil && !start.IsZero() && !end.IsZero() && end.Before(start) {
		errs = append(errs, fmt.Errorf("backtest.end_date %s is before start_date %s", c.Backtest.EndDate, c.Backtest.StartDate))
	}
	if _, err := c.Holidays(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Start returns the parsed start date, or the zero time when unset.
func (c *Config) Start() (time.Time, error) {
	return parseDate("backtest.start_date", c.Backtest.StartDate)
}

// End returns the parsed end date, or the zero time when unset.
func (c *Config) End() (time.Time, error) {
	return parseDate("backtest.end_date", c.Backtest.EndDate)
}

// Holidays returns the parsed backtest.holidays.
func (c *Config) Holidays() ([]time.Time, error) {
	days := make([]time.Time, 0, len(c.Backtest.Holidays))
	for i, h := range c.Backtest.Holidays {
		t, err := parseDate(fmt.Sprintf("backtest.holidays[%d]", i), h)
		if err != nil {
			return nil, err
		}
		days = append(days, t)
	}
	return days, nil
}

// BrokerConfig converts the broker section into a broker.Config.
func (c *Config) BrokerConfig() (broker.Config, error) {
	policy, err := broker.ParseLotPolicy(c.Broker.LotPolicy)
	if err != nil {
		return broker.Config{}, err
	}
	return broker.Config{
		InitialCash:    decimal.NewFromFloat(c.Broker.InitialCash),
		CommissionRate: decimal.NewFromFloat(c.Broker.CommissionRate),
		MinCommission:  decimal.NewFromFloat(c.Broker.MinCommission),
		LotSize:        c.Broker.LotSize,
		LotPolicy:      policy,
		MaxPositionPct: decimal.NewFromFloat(c.Broker.MaxPositionPct),
	}, nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}
