package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Symbol      string            `yaml:"symbol"`
	Timezone    string            `yaml:"timezone"`
	Ledger      string            `yaml:"ledger"`
	Strategy    Strategy          `yaml:"strategy"`
	Log         Log               `yaml:"log"`
	PlatformRef PlatformReference `yaml:"platform"`
}

func Read(r io.Reader) (*Config, error) {
	cfg := Config{
		Symbol:   "SPY",
		Timezone: "America/New_York",
		Ledger:   "trades.db",
		Strategy: DefaultStrategy(),
	}

	d := yaml.NewDecoder(r)
	if err := d.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	return &cfg, nil
}

func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid exchange timezone %q: %w", c.Timezone, err)
	}

	return loc, nil
}

// Log configures the rotating log file. An empty File logs to stdout only.
type Log struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Strategy carries every tunable the decision engines read. Components take
// it at construction and never consult ambient state.
type Strategy struct {
	ExecutionStart      TimeOfDay     `yaml:"execution_start"`
	ExecutionEnd        TimeOfDay     `yaml:"execution_end"`
	MonitorStart        TimeOfDay     `yaml:"monitor_start"`
	MarketOpen          TimeOfDay     `yaml:"market_open"`
	PremiumPrimary      float64       `yaml:"premium_primary"`
	PremiumFallback     float64       `yaml:"premium_fallback"`
	PremiumSupplemental float64       `yaml:"premium_supplemental"`
	SpreadWidth         float64       `yaml:"spread_width"`
	DeltaSearch         []float64     `yaml:"delta_search"`
	DeltaTolerance      float64       `yaml:"delta_tolerance"`
	DefaultQuantity     int           `yaml:"default_quantity"`
	WinRateThreshold    float64       `yaml:"win_rate_threshold"`
	WinRateWindow       int           `yaml:"win_rate_window"`
	QuantityStep        int           `yaml:"quantity_step"`
	CloseLimit          float64       `yaml:"close_limit"`
	ExpiryOffsetDays    int           `yaml:"expiry_offset_days"`
	Staleness           Duration      `yaml:"staleness"`
	TickInterval        Duration      `yaml:"tick_interval"`
	RetryBudget         Duration      `yaml:"retry_budget"`
	FillPoll            Duration      `yaml:"fill_poll"`
	DailyBars           int           `yaml:"daily_bars"`
	PatternBars         int           `yaml:"pattern_bars"`
}

// DefaultStrategy mirrors the strategy's canonical tuning: the 15:55-16:00
// execution window, the 55/45/25 premium tiers, the 0.24..0.20 delta ladder
// and the 30-contract base size.
func DefaultStrategy() Strategy {
	return Strategy{
		ExecutionStart:      TimeOfDay{15, 55},
		ExecutionEnd:        TimeOfDay{16, 0},
		MonitorStart:        TimeOfDay{10, 0},
		MarketOpen:          TimeOfDay{9, 30},
		PremiumPrimary:      55,
		PremiumFallback:     45,
		PremiumSupplemental: 25,
		SpreadWidth:         10,
		DeltaSearch:         []float64{0.24, 0.23, 0.22, 0.21, 0.20},
		DeltaTolerance:      0.01,
		DefaultQuantity:     30,
		WinRateThreshold:    0.7,
		WinRateWindow:       10,
		QuantityStep:        10,
		CloseLimit:          0.05,
		ExpiryOffsetDays:    0,
		Staleness:           Duration(2 * time.Minute),
		TickInterval:        Duration(time.Minute),
		RetryBudget:         Duration(30 * time.Second),
		FillPoll:            Duration(time.Second),
		DailyBars:           5,
		PatternBars:         3,
	}
}

func (s Strategy) Validate() error {
	if !s.ExecutionStart.Before(s.ExecutionEnd) {
		return errors.New("execution window start must precede its end")
	}
	if len(s.DeltaSearch) == 0 {
		return errors.New("delta search range cannot be empty")
	}
	if s.SpreadWidth <= 0 {
		return errors.New("spread width must be positive")
	}
	if s.WinRateWindow <= 0 {
		return errors.New("win rate window must be positive")
	}
	if s.DefaultQuantity <= 0 {
		return errors.New("default quantity must be positive")
	}

	return nil
}

// Duration parses "30s" / "2m" style yaml values.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}

	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// TimeOfDay is a wall-clock moment in the exchange's local day, parsed from
// "15:55" style strings.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t *TimeOfDay) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.Parse("15:04", value.Value)
	if err != nil {
		return fmt.Errorf("invalid time of day %q: %w", value.Value, err)
	}

	t.Hour = parsed.Hour()
	t.Minute = parsed.Minute()
	return nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) Before(u TimeOfDay) bool {
	return t.minutes() < u.minutes()
}

// Contains reports whether instant (converted to loc) falls in [t, end).
func (t TimeOfDay) Contains(end TimeOfDay, instant time.Time, loc *time.Location) bool {
	m := minuteOfDay(instant, loc)
	return m >= t.minutes() && m < end.minutes()
}

// Reached reports whether instant (converted to loc) is at or past t.
func (t TimeOfDay) Reached(instant time.Time, loc *time.Location) bool {
	return minuteOfDay(instant, loc) >= t.minutes()
}

func minuteOfDay(instant time.Time, loc *time.Location) int {
	local := instant.In(loc)
	return local.Hour()*60 + local.Minute()
}
