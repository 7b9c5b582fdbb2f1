// Package config defines the configuration for the 01 ↔ Lighter arbitrage
// engine and provides defaults, loading, and validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file, then optionally overridden by ARBBOT_* environment variables and
// command-line flags.
type Config struct {
	Strategy  StrategyConfig  `toml:"strategy"`
	O1        O1Config        `toml:"o1"`
	Lighter   LighterConfig   `toml:"lighter"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Notify    NotifyConfig    `toml:"notify"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Datalog   DatalogConfig   `toml:"datalog"`
	LogLevel  string          `toml:"log_level"`
	LogDir    string          `toml:"log_dir"`
}

// StrategyConfig holds the arbitrage strategy parameters.
type StrategyConfig struct {
	// Ticker is the instrument symbol; one process runs one instrument.
	Ticker string `toml:"ticker"`
	// OrderSize is the quantity of every maker order and its hedge.
	OrderSize decimal.Decimal `toml:"order_size"`
	// MaxPosition caps the absolute signed position on the maker venue.
	MaxPosition decimal.Decimal `toml:"max_position"`
	// MinSpread is an absolute floor under which no signal fires.
	MinSpread decimal.Decimal `toml:"min_spread"`
	// LongThreshold/ShortThreshold are offsets above the warmup average
	// that a diff must exceed to fire.
	LongThreshold  decimal.Decimal `toml:"long_threshold"`
	ShortThreshold decimal.Decimal `toml:"short_threshold"`
	// WarmupSamples is the number of spread samples collected before any
	// signal is evaluated.
	WarmupSamples int `toml:"warmup_samples"`
	// FillTimeout is how long a maker order rests before the cancel probe.
	FillTimeout duration `toml:"fill_timeout"`
	// HedgeRetries bounds taker hedge attempts before a critical halt.
	HedgeRetries int `toml:"hedge_retries"`
	// SlippageBuffer is the fractional price concession of the IOC hedge,
	// widened once per retry (e.g. 0.002 = 20 bps below/above the touch).
	SlippageBuffer decimal.Decimal `toml:"slippage_buffer"`
	// LoopInterval is the sampling cadence of the arbitrage loop.
	LoopInterval duration `toml:"loop_interval"`
	// DivergenceFactor halts the strategy when |net position| exceeds this
	// multiple of the order size.
	DivergenceFactor int64 `toml:"divergence_factor"`
}

// O1Config holds the 01exchange venue parameters. 01 is the maker venue:
// REST-only, polled for quotes, and without an order-status API.
type O1Config struct {
	APIURL       string          `toml:"api_url"`
	PrivateKey   string          `toml:"private_key"`
	TickSize     decimal.Decimal `toml:"tick_size"`
	PollInterval duration        `toml:"poll_interval"`
	QuoteMaxAge  duration        `toml:"quote_max_age"`
}

// LighterConfig holds the Lighter venue parameters. Lighter is the taker
// venue: streaming order book over WebSocket, REST order entry.
type LighterConfig struct {
	WSURL        string   `toml:"ws_url"`
	APIURL       string   `toml:"api_url"`
	APIKey       string   `toml:"api_key"`
	APISecret    string   `toml:"api_secret"`
	AccountIndex int      `toml:"account_index"`
	QuoteMaxAge  duration `toml:"quote_max_age"`
}

// MonitorConfig holds the balance/health monitor parameters.
type MonitorConfig struct {
	BalanceInterval   duration        `toml:"balance_interval"`
	MinBalance        decimal.Decimal `toml:"min_balance"`
	HeartbeatInterval duration        `toml:"heartbeat_interval"`
}

// NotifyConfig holds notification channel credentials. An empty token
// disables delivery.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	DiscordWebhook string   `toml:"discord_webhook"`
	Events         []string `toml:"events"`
}

// TelemetryConfig enables mirroring spread samples and trade records to
// Redis for external consumers.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// DatalogConfig holds the CSV sink parameters.
type DatalogConfig struct {
	Dir string `toml:"dir"`
}

// SetFillTimeout overrides the maker fill wait, used by the command-line
// flag layer since the duration wrapper type is unexported.
func (s *StrategyConfig) SetFillTimeout(d time.Duration) {
	s.FillTimeout = duration{d}
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "5s" or "500ms".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration. Every scalar the engine
// consumes has a documented default here; secrets are intentionally empty.
func Defaults() Config {
	return Config{
		Strategy: StrategyConfig{
			Ticker:           "BTC",
			OrderSize:        decimal.RequireFromString("0.001"),
			MaxPosition:      decimal.RequireFromString("0.01"),
			MinSpread:        decimal.Zero,
			LongThreshold:    decimal.NewFromInt(10),
			ShortThreshold:   decimal.NewFromInt(10),
			WarmupSamples:    100,
			FillTimeout:      duration{5 * time.Second},
			HedgeRetries:     3,
			SlippageBuffer:   decimal.RequireFromString("0.002"),
			LoopInterval:     duration{time.Second},
			DivergenceFactor: 3,
		},
		O1: O1Config{
			APIURL:       "https://zo-mainnet.n1.xyz",
			TickSize:     decimal.NewFromInt(10),
			PollInterval: duration{500 * time.Millisecond},
			QuoteMaxAge:  duration{10 * time.Second},
		},
		Lighter: LighterConfig{
			WSURL:       "wss://mainnet.zklighter.elliot.ai/stream",
			APIURL:      "https://mainnet.zklighter.elliot.ai",
			QuoteMaxAge: duration{5 * time.Second},
		},
		Monitor: MonitorConfig{
			BalanceInterval:   duration{10 * time.Second},
			MinBalance:        decimal.NewFromInt(10),
			HeartbeatInterval: duration{5 * time.Minute},
		},
		Datalog:  DatalogConfig{Dir: "."},
		LogLevel: "info",
		LogDir:   "logs",
	}
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks the configuration ranges and reports every violation at
// once so operators can fix a config file in a single pass.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	s := &c.Strategy
	if s.Ticker == "" {
		errs = append(errs, "strategy: ticker must not be empty")
	}
	if !s.OrderSize.IsPositive() {
		errs = append(errs, "strategy: order_size must be positive")
	}
	if !s.MaxPosition.IsPositive() {
		errs = append(errs, "strategy: max_position must be positive")
	}
	if s.MinSpread.IsNegative() {
		errs = append(errs, "strategy: min_spread must not be negative")
	}
	if !s.LongThreshold.IsPositive() {
		errs = append(errs, "strategy: long_threshold must be positive")
	}
	if !s.ShortThreshold.IsPositive() {
		errs = append(errs, "strategy: short_threshold must be positive")
	}
	if s.WarmupSamples < 1 {
		errs = append(errs, "strategy: warmup_samples must be at least 1")
	}
	if s.FillTimeout.Duration <= 0 {
		errs = append(errs, "strategy: fill_timeout must be positive")
	}
	if s.HedgeRetries < 1 {
		errs = append(errs, "strategy: hedge_retries must be at least 1")
	}
	if s.SlippageBuffer.IsNegative() {
		errs = append(errs, "strategy: slippage_buffer must not be negative")
	}
	if s.LoopInterval.Duration <= 0 {
		errs = append(errs, "strategy: loop_interval must be positive")
	}
	if s.DivergenceFactor < 1 {
		errs = append(errs, "strategy: divergence_factor must be at least 1")
	}

	if c.O1.APIURL == "" {
		errs = append(errs, "o1: api_url must not be empty")
	}
	if c.O1.PrivateKey == "" {
		errs = append(errs, "o1: private_key is required (set O1_PRIVATE_KEY)")
	}
	if !c.O1.TickSize.IsPositive() {
		errs = append(errs, "o1: tick_size must be positive")
	}
	if c.O1.PollInterval.Duration <= 0 {
		errs = append(errs, "o1: poll_interval must be positive")
	}
	if c.O1.QuoteMaxAge.Duration <= 0 {
		errs = append(errs, "o1: quote_max_age must be positive")
	}

	if !strings.HasPrefix(c.Lighter.WSURL, "ws://") && !strings.HasPrefix(c.Lighter.WSURL, "wss://") {
		errs = append(errs, fmt.Sprintf("lighter: invalid ws_url %q", c.Lighter.WSURL))
	}
	if c.Lighter.APIURL == "" {
		errs = append(errs, "lighter: api_url must not be empty")
	}
	if c.Lighter.APIKey == "" {
		errs = append(errs, "lighter: api_key is required (set LIGHTER_API_KEY)")
	}
	if c.Lighter.QuoteMaxAge.Duration <= 0 {
		errs = append(errs, "lighter: quote_max_age must be positive")
	}

	if c.Monitor.BalanceInterval.Duration <= 0 {
		errs = append(errs, "monitor: balance_interval must be positive")
	}
	if c.Monitor.MinBalance.IsNegative() {
		errs = append(errs, "monitor: min_balance must not be negative")
	}
	if c.Monitor.HeartbeatInterval.Duration <= 0 {
		errs = append(errs, "monitor: heartbeat_interval must be positive")
	}

	if c.Telemetry.Enabled && c.Telemetry.Addr == "" {
		errs = append(errs, "telemetry: addr is required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
