// Command arbbot runs the 01 ↔ Lighter maker-taker arbitrage engine for one
// instrument. It loads configuration, applies flag overrides, sets up signal
// handling, and runs the engine until interrupted.
//
// Exit codes: 0 on clean shutdown (including balance-triggered), 1 on
// configuration or startup failure, 2 when the run recorded a critical
// condition (one-sided position or unknown order state).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/app"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/config"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath     = flag.String("config", "", "path to TOML configuration file")
		ticker         = flag.String("ticker", "", "instrument symbol override")
		orderSize      = flag.String("size", "", "order size override")
		maxPosition    = flag.String("max-position", "", "max 01 position override")
		minSpread      = flag.String("min-spread", "", "absolute spread floor override")
		longThreshold  = flag.String("long-threshold", "", "long signal threshold override")
		shortThreshold = flag.String("short-threshold", "", "short signal threshold override")
		tickSize       = flag.String("tick-size", "", "01 tick size override")
		fillTimeout    = flag.Duration("fill-timeout", 0, "maker fill wait override (e.g. 5s)")
		warmupSamples  = flag.Int("warmup-samples", 0, "warmup sample count override")
		logLevel       = flag.String("log-level", "", "log level override (debug, info, warn, error)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	applyFlags(cfg, flagOverrides{
		ticker:         *ticker,
		orderSize:      *orderSize,
		maxPosition:    *maxPosition,
		minSpread:      *minSpread,
		longThreshold:  *longThreshold,
		shortThreshold: *shortThreshold,
		tickSize:       *tickSize,
		fillTimeout:    *fillTimeout,
		warmupSamples:  *warmupSamples,
		logLevel:       *logLevel,
	})

	logger := logging.New(cfg.LogLevel, cfg.LogDir)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("arbbot starting",
		slog.String("ticker", cfg.Strategy.Ticker),
		slog.String("order_size", cfg.Strategy.OrderSize.String()),
		slog.String("max_position", cfg.Strategy.MaxPosition.String()),
		slog.Int("warmup_samples", cfg.Strategy.WarmupSamples),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, logger)
	if err := application.Run(ctx); err != nil {
		logger.Error("startup failed", slog.String("error", err.Error()))
		return 1
	}

	if application.Critical() {
		logger.Error("run recorded a critical condition, exiting non-zero")
		return 2
	}
	logger.Info("arbbot stopped")
	return 0
}

type flagOverrides struct {
	ticker         string
	orderSize      string
	maxPosition    string
	minSpread      string
	longThreshold  string
	shortThreshold string
	tickSize       string
	fillTimeout    time.Duration
	warmupSamples  int
	logLevel       string
}

// applyFlags overlays non-empty flag values on the loaded configuration.
// Flags win over both the TOML file and environment overrides.
func applyFlags(cfg *config.Config, f flagOverrides) {
	if f.ticker != "" {
		cfg.Strategy.Ticker = f.ticker
	}
	setDec := func(dst *decimal.Decimal, v string) {
		if v == "" {
			return
		}
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
		} else {
			fmt.Fprintf(os.Stderr, "ignoring unparseable flag value %q\n", v)
		}
	}
	setDec(&cfg.Strategy.OrderSize, f.orderSize)
	setDec(&cfg.Strategy.MaxPosition, f.maxPosition)
	setDec(&cfg.Strategy.MinSpread, f.minSpread)
	setDec(&cfg.Strategy.LongThreshold, f.longThreshold)
	setDec(&cfg.Strategy.ShortThreshold, f.shortThreshold)
	setDec(&cfg.O1.TickSize, f.tickSize)
	if f.fillTimeout > 0 {
		cfg.Strategy.SetFillTimeout(f.fillTimeout)
	}
	if f.warmupSamples > 0 {
		cfg.Strategy.WarmupSamples = f.warmupSamples
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
}
