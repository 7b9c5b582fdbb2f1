// Package app wires the engine together and owns its lifecycle: startup
// readiness, task supervision, and the ordered shutdown sequence that leaves
// no resting orders or open positions behind.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/cache/redis"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/config"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/crypto"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/datalog"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/engine"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/notify"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/position"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/quote"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/spread"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/venue/lighter"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/venue/o1"
)

// readyTimeout bounds how long startup waits for the first quote from each
// venue before failing.
const readyTimeout = 30 * time.Second

// shutdownTimeout bounds the whole cancel-and-flatten sequence.
const shutdownTimeout = 60 * time.Second

// flattenAttempts is how many reduce-only orders are tried per venue when
// closing out at shutdown.
const flattenAttempts = 3

// App is the root application object.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	risk      *domain.RiskState
	positions *position.Tracker
	events    *notify.Events
	o1Venue   domain.Venue
	ltVenue   domain.Venue

	stopOnce   sync.Once
	stopReason string
}

// New creates the App. Venue clients and engine components are built in Run.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		risk:   &domain.RiskState{},
	}
}

// Critical reports whether a critical condition was recorded during the run.
// The caller uses it to choose the process exit code.
func (a *App) Critical() bool { return a.risk.Critical() }

// Run builds every component, waits for both feeds, trades until the context
// is cancelled or a monitor requests shutdown, and then runs the shutdown
// sequence. A non-nil return means startup failed; trading-time errors are
// absorbed by the risk state and notifications.
func (a *App) Run(ctx context.Context) error {
	cfg := a.cfg

	signer, err := crypto.NewEd25519Signer(cfg.O1.PrivateKey)
	if err != nil {
		return fmt.Errorf("app: o1 signer: %w", err)
	}
	o1Venue := o1.New(cfg.O1.APIURL, cfg.Strategy.Ticker, signer)
	ltVenue := lighter.New(cfg.Lighter.APIURL, cfg.Strategy.Ticker, cfg.Lighter.AccountIndex,
		&crypto.HMACAuth{Key: cfg.Lighter.APIKey, Secret: cfg.Lighter.APISecret})
	a.o1Venue, a.ltVenue = o1Venue, ltVenue

	o1Cache := quote.NewCache(domain.VenueO1, cfg.O1.QuoteMaxAge.Duration)
	ltCache := quote.NewCache(domain.VenueLighter, cfg.Lighter.QuoteMaxAge.Duration)

	a.positions = position.NewTracker(cfg.Strategy.MaxPosition, cfg.Strategy.OrderSize)
	analyzer := spread.New(spread.Options{
		WarmupSamples:  cfg.Strategy.WarmupSamples,
		LongThreshold:  cfg.Strategy.LongThreshold,
		ShortThreshold: cfg.Strategy.ShortThreshold,
		MinSpread:      cfg.Strategy.MinSpread,
	})

	a.events = notify.NewEvents(a.buildNotifier(), cfg.Strategy.Ticker)

	sinks, closeSinks, err := a.buildSinks(ctx)
	if err != nil {
		return err
	}
	defer closeSinks()

	om := engine.NewOrderManager(o1Venue, ltVenue, ltCache, a.positions, a.risk, a.events,
		engine.OrderManagerConfig{
			OrderSize:      cfg.Strategy.OrderSize,
			TickSize:       cfg.O1.TickSize,
			FillTimeout:    cfg.Strategy.FillTimeout.Duration,
			HedgeRetries:   cfg.Strategy.HedgeRetries,
			SlippageBuffer: cfg.Strategy.SlippageBuffer,
		}, a.logger)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	requestStop := func(reason string) {
		a.stopOnce.Do(func() {
			a.stopReason = reason
			a.logger.Info("shutdown requested", slog.String("reason", reason))
			cancelRun()
		})
	}

	loop := engine.NewLoop(
		engine.LoopConfig{
			Interval:          cfg.Strategy.LoopInterval.Duration,
			HeartbeatInterval: cfg.Monitor.HeartbeatInterval.Duration,
			OrderSize:         cfg.Strategy.OrderSize,
			DivergenceFactor:  cfg.Strategy.DivergenceFactor,
		},
		o1Cache, ltCache, analyzer, a.positions, a.risk, om, a.events, sinks,
		requestStop, a.logger,
	)
	monitor := engine.NewBalanceMonitor(
		[]domain.Venue{o1Venue, ltVenue},
		cfg.Monitor.MinBalance,
		cfg.Monitor.BalanceInterval.Duration,
		a.risk, a.events, requestStop, a.logger,
	)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return quote.NewPoller(o1Venue, o1Cache, cfg.O1.PollInterval.Duration, a.logger).Run(gctx)
	})
	g.Go(func() error {
		return lighter.NewFeed(cfg.Lighter.WSURL, cfg.Strategy.Ticker, ltCache, a.logger).Run(gctx)
	})

	// Both feeds must produce a quote before any trading task starts. A venue
	// that never answers is a startup failure, not a trading condition.
	if err := a.awaitFeeds(gctx, o1Cache, ltCache); err != nil {
		cancelRun()
		_ = g.Wait()
		return err
	}
	a.logger.Info("feeds ready, starting strategy")
	a.events.Started(ctx, cfg.Strategy.OrderSize, cfg.Strategy.MaxPosition, cfg.Strategy.WarmupSamples)

	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return monitor.Run(gctx) })

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("task group failed", slog.String("error", err.Error()))
	}

	a.shutdown(ctx)
	return nil
}

func (a *App) awaitFeeds(ctx context.Context, caches ...*quote.Cache) error {
	for _, c := range caches {
		if err := c.AwaitReady(ctx, readyTimeout); err != nil {
			return fmt.Errorf("app: startup: %w", err)
		}
	}
	return nil
}

func (a *App) buildNotifier() *notify.Notifier {
	var senders []notify.Sender
	if a.cfg.Notify.TelegramToken != "" && a.cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(a.cfg.Notify.TelegramToken, a.cfg.Notify.TelegramChatID))
	}
	if a.cfg.Notify.DiscordWebhook != "" {
		senders = append(senders, notify.NewDiscordSender(a.cfg.Notify.DiscordWebhook))
	}
	return notify.NewNotifier(senders, a.cfg.Notify.Events, a.logger)
}

func (a *App) buildSinks(ctx context.Context) ([]engine.Sink, func(), error) {
	csvSink, err := datalog.NewCSVWriter(a.cfg.Datalog.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("app: datalog: %w", err)
	}
	sinks := []engine.Sink{csvSink}
	closers := []func(){func() { _ = csvSink.Close() }}

	if a.cfg.Telemetry.Enabled {
		client, err := redis.New(ctx, redis.ClientConfig{
			Addr:     a.cfg.Telemetry.Addr,
			Password: a.cfg.Telemetry.Password,
			DB:       a.cfg.Telemetry.DB,
		})
		if err != nil {
			_ = csvSink.Close()
			return nil, nil, fmt.Errorf("app: telemetry: %w", err)
		}
		sinks = append(sinks, redis.NewPublisher(client))
		closers = append(closers, func() { _ = client.Close() })
	}

	return sinks, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}

// shutdown cancels all resting orders and flattens any open position on both
// venues. It runs on a detached context so it completes even though the
// process context is already cancelled.
func (a *App) shutdown(ctx context.Context) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	a.logger.Info("shutdown sequence started", slog.String("reason", a.stopReason))

	for _, v := range []domain.Venue{a.o1Venue, a.ltVenue} {
		if err := v.CancelAllOrders(sctx); err != nil {
			a.logger.Error("cancel all orders failed",
				slog.String("venue", v.Name()),
				slog.String("error", err.Error()),
			)
		}
	}

	snap := a.positions.Snapshot()
	residO1 := a.flatten(sctx, a.o1Venue, snap.O1)
	residLt := a.flatten(sctx, a.ltVenue, snap.Lighter)

	if !residO1.IsZero() || !residLt.IsZero() {
		a.logger.Error("position not fully flattened",
			slog.String("o1", residO1.String()),
			slog.String("lighter", residLt.String()),
		)
		a.events.Residue(sctx, residO1, residLt)
	} else {
		a.logger.Info("all positions flat")
	}

	a.events.Stopped(sctx, a.positions.Snapshot(), a.risk.Critical(), a.stopReason)
	a.logger.Info("shutdown sequence complete", slog.Bool("critical", a.risk.Critical()))
}

// flatten closes out one venue and returns the confirmed residual position.
// The quantity to close is the worse of the venue's own view and the local
// tracker, so a missed local fill still gets closed.
func (a *App) flatten(ctx context.Context, v domain.Venue, local decimal.Decimal) decimal.Decimal {
	target := local
	if api, err := v.GetPosition(ctx); err != nil {
		a.logger.Warn("position query failed, using local view",
			slog.String("venue", v.Name()),
			slog.String("error", err.Error()),
		)
	} else if api.Abs().GreaterThan(local.Abs()) {
		target = api
	}

	if target.IsZero() {
		return decimal.Zero
	}

	for attempt := 1; attempt <= flattenAttempts; attempt++ {
		if err := v.ClosePosition(ctx, target); err != nil {
			a.logger.Warn("close position attempt failed",
				slog.String("venue", v.Name()),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			continue
		}

		remaining, err := v.GetPosition(ctx)
		if err != nil {
			a.logger.Warn("close confirmation query failed",
				slog.String("venue", v.Name()),
				slog.String("error", err.Error()),
			)
			return target
		}
		if remaining.IsZero() {
			a.logger.Info("position flattened",
				slog.String("venue", v.Name()),
				slog.String("closed", target.String()),
			)
			return decimal.Zero
		}
		target = remaining
	}
	return target
}
