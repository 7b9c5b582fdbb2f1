package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/notify"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/position"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/quote"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/spread"
)

// statusEvery is the cycle count between periodic status log lines.
const statusEvery = 30

// Sink receives spread samples and trade records for durable or external
// storage. Sink errors never affect trading; they are logged and dropped.
type Sink interface {
	RecordSpread(ctx context.Context, s domain.SpreadSample) error
	RecordTrade(ctx context.Context, t domain.TradeRecord) error
}

// LoopConfig holds the arbitrage loop parameters.
type LoopConfig struct {
	Interval          time.Duration
	HeartbeatInterval time.Duration
	OrderSize         decimal.Decimal
	DivergenceFactor  int64
}

// Loop is the strategy driver: one goroutine sampling the spread on a fixed
// cadence and executing at most one leg at a time. Legs run synchronously
// inside the cycle, which is what makes the one-leg-in-flight guarantee
// structural rather than a lock discipline.
type Loop struct {
	cfg       LoopConfig
	o1Quotes  *quote.Cache
	ltQuotes  *quote.Cache
	analyzer  *spread.Analyzer
	positions *position.Tracker
	risk      *domain.RiskState
	om        *OrderManager
	events    *notify.Events
	sinks     []Sink
	logger    *slog.Logger

	// requestStop asks the application to begin graceful shutdown. Used by
	// the divergence guard; must not block.
	requestStop func(reason string)

	cycles int
}

// NewLoop wires the arbitrage loop.
func NewLoop(
	cfg LoopConfig,
	o1Quotes, ltQuotes *quote.Cache,
	analyzer *spread.Analyzer,
	positions *position.Tracker,
	risk *domain.RiskState,
	om *OrderManager,
	events *notify.Events,
	sinks []Sink,
	requestStop func(reason string),
	logger *slog.Logger,
) *Loop {
	return &Loop{
		cfg:         cfg,
		o1Quotes:    o1Quotes,
		ltQuotes:    ltQuotes,
		analyzer:    analyzer,
		positions:   positions,
		risk:        risk,
		om:          om,
		events:      events,
		sinks:       sinks,
		requestStop: requestStop,
		logger:      logger.With(slog.String("component", "arb_loop")),
	}
}

// Run executes cycles until ctx is cancelled. It returns ctx.Err(); all
// trading errors are absorbed at the cycle boundary.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("arbitrage loop started",
		slog.Duration("interval", l.cfg.Interval),
		slog.Int64("divergence_factor", l.cfg.DivergenceFactor),
	)
	defer l.logger.Info("arbitrage loop stopped")

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	heartbeat := time.NewTicker(l.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-heartbeat.C:
			l.sendHeartbeat(ctx)
		case <-ticker.C:
			l.runCycle(ctx)
		}
	}
}

func (l *Loop) runCycle(ctx context.Context) {
	o1q, err := l.o1Quotes.Snapshot()
	if err != nil {
		l.logQuoteSkip(err)
		return
	}
	ltq, err := l.ltQuotes.Snapshot()
	if err != nil {
		l.logQuoteSkip(err)
		return
	}

	sample := l.analyzer.Update(o1q, ltq)
	l.recordSpread(ctx, sample)

	l.cycles++
	if l.cycles%statusEvery == 0 {
		l.logStatus(sample)
	}

	if l.divergenceExceeded(ctx) {
		return
	}

	if l.risk.Paused() {
		return
	}
	if sample.Signal == domain.SignalNone {
		return
	}

	makerSide, _ := position.Sides(sample.Signal)
	if err := l.positions.CheckLimits(makerSide, l.cfg.OrderSize); err != nil {
		l.logger.Warn("signal skipped by position limits",
			slog.String("signal", string(sample.Signal)),
			slog.String("error", err.Error()),
		)
		return
	}

	l.logger.Info("signal triggered",
		slog.String("signal", string(sample.Signal)),
		slog.String("diff_long", sample.DiffLong.String()),
		slog.String("diff_short", sample.DiffShort.String()),
		slog.String("avg_long", sample.AvgLong.String()),
		slog.String("avg_short", sample.AvgShort.String()),
	)

	rec, err := l.om.Execute(ctx, sample.Signal, o1q)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMakerRejected), errors.Is(err, domain.ErrLegInFlight):
			l.logger.Info("leg aborted", slog.String("error", err.Error()))
		default:
			l.logger.Error("leg failed", slog.String("error", err.Error()))
		}
		return
	}
	if rec == nil {
		return
	}

	l.recordTrade(ctx, *rec)
	l.events.Trade(ctx, *rec)
}

// divergenceExceeded halts the strategy when local positions have drifted
// apart beyond the tolerance, which means hedges have been failing or fills
// were missed. It pauses, alerts, and asks for shutdown exactly once.
func (l *Loop) divergenceExceeded(ctx context.Context) bool {
	snap := l.positions.Snapshot()
	limit := l.cfg.OrderSize.Mul(decimal.NewFromInt(l.cfg.DivergenceFactor))
	if !snap.NetExposure().GreaterThan(limit) {
		return false
	}
	if l.risk.Paused() {
		return true
	}

	l.risk.Pause("position divergence")
	l.risk.MarkCritical()
	l.logger.Error("position divergence, shutting down",
		slog.String("net", snap.Net.String()),
		slog.String("limit", limit.String()),
	)
	l.events.Critical(ctx,
		"position divergence: |net| "+snap.NetExposure().String()+" exceeds "+limit.String(),
		snap)
	if l.requestStop != nil {
		l.requestStop("position divergence")
	}
	return true
}

func (l *Loop) logQuoteSkip(err error) {
	if errors.Is(err, domain.ErrFeedNotReady) {
		l.logger.Debug("cycle skipped", slog.String("error", err.Error()))
		return
	}
	l.logger.Warn("cycle skipped", slog.String("error", err.Error()))
}

func (l *Loop) recordSpread(ctx context.Context, s domain.SpreadSample) {
	for _, sink := range l.sinks {
		if err := sink.RecordSpread(ctx, s); err != nil {
			l.logger.Warn("spread sink failed", slog.String("error", err.Error()))
		}
	}
}

func (l *Loop) recordTrade(ctx context.Context, t domain.TradeRecord) {
	for _, sink := range l.sinks {
		if err := sink.RecordTrade(ctx, t); err != nil {
			l.logger.Warn("trade sink failed", slog.String("error", err.Error()))
		}
	}
}

func (l *Loop) logStatus(sample domain.SpreadSample) {
	snap := l.positions.Snapshot()
	l.logger.Info("status",
		slog.Int("samples", sample.SampleCount),
		slog.Bool("warmed_up", l.analyzer.WarmedUp()),
		slog.Bool("paused", l.risk.Paused()),
		slog.String("diff_long", sample.DiffLong.String()),
		slog.String("diff_short", sample.DiffShort.String()),
		slog.String("avg_long", sample.AvgLong.String()),
		slog.String("avg_short", sample.AvgShort.String()),
		slog.String("o1_position", snap.O1.String()),
		slog.String("lighter_position", snap.Lighter.String()),
		slog.String("net", snap.Net.String()),
		slog.Int("trades_long", snap.TotalLong),
		slog.Int("trades_short", snap.TotalShort),
	)
}

func (l *Loop) sendHeartbeat(ctx context.Context) {
	avgLong, avgShort := l.analyzer.Averages()
	l.events.Heartbeat(ctx, l.positions.Snapshot(), l.analyzer.SampleCount(), avgLong, avgShort, l.risk.Paused())
}
