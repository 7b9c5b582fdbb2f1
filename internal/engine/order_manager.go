// Package engine contains the arbitrage loop, the order manager that walks a
// leg through the maker/probe/hedge protocol, and the balance monitor.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/notify"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/position"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/quote"
)

// OrderManagerConfig holds the leg execution parameters.
type OrderManagerConfig struct {
	OrderSize      decimal.Decimal
	TickSize       decimal.Decimal
	FillTimeout    time.Duration
	HedgeRetries   int
	SlippageBuffer decimal.Decimal
}

// OrderManager executes one arbitrage leg at a time: a post-only maker order
// on 01, fill detection by cancel probe, and an IOC hedge on Lighter.
//
// 01 has no order-status endpoint, so the cancel probe is the only source of
// truth for whether the maker order filled: a clean cancel means it never
// filled, ErrOrderNotFound means it filled before the cancel reached the
// book, and anything else leaves the position state unknown and halts
// trading.
type OrderManager struct {
	maker       domain.Venue
	taker       domain.Venue
	takerQuotes *quote.Cache
	positions   *position.Tracker
	risk        *domain.RiskState
	events      *notify.Events
	logger      *slog.Logger
	cfg         OrderManagerConfig

	busy atomic.Bool

	// Injection points for tests.
	sleep func(ctx context.Context, d time.Duration)
	now   func() time.Time
}

// NewOrderManager wires the leg executor.
func NewOrderManager(
	maker, taker domain.Venue,
	takerQuotes *quote.Cache,
	positions *position.Tracker,
	risk *domain.RiskState,
	events *notify.Events,
	cfg OrderManagerConfig,
	logger *slog.Logger,
) *OrderManager {
	return &OrderManager{
		maker:       maker,
		taker:       taker,
		takerQuotes: takerQuotes,
		positions:   positions,
		risk:        risk,
		events:      events,
		logger:      logger.With(slog.String("component", "order_manager")),
		cfg:         cfg,
		sleep:       sleepCtx,
		now:         time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Busy reports whether a leg is currently in flight.
func (m *OrderManager) Busy() bool { return m.busy.Load() }

// Execute runs one full leg for the given signal. It returns (nil, nil) when
// the maker order did not fill and was cancelled, a trade record on a
// completed round trip, and an error otherwise. ErrMakerRejected and
// ErrLegInFlight are recoverable; ErrHedgeFailed and ErrCancelAmbiguous mean
// the risk state has been paused.
//
// The caller supplies the maker venue quote it based the signal on; the
// maker price is pegged one tick inside the touch so the order rests at the
// top of the book without crossing.
func (m *OrderManager) Execute(ctx context.Context, signal domain.Signal, makerQuote domain.Quote) (*domain.TradeRecord, error) {
	if !m.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrLegInFlight
	}
	defer m.busy.Store(false)

	makerSide, takerSide := position.Sides(signal)

	var makerPrice decimal.Decimal
	if makerSide == domain.OrderSideBuy {
		makerPrice = makerQuote.Ask.Sub(m.cfg.TickSize)
	} else {
		makerPrice = makerQuote.Bid.Add(m.cfg.TickSize)
	}

	log := m.logger.With(
		slog.String("signal", string(signal)),
		slog.String("maker_side", string(makerSide)),
	)

	ack, err := m.maker.PlaceOrder(ctx, domain.OrderRequest{
		Side:     makerSide,
		Price:    makerPrice,
		Quantity: m.cfg.OrderSize,
		Kind:     domain.OrderKindMaker,
	})
	if err != nil {
		if errors.Is(err, domain.ErrMakerRejected) {
			log.Info("post-only order rejected, book moved", slog.String("price", makerPrice.String()))
			return nil, err
		}
		return nil, fmt.Errorf("engine: place maker order: %w", err)
	}
	placedAt := m.now()
	log = log.With(slog.String("order_id", ack.OrderID))
	log.Info("maker order placed",
		slog.String("state", string(domain.LegMakerPlaced)),
		slog.String("price", makerPrice.String()),
		slog.String("qty", m.cfg.OrderSize.String()),
	)

	// Rest for the fill window. A shutdown during the wait moves straight to
	// the probe; the order is never abandoned on the book.
	m.sleep(ctx, m.cfg.FillTimeout)

	// The probe must run even when ctx is already cancelled, so it gets a
	// detached context with its own deadline.
	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	err = m.maker.CancelOrder(probeCtx, ack.OrderID)
	cancel()

	switch {
	case err == nil:
		log.Info("maker order cancelled, no fill", slog.String("state", string(domain.LegCancelled)))
		return nil, nil

	case errors.Is(err, domain.ErrOrderNotFound):
		detect := m.now().Sub(placedAt)
		log.Info("maker order filled",
			slog.String("state", string(domain.LegFilled)),
			slog.Duration("detect_latency", detect),
		)
		return m.hedge(ctx, signal, makerSide, takerSide, makerPrice, detect, log)

	default:
		// Neither confirmed nor not-found: the order may be live, filled, or
		// cancelled. Hedging on a guess could double the exposure, so halt.
		m.risk.Pause("cancel probe ambiguous: " + err.Error())
		m.risk.MarkCritical()
		log.Error("cancel probe ambiguous, trading paused", slog.String("error", err.Error()))
		m.events.Critical(context.WithoutCancel(ctx),
			fmt.Sprintf("cancel probe for order %s failed: %v", ack.OrderID, err),
			m.positions.Snapshot())
		return nil, fmt.Errorf("engine: probe order %s: %v: %w", ack.OrderID, err, domain.ErrCancelAmbiguous)
	}
}

// hedge places the IOC taker leg, widening the price concession on each
// retry. Retries are bounded: unbounded chasing in a fast market converts a
// known loss into an unknown one.
func (m *OrderManager) hedge(
	ctx context.Context,
	signal domain.Signal,
	makerSide, takerSide domain.OrderSide,
	makerPrice decimal.Decimal,
	detect time.Duration,
	log *slog.Logger,
) (*domain.TradeRecord, error) {
	one := decimal.NewFromInt(1)

	// The hedge must complete even during shutdown.
	hctx := context.WithoutCancel(ctx)

	for attempt := 1; attempt <= m.cfg.HedgeRetries; attempt++ {
		tq, err := m.takerQuotes.Snapshot()
		if err != nil && !errors.Is(err, domain.ErrStaleQuote) {
			log.Warn("hedge attempt: no taker quote", slog.Int("attempt", attempt), slog.String("error", err.Error()))
			m.sleep(hctx, 200*time.Millisecond)
			continue
		}

		buffer := m.cfg.SlippageBuffer.Mul(decimal.NewFromInt(int64(attempt)))
		var touch, limit decimal.Decimal
		if takerSide == domain.OrderSideSell {
			touch = tq.Bid
			limit = touch.Mul(one.Sub(buffer))
		} else {
			touch = tq.Ask
			limit = touch.Mul(one.Add(buffer))
		}

		reqCtx, cancel := context.WithTimeout(hctx, 10*time.Second)
		_, err = m.taker.PlaceOrder(reqCtx, domain.OrderRequest{
			Side:     takerSide,
			Price:    limit,
			Quantity: m.cfg.OrderSize,
			Kind:     domain.OrderKindTaker,
		})
		cancel()
		if err != nil {
			log.Warn("hedge attempt failed",
				slog.Int("attempt", attempt),
				slog.String("limit", limit.String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		m.positions.ApplyArbFill(signal, makerPrice, touch, m.cfg.OrderSize)
		snap := m.positions.Snapshot()

		rec := &domain.TradeRecord{
			ID:              uuid.NewString(),
			At:              m.now(),
			Direction:       signal,
			MakerSide:       makerSide,
			MakerPrice:      makerPrice,
			MakerQty:        m.cfg.OrderSize,
			TakerSide:       takerSide,
			TakerPrice:      touch,
			TakerQty:        m.cfg.OrderSize,
			DetectLatency:   detect,
			O1Position:      snap.O1,
			LighterPosition: snap.Lighter,
			NetPosition:     snap.Net,
		}
		if signal == domain.SignalLong {
			rec.SpreadCaptured = touch.Sub(makerPrice)
		} else {
			rec.SpreadCaptured = makerPrice.Sub(touch)
		}

		log.Info("hedge filled",
			slog.String("state", string(domain.LegSettled)),
			slog.Int("attempt", attempt),
			slog.String("taker_price", touch.String()),
			slog.String("spread", rec.SpreadCaptured.String()),
		)
		return rec, nil
	}

	// All attempts failed: record the one-sided maker fill so the book view
	// stays honest, then halt trading.
	m.positions.ApplyFill(domain.VenueO1, makerSide, makerPrice, m.cfg.OrderSize)
	m.risk.Pause("hedge failed after retries")
	m.risk.MarkCritical()
	snap := m.positions.Snapshot()
	log.Error("hedge exhausted, one-sided position",
		slog.Int("retries", m.cfg.HedgeRetries),
		slog.String("o1_position", snap.O1.String()),
	)
	m.events.Critical(hctx,
		fmt.Sprintf("hedge failed after %d attempts, one-sided %s %s on 01",
			m.cfg.HedgeRetries, makerSide, m.cfg.OrderSize),
		snap)
	return nil, fmt.Errorf("engine: %d hedge attempts: %w", m.cfg.HedgeRetries, domain.ErrHedgeFailed)
}
