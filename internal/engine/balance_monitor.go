package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/notify"
)

// BalanceMonitor periodically checks available collateral on both venues and
// requests a graceful shutdown when a balance is confirmed below the floor.
//
// Query failures only skip the check. A venue returning an error is not a
// venue reporting a low balance, and shutting down on a transient 502 while
// orders may be resting is worse than waiting one interval.
type BalanceMonitor struct {
	venues      []domain.Venue
	floor       decimal.Decimal
	interval    time.Duration
	confirmWait time.Duration
	risk        *domain.RiskState
	events      *notify.Events
	requestStop func(reason string)
	logger      *slog.Logger

	sleep func(ctx context.Context, d time.Duration)
}

// NewBalanceMonitor creates a monitor over the given venues.
func NewBalanceMonitor(
	venues []domain.Venue,
	floor decimal.Decimal,
	interval time.Duration,
	risk *domain.RiskState,
	events *notify.Events,
	requestStop func(reason string),
	logger *slog.Logger,
) *BalanceMonitor {
	return &BalanceMonitor{
		venues:      venues,
		floor:       floor,
		interval:    interval,
		confirmWait: 3 * time.Second,
		risk:        risk,
		events:      events,
		requestStop: requestStop,
		logger:      logger.With(slog.String("component", "balance_monitor")),
		sleep:       sleepCtx,
	}
}

// Run checks balances until ctx is cancelled or a low balance is confirmed.
// It returns ctx.Err() on cancellation and nil after requesting shutdown.
func (m *BalanceMonitor) Run(ctx context.Context) error {
	m.logger.Info("balance monitor started",
		slog.String("floor", m.floor.String()),
		slog.Duration("interval", m.interval),
	)
	defer m.logger.Info("balance monitor stopped")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if m.check(ctx) {
				return nil
			}
		}
	}
}

// check returns true when a confirmed low balance triggered shutdown.
func (m *BalanceMonitor) check(ctx context.Context) bool {
	for _, v := range m.venues {
		bal, err := m.queryBalance(ctx, v)
		if err != nil {
			m.logger.Warn("balance query failed, skipping check",
				slog.String("venue", v.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if bal.GreaterThanOrEqual(m.floor) {
			continue
		}

		// Re-read after a short wait before acting: a single reading below
		// the floor can be a settlement blip mid-trade.
		m.logger.Warn("balance below floor, confirming",
			slog.String("venue", v.Name()),
			slog.String("balance", bal.String()),
		)
		m.sleep(ctx, m.confirmWait)
		if ctx.Err() != nil {
			return false
		}

		confirm, err := m.queryBalance(ctx, v)
		if err != nil {
			m.logger.Warn("balance confirmation query failed, skipping check",
				slog.String("venue", v.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if confirm.GreaterThanOrEqual(m.floor) {
			m.logger.Info("balance recovered",
				slog.String("venue", v.Name()),
				slog.String("balance", confirm.String()),
			)
			continue
		}

		m.risk.Pause("balance below floor on " + v.Name())
		m.logger.Error("balance below floor confirmed, shutting down",
			slog.String("venue", v.Name()),
			slog.String("balance", confirm.String()),
			slog.String("floor", m.floor.String()),
		)
		m.events.BalanceLow(ctx, v.Name(), confirm, m.floor)
		if m.requestStop != nil {
			m.requestStop(domain.ErrBalanceLow.Error())
		}
		return true
	}
	return false
}

func (m *BalanceMonitor) queryBalance(ctx context.Context, v domain.Venue) (decimal.Decimal, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	return v.GetBalance(reqCtx)
}
