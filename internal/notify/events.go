package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
)

// Events wraps a Notifier with the engine's message formats. Every alert the
// engine sends goes through here so the wording stays in one place.
type Events struct {
	n      *Notifier
	ticker string
}

// NewEvents creates the event formatter for one instrument.
func NewEvents(n *Notifier, ticker string) *Events {
	return &Events{n: n, ticker: ticker}
}

// Started announces engine startup with the key strategy parameters.
func (e *Events) Started(ctx context.Context, orderSize, maxPosition decimal.Decimal, warmup int) {
	msg := fmt.Sprintf("ticker: %s\norder size: %s\nmax position: %s\nwarmup samples: %d",
		e.ticker, orderSize, maxPosition, warmup)
	_ = e.n.Notify(ctx, EventStart, "arbbot started", msg)
}

// Stopped announces shutdown with the final book and session counters.
func (e *Events) Stopped(ctx context.Context, snap domain.PositionSnapshot, critical bool, reason string) {
	msg := fmt.Sprintf("ticker: %s\n01: %s  lighter: %s  net: %s\ntrades: %d long / %d short",
		e.ticker, snap.O1, snap.Lighter, snap.Net, snap.TotalLong, snap.TotalShort)
	if reason != "" {
		msg += "\nreason: " + reason
	}
	if critical {
		_ = e.n.NotifyAll(ctx, EventStop, "arbbot stopped (CRITICAL state recorded)", msg)
		return
	}
	_ = e.n.Notify(ctx, EventStop, "arbbot stopped", msg)
}

// Trade reports one completed round trip.
func (e *Events) Trade(ctx context.Context, rec domain.TradeRecord) {
	msg := fmt.Sprintf("%s %s\nmaker %s @ %s\ntaker %s @ %s\nspread: %s\ndetect: %s\nnet position: %s",
		e.ticker, rec.Direction,
		rec.MakerSide, rec.MakerPrice,
		rec.TakerSide, rec.TakerPrice,
		rec.SpreadCaptured,
		rec.DetectLatency.Truncate(time.Millisecond),
		rec.NetPosition)
	_ = e.n.Notify(ctx, EventTrade, "trade executed", msg)
}

// Heartbeat is the periodic liveness report.
func (e *Events) Heartbeat(ctx context.Context, snap domain.PositionSnapshot, samples int, avgLong, avgShort decimal.Decimal, paused bool) {
	state := "running"
	if paused {
		state = "paused"
	}
	msg := fmt.Sprintf("%s %s\nsamples: %d\navg long: %s  avg short: %s\n01: %s  lighter: %s  net: %s\ntrades: %d long / %d short",
		e.ticker, state, samples, avgLong, avgShort,
		snap.O1, snap.Lighter, snap.Net, snap.TotalLong, snap.TotalShort)
	_ = e.n.Notify(ctx, EventHeartbeat, "heartbeat", msg)
}

// BalanceLow reports a confirmed below-floor balance before shutdown starts.
func (e *Events) BalanceLow(ctx context.Context, venue string, balance, floor decimal.Decimal) {
	msg := fmt.Sprintf("venue: %s\nbalance: %s\nfloor: %s\nshutting down", venue, balance, floor)
	_ = e.n.NotifyAll(ctx, EventBalance, "balance below floor", msg)
}

// Critical reports an unrecoverable condition. It bypasses the event filter;
// the engine guarantees at most one critical alert per incident.
func (e *Events) Critical(ctx context.Context, reason string, snap domain.PositionSnapshot) {
	msg := fmt.Sprintf("%s\n%s\n01: %s  lighter: %s  net: %s\ntrading paused, manual intervention required",
		e.ticker, reason, snap.O1, snap.Lighter, snap.Net)
	_ = e.n.NotifyAll(ctx, EventCritical, "CRITICAL", msg)
}

// Residue reports unhedged inventory left after flattening at shutdown.
func (e *Events) Residue(ctx context.Context, o1, lighter decimal.Decimal) {
	msg := fmt.Sprintf("%s\nresidual 01: %s\nresidual lighter: %s\nmanual flattening required",
		e.ticker, o1, lighter)
	_ = e.n.NotifyAll(ctx, EventCritical, "unflattened position at shutdown", msg)
}
