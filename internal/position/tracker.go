// Package position keeps the bot's local view of per-venue inventory. The
// tracker is authoritative between restarts; venue APIs are consulted only at
// shutdown to cross-check before flattening.
package position

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
)

// Tracker holds signed positions for both venues. Positive is long, negative
// is short. All methods are safe for concurrent use.
type Tracker struct {
	maxPosition decimal.Decimal
	orderSize   decimal.Decimal

	mu              sync.Mutex
	o1              decimal.Decimal
	lighter         decimal.Decimal
	o1Notional      decimal.Decimal
	lighterNotional decimal.Decimal
	totalLong       int
	totalShort      int
}

// NewTracker creates a tracker with zero positions. maxPosition caps |o1|
// and orderSize sizes the cross-venue exposure tolerance.
func NewTracker(maxPosition, orderSize decimal.Decimal) *Tracker {
	return &Tracker{maxPosition: maxPosition, orderSize: orderSize}
}

// signedQty converts an execution into a signed position delta.
func signedQty(side domain.OrderSide, qty decimal.Decimal) decimal.Decimal {
	if side == domain.OrderSideSell {
		return qty.Neg()
	}
	return qty
}

// ApplyFill records a single execution on one venue.
func (t *Tracker) ApplyFill(venue string, side domain.OrderSide, price, qty decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.apply(venue, side, price, qty)
}

// ApplyArbFill records both legs of a completed round trip under one lock so
// no reader ever observes the book half-updated.
func (t *Tracker) ApplyArbFill(signal domain.Signal, makerPrice, takerPrice, qty decimal.Decimal) {
	makerSide, takerSide := Sides(signal)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.apply(domain.VenueO1, makerSide, makerPrice, qty)
	t.apply(domain.VenueLighter, takerSide, takerPrice, qty)
	if signal == domain.SignalLong {
		t.totalLong++
	} else {
		t.totalShort++
	}
}

func (t *Tracker) apply(venue string, side domain.OrderSide, price, qty decimal.Decimal) {
	delta := signedQty(side, qty)
	switch venue {
	case domain.VenueO1:
		t.o1 = t.o1.Add(delta)
		t.o1Notional = t.o1Notional.Add(price.Mul(delta))
	case domain.VenueLighter:
		t.lighter = t.lighter.Add(delta)
		t.lighterNotional = t.lighterNotional.Add(price.Mul(delta))
	}
}

// Sides maps a signal to its (maker on 01, taker on Lighter) order sides.
func Sides(signal domain.Signal) (maker, taker domain.OrderSide) {
	if signal == domain.SignalShort {
		return domain.OrderSideSell, domain.OrderSideBuy
	}
	return domain.OrderSideBuy, domain.OrderSideSell
}

// CheckLimits verifies that adding a maker fill of qty on the given side would
// keep the book inside limits. It is called before every maker placement.
//
// Two independent caps apply: |o1 position| after the fill must not exceed
// max_position, and the worst-case net exposure (the maker filling with the
// hedge failing) must not exceed twice the order size.
func (t *Tracker) CheckLimits(side domain.OrderSide, qty decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.o1.Add(signedQty(side, qty))
	if next.Abs().GreaterThan(t.maxPosition) {
		return fmt.Errorf("position: 01 would reach %s, cap %s: %w",
			next, t.maxPosition, domain.ErrPositionLimit)
	}

	nextNet := next.Add(t.lighter).Abs()
	if limit := t.orderSize.Mul(decimal.NewFromInt(2)); nextNet.GreaterThan(limit) {
		return fmt.Errorf("position: net exposure would reach %s, cap %s: %w",
			nextNet, limit, domain.ErrExposureLimit)
	}
	return nil
}

// Snapshot returns a consistent copy of the whole book.
func (t *Tracker) Snapshot() domain.PositionSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return domain.PositionSnapshot{
		O1:              t.o1,
		Lighter:         t.lighter,
		O1Notional:      t.o1Notional,
		LighterNotional: t.lighterNotional,
		Net:             t.o1.Add(t.lighter),
		TotalLong:       t.totalLong,
		TotalShort:      t.totalShort,
	}
}
