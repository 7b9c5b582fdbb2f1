package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the other side, used when deriving the hedge leg from the
// maker leg.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderKind selects the execution style of an order.
type OrderKind string

const (
	// OrderKindMaker is a post-only limit order. The venue must reject it
	// rather than let it cross the book and execute as a taker.
	OrderKindMaker OrderKind = "maker"
	// OrderKindTaker is an IOC limit order priced to cross immediately.
	OrderKindTaker OrderKind = "taker"
)

// OrderRequest is a normalized order submission passed to a venue adapter.
type OrderRequest struct {
	Side       OrderSide
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Kind       OrderKind
	ReduceOnly bool
}

// OrderAck is the venue's synchronous acknowledgment of an accepted order.
type OrderAck struct {
	OrderID string
	Price   decimal.Decimal
	At      time.Time
}

// LegState is the explicit state machine of one arbitrage leg. The maker →
// probe → hedge sequence is strictly ordered; each transition gates the next
// so the Unknown and critical paths cannot be fallen through silently.
type LegState string

const (
	LegIdle        LegState = "idle"
	LegMakerPlaced LegState = "maker_placed"
	LegProbeSent   LegState = "probe_sent"
	LegCancelled   LegState = "cancelled"
	LegFilled      LegState = "filled"
	LegUnknown     LegState = "unknown"
	LegTakerPlaced LegState = "taker_placed"
	LegSettled     LegState = "settled"
)

// Terminal reports whether the leg has reached an outcome after which no
// further order action may be taken on it.
func (s LegState) Terminal() bool {
	switch s {
	case LegCancelled, LegUnknown, LegSettled:
		return true
	}
	return false
}
