// Package domain holds the shared types of the arbitrage engine: quotes,
// orders, signals, positions, the venue adapter contract, and the error
// taxonomy. It has no dependencies on the rest of the module.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one venue's best bid and offer at a point in time. A Quote is
// always replaced wholesale; readers receive value copies, never shared
// mutable state.
type Quote struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
	At  time.Time
}

// Valid reports whether both sides of the book were present.
func (q Quote) Valid() bool {
	return q.Bid.IsPositive() && q.Ask.IsPositive()
}

// Mid returns the midpoint between bid and ask.
func (q Quote) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

// Age returns how old the quote is relative to now.
func (q Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.At)
}
