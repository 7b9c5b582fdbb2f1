package domain

import "github.com/shopspring/decimal"

// PositionSnapshot is a point-in-time copy of the cross-venue book. Positions
// are signed: positive is long, negative is short.
type PositionSnapshot struct {
	O1              decimal.Decimal
	Lighter         decimal.Decimal
	O1Notional      decimal.Decimal
	LighterNotional decimal.Decimal
	Net             decimal.Decimal
	TotalLong       int
	TotalShort      int
}

// NetExposure is the absolute aggregate exposure across both venues; near
// zero indicates a properly hedged book.
func (p PositionSnapshot) NetExposure() decimal.Decimal {
	return p.Net.Abs()
}
