package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Signal is the trade direction emitted by the spread analyzer.
type Signal string

const (
	SignalNone Signal = ""
	// SignalLong buys on 01 (maker) and sells on Lighter (taker).
	SignalLong Signal = "long_01"
	// SignalShort sells on 01 (maker) and buys on Lighter (taker).
	SignalShort Signal = "short_01"
)

// SpreadSample is one cycle's spread observation. Samples are ephemeral;
// history is retained only as running sums inside the analyzer.
type SpreadSample struct {
	At         time.Time
	O1Bid      decimal.Decimal
	O1Ask      decimal.Decimal
	LighterBid decimal.Decimal
	LighterAsk decimal.Decimal

	// DiffLong = lighter_bid - o1_ask: profit from buying 01, selling Lighter.
	DiffLong decimal.Decimal
	// DiffShort = o1_bid - lighter_ask: profit from selling 01, buying Lighter.
	DiffShort decimal.Decimal

	AvgLong     decimal.Decimal
	AvgShort    decimal.Decimal
	SampleCount int
	Signal      Signal
}
