package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord describes one completed (or one-sided) arbitrage leg pair. It
// is the content of a trade log row and of trade notifications; the CSV sink
// owns the durable formatting.
type TradeRecord struct {
	ID        string
	At        time.Time
	Direction Signal

	MakerSide  OrderSide
	MakerPrice decimal.Decimal
	MakerQty   decimal.Decimal

	TakerSide  OrderSide
	TakerPrice decimal.Decimal
	TakerQty   decimal.Decimal

	// SpreadCaptured is the realized price differential between the two
	// legs, using the estimated taker fill price.
	SpreadCaptured decimal.Decimal

	// DetectLatency is the time from maker placement to fill detection.
	DetectLatency time.Duration

	O1Position      decimal.Decimal
	LighterPosition decimal.Decimal
	NetPosition     decimal.Decimal
}
