package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Venue names used in positions, records, and logs.
const (
	VenueO1      = "01"
	VenueLighter = "lighter"
)

// Venue is the adapter contract each exchange implements. Wire encoding,
// request signing, and transport retry policy live behind this interface;
// the engine only sees normalized results.
//
// CancelOrder has three-valued semantics that the fill-detection protocol
// depends on: a nil error means the order was cancelled (it had not filled),
// ErrOrderNotFound means the order no longer exists on the book (it filled
// before the cancel reached the matching engine), and any other error is an
// ambiguous outcome that the caller must treat as unknown position state.
type Venue interface {
	Name() string

	// GetQuote returns the current best bid/offer, or ErrUnavailable when
	// the book is empty or the venue cannot be reached.
	GetQuote(ctx context.Context) (Quote, error)

	// PlaceOrder submits an order. Post-only maker orders that would cross
	// the book fail with ErrMakerRejected instead of executing.
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error)

	// CancelOrder attempts to cancel an open order. See the interface doc
	// for the three-valued result contract.
	CancelOrder(ctx context.Context, orderID string) error

	// CancelAllOrders cancels every open order for the configured market.
	CancelAllOrders(ctx context.Context) error

	// GetBalance returns the available collateral balance in USDC.
	GetBalance(ctx context.Context) (decimal.Decimal, error)

	// GetPosition returns the signed net position for the configured market.
	GetPosition(ctx context.Context) (decimal.Decimal, error)

	// ClosePosition submits a reduce-only IOC order flattening signedQty.
	ClosePosition(ctx context.Context, signedQty decimal.Decimal) error
}
