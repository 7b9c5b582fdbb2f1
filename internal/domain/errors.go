package domain

import "errors"

// Recoverable errors are absorbed at the arbitrage loop's cycle boundary;
// critical errors pause the risk state and surface an operator alert but do
// not terminate the process.
var (
	// ErrFeedNotReady is returned before a quote cache has received its
	// first update.
	ErrFeedNotReady = errors.New("feed not ready")

	// ErrStaleQuote is returned when the cached quote is older than the
	// configured maximum age. Recoverable: skip the cycle.
	ErrStaleQuote = errors.New("stale quote")

	// ErrUnavailable is returned by a venue adapter when the book is empty
	// or the venue cannot produce a quote.
	ErrUnavailable = errors.New("quote unavailable")

	// ErrPositionLimit is returned when a requested quantity would push the
	// maker venue position beyond max_position. Recoverable: skip the cycle.
	ErrPositionLimit = errors.New("position limit exceeded")

	// ErrExposureLimit is returned when aggregate net exposure exceeds the
	// configured multiple of the order size. Recoverable: skip the cycle.
	ErrExposureLimit = errors.New("exposure limit exceeded")

	// ErrMakerRejected is returned when a post-only order would have
	// crossed the book. Recoverable: abort the leg, no state change.
	ErrMakerRejected = errors.New("post-only order rejected")

	// ErrOrderNotFound is returned by CancelOrder when the order no longer
	// exists; during the cancel probe this means the maker order filled.
	ErrOrderNotFound = errors.New("order not found")

	// ErrCancelAmbiguous is a critical error: the cancel probe neither
	// confirmed cancellation nor found the order, so the position state is
	// unknown. New legs halt until an operator resolves it.
	ErrCancelAmbiguous = errors.New("cancel outcome ambiguous")

	// ErrHedgeFailed is a critical error: the taker hedge exhausted its
	// retries and the book is one-sided. New legs halt; the maker fill is
	// never re-traded automatically.
	ErrHedgeFailed = errors.New("hedge failed after retries")

	// ErrBalanceLow is raised by the balance monitor once a below-floor
	// balance has been confirmed; it triggers the graceful shutdown path.
	ErrBalanceLow = errors.New("balance below floor")

	// ErrLegInFlight is returned when a leg is requested while the previous
	// one has not reached a terminal state.
	ErrLegInFlight = errors.New("previous leg still in flight")
)
