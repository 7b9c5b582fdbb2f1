// Package quote maintains each venue's latest best bid/offer. One Cache
// exists per venue; the venue's feed (WebSocket consumer or REST poller) is
// its sole writer, and the arbitrage loop and order manager read atomic
// snapshot copies.
package quote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
)

// Cache holds the last quote seen for one venue. A feed disconnect does not
// clear the cache — a stale-but-present quote is more useful than none — but
// Snapshot reports staleness once the quote exceeds maxAge so callers can
// skip the cycle instead of trading on old data.
type Cache struct {
	venue  string
	maxAge time.Duration

	mu  sync.RWMutex
	q   domain.Quote
	has bool

	readyOnce sync.Once
	ready     chan struct{}

	now func() time.Time
}

// NewCache creates an empty cache for the named venue.
func NewCache(venue string, maxAge time.Duration) *Cache {
	return &Cache{
		venue:  venue,
		maxAge: maxAge,
		ready:  make(chan struct{}),
		now:    time.Now,
	}
}

// Venue returns the venue name this cache belongs to.
func (c *Cache) Venue() string { return c.venue }

// Update overwrites the stored quote wholesale. Invalid quotes (empty book
// sides) are dropped rather than poisoning the cache.
func (c *Cache) Update(q domain.Quote) {
	if !q.Valid() {
		return
	}
	if q.At.IsZero() {
		q.At = c.now()
	}

	c.mu.Lock()
	c.q = q
	c.has = true
	c.mu.Unlock()

	c.readyOnce.Do(func() { close(c.ready) })
}

// Snapshot returns a copy of the last quote. It fails with ErrFeedNotReady
// before the first update and with ErrStaleQuote when the quote is older
// than the configured maximum age; in the stale case the quote is still
// returned for logging.
func (c *Cache) Snapshot() (domain.Quote, error) {
	c.mu.RLock()
	q, has := c.q, c.has
	c.mu.RUnlock()

	if !has {
		return domain.Quote{}, fmt.Errorf("quote: %s: %w", c.venue, domain.ErrFeedNotReady)
	}
	if age := q.Age(c.now()); age > c.maxAge {
		return q, fmt.Errorf("quote: %s: age %s: %w", c.venue, age.Truncate(time.Millisecond), domain.ErrStaleQuote)
	}
	return q, nil
}

// AwaitReady blocks until the first quote arrives, the timeout elapses, or
// ctx is cancelled. On timeout it fails with ErrFeedNotReady.
func (c *Cache) AwaitReady(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.ready:
		return nil
	case <-timer.C:
		return fmt.Errorf("quote: %s: no quote within %s: %w", c.venue, timeout, domain.ErrFeedNotReady)
	case <-ctx.Done():
		return ctx.Err()
	}
}
