package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
)

func validQuote(at time.Time) domain.Quote {
	return domain.Quote{
		Bid: decimal.NewFromInt(99990),
		Ask: decimal.NewFromInt(100000),
		At:  at,
	}
}

func TestCacheNotReadyBeforeFirstUpdate(t *testing.T) {
	c := NewCache(domain.VenueO1, time.Second)

	_, err := c.Snapshot()
	if !errors.Is(err, domain.ErrFeedNotReady) {
		t.Fatalf("err = %v, want ErrFeedNotReady", err)
	}
}

func TestCacheSnapshotFreshQuote(t *testing.T) {
	c := NewCache(domain.VenueO1, time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Update(validQuote(now))
	q, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !q.Bid.Equal(decimal.NewFromInt(99990)) {
		t.Fatalf("bid = %s, want 99990", q.Bid)
	}
}

func TestCacheStaleQuote(t *testing.T) {
	c := NewCache(domain.VenueLighter, time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Update(validQuote(now))

	c.now = func() time.Time { return now.Add(2 * time.Second) }
	q, err := c.Snapshot()
	if !errors.Is(err, domain.ErrStaleQuote) {
		t.Fatalf("err = %v, want ErrStaleQuote", err)
	}
	// The stale quote is still returned for logging.
	if !q.Valid() {
		t.Fatal("stale snapshot did not return the quote")
	}
}

func TestCacheDropsInvalidQuote(t *testing.T) {
	c := NewCache(domain.VenueO1, time.Second)
	c.Update(domain.Quote{At: time.Now()}) // empty book sides

	if _, err := c.Snapshot(); !errors.Is(err, domain.ErrFeedNotReady) {
		t.Fatalf("err = %v, want ErrFeedNotReady after invalid update", err)
	}
}

func TestCacheAwaitReady(t *testing.T) {
	c := NewCache(domain.VenueO1, time.Second)

	err := c.AwaitReady(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, domain.ErrFeedNotReady) {
		t.Fatalf("err = %v, want ErrFeedNotReady on timeout", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		c.Update(validQuote(time.Now()))
	}()
	if err := c.AwaitReady(context.Background(), time.Second); err != nil {
		t.Fatalf("AwaitReady after update: %v", err)
	}
}
