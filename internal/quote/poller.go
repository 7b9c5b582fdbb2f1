package quote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
)

// Poller drives a Cache from a venue's REST quote endpoint on a fixed
// interval. It is used for 01, which has no streaming book feed. Query
// failures are logged and the previous quote stays in the cache; staleness
// detection downstream handles a venue that stops answering.
type Poller struct {
	venue    domain.Venue
	cache    *Cache
	interval time.Duration
	logger   *slog.Logger

	failures int
}

// NewPoller creates a poller feeding cache from venue.
func NewPoller(venue domain.Venue, cache *Cache, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		venue:    venue,
		cache:    cache,
		interval: interval,
		logger:   logger.With(slog.String("component", "quote_poller"), slog.String("venue", venue.Name())),
	}
}

// Run polls until ctx is cancelled. It always returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("quote poller started", slog.Duration("interval", p.interval))
	defer p.logger.Info("quote poller stopped")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, p.interval*4)
	defer cancel()

	q, err := p.venue.GetQuote(reqCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.failures++
		// One warning per streak of failures, the rest at debug.
		if p.failures == 1 || errors.Is(err, domain.ErrUnavailable) {
			p.logger.Warn("quote poll failed", slog.Int("streak", p.failures), slog.String("error", err.Error()))
		} else {
			p.logger.Debug("quote poll failed", slog.Int("streak", p.failures), slog.String("error", err.Error()))
		}
		return
	}
	p.failures = 0
	p.cache.Update(q)
}
