package lighter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/quote"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// Feed consumes the Lighter order book stream and keeps the venue's quote
// cache current. It owns the connection lifecycle: dial, subscribe, read, and
// reconnect with exponential backoff. The cache is never cleared on
// disconnect; staleness detection downstream handles a feed that stays down.
type Feed struct {
	wsURL  string
	market string
	cache  *quote.Cache
	logger *slog.Logger
}

// NewFeed creates a feed for one market writing into cache.
func NewFeed(wsURL, market string, cache *quote.Cache, logger *slog.Logger) *Feed {
	return &Feed{
		wsURL:  wsURL,
		market: market,
		cache:  cache,
		logger: logger.With(slog.String("component", "lighter_feed"), slog.String("market", market)),
	}
}

// Run connects and consumes until ctx is cancelled, reconnecting on any
// failure. It always returns ctx.Err().
func (f *Feed) Run(ctx context.Context) error {
	f.logger.Info("feed started", slog.String("url", f.wsURL))
	defer f.logger.Info("feed stopped")

	delay := reconnectDelay
	for {
		err := f.connectAndConsume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("feed disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// subscribeCommand is the order book subscription message.
type subscribeCommand struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// bookMessage is one order book update. Updates are full top-of-book
// snapshots, not deltas, so each message replaces the cached quote wholesale.
type bookMessage struct {
	Type    string       `json:"type"`
	Channel string       `json:"channel"`
	Bids    []priceLevel `json:"bids"`
	Asks    []priceLevel `json:"asks"`
}

// connectAndConsume runs one connection until it fails or ctx is cancelled.
func (f *Feed) connectAndConsume(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("lighter: dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	sub := subscribeCommand{
		Type:    "subscribe",
		Channel: "order_book/" + f.market,
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("lighter: subscribe: %w", err)
	}
	f.logger.Info("subscribed", slog.String("channel", sub.Channel))

	// Close the connection when ctx ends so the blocked read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go f.pingLoop(ctx, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("lighter: read: %w", err)
		}
		f.handleMessage(raw)
	}
}

func (f *Feed) handleMessage(raw []byte) {
	var msg bookMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		f.logger.Debug("unparseable message dropped", slog.String("error", err.Error()))
		return
	}
	if msg.Type == "ping" || len(msg.Bids) == 0 || len(msg.Asks) == 0 {
		return
	}

	bid, err := decimal.NewFromString(msg.Bids[0].Price)
	if err != nil {
		f.logger.Debug("bad bid price dropped", slog.String("price", msg.Bids[0].Price))
		return
	}
	ask, err := decimal.NewFromString(msg.Asks[0].Price)
	if err != nil {
		f.logger.Debug("bad ask price dropped", slog.String("price", msg.Asks[0].Price))
		return
	}

	f.cache.Update(domain.Quote{Bid: bid, Ask: ask, At: time.Now()})
}

func (f *Feed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
