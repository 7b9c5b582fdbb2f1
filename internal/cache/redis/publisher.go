package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
)

// Channel and stream names. Pub/Sub carries the ephemeral live feed; the
// streams keep a bounded replayable history for consumers that connect late.
const (
	SpreadChannel = "arb:spreads"
	TradeChannel  = "arb:trades"
	SpreadStream  = "arb:spreads:stream"
	TradeStream   = "arb:trades:stream"
)

// Publisher mirrors engine records to Redis. It satisfies the engine's Sink
// contract; failures are reported to the caller, which logs and drops them,
// so a Redis outage never affects trading.
type Publisher struct {
	client *Client
}

// NewPublisher creates a Publisher backed by the given Client.
func NewPublisher(c *Client) *Publisher {
	return &Publisher{client: c}
}

// RecordSpread publishes one spread sample as JSON.
func (p *Publisher) RecordSpread(ctx context.Context, s domain.SpreadSample) error {
	payload, err := json.Marshal(spreadMsg{
		At:          s.At.UnixMilli(),
		O1Bid:       s.O1Bid.String(),
		O1Ask:       s.O1Ask.String(),
		LighterBid:  s.LighterBid.String(),
		LighterAsk:  s.LighterAsk.String(),
		DiffLong:    s.DiffLong.String(),
		DiffShort:   s.DiffShort.String(),
		AvgLong:     s.AvgLong.String(),
		AvgShort:    s.AvgShort.String(),
		SampleCount: s.SampleCount,
		Signal:      string(s.Signal),
	})
	if err != nil {
		return fmt.Errorf("redis: marshal spread: %w", err)
	}
	return p.emit(ctx, SpreadChannel, SpreadStream, payload)
}

// RecordTrade publishes one trade record as JSON.
func (p *Publisher) RecordTrade(ctx context.Context, t domain.TradeRecord) error {
	payload, err := json.Marshal(tradeMsg{
		ID:              t.ID,
		At:              t.At.UnixMilli(),
		Direction:       string(t.Direction),
		MakerSide:       string(t.MakerSide),
		MakerPrice:      t.MakerPrice.String(),
		MakerQty:        t.MakerQty.String(),
		TakerSide:       string(t.TakerSide),
		TakerPrice:      t.TakerPrice.String(),
		TakerQty:        t.TakerQty.String(),
		SpreadCaptured:  t.SpreadCaptured.String(),
		DetectLatencyMS: t.DetectLatency.Milliseconds(),
		O1Position:      t.O1Position.String(),
		LighterPosition: t.LighterPosition.String(),
		NetPosition:     t.NetPosition.String(),
	})
	if err != nil {
		return fmt.Errorf("redis: marshal trade: %w", err)
	}
	return p.emit(ctx, TradeChannel, TradeStream, payload)
}

// emit publishes to the live channel and appends to the capped stream.
func (p *Publisher) emit(ctx context.Context, channel, stream string, payload []byte) error {
	if err := p.client.Publish(ctx, channel, payload); err != nil {
		return err
	}
	return p.client.Append(ctx, stream, payload)
}

type spreadMsg struct {
	At          int64  `json:"at"`
	O1Bid       string `json:"o1_bid"`
	O1Ask       string `json:"o1_ask"`
	LighterBid  string `json:"lighter_bid"`
	LighterAsk  string `json:"lighter_ask"`
	DiffLong    string `json:"diff_long"`
	DiffShort   string `json:"diff_short"`
	AvgLong     string `json:"avg_long"`
	AvgShort    string `json:"avg_short"`
	SampleCount int    `json:"sample_count"`
	Signal      string `json:"signal,omitempty"`
}

type tradeMsg struct {
	ID              string `json:"id"`
	At              int64  `json:"at"`
	Direction       string `json:"direction"`
	MakerSide       string `json:"maker_side"`
	MakerPrice      string `json:"maker_price"`
	MakerQty        string `json:"maker_qty"`
	TakerSide       string `json:"taker_side"`
	TakerPrice      string `json:"taker_price"`
	TakerQty        string `json:"taker_qty"`
	SpreadCaptured  string `json:"spread_captured"`
	DetectLatencyMS int64  `json:"detect_latency_ms"`
	O1Position      string `json:"o1_position"`
	LighterPosition string `json:"lighter_position"`
	NetPosition     string `json:"net_position"`
}
