// Package notify delivers operator alerts. Notifications fan out to every
// registered sender (Telegram, Discord) and are filtered by event type so
// operators can mute the chatty ones; critical alerts bypass the filter.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Event types the engine emits.
const (
	EventStart     = "start"
	EventStop      = "stop"
	EventTrade     = "trade"
	EventHeartbeat = "heartbeat"
	EventBalance   = "balance"
	EventCritical  = "critical"
)

// Message is one notification. Senders use the event type and the Critical
// flag to shape delivery: critical messages are marked up loudly and must
// ring, heartbeats are delivered silently.
type Message struct {
	Event    string
	Title    string
	Body     string
	Critical bool
}

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers one message.
	Send(ctx context.Context, msg Message) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. It maintains a
// set of allowed event types; Notify forwards only messages whose event type
// is in the allowed set, while NotifyAll bypasses the filter and is reserved
// for critical alerts.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only events
// whose type appears in the events slice are forwarded by Notify; an empty
// slice allows everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends a notification to all senders if the event type passes the
// configured filter.
func (n *Notifier) Notify(ctx context.Context, event, title, body string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, Message{Event: event, Title: title, Body: body})
}

// NotifyAll sends a critical notification to all senders regardless of the
// filter.
func (n *Notifier) NotifyAll(ctx context.Context, event, title, body string) error {
	return n.dispatch(ctx, Message{Event: event, Title: title, Body: body, Critical: true})
}

// dispatch delivers to every sender. A failing sender never blocks delivery
// to the remaining ones; errors are combined.
func (n *Notifier) dispatch(ctx context.Context, msg Message) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", msg.Event),
			slog.String("title", msg.Title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
