// Package notify delivers operator alerts to chat channels. Alerts are
// filtered by event type and throttled per strategy so a strategy failing
// on every step does not flood the channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Event types.
const (
	EventStrategyError = "strategy_error"
	EventStateChange   = "state_change"
	EventTrade         = "trade"
	EventFeed          = "feed"
	EventLifecycle     = "lifecycle"
)

// Message is one alert.
type Message struct {
	Event string
	Key   string // throttling key, usually the strategy name
	Title string
	Body  string
}

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, body string) error
	Name() string
}

// Notifier fans messages out to every Sender.
type Notifier struct {
	senders  []Sender
	events   map[string]bool
	cooldown time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewNotifier creates a Notifier. Only events listed in events are sent;
// an empty list allows everything. Messages sharing an event and key are
// sent at most once per cooldown; zero disables throttling.
func NewNotifier(senders []Sender, events []string, cooldown time.Duration, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders:  senders,
		events:   allowed,
		cooldown: cooldown,
		logger:   logger.With(slog.String("component", "notifier")),
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends msg if its event is allowed and it is not throttled.
func (n *Notifier) Notify(ctx context.Context, msg Message) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[msg.Event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", msg.Event))
		return nil
	}
	if n.throttled(msg) {
		n.logger.DebugContext(ctx, "notification throttled",
			slog.String("event", msg.Event),
			slog.String("key", msg.Key),
		)
		return nil
	}
	return n.dispatch(ctx, msg.Title, msg.Body)
}

func (n *Notifier) throttled(msg Message) bool {
	if n.cooldown <= 0 {
		return false
	}
	k := msg.Event + "\x00" + msg.Key
	now := n.now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if t, ok := n.last[k]; ok && now.Sub(t) < n.cooldown {
		return true
	}
	n.last[k] = now
	return false
}

// dispatch sends to every sender; one failing sender does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, body string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, body); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	return errors.Join(errs...)
}
