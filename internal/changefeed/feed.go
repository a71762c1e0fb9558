// Package changefeed broadcasts row-level change notifications over Redis
// pub/sub so that subscribers can re-read the affected data.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/masig/pricebook/internal/shared"
)

// EventType names the kind of row change.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
	// EventAny matches every event type in a subscription.
	EventAny EventType = "*"
)

// Event describes one change to a table.
type Event struct {
	Table string    `json:"table"`
	Type  EventType `json:"type"`
	Key   string    `json:"key,omitempty"`
	At    time.Time `json:"at"`
}

// ParseEventType validates a subscription filter. Empty means EventAny.
func ParseEventType(raw string) (EventType, error) {
	switch typ := EventType(raw); typ {
	case "":
		return EventAny, nil
	case EventInsert, EventUpdate, EventDelete, EventAny:
		return typ, nil
	default:
		return "", fmt.Errorf("%w: unknown event type %q", shared.ErrValidation, raw)
	}
}

// Matches reports whether the event satisfies a subscription filter.
func (e Event) Matches(table string, typ EventType) bool {
	if e.Table != table {
		return false
	}
	return typ == EventAny || typ == "" || e.Type == typ
}

// Publisher emits change events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Feed publishes and subscribes to change events on Redis.
type Feed struct {
	client *redis.Client
	logger *slog.Logger
	buffer int
}

// New constructs a Feed.
func New(client *redis.Client, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{client: client, logger: logger, buffer: 16}
}

// Channel returns the Redis channel carrying events for table.
func Channel(table string) string {
	return "changefeed:" + table
}

// Publish sends the event to all subscribers of its table.
func (f *Feed) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, Channel(ev.Table), payload).Err(); err != nil {
		return fmt.Errorf("changefeed: publish %s: %w: %w", ev.Table, shared.ErrTransport, err)
	}
	return nil
}

// Subscribe listens for events on table filtered by typ. The subscription
// is confirmed before Subscribe returns. The returned channel closes after
// the close func is called or ctx ends.
func (f *Feed) Subscribe(ctx context.Context, table string, typ EventType) (<-chan Event, func() error, error) {
	pubsub := f.client.Subscribe(ctx, Channel(table))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("changefeed: subscribe %s: %w: %w", table, shared.ErrTransport, err)
	}

	out := make(chan Event, f.buffer)
	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					f.logger.Warn("changefeed decode", slog.String("channel", msg.Channel), slog.Any("error", err))
					continue
				}
				if !ev.Matches(table, typ) {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					_ = pubsub.Close()
					return
				}
			}
		}
	}()
	return out, pubsub.Close, nil
}
