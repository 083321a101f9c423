// Package events is a small typed publish/subscribe hub passed to engines
// at construction.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/schoolbot/core/logger"
)

// Topics published by the dialogue engines.
const (
	TopicDailySubmitted        = "report.daily.submitted"
	TopicHierarchicalSubmitted = "report.hierarchical.submitted"
	TopicEntityCreated         = "entity.created"
	TopicEntityUpdated         = "entity.updated"
	TopicEntityDeleted         = "entity.deleted"
	TopicSessionExpired        = "session.expired"
)

// Event is one notification.
type Event struct {
	Topic   string
	ChatID  int64
	UserID  int64
	Payload map[string]string
	At      time.Time
}

// Handler consumes an event. Errors are logged, never propagated to the publisher.
type Handler func(ctx context.Context, ev Event) error

// Publisher is the handle engines depend on.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Bus fans events out to subscribers synchronously in subscription order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID int
}

type subscription struct {
	id int
	fn Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers fn for topic. "*" receives every topic.
// The returned func removes the subscription.
func (b *Bus) Subscribe(topic string, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s.id == id {
				b.subs[topic] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to topic subscribers and then wildcard subscribers.
// A panicking or failing handler does not stop the others.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if b == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[ev.Topic])+len(b.subs["*"]))
	for _, s := range b.subs[ev.Topic] {
		handlers = append(handlers, s.fn)
	}
	for _, s := range b.subs["*"] {
		handlers = append(handlers, s.fn)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(ctx, h, ev)
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "events", "subscriber_panic",
				slog.String("topic", ev.Topic),
				slog.Any("panic", r),
			)
		}
	}()
	if err := h(ctx, ev); err != nil {
		logger.Warn(ctx, "events", "subscriber_failed",
			slog.String("topic", ev.Topic),
			slog.String("error", err.Error()),
		)
	}
}

// LogSubscriber writes every event to the structured log.
func LogSubscriber(ctx context.Context, ev Event) error {
	attrs := []slog.Attr{
		slog.String("topic", ev.Topic),
		slog.Int64("chat_id", ev.ChatID),
		slog.Int64("user_id", ev.UserID),
	}
	for k, v := range ev.Payload {
		attrs = append(attrs, slog.String("payload."+k, v))
	}
	logger.Info(ctx, "events", "event_published", attrs...)
	return nil
}
