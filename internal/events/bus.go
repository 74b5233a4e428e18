// Package events carries board push notifications: an in-process bus and a
// websocket channel that feeds it.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

type EventType string

const (
	// WorkOrderAssigned is pushed when a crew is assigned to a work order.
	WorkOrderAssigned EventType = "work_order_assigned"
	// WorkOrderUpdated is pushed on any other work order change.
	WorkOrderUpdated EventType = "work_order_updated"
)

// Event is one push notification. Data is kept raw; board consumers only
// look at Type.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type Handler func(Event)

// Source is anything a board can subscribe to for push events.
type Source interface {
	// Subscribe registers fn for one event type and returns its unsubscribe func.
	Subscribe(eventType EventType, fn Handler) (unsubscribe func())
}

// Bus is a non-blocking publish/subscribe fan-out. Each subscriber gets its own
// buffered channel and goroutine; when a subscriber falls behind, events for it
// are dropped rather than blocking the publisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	bufferSize  int
	logger      *slog.Logger
	closed      bool
}

func NewBus(bufferSize int, logger *slog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

func (b *Bus) Subscribe(eventType EventType, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return func() {}
	}
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	go func() {
		for ev := range ch {
			b.deliver(fn, ev)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subscribers[eventType]
			for i, sub := range subs {
				if sub == ch {
					b.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
}

func (b *Bus) deliver(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked", "type", ev.Type, "panic", r)
		}
	}()
	fn(ev)
}

// Publish delivers ev to every subscriber of ev.Type without blocking.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[ev.Type] {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("event dropped for slow subscriber", "type", ev.Type)
		}
	}
}

// Close unsubscribes everyone. Later Subscribe calls get a no-op subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, t)
	}
	b.closed = true
}
