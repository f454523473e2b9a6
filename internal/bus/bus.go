package bus

import (
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe event bus with topic-prefix
// filtering. It is the attach surface for a rendering layer: the
// reconciliation core publishes state-change events and never calls
// into the UI directly.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	topic string
	ch    chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish sends an event to all subscribers whose topic is a prefix of
// event.Kind. Publish never blocks; a subscriber with a full buffer
// misses the event.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.topic) {
			select {
			case sub.ch <- evt:
			default:
			}
		}
	}
}

// Emit publishes a freshly stamped event for the given kind.
func (b *Bus) Emit(kind string, payload any) {
	b.Publish(NewEvent(kind, payload))
}

// Subscribe returns a channel receiving events whose kind starts with
// topic, plus an unsubscribe function. bufSize controls the channel
// buffer.
func (b *Bus) Subscribe(topic string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{topic: topic, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
