package bus

import (
	"strings"
	"sync"
	"time"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	namespaces []string
	ch         chan Event
}

func (s *subscription) matches(kind string) bool {
	for _, ns := range s.namespaces {
		if strings.HasPrefix(kind, ns) {
			return true
		}
	}
	return false
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish sends an event to all subscribers with a namespace that is a
// prefix of event.Kind. Full subscribers miss the event.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !sub.matches(evt.Kind) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Emit publishes payload under kind, stamped with the current time.
// A nil Bus discards the event.
func (b *Bus) Emit(kind string, payload any) {
	if b == nil {
		return
	}
	b.Publish(Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// Subscribe returns a channel that receives events matching the given namespace prefix.
// bufSize controls the channel buffer. Returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	return b.SubscribeMany(bufSize, namespace)
}

// SubscribeMany is Subscribe over several namespaces. No namespace at all
// subscribes to every event.
func (b *Bus) SubscribeMany(bufSize int, namespaces ...string) (<-chan Event, func()) {
	if len(namespaces) == 0 {
		namespaces = []string{""}
	}
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespaces: namespaces, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
