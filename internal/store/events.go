package store

import "sync"

// OpKind classifies a store mutation for event subscribers.
type OpKind string

const (
	// OpUpsert is an insert-or-replace of a single record.
	OpUpsert OpKind = "upsert"
	// OpDelete is a removal of a single record.
	OpDelete OpKind = "delete"
	// OpReplace is a wholesale rewrite of a collection via Write.
	OpReplace OpKind = "replace"
)

// Event describes one committed store mutation.
//
// Interested collaborators (a notification tracker, a UI refresher)
// subscribe to events instead of holding references into shared slices;
// the store publishes after the file write has succeeded.
type Event struct {
	Collection Collection
	Kind       OpKind
	Key        string
}

// eventBus fans events out to subscribers.
//
// Delivery is best-effort: each subscriber channel is buffered, and a
// subscriber that falls behind misses events rather than blocking a write.
type eventBus struct {
	mu   sync.Mutex
	subs []chan Event
}

const subscriberBuffer = 64

func newEventBus() *eventBus {
	return &eventBus{}
}

func (b *eventBus) subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

func (b *eventBus) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel receiving an Event for every committed
// mutation from this point on. The channel is never closed; see eventBus
// for the delivery guarantee.
func (s *Store) Subscribe() <-chan Event {
	return s.bus.subscribe()
}
