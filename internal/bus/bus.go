package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"storesync/internal/domain"
)

// Bus fans change notifications out to independently mounted
// subscribers. Publish never blocks: a subscriber that cannot keep up
// drops events, which is safe because events carry no state and every
// consumer re-reads the source of truth on wake.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan domain.Event
	nextID int
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[int]chan domain.Event)}
}

// Subscribe registers a listener. The returned cancel func must be
// called when the consumer unmounts; it closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan domain.Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

func (b *Bus) Publish(topic domain.Topic) domain.Event {
	event := domain.Event{
		ID:    uuid.NewString(),
		Topic: topic,
		At:    time.Now().UTC(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return event
	}
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return event
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
