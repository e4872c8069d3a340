package lifecycle

import (
	"sync"

	"github.com/joao-fontenele/dishpatch/internal/domain"
)

// Bus fans transition events out to in-process subscribers over typed
// channels. Publish never blocks; a subscriber that stops draining loses
// events rather than stalling the state machine. Dashboards that need the
// full record re-read it from the store anyway.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan domain.StatusChangedEvent
	nextID int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan domain.StatusChangedEvent)}
}

// Subscribe returns an event channel and a cancel function. Cancel is
// idempotent and closes the channel.
func (b *Bus) Subscribe() (<-chan domain.StatusChangedEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	ch := make(chan domain.StatusChangedEvent, 16)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (b *Bus) Publish(event domain.StatusChangedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
