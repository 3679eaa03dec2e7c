package download

import (
	"sync"

	"classd/pkg/types"
)

// EventType classifies completion notifications.
type EventType string

const (
	EventSucceeded EventType = "succeeded"
	EventFailed    EventType = "failed"
)

// Event is a typed completion notification. The download subsystem is shared
// by the whole process, so events are broadcast to every subscriber; each
// subscriber filters by identity before acting.
type Event struct {
	Type     EventType
	Identity types.ModelIdentity
	// Name is the model name reported by the backend.
	Name string
	// Err is set for EventFailed.
	Err error
}

// broadcaster fans events out to subscriber channels. Publish never blocks:
// a subscriber that falls behind loses events rather than stalling the
// delivering goroutine.
type broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

// subscribe registers a buffered channel and returns it with its cancel func.
func (b *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
