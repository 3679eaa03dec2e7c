package download

import (
	"sync"

	"classd/internal/registry"
	"classd/pkg/types"
)

// Fake is an in-memory Downloader for tests. Transfers never complete on
// their own; tests drive completion through Succeed and Fail.
type Fake struct {
	bus *broadcaster

	mu       sync.Mutex
	requests []types.ModelIdentity
	progress map[types.ModelIdentity]float64
	startErr error
}

func NewFake() *Fake {
	return &Fake{
		bus:      newBroadcaster(),
		progress: make(map[types.ModelIdentity]float64),
	}
}

// FailToStart makes subsequent Download calls return err.
func (f *Fake) FailToStart(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

func (f *Fake) Download(id types.ModelIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.requests = append(f.requests, id)
	return nil
}

func (f *Fake) ProgressOf(id types.ModelIdentity) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progress[id]
}

func (f *Fake) Subscribe(buffer int) (<-chan Event, func()) {
	return f.bus.subscribe(buffer)
}

// SetProgress fixes the reported progress for id.
func (f *Fake) SetProgress(id types.ModelIdentity, p float64) {
	f.mu.Lock()
	f.progress[id] = p
	f.mu.Unlock()
}

// Requests returns a copy of the identities passed to Download.
func (f *Fake) Requests() []types.ModelIdentity {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.ModelIdentity, len(f.requests))
	copy(out, f.requests)
	return out
}

// Succeed broadcasts a success event for id.
func (f *Fake) Succeed(id types.ModelIdentity) {
	f.bus.publish(Event{Type: EventSucceeded, Identity: id, Name: registry.Describe(id)})
}

// Fail broadcasts a failure event for id.
func (f *Fake) Fail(id types.ModelIdentity, err error) {
	f.bus.publish(Event{Type: EventFailed, Identity: id, Name: registry.Describe(id), Err: err})
}
