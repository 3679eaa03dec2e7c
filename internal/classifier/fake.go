package classifier

import (
	"context"
	"sync"

	"classd/pkg/types"
)

// FakeAdapter is an in-memory Adapter for tests. Each Load returns a session
// that replays the configured predictions or error.
type FakeAdapter struct {
	mu sync.Mutex
	// Predictions returned by every session's Classify.
	Predictions []types.Prediction
	// ClassifyErr, when set, makes Classify fail.
	ClassifyErr error
	// LoadErr, when set, makes Load fail.
	LoadErr error

	loads []string
}

func (a *FakeAdapter) Load(path string) (Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.LoadErr != nil {
		return nil, a.LoadErr
	}
	a.loads = append(a.loads, path)
	return &fakeSession{adapter: a}, nil
}

// Loads returns the paths passed to Load, in order.
func (a *FakeAdapter) Loads() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.loads))
	copy(out, a.loads)
	return out
}

type fakeSession struct {
	adapter *FakeAdapter
	closed  bool
}

func (s *fakeSession) Classify(ctx context.Context, image []byte) ([]types.Prediction, error) {
	s.adapter.mu.Lock()
	defer s.adapter.mu.Unlock()
	if s.adapter.ClassifyErr != nil {
		return nil, s.adapter.ClassifyErr
	}
	out := make([]types.Prediction, len(s.adapter.Predictions))
	copy(out, s.adapter.Predictions)
	return out, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}
