// Package statestore persists boolean flags keyed by string across process
// restarts. The lifecycle controller uses it to record which remote models
// have completed their download.
package statestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"classd/internal/common/fsutil"
)

// Store is a process-durable boolean flag store.
type Store interface {
	// GetBool returns the stored value for key, false when unset.
	GetBool(key string) bool
	// SetBool stores value under key and persists it.
	SetBool(key string, value bool) error
}

// FileStore keeps flags in a single JSON file, rewritten on every mutation.
// The flag space is tiny (one key per remote model variant) so whole-file
// rewrites are fine.
type FileStore struct {
	mu    sync.RWMutex
	path  string
	flags map[string]bool
}

// OpenFile loads or creates a FileStore at path. A missing file yields an
// empty store; a corrupt file is treated the same way rather than blocking
// startup.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, flags: make(map[string]bool)}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	var data map[string]bool
	if err := json.Unmarshal(b, &data); err == nil {
		s.flags = data
	}
	return s, nil
}

func (s *FileStore) GetBool(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[key]
}

func (s *FileStore) SetBool(key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[key] = value
	return s.save()
}

// save writes the current flags; caller holds the write lock.
func (s *FileStore) save() error {
	b, err := json.MarshalIndent(s.flags, "", "  ")
	if err != nil {
		return err
	}
	if err := fsutil.EnsureDir(filepath.Dir(s.path)); err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o644)
}

// Memory is an in-process Store for tests.
type Memory struct {
	mu    sync.RWMutex
	flags map[string]bool
}

func NewMemory() *Memory {
	return &Memory{flags: make(map[string]bool)}
}

func (m *Memory) GetBool(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flags[key]
}

func (m *Memory) SetBool(key string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[key] = value
	return nil
}
