package classifier

import (
	"errors"

	"classd/internal/registry"
	"classd/pkg/types"
)

// Cache holds one Handle per distinct (remote, local) identity pair so
// repeated switches between the same configurations reuse already-initialized
// interpreters. The mapping only grows; the configuration space is small and
// fixed, so growth is bounded in practice. Not safe for concurrent mutation:
// all calls happen on the controller's control goroutine.
type Cache struct {
	adapter Adapter
	meta    MetadataSource
	handles map[string]*Handle
}

// NewCache creates an empty cache backed by the given runtime and metadata.
func NewCache(adapter Adapter, meta MetadataSource) *Cache {
	return &Cache{
		adapter: adapter,
		meta:    meta,
		handles: make(map[string]*Handle),
	}
}

// key must disambiguate any two distinct pairs; it concatenates both
// identities' descriptions and raw variant codes.
func key(remote, local types.ModelIdentity) string {
	return registry.Describe(remote) + "." + remote.Code() + "|" +
		registry.Describe(local) + "." + local.Code()
}

// GetOrCreate returns the handle for the pair, constructing and registering
// it on first use. On a hit the existing handle is returned with no
// re-registration side effects. The returned error, when non-nil, is a
// registration warning: the handle is still usable and loading is attempted
// on demand.
func (c *Cache) GetOrCreate(remote, local types.ModelIdentity) (*Handle, error) {
	k := key(remote, local)
	if h, ok := c.handles[k]; ok {
		return h, nil
	}
	h := newHandle(c.adapter, c.meta, remote, local)
	var warn error
	if err := h.registerRemote(); err != nil {
		warn = err
	}
	if err := h.registerLocal(); err != nil {
		warn = errors.Join(warn, err)
	}
	c.handles[k] = h
	return h, warn
}

// Len returns the number of cached handles.
func (c *Cache) Len() int { return len(c.handles) }

// Close releases every cached handle. Called only at process teardown.
func (c *Cache) Close() error {
	var first error
	for k, h := range c.handles {
		if err := h.Close(); err != nil && first == nil {
			first = err
		}
		delete(c.handles, k)
	}
	return first
}
