package classifier

import (
	"fmt"
	"os"

	"classd/internal/registry"
	"classd/pkg/types"
)

// Handle is a loaded-interpreter holder bound to one concrete
// (remote, local) identity pair. It is created lazily by the Cache, kept
// alive for the process lifetime, and mutated only from the controller's
// control goroutine; callers outside that goroutine hold borrowed references
// and must not call into it directly.
type Handle struct {
	adapter Adapter
	meta    MetadataSource

	remote types.ModelIdentity
	local  types.ModelIdentity

	remoteName string
	localName  string
	localPath  string

	remoteRegistered bool
	localRegistered  bool

	sessions map[types.Kind]Session
}

func newHandle(adapter Adapter, meta MetadataSource, remote, local types.ModelIdentity) *Handle {
	return &Handle{
		adapter:    adapter,
		meta:       meta,
		remote:     remote,
		local:      local,
		remoteName: registry.Describe(remote),
		localName:  registry.Describe(local),
		sessions:   make(map[types.Kind]Session),
	}
}

// RemoteName returns the registered remote model name.
func (h *Handle) RemoteName() string { return h.remoteName }

// LocalName returns the registered local model name.
func (h *Handle) LocalName() string { return h.localName }

// RemoteIdentity returns the remote identity this handle is bound to.
func (h *Handle) RemoteIdentity() types.ModelIdentity { return h.remote }

// LocalIdentity returns the local identity this handle is bound to.
func (h *Handle) LocalIdentity() types.ModelIdentity { return h.local }

// RemoteRegistered reports whether remote metadata registration succeeded.
func (h *Handle) RemoteRegistered() bool { return h.remoteRegistered }

// registerRemote records remote model metadata. Failure (name unknown to the
// backend) is a non-fatal warning; the handle stays usable for local loads.
func (h *Handle) registerRemote() error {
	if !h.meta.RemoteKnown(h.remoteName) {
		return fmt.Errorf("remote model %q not recognized by backend", h.remoteName)
	}
	h.remoteRegistered = true
	return nil
}

// registerLocal records local model metadata, resolving the bundled file.
// A missing bundle is a non-fatal warning.
func (h *Handle) registerLocal() error {
	path, err := h.meta.BundledPath(h.local)
	if err != nil {
		return fmt.Errorf("local model %q: %w", h.localName, err)
	}
	h.localPath = path
	h.localRegistered = true
	return nil
}

// LoadRemote materializes an interpreter for the registered remote model.
// A handle whose remote registration failed cannot load; a registered model
// whose file has not been downloaded yet reports ErrNotDownloaded so the
// caller can take the implicit download path.
func (h *Handle) LoadRemote() error {
	if !h.remoteRegistered {
		return ErrNotRegistered(h.remoteName)
	}
	if _, ok := h.sessions[types.KindRemote]; ok {
		return nil
	}
	path := h.meta.RemotePath(h.remote)
	if _, err := os.Stat(path); err != nil {
		return ErrNotDownloaded(h.remoteName)
	}
	sess, err := h.adapter.Load(path)
	if err != nil {
		return err
	}
	h.sessions[types.KindRemote] = sess
	return nil
}

// LoadLocal materializes an interpreter for the bundled model.
func (h *Handle) LoadLocal() error {
	if !h.localRegistered {
		return ErrNotRegistered(h.localName)
	}
	if _, ok := h.sessions[types.KindLocal]; ok {
		return nil
	}
	sess, err := h.adapter.Load(h.localPath)
	if err != nil {
		return err
	}
	h.sessions[types.KindLocal] = sess
	return nil
}

// Session returns the loaded session for kind, if any.
func (h *Handle) Session(kind types.Kind) (Session, bool) {
	s, ok := h.sessions[kind]
	return s, ok
}

// Close releases every loaded session. Called only at process teardown.
func (h *Handle) Close() error {
	var first error
	for kind, s := range h.sessions {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
		delete(h.sessions, kind)
	}
	return first
}
