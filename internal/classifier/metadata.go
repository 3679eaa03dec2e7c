package classifier

import (
	"path/filepath"

	"classd/internal/registry"
	"classd/pkg/types"
)

// MetadataSource answers whether a remote model name is known to the backend
// and resolves on-disk paths for local and downloaded models.
type MetadataSource interface {
	RemoteKnown(name string) bool
	BundledPath(id types.ModelIdentity) (string, error)
	RemotePath(id types.ModelIdentity) string
}

// DiskMetadata is the production MetadataSource: remote names come from the
// fixed registry enumeration, bundled files live under BundledDir, and
// downloaded files are installed into DataDir.
type DiskMetadata struct {
	BundledDir string
	DataDir    string
}

func (d DiskMetadata) RemoteKnown(name string) bool {
	for _, id := range registry.All() {
		if id.Kind == types.KindRemote && registry.Describe(id) == name {
			return true
		}
	}
	return false
}

func (d DiskMetadata) BundledPath(id types.ModelIdentity) (string, error) {
	return registry.ResolveBundled(d.BundledDir, id)
}

func (d DiskMetadata) RemotePath(id types.ModelIdentity) string {
	return filepath.Join(d.DataDir, registry.RemoteFilename(id))
}
