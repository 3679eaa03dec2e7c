package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"classd/internal/common/fsutil"
	"classd/pkg/types"
)

// ResolveBundled locates the bundled file for a local identity under dir.
// Returns the absolute path, or an error if the file is absent.
func ResolveBundled(dir string, id types.ModelIdentity) (string, error) {
	name := BundledFilename(id)
	if name == "" {
		return "", fmt.Errorf("no bundled file for variant %s", id.Variant)
	}
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(filepath.Join(base, name))
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	if !fsutil.PathExists(abs) {
		return "", fmt.Errorf("bundled model %s not found in %s", name, dir)
	}
	return abs, nil
}

// ScanBundledDir lists the local identities whose bundled files are present
// under dir. Missing files are skipped, not errors; only an unreadable
// directory fails.
func ScanBundledDir(dir string) ([]types.ModelIdentity, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if _, err := os.ReadDir(abs); err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var found []types.ModelIdentity
	for _, id := range All() {
		if id.Kind != types.KindLocal {
			continue
		}
		if fsutil.PathExists(filepath.Join(abs, BundledFilename(id))) {
			found = append(found, id)
		}
	}
	return found, nil
}
