// Package driverrepo counts the driver packages available for injection.
// Driver packages are identified by their .inf descriptor files, discovered
// recursively from each source root.
package driverrepo

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Inventory holds the per-root descriptor counts. A count of zero means the
// corresponding injection steps are skipped, not that the run fails; only
// both counts being zero is terminal.
type Inventory struct {
	ModelRoot    string
	PlatformRoot string

	ModelCount    int
	PlatformCount int
}

// Scan counts driver descriptor files under both roots.
func Scan(modelRoot, platformRoot string) (*Inventory, error) {
	modelCount, err := Count(modelRoot)
	if err != nil {
		return nil, err
	}
	platformCount, err := Count(platformRoot)
	if err != nil {
		return nil, err
	}

	return &Inventory{
		ModelRoot:     modelRoot,
		PlatformRoot:  platformRoot,
		ModelCount:    modelCount,
		PlatformCount: platformCount,
	}, nil
}

// Count walks root recursively and returns the number of .inf descriptor
// files found.
func Count(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ".inf") {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Empty reports whether neither root holds any driver package.
func (inv *Inventory) Empty() bool {
	return inv.ModelCount == 0 && inv.PlatformCount == 0
}
