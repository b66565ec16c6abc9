package driverrepo_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploykit/winject/internal/driverrepo"
)

func writeFiles(t *testing.T, root string, names ...string) {
	for _, name := range names {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}
}

func TestCountRecursesAndIgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"net/e1000.inf",
		"net/e1000.sys",
		"net/e1000.cat",
		"storage/nvme/stornvme.INF",
		"readme.txt",
	)

	count, err := driverrepo.Count(root)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCountMissingRoot(t *testing.T) {
	_, err := driverrepo.Count(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	model := t.TempDir()
	platform := t.TempDir()
	writeFiles(t, model, "gpu/igfx.inf", "gpu/igfx.sys")
	writeFiles(t, platform, "net/a.inf", "net/b.inf", "usb/c.inf")

	inv, err := driverrepo.Scan(model, platform)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.ModelCount)
	assert.Equal(t, 3, inv.PlatformCount)
	assert.False(t, inv.Empty())
}

func TestScanEmpty(t *testing.T) {
	inv, err := driverrepo.Scan(t.TempDir(), t.TempDir())
	require.NoError(t, err)
	assert.True(t, inv.Empty())
}
