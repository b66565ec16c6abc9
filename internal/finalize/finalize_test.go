package finalize_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploykit/winject/internal/edition"
	"github.com/deploykit/winject/internal/finalize"
	"github.com/deploykit/winject/internal/media"
	"github.com/deploykit/winject/internal/servicing"
)

var pro = edition.Edition{Index: 3, Name: "Windows 11 Pro"}

func newSource(t *testing.T) media.Source {
	src := media.Source{Dir: t.TempDir()}
	require.NoError(t, os.MkdirAll(filepath.Join(src.Dir, "sources"), 0755))
	require.NoError(t, os.WriteFile(src.InstallImage(), []byte("multi-edition"), 0644))
	return src
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRunExportsAndSwaps(t *testing.T) {
	src := newSource(t)
	tool := &servicing.MockTool{
		ExportHook: func(srcFile string, srcIndex int, destFile string) error {
			return os.WriteFile(destFile, []byte("single-edition"), 0644)
		},
	}

	fin := finalize.New(tool, quietLogger())
	require.NoError(t, fin.Run(context.Background(), src, pro, finalize.Options{}))

	// The original archive was replaced by the export, under the original
	// name, and the temporary export file is gone.
	data, err := os.ReadFile(src.InstallImage())
	require.NoError(t, err)
	assert.Equal(t, "single-edition", string(data))
	_, err = os.Stat(src.InstallImage() + ".export")
	assert.True(t, os.IsNotExist(err))

	require.Equal(t, []string{"export"}, tool.Ops())
	assert.Equal(t, pro.Index, tool.Calls[0].Index)
	assert.Equal(t, src.InstallImage(), tool.Calls[0].Image)
}

func TestRunSplit(t *testing.T) {
	src := newSource(t)
	tool := &servicing.MockTool{
		ExportHook: func(srcFile string, srcIndex int, destFile string) error {
			return os.WriteFile(destFile, []byte("single-edition"), 0644)
		},
		SplitHook: func(imageFile, swmFile string, partSizeMB int) error {
			// Two parts, as for a 4500 MB image with 3800 MB parts.
			base := swmFile[:len(swmFile)-len(".swm")]
			if err := os.WriteFile(swmFile, []byte("part1"), 0644); err != nil {
				return err
			}
			return os.WriteFile(base+"2.swm", []byte("part2"), 0644)
		},
	}

	fin := finalize.New(tool, quietLogger())
	require.NoError(t, fin.Run(context.Background(), src, pro, finalize.Options{Split: true}))

	// The unsplit archive is removed, the parts remain.
	_, err := os.Stat(src.InstallImage())
	assert.True(t, os.IsNotExist(err))
	parts, err := filepath.Glob(filepath.Join(src.Dir, "sources", "*.swm"))
	require.NoError(t, err)
	assert.Len(t, parts, 2)

	require.Equal(t, []string{"export", "split"}, tool.Ops())
	assert.Equal(t, finalize.DefaultSplitSizeMB, tool.Calls[1].PartSizeMB)
}

func TestRunExportFailure(t *testing.T) {
	src := newSource(t)
	tool := &servicing.MockTool{FailOn: map[string]error{"export": servicing.ErrMock}}

	fin := finalize.New(tool, quietLogger())
	err := fin.Run(context.Background(), src, pro, finalize.Options{})
	require.Error(t, err)

	// The committed original is untouched.
	data, err := os.ReadFile(src.InstallImage())
	require.NoError(t, err)
	assert.Equal(t, "multi-edition", string(data))
}

func TestRunSplitFailureKeepsUnsplitImage(t *testing.T) {
	src := newSource(t)
	tool := &servicing.MockTool{
		ExportHook: func(srcFile string, srcIndex int, destFile string) error {
			return os.WriteFile(destFile, []byte("single-edition"), 0644)
		},
		FailOn: map[string]error{"split": fmt.Errorf("disk full")},
	}

	fin := finalize.New(tool, quietLogger())
	err := fin.Run(context.Background(), src, pro, finalize.Options{Split: true, SplitSizeMB: 1000})
	require.Error(t, err)

	// Swap already happened; the single-edition archive survives.
	data, err := os.ReadFile(src.InstallImage())
	require.NoError(t, err)
	assert.Equal(t, "single-edition", string(data))
	assert.Equal(t, 1000, tool.Calls[1].PartSizeMB)
}
