package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploykit/winject/internal/media"
	"github.com/deploykit/winject/internal/report"
	"github.com/deploykit/winject/internal/servicing"
	"github.com/deploykit/winject/internal/workspace"
)

type runFixture struct {
	config Config
	ws     *workspace.Workspace
	tool   *servicing.MockTool
	rec    *report.Recorder
	src    media.Source
	logger *logrus.Logger
}

// newRunFixture lays out a complete on-disk environment for one run: driver
// roots, an installation source with a base image, and a workspace.
func newRunFixture(t *testing.T) *runFixture {
	root := t.TempDir()

	config := defaultConfig()
	config.Drivers.ModelDir = filepath.Join(root, "drivers")
	config.Drivers.PlatformDir = filepath.Join(root, "pe-drivers")
	config.Source.Dir = filepath.Join(root, "source")
	config.Workspace.Root = filepath.Join(root, "workspace")

	src := media.Source{Dir: config.Source.Dir}
	for _, dir := range []string{
		config.Drivers.ModelDir,
		config.Drivers.PlatformDir,
		filepath.Join(config.Source.Dir, "sources"),
	} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}
	require.NoError(t, os.WriteFile(src.InstallImage(), []byte("multi-edition"), 0644))

	ws := &workspace.Workspace{Root: config.Workspace.Root}
	require.NoError(t, ws.Setup())

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return &runFixture{
		config: config,
		ws:     ws,
		tool: &servicing.MockTool{
			Editions: []servicing.ImageInfo{
				{Index: 1, Name: "Windows 11 Home"},
				{Index: 3, Name: "Windows 11 Pro"},
			},
			ExportHook: func(srcFile string, srcIndex int, destFile string) error {
				return os.WriteFile(destFile, []byte("single-edition"), 0644)
			},
		},
		rec:    report.NewRecorder(ws.LogDir(), "test-run"),
		src:    src,
		logger: logger,
	}
}

func (f *runFixture) execute(t *testing.T) int {
	t.Helper()
	return execute(context.Background(), f.config, f.ws, f.tool, f.rec, resolverFor(f.config), f.logger)
}

func (f *runFixture) addDriver(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
}

func (f *runFixture) reportResult(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.ws.LogDir(), "report-test-run.json"))
	require.NoError(t, err)
	var rep report.Report
	require.NoError(t, json.Unmarshal(data, &rep))
	return rep.Result
}

func TestExecuteNoDriversStops(t *testing.T) {
	f := newRunFixture(t)

	code := f.execute(t)
	assert.Equal(t, 0, code)

	// Nothing was invoked, not even edition enumeration, and the source
	// image is untouched.
	assert.Empty(t, f.tool.Calls)
	data, err := os.ReadFile(f.src.InstallImage())
	require.NoError(t, err)
	assert.Equal(t, "multi-edition", string(data))
	assert.Equal(t, "no-drivers", f.reportResult(t))
}

func TestExecuteExportUnmodified(t *testing.T) {
	f := newRunFixture(t)
	f.config.Finalize.ExportUnmodified = true

	code := f.execute(t)
	assert.Equal(t, 0, code)

	// With no drivers the pipeline never runs, but the matched edition is
	// still exported and swapped into place.
	assert.Equal(t, []string{"image-info", "export"}, f.tool.Ops())
	assert.Equal(t, 3, f.tool.Calls[1].Index)
	data, err := os.ReadFile(f.src.InstallImage())
	require.NoError(t, err)
	assert.Equal(t, "single-edition", string(data))
	assert.Equal(t, "success", f.reportResult(t))
}

func TestExecuteFullRunFinalizes(t *testing.T) {
	f := newRunFixture(t)
	f.addDriver(t, f.config.Drivers.ModelDir, "igfx.inf")

	code := f.execute(t)
	assert.Equal(t, 0, code)

	// Platform count is zero: only the installation image is serviced,
	// then exported and swapped.
	assert.Equal(t, []string{"image-info", "mount", "add-driver", "unmount", "export"}, f.tool.Ops())
	data, err := os.ReadFile(f.src.InstallImage())
	require.NoError(t, err)
	assert.Equal(t, "single-edition", string(data))
	assert.Equal(t, "success", f.reportResult(t))
}

func TestExecutePipelineFailureSkipsFinalize(t *testing.T) {
	f := newRunFixture(t)
	f.addDriver(t, f.config.Drivers.ModelDir, "igfx.inf")
	f.tool.FailOn = map[string]error{"mount": servicing.ErrMock}

	code := f.execute(t)
	assert.Equal(t, 1, code)

	// No export after a servicing failure; the multi-edition source is
	// left as the pipeline left it.
	assert.NotContains(t, f.tool.Ops(), "export")
	data, err := os.ReadFile(f.src.InstallImage())
	require.NoError(t, err)
	assert.Equal(t, "multi-edition", string(data))
	assert.Equal(t, "failed", f.reportResult(t))
}

func TestExecuteResolutionFailure(t *testing.T) {
	f := newRunFixture(t)
	f.addDriver(t, f.config.Drivers.PlatformDir, "net.inf")
	f.config.Edition.Name = "Enterprise"

	code := f.execute(t)
	assert.Equal(t, 1, code)

	// Resolution fails before any mount.
	assert.Equal(t, []string{"image-info"}, f.tool.Ops())
	assert.Equal(t, "failed", f.reportResult(t))
}

func TestExecuteCleansWorkspace(t *testing.T) {
	f := newRunFixture(t)
	f.addDriver(t, f.config.Drivers.ModelDir, "igfx.inf")

	require.Equal(t, 0, f.execute(t))

	// Mount points are gone after the run, whatever the outcome.
	_, err := os.Stat(f.ws.OSMount())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(f.ws.RecoveryMount())
	assert.True(t, os.IsNotExist(err))
}
