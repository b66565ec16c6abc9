package servicing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailFileDrainsAfterStop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.log")

	f, err := os.Create(path)
	require.NoError(t, err)

	_, err = f.WriteString("mounting image\nprogress 50%\n")
	require.NoError(t, err)

	var lines []string
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		tailFile(path, stop, time.Millisecond, func(line string) {
			lines = append(lines, line)
		})
	}()

	// Let the tailer catch up, then append a final line and stop.
	time.Sleep(20 * time.Millisecond)
	_, err = f.WriteString("progress 100%\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	close(stop)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tailFile did not return after stop")
	}

	assert.Equal(t, []string{"mounting image", "progress 50%", "progress 100%"}, lines)
}

func TestTailFileMissingFile(t *testing.T) {
	stop := make(chan struct{})
	close(stop)

	// Must return without emitting anything.
	tailFile(filepath.Join(t.TempDir(), "does-not-exist"), stop, time.Millisecond, func(string) {
		t.Fatal("unexpected line emitted")
	})
}

func TestToolErrorMessage(t *testing.T) {
	err := &ToolError{Subcommand: "unmount-image", ExitCode: 87, Capture: "/tmp/run-001.log"}
	assert.Contains(t, err.Error(), "unmount-image")
	assert.Contains(t, err.Error(), "87")
	assert.Contains(t, err.Error(), "/tmp/run-001.log")

	err = &ToolError{Subcommand: "mount-image", ExitCode: 1}
	assert.Equal(t, "servicing tool mount-image exited with code 1", err.Error())
}
