// Package workspace manages the ephemeral directories a servicing run owns:
// the two mount points and the log directory holding tool output captures.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

type Workspace struct {
	Root string
}

// OSMount is the mount point used for the boot image indices and the
// installation image. Only one session is ever open against it at a time.
func (w *Workspace) OSMount() string {
	return filepath.Join(w.Root, "mount", "os")
}

// RecoveryMount is the mount point for the nested recovery image. It is
// independent of OSMount so the recovery session can be open while the
// installation image stays mounted.
func (w *Workspace) RecoveryMount() string {
	return filepath.Join(w.Root, "mount", "winre")
}

// LogDir holds the per-invocation tool output captures and the run report.
func (w *Workspace) LogDir() string {
	return filepath.Join(w.Root, "logs")
}

// Setup creates the workspace directories. Idempotent; run once before
// preflight validation.
func (w *Workspace) Setup() error {
	for _, dir := range []string{w.OSMount(), w.RecoveryMount(), w.LogDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating workspace directory %s: %w", dir, err)
		}
	}
	return nil
}

// Clean removes the mount point directories and the transient tool output
// captures, leaving the workspace empty for the next run. Errors are logged
// and never escalated so they cannot mask the run's own outcome. The run
// report is kept.
func (w *Workspace) Clean(logger logrus.FieldLogger) {
	for _, dir := range []string{w.OSMount(), w.RecoveryMount()} {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warnf("failed to remove mount point %s: %v", dir, err)
		}
	}

	captures, err := filepath.Glob(filepath.Join(w.LogDir(), "*.log"))
	if err != nil {
		logger.Warnf("failed to list capture files: %v", err)
		return
	}
	for _, capture := range captures {
		if err := os.Remove(capture); err != nil {
			logger.Warnf("failed to remove capture file %s: %v", capture, err)
		}
	}
}
