// Package servicing wraps the external image servicing tool behind the Tool
// interface. Every operation maps to one synchronous subprocess invocation;
// the process exit code is the only success signal. Textual output is
// captured and surfaced as progress, never parsed for control decisions.
package servicing

import (
	"context"
	"fmt"
)

// ImageInfo describes one edition inside a multi-index image archive.
type ImageInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

type Tool interface {
	// Info enumerates the editions contained in imageFile.
	Info(ctx context.Context, imageFile string) ([]ImageInfo, error)

	// Mount binds the filesystem tree of imageFile at the given index to
	// mountDir for offline modification.
	Mount(ctx context.Context, imageFile string, index int, mountDir string) error

	// AddDriver injects the driver packages found under driverDir into the
	// image tree mounted at mountDir.
	AddDriver(ctx context.Context, mountDir, driverDir string, recurse, allowUnsigned bool) error

	// Cleanup removes superseded component payloads from the image tree
	// mounted at mountDir to reclaim space.
	Cleanup(ctx context.Context, mountDir string) error

	// Unmount releases the mount at mountDir, committing accumulated
	// changes into the image when commit is true and discarding them
	// otherwise.
	Unmount(ctx context.Context, mountDir string, commit bool) error

	// Export copies the single edition at srcIndex out of srcFile into a
	// new archive at destFile.
	Export(ctx context.Context, srcFile string, srcIndex int, destFile string) error

	// Split splits imageFile into parts of at most partSizeMB megabytes,
	// named after swmFile.
	Split(ctx context.Context, imageFile, swmFile string, partSizeMB int) error
}

// ToolError is returned when the servicing tool exits nonzero. Capture names
// the file holding the process output for diagnosis.
type ToolError struct {
	Subcommand string
	ExitCode   int
	Capture    string
}

func (e *ToolError) Error() string {
	if e.Capture != "" {
		return fmt.Sprintf("servicing tool %s exited with code %d (output captured in %s)", e.Subcommand, e.ExitCode, e.Capture)
	}
	return fmt.Sprintf("servicing tool %s exited with code %d", e.Subcommand, e.ExitCode)
}
