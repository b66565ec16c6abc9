package servicing

import (
	"context"
	"fmt"
)

// Call records one invocation made against a MockTool.
type Call struct {
	Op            string
	Image         string
	Index         int
	MountDir      string
	DriverDir     string
	Recurse       bool
	AllowUnsigned bool
	Commit        bool
	DestFile      string
	PartSizeMB    int
}

// MockTool implements Tool for tests. It records every call in order and
// succeeds unless an op-specific hook or failure is configured.
type MockTool struct {
	Calls []Call

	// Editions is returned by Info.
	Editions []ImageInfo

	// FailOn maps an op name ("mount", "add-driver", ...) to the error its
	// next invocation returns. The failure fires on every matching call.
	FailOn map[string]error

	// Hooks, when set, run after a call is recorded and before success is
	// returned. Used by tests that need side effects on disk, e.g. Export
	// creating the destination file.
	ExportHook func(srcFile string, srcIndex int, destFile string) error
	SplitHook  func(imageFile, swmFile string, partSizeMB int) error
	MountHook  func(imageFile string, index int, mountDir string) error
}

func (m *MockTool) fail(op string) error {
	if err, ok := m.FailOn[op]; ok {
		return err
	}
	return nil
}

func (m *MockTool) Info(ctx context.Context, imageFile string) ([]ImageInfo, error) {
	m.Calls = append(m.Calls, Call{Op: "image-info", Image: imageFile})
	if err := m.fail("image-info"); err != nil {
		return nil, err
	}
	return m.Editions, nil
}

func (m *MockTool) Mount(ctx context.Context, imageFile string, index int, mountDir string) error {
	m.Calls = append(m.Calls, Call{Op: "mount", Image: imageFile, Index: index, MountDir: mountDir})
	if err := m.fail("mount"); err != nil {
		return err
	}
	if m.MountHook != nil {
		return m.MountHook(imageFile, index, mountDir)
	}
	return nil
}

func (m *MockTool) AddDriver(ctx context.Context, mountDir, driverDir string, recurse, allowUnsigned bool) error {
	m.Calls = append(m.Calls, Call{Op: "add-driver", MountDir: mountDir, DriverDir: driverDir, Recurse: recurse, AllowUnsigned: allowUnsigned})
	return m.fail("add-driver")
}

func (m *MockTool) Cleanup(ctx context.Context, mountDir string) error {
	m.Calls = append(m.Calls, Call{Op: "cleanup", MountDir: mountDir})
	return m.fail("cleanup")
}

func (m *MockTool) Unmount(ctx context.Context, mountDir string, commit bool) error {
	m.Calls = append(m.Calls, Call{Op: "unmount", MountDir: mountDir, Commit: commit})
	return m.fail("unmount")
}

func (m *MockTool) Export(ctx context.Context, srcFile string, srcIndex int, destFile string) error {
	m.Calls = append(m.Calls, Call{Op: "export", Image: srcFile, Index: srcIndex, DestFile: destFile})
	if err := m.fail("export"); err != nil {
		return err
	}
	if m.ExportHook != nil {
		return m.ExportHook(srcFile, srcIndex, destFile)
	}
	return nil
}

func (m *MockTool) Split(ctx context.Context, imageFile, swmFile string, partSizeMB int) error {
	m.Calls = append(m.Calls, Call{Op: "split", Image: imageFile, DestFile: swmFile, PartSizeMB: partSizeMB})
	if err := m.fail("split"); err != nil {
		return err
	}
	if m.SplitHook != nil {
		return m.SplitHook(imageFile, swmFile, partSizeMB)
	}
	return nil
}

// Ops returns just the op names of the recorded calls, in order.
func (m *MockTool) Ops() []string {
	ops := make([]string, len(m.Calls))
	for i, c := range m.Calls {
		ops[i] = c.Op
	}
	return ops
}

var _ Tool = (*MockTool)(nil)

// ErrMock is a convenience failure for FailOn maps in tests.
var ErrMock = fmt.Errorf("mock servicing failure")
