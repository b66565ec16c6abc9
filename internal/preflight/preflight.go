// Package preflight runs the read-only checks that gate a servicing run.
// Any failure is terminal; nothing has been mutated yet.
package preflight

import (
	"fmt"
	"os"

	"github.com/deploykit/winject/internal/media"
)

type Check string

const (
	CheckModelDriverDir    Check = "model-driver-directory"
	CheckPlatformDriverDir Check = "platform-driver-directory"
	CheckSourceDir         Check = "installation-source-directory"
	CheckOSMountPoint      Check = "installation-mount-point"
	CheckRecoveryMount     Check = "recovery-mount-point"
	CheckBaseImage         Check = "base-installation-image"
)

// Error names the single check that failed so the caller can produce one
// specific diagnostic.
type Error struct {
	Check  Check
	Path   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("preflight check %s failed for %s: %s", e.Check, e.Path, e.Reason)
}

// Params are the paths a run depends on. Mount points must already have been
// created by workspace setup.
type Params struct {
	ModelDriverDir    string
	PlatformDriverDir string
	Source            media.Source
	OSMountPoint      string
	RecoveryMount     string
}

// Validate verifies that all five directories exist, that both mount points
// are empty, and that the base installation image is present. It returns the
// first failure encountered, in a fixed check order.
func Validate(p Params) error {
	dirs := []struct {
		check Check
		path  string
	}{
		{CheckModelDriverDir, p.ModelDriverDir},
		{CheckPlatformDriverDir, p.PlatformDriverDir},
		{CheckSourceDir, p.Source.Dir},
		{CheckOSMountPoint, p.OSMountPoint},
		{CheckRecoveryMount, p.RecoveryMount},
	}
	for _, d := range dirs {
		if err := checkDir(d.check, d.path); err != nil {
			return err
		}
	}

	for _, mp := range []struct {
		check Check
		path  string
	}{
		{CheckOSMountPoint, p.OSMountPoint},
		{CheckRecoveryMount, p.RecoveryMount},
	} {
		entries, err := os.ReadDir(mp.path)
		if err != nil {
			return &Error{Check: mp.check, Path: mp.path, Reason: err.Error()}
		}
		if len(entries) != 0 {
			return &Error{Check: mp.check, Path: mp.path, Reason: "mount point is not empty, a previous run may have left a dangling mount"}
		}
	}

	if !p.Source.HasInstallImage() {
		return &Error{Check: CheckBaseImage, Path: p.Source.InstallImage(), Reason: "base installation image not found"}
	}

	return nil
}

func checkDir(check Check, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &Error{Check: check, Path: path, Reason: err.Error()}
	}
	if !info.IsDir() {
		return &Error{Check: check, Path: path, Reason: "not a directory"}
	}
	return nil
}
