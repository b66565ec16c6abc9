// Package media describes the on-disk layout of a Windows installation
// source: the boot and installation image archives under sources/, and the
// recovery image nested inside a mounted installation tree.
package media

import (
	"os"
	"path/filepath"
)

const (
	// InstallImageName is the multi-edition installation archive inside
	// the sources directory.
	InstallImageName = "install.wim"

	// BootImageName is the preboot environment archive inside the sources
	// directory.
	BootImageName = "boot.wim"

	// SplitImageName is the base name for split parts of the installation
	// archive, sized for FAT32 media.
	SplitImageName = "install.swm"
)

// RecoveryImagePath is the fixed location of the nested recovery archive,
// relative to the root of a mounted installation tree.
var RecoveryImagePath = filepath.Join("Windows", "System32", "Recovery", "winre.wim")

// BootIndices are the two serviced indices of the boot archive: the setup
// environment and the recovery launcher environment.
var BootIndices = []int{1, 2}

// Source is an installation-source directory laid out per the media
// contract.
type Source struct {
	Dir string
}

func (s Source) InstallImage() string {
	return filepath.Join(s.Dir, "sources", InstallImageName)
}

func (s Source) BootImage() string {
	return filepath.Join(s.Dir, "sources", BootImageName)
}

func (s Source) SplitImage() string {
	return filepath.Join(s.Dir, "sources", SplitImageName)
}

// HasInstallImage reports whether the base installation archive is present.
func (s Source) HasInstallImage() bool {
	info, err := os.Stat(s.InstallImage())
	return err == nil && info.Mode().IsRegular()
}

// RecoveryImage returns the path of the nested recovery archive under an
// installation tree mounted at mountDir.
func RecoveryImage(mountDir string) string {
	return filepath.Join(mountDir, RecoveryImagePath)
}
