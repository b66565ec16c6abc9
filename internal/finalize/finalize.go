// Package finalize reduces the committed multi-edition installation image to
// its deployable single-edition form: export the selected edition, swap it
// into the original's place, and optionally split it for FAT32 media.
package finalize

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/deploykit/winject/internal/edition"
	"github.com/deploykit/winject/internal/media"
	"github.com/deploykit/winject/internal/servicing"
)

// DefaultSplitSizeMB keeps every split part below the FAT32 file size limit.
const DefaultSplitSizeMB = 3800

const exportSuffix = ".export"

type Options struct {
	Split       bool
	SplitSizeMB int
}

type Finalizer struct {
	tool   servicing.Tool
	logger logrus.FieldLogger
}

func New(tool servicing.Tool, logger logrus.FieldLogger) *Finalizer {
	return &Finalizer{tool: tool, logger: logger}
}

// Run exports the selected edition out of the committed installation image
// and swaps the export into the original's place. The swap is not
// transactional with the export: an interrupt in between leaves both files
// on disk, which an operator resolves by re-running or removing the export.
func (f *Finalizer) Run(ctx context.Context, src media.Source, ed edition.Edition, opts Options) error {
	installImage := src.InstallImage()
	exported := installImage + exportSuffix

	f.logger.Infof("exporting edition %q (index %d) from %s", ed.Name, ed.Index, installImage)
	if err := f.tool.Export(ctx, installImage, ed.Index, exported); err != nil {
		return fmt.Errorf("exporting edition: %w", err)
	}

	if err := os.Remove(installImage); err != nil {
		return fmt.Errorf("removing multi-edition image: %w", err)
	}
	if err := os.Rename(exported, installImage); err != nil {
		return fmt.Errorf("swapping exported image into place: %w", err)
	}

	if opts.Split {
		return f.split(ctx, src, opts)
	}
	return nil
}

// split breaks the single-edition image into parts no larger than the
// configured size, then removes the unsplit archive.
func (f *Finalizer) split(ctx context.Context, src media.Source, opts Options) error {
	partSize := opts.SplitSizeMB
	if partSize <= 0 {
		partSize = DefaultSplitSizeMB
	}

	f.logger.Infof("splitting %s into %d MB parts", src.InstallImage(), partSize)
	if err := f.tool.Split(ctx, src.InstallImage(), src.SplitImage(), partSize); err != nil {
		return fmt.Errorf("splitting image: %w", err)
	}

	if err := os.Remove(src.InstallImage()); err != nil {
		return fmt.Errorf("removing unsplit image: %w", err)
	}
	return nil
}
