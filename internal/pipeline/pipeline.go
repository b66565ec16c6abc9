// Package pipeline sequences the image servicing run: the boot image
// indices, the installation image at the selected edition, and the recovery
// image nested inside it. Each transition is one synchronous servicing tool
// invocation; the first failure is terminal for the run. Nothing here
// retries, and nothing rolls back: a failed step leaves the on-disk state
// for the operator, as committed images cannot be un-committed.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deploykit/winject/internal/driverrepo"
	"github.com/deploykit/winject/internal/edition"
	"github.com/deploykit/winject/internal/media"
	"github.com/deploykit/winject/internal/mount"
	"github.com/deploykit/winject/internal/report"
	"github.com/deploykit/winject/internal/servicing"
	"github.com/deploykit/winject/internal/workspace"
)

// StepError names the container, index, and step of a servicing failure.
type StepError struct {
	Container string
	Index     int
	Step      string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("servicing step %s failed for %s container index %d: %v", e.Step, e.Container, e.Index, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Pipeline struct {
	tool   servicing.Tool
	ws     *workspace.Workspace
	inv    *driverrepo.Inventory
	rec    *report.Recorder
	logger logrus.FieldLogger
}

func New(tool servicing.Tool, ws *workspace.Workspace, inv *driverrepo.Inventory, rec *report.Recorder, logger logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		tool:   tool,
		ws:     ws,
		inv:    inv,
		rec:    rec,
		logger: logger,
	}
}

// Result reports which containers the run mutated, for the finalizer's
// export policy.
type Result struct {
	Edition         edition.Edition
	BootModified    bool
	InstallModified bool
}

// step runs one transition, records it, and wraps any failure with its
// container/index/step context.
func (p *Pipeline) step(container string, index int, action string, fn func() error) error {
	start := time.Now()
	err := fn()

	status := report.StepSucceeded
	errText := ""
	if err != nil {
		status = report.StepFailed
		errText = err.Error()
	}
	p.rec.Record(report.Step{
		Container: container,
		Index:     index,
		Action:    action,
		Status:    status,
		Duration:  time.Since(start),
		Error:     errText,
	})

	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"container": container,
			"index":     index,
			"step":      action,
		}).Errorf("servicing step failed: %v", err)
		return &StepError{Container: container, Index: index, Step: action, Err: err}
	}
	return nil
}

// Run drives the full servicing sequence against src, targeting the given
// edition of the installation image. The caller has already verified that at
// least one driver root is non-empty.
func (p *Pipeline) Run(ctx context.Context, src media.Source, ed edition.Edition) (*Result, error) {
	res := &Result{Edition: ed}

	if err := p.serviceBootImage(ctx, src, res); err != nil {
		return res, err
	}
	if err := p.serviceInstallImage(ctx, src, ed, res); err != nil {
		return res, err
	}
	return res, nil
}

// serviceBootImage injects platform drivers into both boot image indices,
// one exclusive session after the other. With no platform drivers the boot
// image is left untouched entirely.
func (p *Pipeline) serviceBootImage(ctx context.Context, src media.Source, res *Result) error {
	if p.inv.PlatformCount == 0 {
		p.logger.Warn("no platform drivers found, leaving boot image untouched")
		p.rec.Skip("boot", "inject-platform-drivers")
		return nil
	}

	for _, index := range media.BootIndices {
		sess := mount.NewSession(p.tool, src.BootImage(), index, p.ws.OSMount(), p.logger)
		if err := p.step("boot", index, "mount", func() error { return sess.Open(ctx) }); err != nil {
			return err
		}
		if err := p.step("boot", index, "inject-platform-drivers", func() error {
			return sess.Inject(ctx, p.inv.PlatformRoot, true)
		}); err != nil {
			return err
		}
		if err := p.step("boot", index, "commit", func() error { return sess.Commit(ctx) }); err != nil {
			return err
		}
		res.BootModified = true
	}
	return nil
}

// serviceInstallImage mounts the selected edition, services the nested
// recovery image while the installation tree is mounted, injects the model
// drivers, and commits.
func (p *Pipeline) serviceInstallImage(ctx context.Context, src media.Source, ed edition.Edition, res *Result) error {
	if p.inv.Empty() {
		return nil
	}

	p.logger.Infof("servicing edition %q (index %d)", ed.Name, ed.Index)
	install := mount.NewSession(p.tool, src.InstallImage(), ed.Index, p.ws.OSMount(), p.logger)
	if err := p.step("install", ed.Index, "mount", func() error { return install.Open(ctx) }); err != nil {
		return err
	}

	if err := p.serviceRecoveryImage(ctx, res); err != nil {
		return err
	}

	if p.inv.ModelCount > 0 {
		// Model drivers go into the installed system and must be signed;
		// there is no unsigned override here, unlike the preboot images.
		if err := p.step("install", ed.Index, "inject-model-drivers", func() error {
			return install.Inject(ctx, p.inv.ModelRoot, false)
		}); err != nil {
			return err
		}
	} else {
		p.logger.Warn("no model drivers found, skipping installation image driver injection")
		p.rec.Skip("install", "inject-model-drivers")
	}

	// The longest step of the run, typically 5-30 minutes. Must not be
	// interrupted; a failure here leaves the image for manual recovery.
	p.logger.Info("committing installation image, this can take a long time")
	if err := p.step("install", ed.Index, "commit", func() error { return install.Commit(ctx) }); err != nil {
		return err
	}
	res.InstallModified = true
	return nil
}

// serviceRecoveryImage services winre.wim from inside the mounted
// installation tree. Its session uses the second mount point and is fully
// committed before the installation image's own commit.
func (p *Pipeline) serviceRecoveryImage(ctx context.Context, res *Result) error {
	if p.inv.PlatformCount == 0 {
		p.logger.Warn("no platform drivers found, leaving recovery image untouched")
		p.rec.Skip("recovery", "inject-platform-drivers")
		return nil
	}

	sess := mount.NewSession(p.tool, media.RecoveryImage(p.ws.OSMount()), 1, p.ws.RecoveryMount(), p.logger)
	if err := p.step("recovery", 1, "mount", func() error { return sess.Open(ctx) }); err != nil {
		return err
	}
	if err := p.step("recovery", 1, "inject-platform-drivers", func() error {
		return sess.Inject(ctx, p.inv.PlatformRoot, true)
	}); err != nil {
		return err
	}
	if err := p.step("recovery", 1, "cleanup", func() error { return sess.Cleanup(ctx) }); err != nil {
		return err
	}
	if err := p.step("recovery", 1, "commit", func() error { return sess.Commit(ctx) }); err != nil {
		return err
	}
	res.InstallModified = true
	return nil
}
