// Package mount models one exclusive mount/unmount cycle of one image index
// at one mount point. A Session enforces the legal lifecycle transitions and
// delegates the actual work to the servicing tool; any tool failure moves the
// session to StatusFailed, which is terminal.
package mount

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/deploykit/winject/internal/servicing"
)

// Session is one exclusive binding of (image, index) to a mount point.
type Session struct {
	Image string
	Index int
	Dir   string

	tool   servicing.Tool
	status Status
	logger logrus.FieldLogger
}

func NewSession(tool servicing.Tool, image string, index int, dir string, logger logrus.FieldLogger) *Session {
	return &Session{
		Image:  image,
		Index:  index,
		Dir:    dir,
		tool:   tool,
		status: StatusUnmounted,
		logger: logger.WithFields(logrus.Fields{"image": image, "index": index}),
	}
}

func (s *Session) Status() Status {
	return s.status
}

func (s *Session) require(op string, allowed ...Status) error {
	for _, a := range allowed {
		if s.status == a {
			return nil
		}
	}
	return fmt.Errorf("cannot %s session for %s index %d in status %s", op, s.Image, s.Index, s.status)
}

// Open mounts the image index at the session's mount point. The mount point
// must exist and be empty.
func (s *Session) Open(ctx context.Context) error {
	if err := s.require("open", StatusUnmounted); err != nil {
		return err
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return fmt.Errorf("reading mount point %s: %w", s.Dir, err)
	}
	if len(entries) != 0 {
		return fmt.Errorf("mount point %s is not empty", s.Dir)
	}

	s.logger.Infof("mounting index %d at %s", s.Index, s.Dir)
	s.status = StatusMounting
	if err := s.tool.Mount(ctx, s.Image, s.Index, s.Dir); err != nil {
		s.status = StatusFailed
		return err
	}
	s.status = StatusMounted
	return nil
}

// Inject adds the driver packages under driverDir into the mounted tree.
// May be called repeatedly before commit.
func (s *Session) Inject(ctx context.Context, driverDir string, allowUnsigned bool) error {
	if err := s.require("inject into", StatusMounted, StatusInjected); err != nil {
		return err
	}

	s.logger.WithField("drivers", driverDir).Info("injecting drivers")
	s.status = StatusInjecting
	if err := s.tool.AddDriver(ctx, s.Dir, driverDir, true, allowUnsigned); err != nil {
		s.status = StatusFailed
		return err
	}
	s.status = StatusInjected
	return nil
}

// Cleanup removes superseded component payloads from the mounted tree.
func (s *Session) Cleanup(ctx context.Context) error {
	if err := s.require("clean up", StatusMounted, StatusInjected); err != nil {
		return err
	}

	s.logger.Info("cleaning up superseded components")
	s.status = StatusCleaning
	if err := s.tool.Cleanup(ctx, s.Dir); err != nil {
		s.status = StatusFailed
		return err
	}
	s.status = StatusInjected
	return nil
}

// Commit unmounts the session, saving accumulated changes into the image.
func (s *Session) Commit(ctx context.Context) error {
	if err := s.require("commit", StatusMounted, StatusInjected); err != nil {
		return err
	}

	s.logger.Info("committing and unmounting")
	s.status = StatusCommitting
	if err := s.tool.Unmount(ctx, s.Dir, true); err != nil {
		s.status = StatusFailed
		return err
	}
	s.status = StatusCommitted
	return nil
}

// Discard unmounts the session, dropping accumulated changes.
func (s *Session) Discard(ctx context.Context) error {
	if err := s.require("discard", StatusMounted, StatusInjected); err != nil {
		return err
	}

	s.logger.Info("discarding and unmounting")
	if err := s.tool.Unmount(ctx, s.Dir, false); err != nil {
		s.status = StatusFailed
		return err
	}
	s.status = StatusUnmounted
	return nil
}
