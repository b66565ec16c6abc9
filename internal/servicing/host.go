package servicing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const tailInterval = 500 * time.Millisecond

type hostTool struct {
	path   string
	logDir string
	runID  string
	seq    int
	logger logrus.FieldLogger
}

// NewHostTool returns a Tool that invokes the servicing binary at path as a
// subprocess. Process output is written to per-invocation capture files under
// logDir, named after the caller's run ID, and tailed to the logger while
// the process runs.
func NewHostTool(path, logDir, runID string, logger logrus.FieldLogger) Tool {
	return &hostTool{
		path:   path,
		logDir: logDir,
		runID:  runID,
		logger: logger,
	}
}

func (t *hostTool) Info(ctx context.Context, imageFile string) ([]ImageInfo, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, t.path, "image-info", "--json", imageFile)
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, &ToolError{Subcommand: "image-info", ExitCode: exitErr.ExitCode()}
		}
		return nil, fmt.Errorf("running servicing tool: %w", err)
	}

	var infos []ImageInfo
	if err := json.Unmarshal(stdout.Bytes(), &infos); err != nil {
		return nil, fmt.Errorf("decoding image-info output: %w\nraw output:\n%s", err, stdout.String())
	}
	return infos, nil
}

func (t *hostTool) Mount(ctx context.Context, imageFile string, index int, mountDir string) error {
	return t.run(ctx, "mount-image", imageFile, strconv.Itoa(index), mountDir)
}

func (t *hostTool) AddDriver(ctx context.Context, mountDir, driverDir string, recurse, allowUnsigned bool) error {
	args := []string{"add-driver", mountDir, driverDir}
	if recurse {
		args = append(args, "--recurse")
	}
	if allowUnsigned {
		args = append(args, "--allow-unsigned")
	}
	return t.run(ctx, args...)
}

func (t *hostTool) Cleanup(ctx context.Context, mountDir string) error {
	return t.run(ctx, "cleanup-image", mountDir)
}

func (t *hostTool) Unmount(ctx context.Context, mountDir string, commit bool) error {
	mode := "--discard"
	if commit {
		mode = "--commit"
	}
	return t.run(ctx, "unmount-image", mountDir, mode)
}

func (t *hostTool) Export(ctx context.Context, srcFile string, srcIndex int, destFile string) error {
	return t.run(ctx, "export-image", srcFile, strconv.Itoa(srcIndex), destFile)
}

func (t *hostTool) Split(ctx context.Context, imageFile, swmFile string, partSizeMB int) error {
	return t.run(ctx, "split-image", imageFile, swmFile, "--part-size", strconv.Itoa(partSizeMB))
}

// run invokes one servicing tool subcommand and blocks until it exits. The
// combined output goes to a capture file which is tail-polled to the logger
// as a progress side channel.
func (t *hostTool) run(ctx context.Context, args ...string) error {
	t.seq++
	capture := filepath.Join(t.logDir, fmt.Sprintf("%s-%03d-%s.log", t.runID, t.seq, args[0]))

	logf, err := os.Create(capture)
	if err != nil {
		return fmt.Errorf("creating capture file: %w", err)
	}
	defer logf.Close()

	cmd := exec.CommandContext(ctx, t.path, args...)
	cmd.Stdout = logf
	cmd.Stderr = logf

	logger := t.logger.WithField("subcommand", args[0])
	logger.Debugf("running %s %v", t.path, args)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting servicing tool: %w", err)
	}

	stop := make(chan struct{})
	tailDone := make(chan struct{})
	go func() {
		defer close(tailDone)
		tailFile(capture, stop, tailInterval, func(line string) {
			logger.Debug(line)
		})
	}()

	waitErr := cmd.Wait()
	close(stop)
	<-tailDone

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return &ToolError{Subcommand: args[0], ExitCode: exitErr.ExitCode(), Capture: capture}
		}
		return fmt.Errorf("running servicing tool: %w", waitErr)
	}
	return nil
}
