package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deploykit/winject/internal/driverrepo"
	"github.com/deploykit/winject/internal/edition"
	"github.com/deploykit/winject/internal/finalize"
	"github.com/deploykit/winject/internal/media"
	"github.com/deploykit/winject/internal/pipeline"
	"github.com/deploykit/winject/internal/preflight"
	"github.com/deploykit/winject/internal/report"
	"github.com/deploykit/winject/internal/servicing"
	"github.com/deploykit/winject/internal/workspace"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to a TOML configuration file")
	var modelDrivers string
	flag.StringVar(&modelDrivers, "drivers", "", "Directory holding the device-model driver packages")
	var platformDrivers string
	flag.StringVar(&platformDrivers, "pe-drivers", "", "Directory holding the platform/preboot driver packages")
	var sourceDir string
	flag.StringVar(&sourceDir, "source", "", "Installation source directory (must contain sources/install.wim)")
	var workspaceRoot string
	flag.StringVar(&workspaceRoot, "workspace", "", "Workspace directory for mount points and logs")
	var editionName string
	flag.StringVar(&editionName, "edition", "", "Target edition name or glob pattern (default: "+edition.DefaultPattern+")")
	var interactive bool
	flag.BoolVar(&interactive, "interactive", false, "Choose the target edition interactively by index")
	var split bool
	flag.BoolVar(&split, "split", false, "Split the final image into FAT32-sized parts")
	var toolPath string
	flag.StringVar(&toolPath, "tool", "", "Path to the image servicing tool binary")
	var verbose bool
	flag.BoolVar(&verbose, "verbose", false, "Log servicing tool output")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	config := defaultConfig()
	if configPath != "" {
		var err error
		config, err = parseConfig(configPath)
		if err != nil {
			logrus.Errorf("Could not load config file '%s': %v", configPath, err)
			os.Exit(2)
		}
	}

	// Flags override the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "drivers":
			config.Drivers.ModelDir = modelDrivers
		case "pe-drivers":
			config.Drivers.PlatformDir = platformDrivers
		case "source":
			config.Source.Dir = sourceDir
		case "workspace":
			config.Workspace.Root = workspaceRoot
		case "edition":
			config.Edition.Name = editionName
		case "interactive":
			config.Edition.Interactive = interactive
		case "split":
			config.Finalize.Split = split
		case "tool":
			config.Tool.Path = toolPath
		}
	})

	if err := config.validate(); err != nil {
		logrus.Errorf("Invalid configuration: %v", err)
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(config))
}

// run wires up the real collaborators for one servicing run. A single run ID
// names both the tool output captures and the run report so an operator can
// correlate them.
func run(config Config) int {
	logger := logrus.StandardLogger()

	ws := &workspace.Workspace{Root: config.Workspace.Root}
	if err := ws.Setup(); err != nil {
		logger.Errorf("Workspace setup failed: %v", err)
		return 1
	}

	runID := uuid.New().String()
	tool := servicing.NewHostTool(config.Tool.Path, ws.LogDir(), runID, logger)
	rec := report.NewRecorder(ws.LogDir(), runID)

	return execute(context.Background(), config, ws, tool, rec, resolverFor(config), logger)
}

// execute performs the servicing run and returns the process exit code: 0 on
// success and on the deliberate "no drivers found" stop, 1 on any terminal
// failure.
func execute(ctx context.Context, config Config, ws *workspace.Workspace, tool servicing.Tool, rec *report.Recorder, resolver edition.Resolver, logger logrus.FieldLogger) int {
	src := media.Source{Dir: config.Source.Dir}
	err := preflight.Validate(preflight.Params{
		ModelDriverDir:    config.Drivers.ModelDir,
		PlatformDriverDir: config.Drivers.PlatformDir,
		Source:            src,
		OSMountPoint:      ws.OSMount(),
		RecoveryMount:     ws.RecoveryMount(),
	})
	if err != nil {
		logger.Errorf("Preflight validation failed: %v", err)
		return 1
	}

	inv, err := driverrepo.Scan(config.Drivers.ModelDir, config.Drivers.PlatformDir)
	if err != nil {
		logger.Errorf("Driver inventory failed: %v", err)
		return 1
	}
	logger.Infof("Found %d model driver package(s), %d platform driver package(s)", inv.ModelCount, inv.PlatformCount)

	// The workspace must be empty again for the next run, whatever happens
	// below. Cleanup failures are logged, never escalated.
	defer ws.Clean(logger)

	finish := func(result string) {
		if err := rec.Finish(result); err != nil {
			logger.Warnf("Failed to write run report: %v", err)
		}
	}

	if inv.Empty() && !config.Finalize.ExportUnmodified {
		logger.Warn("No drivers found, stopping without touching the installation media")
		finish("no-drivers")
		return 0
	}

	editions, err := edition.Enumerate(ctx, tool, src.InstallImage())
	if err != nil {
		logger.Errorf("Edition enumeration failed: %v", err)
		finish("failed")
		return 1
	}
	ed, err := resolver.Resolve(editions)
	if err != nil {
		logger.Errorf("Edition resolution failed: %v", err)
		finish("failed")
		return 1
	}
	logger.Infof("Selected edition %q (index %d)", ed.Name, ed.Index)

	installModified := false
	if !inv.Empty() {
		p := pipeline.New(tool, ws, inv, rec, logger)
		res, err := p.Run(ctx, src, ed)
		if err != nil {
			logger.Errorf("Servicing pipeline failed: %v", err)
			finish("failed")
			return 1
		}
		installModified = res.InstallModified
	}

	if installModified || config.Finalize.ExportUnmodified {
		fin := finalize.New(tool, logger)
		opts := finalize.Options{
			Split:       config.Finalize.Split,
			SplitSizeMB: config.Finalize.SplitSizeMB,
		}
		if err := fin.Run(ctx, src, ed, opts); err != nil {
			logger.Errorf("Finalization failed: %v", err)
			finish("failed")
			return 1
		}
	}

	finish("success")
	logger.Info("Servicing run completed successfully")
	return 0
}

func resolverFor(config Config) edition.Resolver {
	switch {
	case config.Edition.Interactive:
		return &edition.InteractiveResolver{
			Choose: func(editions []edition.Edition) (int, error) {
				return promptForEdition(editions, os.Stdin, os.Stdout)
			},
		}
	case config.Edition.Name != "":
		return &edition.NameResolver{Pattern: config.Edition.Name}
	default:
		return edition.DefaultResolver()
	}
}
