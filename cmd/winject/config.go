package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/deploykit/winject/internal/finalize"
)

type driversConfig struct {
	ModelDir    string `toml:"model_dir"`
	PlatformDir string `toml:"platform_dir"`
}

type sourceConfig struct {
	Dir string `toml:"dir"`
}

type workspaceConfig struct {
	Root string `toml:"root"`
}

type editionConfig struct {
	Name        string `toml:"name"`
	Interactive bool   `toml:"interactive"`
}

type toolConfig struct {
	Path string `toml:"path"`
}

type finalizeConfig struct {
	Split       bool `toml:"split"`
	SplitSizeMB int  `toml:"split_size_mb"`

	// ExportUnmodified exports and swaps the matched edition even when no
	// driver was injected. Off by default: an untouched source stays
	// untouched.
	ExportUnmodified bool `toml:"export_unmodified"`
}

type Config struct {
	Drivers   driversConfig   `toml:"drivers"`
	Source    sourceConfig    `toml:"source"`
	Workspace workspaceConfig `toml:"workspace"`
	Edition   editionConfig   `toml:"edition"`
	Tool      toolConfig      `toml:"tool"`
	Finalize  finalizeConfig  `toml:"finalize"`
}

func defaultConfig() Config {
	return Config{
		Tool: toolConfig{Path: "imgsvc"},
		Finalize: finalizeConfig{
			SplitSizeMB: finalize.DefaultSplitSizeMB,
		},
	}
}

func parseConfig(path string) (Config, error) {
	c := defaultConfig()
	_, err := toml.DecodeFile(path, &c)
	if err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) validate() error {
	required := []struct {
		value, name string
	}{
		{c.Drivers.ModelDir, "drivers.model_dir"},
		{c.Drivers.PlatformDir, "drivers.platform_dir"},
		{c.Source.Dir, "source.dir"},
		{c.Workspace.Root, "workspace.root"},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s must be set", r.name)
		}
	}
	if c.Finalize.SplitSizeMB <= 0 {
		return fmt.Errorf("finalize.split_size_mb must be positive")
	}
	return nil
}
