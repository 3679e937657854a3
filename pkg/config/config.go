// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

const (
	DefaultConfigFilename    = "deploy.yaml"
	DefaultInventoryFilename = "targets.yaml"
	DefaultStateDBFilename   = "deploy.db"

	DefaultConcurrency    = 4
	DefaultStepTimeoutSec = 300
)

// Config describes one deployable content tree: where a release is assembled
// from, where its archive lands, and the remote layout it deploys to.
type Config struct {
	// SourceDir is the local checkout releases are built from.
	SourceDir string `json:"source_dir"`
	// ArchiveDir is the local directory release archives are written to.
	ArchiveDir string `json:"archive_dir"`
	// DeployDir is the remote root; release R extracts to DeployDir/releases/R.
	DeployDir string `json:"deploy_dir"`
	// CurrentLink is the remote symlink flipped to the active release.
	CurrentLink string `json:"current_link"`
	// StateDB is the path of the execution ledger database.
	StateDB string `json:"state_db,omitempty"`
	// Inventory is the path of the target inventory file.
	Inventory string `json:"inventory,omitempty"`
	// Manifests list files naming version-controlled paths, one per line,
	// relative to SourceDir.
	Manifests []string `json:"manifests,omitempty"`
	// Externals list vendored directories included wholesale, relative to
	// SourceDir.
	Externals []string `json:"externals,omitempty"`
	// Packs are the resource names passed to the registration command.
	Packs []string `json:"packs,omitempty"`
	// RegisterCmd is the registration executable plus leading arguments.
	RegisterCmd []string `json:"register_cmd,omitempty"`

	Concurrency    int `json:"concurrency,omitempty"`
	StepTimeoutSec int `json:"step_timeout_sec,omitempty"`
}

// Load reads and validates the config file, filling in defaults derived from
// the file's own location.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read file failed: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml failed: %w", err)
	}

	cfg.applyDefaults(configPath)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults(configPath string) {
	if c.StateDB == "" && c.ArchiveDir != "" {
		c.StateDB = filepath.Join(c.ArchiveDir, DefaultStateDBFilename)
	}
	if c.Inventory == "" {
		c.Inventory = filepath.Join(filepath.Dir(configPath), DefaultInventoryFilename)
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.StepTimeoutSec == 0 {
		c.StepTimeoutSec = DefaultStepTimeoutSec
	}
}

func (c *Config) validate() error {
	for _, f := range []struct{ name, value string }{
		{"source_dir", c.SourceDir},
		{"archive_dir", c.ArchiveDir},
		{"deploy_dir", c.DeployDir},
		{"current_link", c.CurrentLink},
	} {
		if f.value == "" {
			return fmt.Errorf("config field %s is required", f.name)
		}
	}
	if len(c.Packs) > 0 && len(c.RegisterCmd) == 0 {
		return fmt.Errorf("config field register_cmd is required when packs are set")
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("config field concurrency must be positive")
	}
	if c.StepTimeoutSec < 0 {
		return fmt.Errorf("config field step_timeout_sec must be positive")
	}
	return nil
}

// ReleaseDir returns the remote directory a release extracts into. Remote
// paths always use forward slashes.
func (c *Config) ReleaseDir(releaseID string) string {
	return path.Join(c.DeployDir, "releases", releaseID)
}
