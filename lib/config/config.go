// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Workroom components.
//
// Configuration is loaded from a single file specified by:
//   - WORKROOM_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections (development,
// production) that override base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Production is for real workspaces.
	Production Environment = "production"
)

// Config is the master configuration for a Workroom replica.
type Config struct {
	// Environment identifies the deployment type (development, production).
	Environment Environment `yaml:"environment"`

	// Workspace identifies the shared workspace this replica joins.
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Paths configures file locations for replica state.
	Paths PathsConfig `yaml:"paths"`

	// Workflow configures request-lifecycle policy.
	Workflow WorkflowConfig `yaml:"workflow"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths    *PathsConfig    `yaml:"paths,omitempty"`
	Workflow *WorkflowConfig `yaml:"workflow,omitempty"`
}

// WorkspaceConfig identifies the workspace and the local participant.
type WorkspaceConfig struct {
	// Name is the human-readable workspace name.
	Name string `yaml:"name"`

	// ID is the stable workspace identifier shared by every replica.
	ID string `yaml:"id"`

	// Replica is this replica's stable identifier. Each device joins
	// with its own replica id; updates it journals carry it.
	Replica string `yaml:"replica"`

	// DisplayName is the local participant's name as shown in chat
	// and audit entries.
	DisplayName string `yaml:"display_name"`
}

// PathsConfig configures file locations for replica state.
type PathsConfig struct {
	// Root is the base directory for replica data.
	Root string `yaml:"root"`

	// Journal is the append-only update log. Replayed on startup
	// after the snapshot.
	Journal string `yaml:"journal"`

	// Snapshot is the compacted document snapshot. Optional; an
	// absent snapshot means full journal replay.
	Snapshot string `yaml:"snapshot"`

	// Vault is the encrypted address database.
	Vault string `yaml:"vault"`

	// VaultIdentity is the age identity file protecting the vault.
	VaultIdentity string `yaml:"vault_identity"`
}

// WorkflowConfig configures request-lifecycle policy.
type WorkflowConfig struct {
	// RequireApproval routes claims through pending_approval instead
	// of straight to claimed. Default: true.
	RequireApproval bool `yaml:"require_approval"`

	// SnapshotEvery is how many journaled updates accumulate before
	// the replica writes a fresh snapshot. Zero disables automatic
	// snapshots. Default: 500.
	SnapshotEvery int `yaml:"snapshot_every"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "workroom")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:          defaultRoot,
			Journal:       filepath.Join(defaultRoot, "journal.log"),
			Snapshot:      filepath.Join(defaultRoot, "snapshot.bin"),
			Vault:         filepath.Join(defaultRoot, "vault.db"),
			VaultIdentity: filepath.Join(defaultRoot, "vault-identity.txt"),
		},
		Workflow: WorkflowConfig{
			RequireApproval: true,
			SnapshotEvery:   500,
		},
	}
}

// Load loads configuration from the WORKROOM_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if WORKROOM_CONFIG is not set, this
// fails. This ensures deterministic, auditable configuration with no hidden
// overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("WORKROOM_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("WORKROOM_CONFIG environment variable not set; " +
			"set it to the path of your workroom.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do
// not override config values - this ensures deterministic, auditable
// configuration. The only expansion performed is ${HOME} and similar path
// variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Journal != "" {
			c.Paths.Journal = overrides.Paths.Journal
		}
		if overrides.Paths.Snapshot != "" {
			c.Paths.Snapshot = overrides.Paths.Snapshot
		}
		if overrides.Paths.Vault != "" {
			c.Paths.Vault = overrides.Paths.Vault
		}
		if overrides.Paths.VaultIdentity != "" {
			c.Paths.VaultIdentity = overrides.Paths.VaultIdentity
		}
	}

	if overrides.Workflow != nil {
		// RequireApproval is a bool, so overrides always apply it.
		c.Workflow.RequireApproval = overrides.Workflow.RequireApproval
		if overrides.Workflow.SnapshotEvery != 0 {
			c.Workflow.SnapshotEvery = overrides.Workflow.SnapshotEvery
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"WORKROOM_ROOT": c.Paths.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["WORKROOM_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Journal = expandVars(c.Paths.Journal, vars)
	c.Paths.Snapshot = expandVars(c.Paths.Snapshot, vars)
	c.Paths.Vault = expandVars(c.Paths.Vault, vars)
	c.Paths.VaultIdentity = expandVars(c.Paths.VaultIdentity, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Workspace.ID == "" {
		errs = append(errs, fmt.Errorf("workspace.id is required"))
	}
	if c.Workspace.Replica == "" {
		errs = append(errs, fmt.Errorf("workspace.replica is required"))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Journal == "" {
		errs = append(errs, fmt.Errorf("paths.journal is required"))
	}

	if c.Workflow.SnapshotEvery < 0 {
		errs = append(errs, fmt.Errorf("workflow.snapshot_every must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		filepath.Dir(c.Paths.Journal),
		filepath.Dir(c.Paths.Vault),
		filepath.Dir(c.Paths.VaultIdentity),
	}

	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
