// Package config loads msync's configuration: one or more accounts,
// each pairing an IMAP side with a local maildir side, plus the sync
// directory holding their cache databases and lock file (id-maps live
// inside each maildir folder).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const (
	// maxWorkers is the largest Workers value Load accepts from the
	// config file; larger values, like non-positive ones, fall back to
	// defaultWorkers. The --workers CLI value is not checked against it.
	maxWorkers = 16
	// defaultWorkers is used when an account does not set Workers.
	defaultWorkers = 4
)

// Credentials holds the IMAP side's connection data for one account.
type Credentials struct {
	Server string `json:"server" yaml:"server"`
	User   string `json:"user"   yaml:"user"`
	Pass   string `json:"pass"   yaml:"pass"`
	TLS    bool   `json:"tls"    yaml:"tls"`
}

// SyncAccount is one {local_cache, local, remote_cache, remote}
// quadruple the reconciler runs against.
type SyncAccount struct {
	Name        string      `json:"name"     yaml:"name"`
	Enabled     bool        `json:"enabled"  yaml:"enabled"`
	Remote      Credentials `json:"remote"   yaml:"remote"`
	MaildirRoot string      `json:"maildir"  yaml:"maildir"`  // local side, root of per-folder maildirs
	SyncDir     string      `json:"sync_dir" yaml:"sync_dir"` // cache DBs, lock file
	Workers     int         `json:"workers"  yaml:"workers"`
	DryRun      bool        `json:"-"        yaml:"-"` // CLI-only, never persisted
}

// Config is the full set of accounts msync knows about.
type Config struct {
	Accounts []SyncAccount `json:"accounts" yaml:"accounts"`
}

// Load reads the config file at path, detecting JSON vs YAML by
// extension, and validates every enabled account.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path for %q: %w", path, err)
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file %q does not exist", abs)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", abs, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(abs)); ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("invalid JSON in %q: %w", abs, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML in %q: %w", abs, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q; supported: .json, .yaml, .yml", ext)
	}

	for i := range cfg.Accounts {
		if cfg.Accounts[i].Workers <= 0 || cfg.Accounts[i].Workers > maxWorkers {
			cfg.Accounts[i].Workers = defaultWorkers
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Accounts))
	for _, a := range c.Accounts {
		if a.Name == "" {
			return fmt.Errorf("account with empty name")
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate account name %q", a.Name)
		}
		seen[a.Name] = true

		if !a.Enabled {
			continue
		}
		if a.Remote.Server == "" {
			return fmt.Errorf("account %q: remote.server is required", a.Name)
		}
		if a.Remote.User == "" {
			return fmt.Errorf("account %q: remote.user is required", a.Name)
		}
		if a.MaildirRoot == "" {
			return fmt.Errorf("account %q: maildir is required", a.Name)
		}
		if a.SyncDir == "" {
			return fmt.Errorf("account %q: sync_dir is required", a.Name)
		}
	}
	return nil
}

// Account looks up one account by name.
func (c *Config) Account(name string) (*SyncAccount, error) {
	for i := range c.Accounts {
		if c.Accounts[i].Name == name {
			return &c.Accounts[i], nil
		}
	}
	return nil, fmt.Errorf("unknown account %q", name)
}

// ApplyCLI overlays CLI-provided flags the config file does not carry.
func ApplyCLI(a *SyncAccount, ctx *cli.Context) {
	if w := ctx.Int("workers"); w > 0 {
		a.Workers = w
	}
	a.DryRun = ctx.Bool("dry-run")
}
