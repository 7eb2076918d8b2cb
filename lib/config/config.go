// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// HelperBinaryName is the file name of the detached watchdog helper.
// Used when resolving the helper next to the running binary or on PATH.
const HelperBinaryName = "revenant-watchdog"

// Config is the configuration for one watchdog set. Every cooperating
// process in the set loads the same file.
type Config struct {
	// RootDir is the private directory holding the per-relationship
	// indicator and observer files. All cooperating processes must see
	// the same filesystem at this path.
	RootDir string `yaml:"root_dir"`

	// Device is the transaction device path. Defaults to /dev/binder.
	Device string `yaml:"device"`

	// Target identifies the work unit the platform supervisor is asked
	// to restart when a peer dies.
	Target TargetConfig `yaml:"target"`

	// PlatformVersion selects the parcel layout and start transaction
	// code for the supervisor's wire ABI.
	PlatformVersion int `yaml:"platform_version"`

	// Identity is the process identity this instance runs as. Usually
	// supplied per-process via --identity rather than in the shared
	// file.
	Identity string `yaml:"identity,omitempty"`

	// Pairs lists the watch relationships of the set as undirected
	// two-identity pairs. A process runs the pairs that name its
	// identity.
	Pairs [][]string `yaml:"pairs"`

	// HelperBinary is the path of the detached watchdog helper. Empty
	// means auto-detect: next to the running binary, then PATH.
	HelperBinary string `yaml:"helper_binary,omitempty"`

	// StatusSocket overrides the status socket path. Empty means
	// <root_dir>/status_<identity>.sock.
	StatusSocket string `yaml:"status_socket,omitempty"`
}

// TargetConfig names the work unit to revive.
type TargetConfig struct {
	// Package is the owning package identifier.
	Package string `yaml:"package"`

	// Component is the fully-qualified component class within Package.
	Component string `yaml:"component"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file. They exist to give
// optional fields sensible zero-values, not as a fallback; the config
// file is required.
func Default() *Config {
	return &Config{
		Device: "/dev/binder",
	}
}

// Load loads configuration from the REVENANT_CONFIG environment
// variable. There are no fallbacks: if REVENANT_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("REVENANT_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("REVENANT_CONFIG environment variable not set; " +
			"set it to the path of your revenant.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"REVENANT_ROOT": c.RootDir,
		"HOME":          os.Getenv("HOME"),
	}

	c.RootDir = expandVars(c.RootDir, vars)
	vars["REVENANT_ROOT"] = c.RootDir // Update for dependent paths.

	c.Device = expandVars(c.Device, vars)
	c.HelperBinary = expandVars(c.HelperBinary, vars)
	c.StatusSocket = expandVars(c.StatusSocket, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
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

// Validate checks the configuration for errors. Identity is validated
// only when set; processes that receive it via --identity validate
// after merging the flag.
func (c *Config) Validate() error {
	var errs []error

	if c.RootDir == "" {
		errs = append(errs, fmt.Errorf("root_dir is required"))
	}
	if c.Device == "" {
		errs = append(errs, fmt.Errorf("device is required"))
	}
	if c.Target.Package == "" {
		errs = append(errs, fmt.Errorf("target.package is required"))
	}
	if c.Target.Component == "" {
		errs = append(errs, fmt.Errorf("target.component is required"))
	}
	if c.PlatformVersion < 1 {
		errs = append(errs, fmt.Errorf("platform_version must be a positive integer, got %d", c.PlatformVersion))
	}
	if len(c.Pairs) == 0 {
		errs = append(errs, fmt.Errorf("pairs must list at least one relationship"))
	}
	for i, pair := range c.Pairs {
		if len(pair) != 2 {
			errs = append(errs, fmt.Errorf("pairs[%d] must name exactly two identities, got %d", i, len(pair)))
			continue
		}
		for _, identity := range pair {
			if err := validateIdentity(identity); err != nil {
				errs = append(errs, fmt.Errorf("pairs[%d]: %w", i, err))
			}
		}
		if pair[0] == pair[1] {
			errs = append(errs, fmt.Errorf("pairs[%d] names %q twice; a process cannot watch itself", i, pair[0]))
		}
	}
	if c.Identity != "" {
		if err := validateIdentity(c.Identity); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// validateIdentity rejects identities that cannot safely derive marker
// file names.
func validateIdentity(identity string) error {
	if identity == "" {
		return fmt.Errorf("identity must not be empty")
	}
	if strings.ContainsAny(identity, "/\x00") || identity == "." || identity == ".." {
		return fmt.Errorf("identity %q must not contain path separators", identity)
	}
	return nil
}

// PairsFor returns the pairs that name identity, oriented so the
// first element is identity itself.
func (c *Config) PairsFor(identity string) [][2]string {
	var oriented [][2]string
	for _, pair := range c.Pairs {
		if len(pair) != 2 {
			continue
		}
		switch identity {
		case pair[0]:
			oriented = append(oriented, [2]string{pair[0], pair[1]})
		case pair[1]:
			oriented = append(oriented, [2]string{pair[1], pair[0]})
		}
	}
	return oriented
}

// StatusSocketPath returns the status socket path for identity,
// honoring the StatusSocket override.
func (c *Config) StatusSocketPath(identity string) string {
	if c.StatusSocket != "" {
		return c.StatusSocket
	}
	return filepath.Join(c.RootDir, "status_"+identity+".sock")
}

// EnsureRoot creates the marker-file root directory if it does not
// exist. The directory is private to the owning application.
func (c *Config) EnsureRoot() error {
	if err := os.MkdirAll(c.RootDir, 0700); err != nil {
		return fmt.Errorf("creating root directory %s: %w", c.RootDir, err)
	}
	return nil
}

// ResolveHelper returns the path of the watchdog helper binary. The
// explicit HelperBinary setting wins; otherwise the helper is looked
// up next to the running binary, then on PATH.
func (c *Config) ResolveHelper() (string, error) {
	if c.HelperBinary != "" {
		if _, err := os.Stat(c.HelperBinary); err != nil {
			return "", fmt.Errorf("configured helper binary: %w", err)
		}
		return c.HelperBinary, nil
	}

	executable, err := os.Executable()
	if err == nil {
		sibling := filepath.Join(filepath.Dir(executable), HelperBinaryName)
		if _, err := os.Stat(sibling); err == nil {
			return sibling, nil
		}
	}

	path, err := exec.LookPath(HelperBinaryName)
	if err != nil {
		return "", fmt.Errorf("%s not found next to the running binary or in PATH", HelperBinaryName)
	}
	return path, nil
}
