// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "revenant.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const validConfig = `
root_dir: /var/lib/revenant/watch
target:
  package: com.example.keepalive
  component: com.example.keepalive.CoreService
platform_version: 28
pairs:
  - [main, assist1]
  - [assist1, assist2]
`

func TestLoadFileValid(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.RootDir != "/var/lib/revenant/watch" {
		t.Errorf("RootDir = %q, want %q", cfg.RootDir, "/var/lib/revenant/watch")
	}
	if cfg.Device != "/dev/binder" {
		t.Errorf("Device = %q, want default /dev/binder", cfg.Device)
	}
	if cfg.Target.Package != "com.example.keepalive" {
		t.Errorf("Target.Package = %q, want com.example.keepalive", cfg.Target.Package)
	}
	if cfg.PlatformVersion != 28 {
		t.Errorf("PlatformVersion = %d, want 28", cfg.PlatformVersion)
	}
	if len(cfg.Pairs) != 2 {
		t.Fatalf("len(Pairs) = %d, want 2", len(cfg.Pairs))
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("LoadFile should fail for a missing file")
	}
}

func TestLoadRequiresEnvironmentVariable(t *testing.T) {
	t.Setenv("REVENANT_CONFIG", "")
	_, err := Load()
	if err == nil {
		t.Fatal("Load should fail when REVENANT_CONFIG is unset")
	}
	if !strings.Contains(err.Error(), "REVENANT_CONFIG") {
		t.Errorf("error %q should mention REVENANT_CONFIG", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	path := writeConfig(t, validConfig)
	t.Setenv("REVENANT_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Target.Component != "com.example.keepalive.CoreService" {
		t.Errorf("Target.Component = %q", cfg.Target.Component)
	}
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("HOME", "/home/watch")
	cfg, err := LoadFile(writeConfig(t, `
root_dir: ${HOME}/revenant
helper_binary: ${REVENANT_ROOT}/bin/revenant-watchdog
target:
  package: p
  component: c
platform_version: 26
pairs:
  - [a, b]
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.RootDir != "/home/watch/revenant" {
		t.Errorf("RootDir = %q, want /home/watch/revenant", cfg.RootDir)
	}
	if cfg.HelperBinary != "/home/watch/revenant/bin/revenant-watchdog" {
		t.Errorf("HelperBinary = %q, want expansion against root_dir", cfg.HelperBinary)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"missing root", func(c *Config) { c.RootDir = "" }, "root_dir"},
		{"missing device", func(c *Config) { c.Device = "" }, "device"},
		{"missing package", func(c *Config) { c.Target.Package = "" }, "target.package"},
		{"missing component", func(c *Config) { c.Target.Component = "" }, "target.component"},
		{"bad version", func(c *Config) { c.PlatformVersion = 0 }, "platform_version"},
		{"no pairs", func(c *Config) { c.Pairs = nil }, "pairs"},
		{"pair arity", func(c *Config) { c.Pairs = [][]string{{"a"}} }, "exactly two"},
		{"pair self-watch", func(c *Config) { c.Pairs = [][]string{{"a", "a"}} }, "cannot watch itself"},
		{"pair path separator", func(c *Config) { c.Pairs = [][]string{{"a", "b/c"}} }, "path separators"},
		{"identity path separator", func(c *Config) { c.Identity = "../x" }, "path separators"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := LoadFile(writeConfig(t, validConfig))
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			test.mutate(cfg)

			err = cfg.Validate()
			if err == nil {
				t.Fatal("Validate should fail")
			}
			if !strings.Contains(err.Error(), test.wantSub) {
				t.Errorf("error %q should contain %q", err, test.wantSub)
			}
		})
	}
}

func TestPairsFor(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	mainPairs := cfg.PairsFor("main")
	if len(mainPairs) != 1 {
		t.Fatalf("PairsFor(main) = %v, want one pair", mainPairs)
	}
	if mainPairs[0] != [2]string{"main", "assist1"} {
		t.Errorf("PairsFor(main)[0] = %v, want [main assist1]", mainPairs[0])
	}

	// assist1 appears in both pairs, oriented with itself first.
	assistPairs := cfg.PairsFor("assist1")
	if len(assistPairs) != 2 {
		t.Fatalf("PairsFor(assist1) = %v, want two pairs", assistPairs)
	}
	if assistPairs[0] != [2]string{"assist1", "main"} {
		t.Errorf("PairsFor(assist1)[0] = %v, want [assist1 main]", assistPairs[0])
	}
	if assistPairs[1] != [2]string{"assist1", "assist2"} {
		t.Errorf("PairsFor(assist1)[1] = %v, want [assist1 assist2]", assistPairs[1])
	}

	if stranger := cfg.PairsFor("stranger"); len(stranger) != 0 {
		t.Errorf("PairsFor(stranger) = %v, want none", stranger)
	}
}

func TestStatusSocketPath(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	got := cfg.StatusSocketPath("main")
	want := "/var/lib/revenant/watch/status_main.sock"
	if got != want {
		t.Errorf("StatusSocketPath = %q, want %q", got, want)
	}

	cfg.StatusSocket = "/tmp/custom.sock"
	if got := cfg.StatusSocketPath("main"); got != "/tmp/custom.sock" {
		t.Errorf("StatusSocketPath with override = %q, want /tmp/custom.sock", got)
	}
}

func TestResolveHelperExplicit(t *testing.T) {
	directory := t.TempDir()
	helper := filepath.Join(directory, HelperBinaryName)
	if err := os.WriteFile(helper, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := Default()
	cfg.HelperBinary = helper
	got, err := cfg.ResolveHelper()
	if err != nil {
		t.Fatalf("ResolveHelper: %v", err)
	}
	if got != helper {
		t.Errorf("ResolveHelper = %q, want %q", got, helper)
	}
}

func TestResolveHelperExplicitMissing(t *testing.T) {
	cfg := Default()
	cfg.HelperBinary = filepath.Join(t.TempDir(), "nope")
	if _, err := cfg.ResolveHelper(); err == nil {
		t.Fatal("ResolveHelper should fail for a missing explicit path")
	}
}

func TestEnsureRoot(t *testing.T) {
	cfg := Default()
	cfg.RootDir = filepath.Join(t.TempDir(), "nested", "watch")
	if err := cfg.EnsureRoot(); err != nil {
		t.Fatalf("EnsureRoot: %v", err)
	}

	info, err := os.Stat(cfg.RootDir)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Error("EnsureRoot should create a directory")
	}
	if mode := info.Mode().Perm(); mode != 0700 {
		t.Errorf("root directory mode = %o, want 0700", mode)
	}
}
