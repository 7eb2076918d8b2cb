// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for revenant binaries.
//
// Configuration is loaded from a single YAML file specified by:
//   - REVENANT_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// One file describes one watchdog set. Every cooperating process loads
// the same file and selects its role with --identity; the pair list is
// undirected, so each process runs the pairs that name it.
package config
