// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for revenant
// binaries. These functions centralize the raw I/O patterns that exist
// before or after the structured logger:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized (pre-logger).
//   - Process exit after an unrecoverable error in main().
//   - Construction of the standard JSON logger used by every long-lived
//     process in the system.
//
// All other raw I/O in service binaries should be replaced with calls
// to this package or with structured log records.
package process
