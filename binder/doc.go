// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package binder speaks the Android binder driver protocol directly,
// without libbinder. It covers exactly the client surface a revival
// needs: open the character device, resolve the platform supervisor
// ("activity") through the context manager, and issue a one-way
// start-service transaction encoded for the detected platform
// generation.
//
// The package mirrors the kernel UAPI on 64-bit little-endian Linux.
// Parcel encoding follows the pre-Q framework layout (strict-mode
// header word, UTF-16 strings, flat object table); callers pick the
// command code and field set through the platform version tables in
// version.go.
//
// A Channel wraps one open descriptor and its mapped receive region.
// Channels are not safe for concurrent use; every watchdog owns its
// own. The driver seam below Channel exists so the transaction loop
// can be exercised against a scripted in-memory driver.
package binder
