// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash provides SHA256 content hashing for binary files.
//
// Revenant pins the watchdog helper binary by content: when the owner
// process spawns a detached watchdog, it records the SHA256 of the
// helper it launched, and the status surface reports that digest so an
// operator can confirm every watchdog in a set came from the same
// build. Comparing digests rather than paths survives binaries being
// re-installed at the same location.
//
// The API surface is two functions:
//
//   - [HashFile] -- streams a file through SHA256, returning a [32]byte
//     digest with constant memory usage regardless of file size
//   - [FormatDigest] -- converts a [32]byte digest to its canonical
//     hex-encoded string representation, used in status responses and
//     log output
//
// This package has no dependencies on other revenant packages.
package binhash
