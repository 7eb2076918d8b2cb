// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc defines the CBOR message types spoken over the revenant
// daemon's status socket. The daemon is the server; the probe CLI (and
// any other local tooling) is the client. One request per connection.
package ipc
