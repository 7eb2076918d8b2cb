// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Revenant-daemon runs the owner side of a watchdog set. It loads the
// shared configuration, attaches the transaction transport, stages a
// detached watchdog for every relationship naming its identity, runs
// the owning half of each watch cycle in-process, and serves a local
// CBOR status socket for operator tooling. It blocks until SIGTERM or
// SIGINT; the detached watchdogs outlive it on purpose.
package main
