// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Revenant-probe is the operator's diagnostic tool. It answers the
// questions that come up when a watchdog set misbehaves: is the binder
// device usable from here, does a hand-issued start transaction go
// through, what does the host look like, and what does a running
// daemon think its relationships are doing.
//
// Subcommands:
//
//	probe    check the binder device and report the protocol version
//	start    issue a single start transaction to the platform supervisor
//	diag     print local host diagnostics
//	status   query a running revenant-daemon over its status socket
package main
