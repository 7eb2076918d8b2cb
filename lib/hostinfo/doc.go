// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostinfo provides the platform diagnostics revenant forwards
// to owning applications: scheduling priority, a coarse memory
// snapshot, a privilege-escalation check, and the live-process count.
//
// Snapshot functions ([Memory], [ProcessCount]) are best-effort: they
// return zero values rather than errors on parse failures, since a
// diagnostic surface must never take the watchdog down with it.
// Mutating calls ([SetNice]) return errors normally.
package hostinfo
