// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import "time"

// Actions understood by the daemon's status socket.
const (
	// ActionStatus returns the daemon's identity and the state of every
	// owner-side watch relationship it runs.
	ActionStatus = "status"

	// ActionDiagnostics returns a platform diagnostic snapshot
	// (scheduling priority, memory, privilege, process count).
	ActionDiagnostics = "diagnostics"
)

// Request is a CBOR-encoded request to the daemon's status socket.
type Request struct {
	// Action is the request type: "status" or "diagnostics".
	Action string `cbor:"action"`
}

// Response is a CBOR-encoded response from the daemon.
type Response struct {
	// OK indicates whether the request succeeded.
	OK bool `cbor:"ok"`

	// Error contains the error message if OK is false.
	Error string `cbor:"error,omitempty"`

	// Status carries the watchdog-set state for the "status" action.
	Status *SetStatus `cbor:"status,omitempty"`

	// Diagnostics carries the platform snapshot for the "diagnostics"
	// action.
	Diagnostics *Diagnostics `cbor:"diagnostics,omitempty"`
}

// SetStatus describes one daemon process and the owner-side halves of
// the watch relationships it runs. The detached watchdog halves are
// separate orphaned processes and deliberately share no memory with
// the owner, so their states are not reported here; their spawn
// outcome and PID are.
type SetStatus struct {
	// Identity is the process identity this daemon runs as ("main",
	// "assist1", ...).
	Identity string `cbor:"identity"`

	// PID is the daemon's own process ID.
	PID int `cbor:"pid"`

	// StartedAt is when the watchdog set was started.
	StartedAt time.Time `cbor:"started_at"`

	// TransportAvailable reports the cached verdict of the one-time
	// transaction-driver probe.
	TransportAvailable bool `cbor:"transport_available"`

	// HelperBinaryHash is the SHA256 hex digest of the watchdog helper
	// binary recorded at spawn time. Empty when no helper was spawned.
	HelperBinaryHash string `cbor:"helper_binary_hash,omitempty"`

	// Relationships lists the owner-side watch relationships in
	// configuration order.
	Relationships []RelationshipStatus `cbor:"relationships"`
}

// RelationshipStatus describes one owner-side watch relationship.
type RelationshipStatus struct {
	// Self and Peer are the process identities of the two sides.
	Self string `cbor:"self"`
	Peer string `cbor:"peer"`

	// State is the supervisor cycle state: "locking", "syncing",
	// "channel-open", "monitoring", "reviving", or "terminated".
	State string `cbor:"state"`

	// Since is when the relationship entered State.
	Since time.Time `cbor:"since"`

	// WatchdogPID is the process ID of the detached watchdog spawned
	// for this relationship, or 0 when the spawn failed.
	WatchdogPID int `cbor:"watchdog_pid,omitempty"`

	// LastError is the most recent error logged by this relationship's
	// supervisor, if any.
	LastError string `cbor:"last_error,omitempty"`
}

// Diagnostics is a point-in-time platform snapshot, filled from
// lib/hostinfo by the daemon.
type Diagnostics struct {
	// Nice is the daemon's scheduling priority (nice value).
	Nice int `cbor:"nice"`

	// SelfResidentBytes and SelfVirtualBytes describe the daemon's own
	// memory usage.
	SelfResidentBytes uint64 `cbor:"self_resident_bytes"`
	SelfVirtualBytes  uint64 `cbor:"self_virtual_bytes"`

	// TotalMemoryBytes and FreeMemoryBytes describe system memory.
	TotalMemoryBytes uint64 `cbor:"total_memory_bytes"`
	FreeMemoryBytes  uint64 `cbor:"free_memory_bytes"`

	// Elevated reports whether the process runs with elevated
	// privileges or a privilege-escalation path exists.
	Elevated bool `cbor:"elevated"`

	// ProcessCount is the number of live processes on the system.
	ProcessCount int `cbor:"process_count"`
}
