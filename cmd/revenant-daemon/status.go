// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/bureau-foundation/revenant/binder"
	"github.com/bureau-foundation/revenant/lib/codec"
	"github.com/bureau-foundation/revenant/lib/hostinfo"
	"github.com/bureau-foundation/revenant/lib/ipc"
	"github.com/bureau-foundation/revenant/vigil"
)

// statusServer answers local CBOR queries about the running watchdog
// set. One request per connection; every response is assembled fresh
// from the set's snapshot.
type statusServer struct {
	identity  string
	startedAt time.Time
	transport *binder.Transport
	set       *vigil.Set
	logger    *slog.Logger
}

// serve accepts connections until the listener closes.
func (s *statusServer) serve(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			s.logger.Error("status socket accept", "error", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

// handleConnection processes a single request/response cycle.
func (s *statusServer) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(30 * time.Second))

	decoder := codec.NewDecoder(conn)
	encoder := codec.NewEncoder(conn)

	var request ipc.Request
	if err := decoder.Decode(&request); err != nil {
		s.logger.Error("decoding status request", "error", err)
		if err := encoder.Encode(ipc.Response{OK: false, Error: "invalid request"}); err != nil {
			s.logger.Error("encoding error response", "error", err)
		}
		return
	}

	if err := encoder.Encode(s.respond(&request)); err != nil {
		s.logger.Error("encoding status response", "error", err, "action", request.Action)
	}
}

func (s *statusServer) respond(request *ipc.Request) ipc.Response {
	switch request.Action {
	case ipc.ActionStatus:
		status := s.buildStatus()
		return ipc.Response{OK: true, Status: &status}
	case ipc.ActionDiagnostics:
		diagnostics := s.buildDiagnostics()
		return ipc.Response{OK: true, Diagnostics: &diagnostics}
	}
	return ipc.Response{OK: false, Error: fmt.Sprintf("unknown action %q", request.Action)}
}

func (s *statusServer) buildStatus() ipc.SetStatus {
	status := ipc.SetStatus{
		Identity:           s.identity,
		PID:                os.Getpid(),
		StartedAt:          s.startedAt,
		TransportAvailable: s.transport.Available(),
		HelperBinaryHash:   s.set.Spawner.HelperDigest(),
	}
	for _, snapshot := range s.set.Snapshot() {
		status.Relationships = append(status.Relationships, ipc.RelationshipStatus{
			Self:        snapshot.Self,
			Peer:        snapshot.Peer,
			State:       snapshot.State.String(),
			Since:       snapshot.Since,
			WatchdogPID: snapshot.WatcherPID,
			LastError:   snapshot.LastError,
		})
	}
	return status
}

func (s *statusServer) buildDiagnostics() ipc.Diagnostics {
	diagnostics := ipc.Diagnostics{
		Elevated:     hostinfo.Elevated(),
		ProcessCount: hostinfo.ProcessCount(),
	}
	if nice, err := hostinfo.Nice(0); err == nil {
		diagnostics.Nice = nice
	}
	memory := hostinfo.Memory()
	diagnostics.SelfResidentBytes = memory.SelfResidentBytes
	diagnostics.SelfVirtualBytes = memory.SelfVirtualBytes
	diagnostics.TotalMemoryBytes = memory.TotalBytes
	diagnostics.FreeMemoryBytes = memory.FreeBytes
	return diagnostics
}
