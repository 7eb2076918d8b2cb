// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vigil

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/bureau-foundation/revenant/binder"
	"github.com/bureau-foundation/revenant/lib/clock"
	"golang.org/x/sys/unix"
)

// State is a supervisor cycle's position in its lifecycle. States
// only ever advance; a cycle runs once and ends in StateTerminated.
type State int

const (
	StateLocking State = iota
	StateSyncing
	StateChannelOpen
	StateMonitoring
	StateReviving
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateLocking:
		return "locking"
	case StateSyncing:
		return "syncing"
	case StateChannelOpen:
		return "channel-open"
	case StateMonitoring:
		return "monitoring"
	case StateReviving:
		return "reviving"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Supervisor runs one relationship's watch cycle: lock the self
// indicator, rendezvous with the peer, open the revival transport,
// block on the peer's indicator, and on wake revive the peer and
// bring this side down. Configure the exported fields, then call Run
// exactly once.
type Supervisor struct {
	Relationship Relationship
	Target       binder.StartTarget
	Version      int
	Transport    Transport
	Clock        clock.Clock
	Logger       *slog.Logger

	// terminate brings this side down after a revival so the revived
	// peer can restart it fresh. Defaults to signalling the whole
	// process group.
	terminate func() error

	// observe is called on every state transition.
	observe func(State)
}

func (s *Supervisor) setState(st State) {
	if s.observe != nil {
		s.observe(st)
	}
}

// Run drives the cycle to completion. It returns nil after a revival
// (the process is expected to be dying by then) and an error when the
// cycle aborts: lock contention, a failed rendezvous, or no transport.
func (s *Supervisor) Run() error {
	log := s.Logger.With("relationship", s.Relationship.String())

	s.setState(StateLocking)
	self := NewMarkerFile(s.Relationship.SelfIndicator(), s.Clock)
	defer self.Close()
	if err := self.LockWithRetry(); err != nil {
		s.setState(StateTerminated)
		return err
	}
	log.Info("indicator locked", "path", self.Path())

	s.setState(StateSyncing)
	if err := Handshake(s.Relationship.SelfObserver(), s.Relationship.PeerObserver(), s.Clock); err != nil {
		s.setState(StateTerminated)
		return err
	}
	log.Info("rendezvous complete")

	s.setState(StateChannelOpen)
	conn, err := s.Transport.Open()
	if err != nil {
		s.setState(StateTerminated)
		return fmt.Errorf("opening revival transport: %w", err)
	}
	defer conn.Close()
	handle, err := conn.Resolve()
	if err != nil {
		// Detection still runs; the revival on wake will be inert.
		log.Warn("supervisor unresolved, revival disabled", "error", err)
		handle = 0
	}

	s.setState(StateMonitoring)
	peer := NewMarkerFile(s.Relationship.PeerIndicator(), s.Clock)
	defer peer.Close()
	log.Info("monitoring peer", "path", peer.Path())
	if err := peer.AwaitRelease(); err != nil {
		s.setState(StateTerminated)
		return fmt.Errorf("monitoring %s: %w", s.Relationship.Peer, err)
	}

	s.setState(StateReviving)
	log.Info("peer gone, reviving", "target", s.Target.String())
	if handle != 0 {
		if err := conn.Start(handle, s.Target, s.Version); err != nil {
			log.Error("revival transaction failed", "error", err)
		}
	}
	// The self observer must not survive into the next generation's
	// rendezvous. It is usually gone already, consumed by the peer.
	if err := os.Remove(s.Relationship.SelfObserver()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("removing self observer", "path", s.Relationship.SelfObserver(), "error", err)
	}
	if err := s.terminateSelf(); err != nil {
		log.Error("terminating own side", "error", err)
	}

	s.setState(StateTerminated)
	return nil
}

func (s *Supervisor) terminateSelf() error {
	if s.terminate != nil {
		return s.terminate()
	}
	return signalOwnGroup()
}

// signalOwnGroup sends SIGTERM to the caller's process group. The
// dying side's own watchdogs observe the death and restart it, which
// is how a revival becomes mutual.
func signalOwnGroup() error {
	pgid := unix.Getpgrp()
	if err := unix.Kill(-pgid, unix.SIGTERM); err != nil {
		return fmt.Errorf("signalling process group %d: %w", pgid, err)
	}
	return nil
}
