// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vigil

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/revenant/binder"
	"github.com/bureau-foundation/revenant/lib/clock"
)

// Set runs every relationship configured for one identity: the
// owning half of each cycle as a goroutine in this process, plus one
// detached watcher staged through the helper binary. The set only
// records and reports; the cycles themselves never signal back.
type Set struct {
	Root      string
	Identity  string
	Target    binder.StartTarget
	Version   int
	Device    string
	Transport Transport
	Spawner   *Spawner
	Clock     clock.Clock
	Logger    *slog.Logger

	mu   sync.Mutex
	runs []*relationshipRun
}

// relationshipRun is the set's record of one owning-half cycle.
type relationshipRun struct {
	rel        Relationship
	state      State
	since      time.Time
	watcherPID int
	lastErr    string
}

// RelationshipSnapshot is a point-in-time view of one owning-half
// cycle. The detached watcher appears only as the PID recorded at
// staging; its cycle runs out of reach of this process.
type RelationshipSnapshot struct {
	Self       string
	Peer       string
	State      State
	Since      time.Time
	WatcherPID int
	LastError  string
}

// Start launches all pairs, each given as [self, peer] with self
// first. Fire and forget: failures are logged and recorded in the
// snapshot, never returned. A pair whose watcher cannot be staged is
// aborted outright rather than run without a revival path.
func (s *Set) Start(pairs [][2]string) {
	for _, pair := range pairs {
		rel, err := NewRelationship(s.Root, pair[0], pair[1])
		if err != nil {
			s.Logger.Error("invalid relationship", "self", pair[0], "peer", pair[1], "error", err)
			s.record(Relationship{Root: s.Root, Self: pair[0], Peer: pair[1]}, StateTerminated, err)
			continue
		}
		run := s.record(rel, StateLocking, nil)

		pid, err := s.Spawner.Spawn(rel, s.Target, s.Version, s.Device)
		if err != nil {
			s.Logger.Error("staging watcher", "relationship", rel.String(), "error", err)
			s.note(run, StateTerminated, err)
			continue
		}
		s.mu.Lock()
		run.watcherPID = pid
		s.mu.Unlock()

		sup := &Supervisor{
			Relationship: rel,
			Target:       s.Target,
			Version:      s.Version,
			Transport:    s.Transport,
			Clock:        s.Clock,
			Logger:       s.Logger,
			observe:      func(st State) { s.note(run, st, nil) },
		}
		go func() {
			if err := sup.Run(); err != nil {
				s.Logger.Error("watch cycle aborted", "relationship", sup.Relationship.String(), "error", err)
				s.note(run, StateTerminated, err)
			}
		}()
	}
}

func (s *Set) record(rel Relationship, st State, err error) *relationshipRun {
	run := &relationshipRun{rel: rel, state: st, since: s.Clock.Now()}
	if err != nil {
		run.lastErr = err.Error()
	}
	s.mu.Lock()
	s.runs = append(s.runs, run)
	s.mu.Unlock()
	return run
}

func (s *Set) note(run *relationshipRun, st State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.state != st {
		run.state = st
		run.since = s.Clock.Now()
	}
	if err != nil {
		run.lastErr = err.Error()
	}
}

// Snapshot reports every cycle the set has started, in launch order.
func (s *Set) Snapshot() []RelationshipSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RelationshipSnapshot, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, RelationshipSnapshot{
			Self:       run.rel.Self,
			Peer:       run.rel.Peer,
			State:      run.state,
			Since:      run.since,
			WatcherPID: run.watcherPID,
			LastError:  run.lastErr,
		})
	}
	return out
}
