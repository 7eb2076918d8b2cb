// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vigil

import (
	"errors"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/revenant/binder"
	"github.com/bureau-foundation/revenant/lib/clock"
	"github.com/bureau-foundation/revenant/lib/testutil"
)

// fullCycle is the state sequence of a cycle that detects a death and
// revives its peer.
var fullCycle = []State{
	StateLocking, StateSyncing, StateChannelOpen,
	StateMonitoring, StateReviving, StateTerminated,
}

// startCall records one revival transaction issued through the mock.
type startCall struct {
	handle  uint32
	target  binder.StartTarget
	version int
}

// mockConn is a scriptable revival connection.
type mockConn struct {
	handle     uint32
	resolveErr error
	startErr   error

	mu     sync.Mutex
	starts []startCall
	closed bool
}

func (c *mockConn) Resolve() (uint32, error) {
	if c.resolveErr != nil {
		return 0, c.resolveErr
	}
	return c.handle, nil
}

func (c *mockConn) Start(handle uint32, target binder.StartTarget, version int) error {
	c.mu.Lock()
	c.starts = append(c.starts, startCall{handle: handle, target: target, version: version})
	c.mu.Unlock()
	return c.startErr
}

func (c *mockConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *mockConn) startCalls() []startCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]startCall(nil), c.starts...)
}

func (c *mockConn) wasClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// mockTransport hands out its single connection, or fails to.
type mockTransport struct {
	conn    *mockConn
	openErr error
}

func (m *mockTransport) Open() (Conn, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.conn, nil
}

// stateRecorder collects the transition sequence of one cycle.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) observe(state State) {
	r.mu.Lock()
	r.states = append(r.states, state)
	r.mu.Unlock()
}

func (r *stateRecorder) sequence() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *stateRecorder) reached(state State) bool {
	return slices.Contains(r.sequence(), state)
}

var testTarget = binder.StartTarget{Package: "com.example.app", Component: "com.example.app.KeepWorking"}

func TestSupervisorRevivesOnPeerRelease(t *testing.T) {
	root := t.TempDir()
	rel, err := NewRelationship(root, "assist1", "main")
	if err != nil {
		t.Fatalf("NewRelationship: %v", err)
	}

	// The peer holds its indicator and already left its observer, so
	// the rendezvous completes without a counterpart goroutine.
	peerMarker := NewMarkerFile(rel.PeerIndicator(), clock.Real())
	defer peerMarker.Close()
	if held, err := peerMarker.TryLock(); err != nil || !held {
		t.Fatalf("locking peer indicator: held=%v err=%v, want held", held, err)
	}
	if err := os.WriteFile(rel.PeerObserver(), nil, 0o600); err != nil {
		t.Fatalf("planting peer observer: %v", err)
	}

	conn := &mockConn{handle: 7}
	recorder := &stateRecorder{}
	terminations := 0
	sup := &Supervisor{
		Relationship: rel,
		Target:       testTarget,
		Version:      30,
		Transport:    &mockTransport{conn: conn},
		Clock:        clock.Real(),
		Logger:       testLogger(),
		terminate:    func() error { terminations++; return nil },
		observe:      recorder.observe,
	}
	done := make(chan error, 1)
	go func() { done <- sup.Run() }()

	pollUntil(t, 10*time.Second, func() bool {
		return recorder.reached(StateMonitoring)
	}, "supervisor to reach monitoring")
	if err := peerMarker.Unlock(); err != nil {
		t.Fatalf("releasing peer indicator: %v", err)
	}

	if err := testutil.RequireReceive(t, done, 5*time.Second, "cycle completion"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	calls := conn.startCalls()
	if len(calls) != 1 {
		t.Fatalf("start transactions = %d, want 1", len(calls))
	}
	if calls[0].handle != 7 || calls[0].target != testTarget || calls[0].version != 30 {
		t.Errorf("start call = %+v", calls[0])
	}
	if terminations != 1 {
		t.Errorf("terminate calls = %d, want 1", terminations)
	}
	if !conn.wasClosed() {
		t.Error("connection not closed")
	}
	if got := recorder.sequence(); !slices.Equal(got, fullCycle) {
		t.Errorf("state sequence = %v, want %v", got, fullCycle)
	}
	// The cycle swept its own observer for the next generation.
	if fileExists(rel.SelfObserver()) {
		t.Error("self observer survived the cycle")
	}
}

// A peer indicator that was never locked reads as a peer that died
// before this side came up: the cycle revives immediately.
func TestSupervisorRevivesWhenPeerAlreadyGone(t *testing.T) {
	root := t.TempDir()
	rel, err := NewRelationship(root, "assist1", "main")
	if err != nil {
		t.Fatalf("NewRelationship: %v", err)
	}
	if err := os.WriteFile(rel.PeerObserver(), nil, 0o600); err != nil {
		t.Fatalf("planting peer observer: %v", err)
	}

	conn := &mockConn{handle: 7}
	recorder := &stateRecorder{}
	terminations := 0
	sup := &Supervisor{
		Relationship: rel,
		Target:       testTarget,
		Version:      30,
		Transport:    &mockTransport{conn: conn},
		Clock:        clock.Real(),
		Logger:       testLogger(),
		terminate:    func() error { terminations++; return nil },
		observe:      recorder.observe,
	}
	if err := sup.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(conn.startCalls()) != 1 {
		t.Fatalf("start transactions = %d, want 1", len(conn.startCalls()))
	}
	if terminations != 1 {
		t.Errorf("terminate calls = %d, want 1", terminations)
	}
	if got := recorder.sequence(); !slices.Equal(got, fullCycle) {
		t.Errorf("state sequence = %v, want %v", got, fullCycle)
	}
}

// A held self indicator means another instance of this identity is
// alive. The cycle gives up after its retry budget.
func TestSupervisorAbortsWhenIndicatorHeld(t *testing.T) {
	root := t.TempDir()
	rel, err := NewRelationship(root, "assist1", "main")
	if err != nil {
		t.Fatalf("NewRelationship: %v", err)
	}
	holder := NewMarkerFile(rel.SelfIndicator(), clock.Real())
	defer holder.Close()
	if held, err := holder.TryLock(); err != nil || !held {
		t.Fatalf("holder TryLock: held=%v err=%v, want held", held, err)
	}

	fake := clock.Fake(time.Unix(0, 0))
	conn := &mockConn{handle: 7}
	recorder := &stateRecorder{}
	terminations := 0
	sup := &Supervisor{
		Relationship: rel,
		Target:       testTarget,
		Version:      30,
		Transport:    &mockTransport{conn: conn},
		Clock:        fake,
		Logger:       testLogger(),
		terminate:    func() error { terminations++; return nil },
		observe:      recorder.observe,
	}
	done := make(chan error, 1)
	go func() { done <- sup.Run() }()

	for range lockAttempts {
		fake.WaitForSleepers(1)
		fake.Advance(lockBackoff)
	}
	err = testutil.RequireReceive(t, done, 5*time.Second, "abort verdict")
	if !errors.Is(err, ErrLockAcquisition) {
		t.Fatalf("Run error = %v, want ErrLockAcquisition", err)
	}
	want := []State{StateLocking, StateTerminated}
	if got := recorder.sequence(); !slices.Equal(got, want) {
		t.Errorf("state sequence = %v, want %v", got, want)
	}
	if len(conn.startCalls()) != 0 {
		t.Errorf("start transactions = %d, want 0", len(conn.startCalls()))
	}
	if terminations != 0 {
		t.Errorf("terminate calls = %d, want 0", terminations)
	}
}

func TestSupervisorAbortsWithoutTransport(t *testing.T) {
	root := t.TempDir()
	rel, err := NewRelationship(root, "assist1", "main")
	if err != nil {
		t.Fatalf("NewRelationship: %v", err)
	}
	if err := os.WriteFile(rel.PeerObserver(), nil, 0o600); err != nil {
		t.Fatalf("planting peer observer: %v", err)
	}

	openErr := errors.New("no such device")
	recorder := &stateRecorder{}
	sup := &Supervisor{
		Relationship: rel,
		Target:       testTarget,
		Version:      30,
		Transport:    &mockTransport{openErr: openErr},
		Clock:        clock.Real(),
		Logger:       testLogger(),
		terminate:    func() error { return nil },
		observe:      recorder.observe,
	}
	if err := sup.Run(); !errors.Is(err, openErr) {
		t.Fatalf("Run error = %v, want wrapped open failure", err)
	}
	want := []State{StateLocking, StateSyncing, StateChannelOpen, StateTerminated}
	if got := recorder.sequence(); !slices.Equal(got, want) {
		t.Errorf("state sequence = %v, want %v", got, want)
	}
}

// A failed resolve disables revival but not detection: the cycle runs
// to completion and terminates its own side without ever transacting.
func TestSupervisorRunsInertWhenUnresolved(t *testing.T) {
	root := t.TempDir()
	rel, err := NewRelationship(root, "assist1", "main")
	if err != nil {
		t.Fatalf("NewRelationship: %v", err)
	}
	if err := os.WriteFile(rel.PeerObserver(), nil, 0o600); err != nil {
		t.Fatalf("planting peer observer: %v", err)
	}

	conn := &mockConn{resolveErr: errors.New("service not registered")}
	recorder := &stateRecorder{}
	terminations := 0
	sup := &Supervisor{
		Relationship: rel,
		Target:       testTarget,
		Version:      30,
		Transport:    &mockTransport{conn: conn},
		Clock:        clock.Real(),
		Logger:       testLogger(),
		terminate:    func() error { terminations++; return nil },
		observe:      recorder.observe,
	}
	if err := sup.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls := conn.startCalls(); len(calls) != 0 {
		t.Errorf("start transactions = %d, want 0 for an unresolved supervisor", len(calls))
	}
	if terminations != 1 {
		t.Errorf("terminate calls = %d, want 1", terminations)
	}
	if got := recorder.sequence(); !slices.Equal(got, fullCycle) {
		t.Errorf("state sequence = %v, want %v", got, fullCycle)
	}
}

func TestSupervisorTerminatesDespiteStartFailure(t *testing.T) {
	root := t.TempDir()
	rel, err := NewRelationship(root, "assist1", "main")
	if err != nil {
		t.Fatalf("NewRelationship: %v", err)
	}
	if err := os.WriteFile(rel.PeerObserver(), nil, 0o600); err != nil {
		t.Fatalf("planting peer observer: %v", err)
	}

	conn := &mockConn{handle: 7, startErr: errors.New("dead reply")}
	terminations := 0
	sup := &Supervisor{
		Relationship: rel,
		Target:       testTarget,
		Version:      30,
		Transport:    &mockTransport{conn: conn},
		Clock:        clock.Real(),
		Logger:       testLogger(),
		terminate:    func() error { terminations++; return nil },
	}
	if err := sup.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if terminations != 1 {
		t.Errorf("terminate calls = %d, want 1", terminations)
	}
	if !conn.wasClosed() {
		t.Error("connection not closed")
	}
}

// End to end against a real second process: the peer locks its
// indicator and joins the rendezvous, then dies. The supervisor must
// observe the death and issue exactly one revival.
func TestSupervisorDetectsPeerDeath(t *testing.T) {
	root := t.TempDir()
	child := startChild(t, "peer-half", map[string]string{
		testRootEnv: root,
		testSelfEnv: "main",
		testPeerEnv: "assist1",
	})

	rel, err := NewRelationship(root, "assist1", "main")
	if err != nil {
		t.Fatalf("NewRelationship: %v", err)
	}
	conn := &mockConn{handle: 9}
	recorder := &stateRecorder{}
	terminations := 0
	sup := &Supervisor{
		Relationship: rel,
		Target:       testTarget,
		Version:      30,
		Transport:    &mockTransport{conn: conn},
		Clock:        clock.Real(),
		Logger:       testLogger(),
		terminate:    func() error { terminations++; return nil },
		observe:      recorder.observe,
	}
	done := make(chan error, 1)
	go func() { done <- sup.Run() }()

	pollUntil(t, 10*time.Second, func() bool {
		return recorder.reached(StateMonitoring)
	}, "supervisor to reach monitoring")

	if err := child.Process.Kill(); err != nil {
		t.Fatalf("killing peer: %v", err)
	}
	if err := testutil.RequireReceive(t, done, 5*time.Second, "revival cycle"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	calls := conn.startCalls()
	if len(calls) != 1 {
		t.Fatalf("start transactions = %d, want exactly 1", len(calls))
	}
	if calls[0].handle != 9 || calls[0].target != testTarget || calls[0].version != 30 {
		t.Errorf("start call = %+v", calls[0])
	}
	if terminations != 1 {
		t.Errorf("terminate calls = %d, want 1", terminations)
	}
	if got := recorder.sequence(); !slices.Equal(got, fullCycle) {
		t.Errorf("state sequence = %v, want %v", got, fullCycle)
	}
	for _, path := range []string{rel.SelfObserver(), rel.PeerObserver()} {
		if fileExists(path) {
			t.Errorf("observer %s survived the cycle", path)
		}
	}
}
