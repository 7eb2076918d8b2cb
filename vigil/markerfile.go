// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vigil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/bureau-foundation/revenant/lib/clock"
	"golang.org/x/sys/unix"
)

// ErrLockAcquisition means an indicator file stayed locked through
// the whole retry budget. Another instance of the same identity is
// alive, so this cycle must not proceed.
var ErrLockAcquisition = errors.New("vigil: indicator lock not acquired")

const (
	// lockAttempts and lockBackoff bound the initial non-blocking
	// acquisition of the self indicator.
	lockAttempts = 5
	lockBackoff  = 10 * time.Millisecond

	// pollInterval paces the handshake poll and interrupted-wait
	// resumes. Death detection itself never polls; it rides the
	// blocking lock.
	pollInterval = time.Millisecond
)

// MarkerFile is one lockable marker on disk. The file is opened
// lazily and the descriptor kept for the lifetime of the value, so a
// held lock persists exactly as long as the owning process (or an
// explicit Unlock or Close). Not safe for concurrent use; each
// watcher owns its markers.
type MarkerFile struct {
	path  string
	clock clock.Clock
	file  *os.File
}

func NewMarkerFile(path string, clk clock.Clock) *MarkerFile {
	return &MarkerFile{path: path, clock: clk}
}

func (m *MarkerFile) Path() string {
	return m.path
}

// EnsureExists creates the marker as an empty file if it is absent.
// Idempotent; an existing file, locked or not, is left untouched.
func (m *MarkerFile) EnsureExists() error {
	return m.ensureOpen()
}

func (m *MarkerFile) ensureOpen() error {
	if m.file != nil {
		return nil
	}
	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("opening marker %s: %w", m.path, err)
	}
	m.file = f
	return nil
}

// TryLock attempts a non-blocking exclusive lock. False with a nil
// error means another process holds the marker.
func (m *MarkerFile) TryLock() (bool, error) {
	if err := m.ensureOpen(); err != nil {
		return false, err
	}
	err := unix.Flock(int(m.file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, unix.EWOULDBLOCK) {
		return false, nil
	}
	return false, fmt.Errorf("locking marker %s: %w", m.path, err)
}

// LockWithRetry acquires the marker with a bounded retry loop,
// sleeping lockBackoff after each failed attempt. Exhausting the
// budget returns ErrLockAcquisition.
func (m *MarkerFile) LockWithRetry() error {
	for range lockAttempts {
		held, err := m.TryLock()
		if err != nil {
			return err
		}
		if held {
			return nil
		}
		m.clock.Sleep(lockBackoff)
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrLockAcquisition, m.path, lockAttempts)
}

// AwaitRelease blocks until the marker's current holder is gone,
// whether it died or released explicitly. A non-blocking probe runs
// first: finding the lock free means the holder is already gone and
// there is nothing to wait for. Otherwise the call parks in a
// blocking acquisition that the kernel completes when the holder's
// descriptor goes away. Either way the caller holds the lock on
// return; it is released by Close.
func (m *MarkerFile) AwaitRelease() error {
	held, err := m.TryLock()
	if err != nil {
		return err
	}
	if held {
		return nil
	}
	for {
		err := unix.Flock(int(m.file.Fd()), unix.LOCK_EX)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EINTR) {
			return fmt.Errorf("awaiting release of %s: %w", m.path, err)
		}
		m.clock.Sleep(pollInterval)
	}
}

// Unlock drops a held lock but keeps the descriptor for reuse.
func (m *MarkerFile) Unlock() error {
	if m.file == nil {
		return nil
	}
	if err := unix.Flock(int(m.file.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("unlocking marker %s: %w", m.path, err)
	}
	return nil
}

// Close releases the descriptor and with it any lock still held.
func (m *MarkerFile) Close() error {
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

// Handshake runs the two-way startup rendezvous: create the self
// observer, poll until the peer observer appears, then consume it.
// Each side deletes only its peer's file, so both files are gone once
// both sides pass. The poll has no deadline; a relationship must not
// start monitoring before its peer is ready, however long that takes.
func Handshake(selfPath, peerPath string, clk clock.Clock) error {
	f, err := os.OpenFile(selfPath, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("creating observer %s: %w", selfPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("creating observer %s: %w", selfPath, err)
	}
	for {
		_, err := os.Stat(peerPath)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("polling for observer %s: %w", peerPath, err)
		}
		clk.Sleep(pollInterval)
	}
	if err := os.Remove(peerPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("consuming observer %s: %w", peerPath, err)
	}
	return nil
}
