// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binder

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultDevice is the standard transaction device path.
const DefaultDevice = "/dev/binder"

// DefaultTransport is the process-wide transport on DefaultDevice.
// Applications that embed the watchdog directly attach this once at
// startup; revenant-daemon builds its own Transport from
// configuration instead.
var DefaultTransport = NewTransport(DefaultDevice)

// Transport is a process-wide attach point for the transaction
// device. The first Attach probes the device and records the
// verdict; every later Attach and Available returns that recorded
// answer, so the process decides exactly once whether it has a
// revival transport.
type Transport struct {
	device    string
	probe     func(device string) error
	once      sync.Once
	available atomic.Bool
	err       error
}

func NewTransport(device string) *Transport {
	return &Transport{device: device, probe: probeDevice}
}

// Attach probes the device on first call and reports whether
// transport is available.
func (t *Transport) Attach() bool {
	t.once.Do(func() {
		t.err = t.probe(t.device)
		t.available.Store(t.err == nil)
	})
	return t.available.Load()
}

// Available reports the verdict recorded by Attach, false when
// Attach has not run. Safe from any goroutine.
func (t *Transport) Available() bool {
	return t.available.Load()
}

// Err returns the probe failure recorded by Attach. Only meaningful
// after Attach has returned on the same goroutine or under external
// synchronization.
func (t *Transport) Err() error {
	return t.err
}

// Device returns the device path this transport probes and opens.
func (t *Transport) Device() string {
	return t.device
}

// Open opens a fresh channel on the transport's device. Each watcher
// owns its channel; the transport itself holds nothing open.
func (t *Transport) Open() (*Channel, error) {
	return Open(t.device)
}

// probeDevice checks that the device exists and speaks the expected
// protocol, leaving nothing open behind.
func probeDevice(device string) error {
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", ErrDriverUnavailable, device, err)
	}
	defer unix.Close(fd)
	var version int32
	if err := ioctl(fd, binderVersionRequest, unsafe.Pointer(&version)); err != nil {
		return fmt.Errorf("%w: reading protocol version: %v", ErrDriverUnavailable, err)
	}
	if version != ProtocolVersion {
		return fmt.Errorf("%w: protocol version %d, want %d", ErrDriverUnavailable, version, ProtocolVersion)
	}
	return nil
}
