// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vigil

import (
	"github.com/bureau-foundation/revenant/binder"
)

// Transport produces revival connections. The production
// implementation opens binder channels; tests substitute recording
// fakes so cycles run without the device.
type Transport interface {
	Open() (Conn, error)
}

// Conn is one revival connection: resolve the supervisor once, issue
// start transactions, close. Close must be safe on every exit path of
// a cycle.
type Conn interface {
	// Resolve returns the supervisor's handle, or the zero sentinel
	// with an error when the supervisor is not reachable. A cycle
	// keeps running after a failed resolve; its revival is inert.
	Resolve() (uint32, error)

	// Start issues the fire-and-forget revival transaction.
	Start(handle uint32, target binder.StartTarget, version int) error

	Close() error
}

// BinderTransport adapts the binder package to the Transport seam.
type BinderTransport struct {
	Binder *binder.Transport
}

func (t BinderTransport) Open() (Conn, error) {
	ch, err := t.Binder.Open()
	if err != nil {
		return nil, err
	}
	return binderConn{ch: ch}, nil
}

type binderConn struct {
	ch *binder.Channel
}

func (c binderConn) Resolve() (uint32, error) {
	return binder.ResolveSupervisor(c.ch)
}

func (c binderConn) Start(handle uint32, target binder.StartTarget, version int) error {
	return binder.StartService(c.ch, handle, target, version)
}

func (c binderConn) Close() error {
	return c.ch.Close()
}
