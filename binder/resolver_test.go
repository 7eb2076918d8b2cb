// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binder

import (
	"errors"
	"testing"
)

func TestResolveSupervisor(t *testing.T) {
	const token = 0x5000
	d := newFakeDriver()
	d.lend(token, flatHandleBytes(typeHandle, 3))
	d.script(
		retCmd(brTransactionComplete),
		replyCmd(transactionData{dataBuffer: token, dataSize: flatObjectSize}),
	)
	ch := newChannel(d)

	handle, err := ResolveSupervisor(ch)
	if err != nil {
		t.Fatalf("ResolveSupervisor: %v", err)
	}
	if handle != 3 {
		t.Errorf("handle = %d, want 3", handle)
	}

	// The lookup goes to the context manager with its descriptor and
	// the supervisor's registered name.
	sent := d.sent[0]
	if sent.handle != contextManagerHandle || sent.code != checkServiceTransaction {
		t.Errorf("sent handle/code = %d/%d, want %d/%d",
			sent.handle, sent.code, contextManagerHandle, checkServiceTransaction)
	}
	r := &parcelReader{t: t, data: sent.payload}
	r.expectInt32("strict mode word", 0x400000)
	r.expectString16("interface descriptor", serviceManagerInterface)
	r.expectString16("service name", SupervisorService)
	r.expectExhausted()
}

func TestResolveSupervisorNotRegistered(t *testing.T) {
	d := newFakeDriver()
	d.script(retCmd(brTransactionComplete), replyCmd(transactionData{}))
	ch := newChannel(d)

	handle, err := ResolveSupervisor(ch)
	if err == nil {
		t.Fatal("ResolveSupervisor: want error for unregistered service")
	}
	if handle != 0 {
		t.Errorf("handle = %d, want the zero sentinel", handle)
	}
}

func TestResolveSupervisorTransportFailure(t *testing.T) {
	d := newFakeDriver()
	d.script(retCmd(brDeadReply))
	ch := newChannel(d)

	_, err := ResolveSupervisor(ch)
	if !errors.Is(err, ErrTransaction) {
		t.Errorf("ResolveSupervisor: got %v, want ErrTransaction", err)
	}
}
