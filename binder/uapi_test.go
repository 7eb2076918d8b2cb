// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binder

import (
	"encoding/binary"
	"testing"
)

// encodeIoc rebuilds a kernel _IOC number from its parts so the
// precomputed constants stay pinned to the documented layout.
func encodeIoc(dir, size, group, nr uint32) uint32 {
	return dir<<30 | size<<16 | group<<8 | nr
}

func TestRequestConstants(t *testing.T) {
	tests := []struct {
		name string
		got  uint32
		dir  uint32
		size uint32
		nr   uint32
	}{
		{"BINDER_WRITE_READ", binderWriteReadRequest, 3, 48, 1},
		{"BINDER_SET_MAX_THREADS", binderSetMaxThreadsRequest, 1, 4, 5},
		{"BINDER_VERSION", binderVersionRequest, 3, 4, 9},
	}
	for _, tt := range tests {
		want := encodeIoc(tt.dir, tt.size, 'b', tt.nr)
		if tt.got != want {
			t.Errorf("%s = %#x, want %#x", tt.name, tt.got, want)
		}
	}
}

func TestCommandConstants(t *testing.T) {
	if got, want := uint32(bcTransaction), encodeIoc(1, transactionDataSize, 'c', 0); got != want {
		t.Errorf("BC_TRANSACTION = %#x, want %#x", got, want)
	}
	if got, want := uint32(bcFreeBuffer), encodeIoc(1, 8, 'c', 3); got != want {
		t.Errorf("BC_FREE_BUFFER = %#x, want %#x", got, want)
	}
}

func TestReturnConstants(t *testing.T) {
	tests := []struct {
		name string
		got  uint32
		dir  uint32
		size uint32
		nr   uint32
	}{
		{"BR_ERROR", brError, 2, 4, 0},
		{"BR_TRANSACTION", brTransaction, 2, transactionDataSize, 2},
		{"BR_REPLY", brReply, 2, transactionDataSize, 3},
		{"BR_DEAD_REPLY", brDeadReply, 0, 0, 5},
		{"BR_TRANSACTION_COMPLETE", brTransactionComplete, 0, 0, 6},
		{"BR_NOOP", brNoop, 0, 0, 12},
		{"BR_SPAWN_LOOPER", brSpawnLooper, 0, 0, 13},
		{"BR_FAILED_REPLY", brFailedReply, 0, 0, 17},
	}
	for _, tt := range tests {
		want := encodeIoc(tt.dir, tt.size, 'r', tt.nr)
		if tt.got != want {
			t.Errorf("%s = %#x, want %#x", tt.name, tt.got, want)
		}
	}
}

func TestReturnPayloadSize(t *testing.T) {
	if got := returnPayloadSize(brReply); got != transactionDataSize {
		t.Errorf("payload size of BR_REPLY = %d, want %d", got, transactionDataSize)
	}
	if got := returnPayloadSize(brNoop); got != 0 {
		t.Errorf("payload size of BR_NOOP = %d, want 0", got)
	}
	if got := returnPayloadSize(brIncRefs); got != 16 {
		t.Errorf("payload size of BR_INCREFS = %d, want 16", got)
	}
}

func TestTransactionDataRoundTrip(t *testing.T) {
	td := transactionData{
		target:      42,
		cookie:      7,
		code:        34,
		flags:       tfOneWay,
		senderPID:   -1,
		senderEUID:  1000,
		dataSize:    128,
		offsetsSize: 8,
		dataBuffer:  0xDEADBEEF,
		dataOffsets: 0xFEEDFACE,
	}
	b := td.encode()
	if got := decodeTransactionData(b[:]); got != td {
		t.Errorf("decode(encode(td)) = %+v, want %+v", got, td)
	}
	// Spot-check field placement against the kernel struct layout.
	if got := binary.LittleEndian.Uint64(b[0:]); got != 42 {
		t.Errorf("target at offset 0 = %d, want 42", got)
	}
	if got := binary.LittleEndian.Uint32(b[16:]); got != 34 {
		t.Errorf("code at offset 16 = %d, want 34", got)
	}
	if got := binary.LittleEndian.Uint64(b[48:]); got != 0xDEADBEEF {
		t.Errorf("data buffer at offset 48 = %#x, want 0xdeadbeef", got)
	}
}

func TestReceiveRegionSize(t *testing.T) {
	size := receiveRegionSize()
	if size <= 0 || size >= 1<<20 {
		t.Errorf("receiveRegionSize() = %d, want within (0, 1MiB)", size)
	}
}
