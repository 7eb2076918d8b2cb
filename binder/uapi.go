// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binder

import (
	"encoding/binary"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Encoded ioctl requests for the binder character device on 64-bit
// Linux, precomputed from the kernel's _IO macros.
//
// Bit layout: direction(1=write, 2=read) << 30 | size << 16 |
// type('b') << 8 | nr.
const (
	// BINDER_WRITE_READ: _IOWR('b', 1, struct binder_write_read),
	// direction 3, size 48.
	binderWriteReadRequest = 0xC0306201

	// BINDER_SET_MAX_THREADS: _IOW('b', 5, __u32), direction 1, size 4.
	binderSetMaxThreadsRequest = 0x40046205

	// BINDER_VERSION: _IOWR('b', 9, struct binder_version), direction 3,
	// size 4.
	binderVersionRequest = 0xC0046209
)

// ProtocolVersion is BINDER_CURRENT_PROTOCOL_VERSION for the
// 64-bit UAPI. A device reporting anything else speaks an ABI these
// structures do not match, so Open refuses it.
const ProtocolVersion = 8

// maxDriverThreads caps the kernel-spawned looper threads for the
// process. The value matters little for a pure client that never
// joins a thread pool, but the driver expects it to be set before
// the first transaction.
const maxDriverThreads = 15

// readBufferSize is the capacity handed to the driver for each
// BINDER_WRITE_READ receive pass. Matches the libbinder per-thread
// input parcel.
const readBufferSize = 256

// receiveRegionSize is the length of the mapped receive region:
// 1 MiB minus two guard pages, the framework's conventional size.
func receiveRegionSize() int {
	return 1<<20 - 2*os.Getpagesize()
}

// Driver command protocol (userspace to kernel), _IO('c', nr).
const (
	// BC_TRANSACTION: _IOW('c', 0, struct binder_transaction_data),
	// size 64.
	bcTransaction = 0x40406300

	// BC_FREE_BUFFER: _IOW('c', 3, binder_uintptr_t), size 8.
	bcFreeBuffer = 0x40086303
)

// Driver return protocol (kernel to userspace), _IO('r', nr). The
// payload size encoded in bits 16..29 tells the read loop how far to
// advance past commands it does not act on.
const (
	brError               = 0x80047200 // _IOR('r', 0, __s32)
	brOK                  = 0x00007201
	brTransaction         = 0x80407202 // carries binder_transaction_data
	brReply               = 0x80407203 // carries binder_transaction_data
	brAcquireResult       = 0x80047204
	brDeadReply           = 0x00007205
	brTransactionComplete = 0x00007206
	brIncRefs             = 0x80107207 // binder_ptr_cookie payloads
	brAcquire             = 0x80107208
	brRelease             = 0x80107209
	brDecRefs             = 0x8010720A
	brNoop                = 0x0000720C
	brSpawnLooper         = 0x0000720D
	brDeadBinder          = 0x8008720F
	brFailedReply         = 0x00007211
)

// returnPayloadSize extracts the payload length encoded in a return
// command, letting the loop skip commands it ignores.
func returnPayloadSize(command uint32) int {
	return int(command >> 16 & 0x3FFF)
}

// Transaction flags.
const (
	// tfOneWay marks an asynchronous transaction: the driver answers
	// with BR_TRANSACTION_COMPLETE only, never a reply.
	tfOneWay = 0x01

	// tfStatusCode marks a reply whose buffer is a single status word
	// rather than a parcel.
	tfStatusCode = 0x08

	// tfAcceptFDs permits the reply to carry file descriptors. The
	// framework's client sets it on every two-way call, so servers
	// may refuse transactions without it.
	tfAcceptFDs = 0x10
)

// Flat object type tags, B_PACK_CHARS of the marker characters with
// the large-object suffix 0x85.
const (
	typeBinder     = 0x73622A85 // "sb*": strong local object
	typeHandle     = 0x73682A85 // "sh*": strong remote reference
	typeWeakHandle = 0x77682A85 // "wh*": weak remote reference
)

// flatObjectSize is sizeof(struct flat_binder_object) on 64-bit:
// 4-byte type, 4-byte flags, 8-byte object union, 8-byte cookie.
const flatObjectSize = 24

// writeRead mirrors struct binder_write_read (48 bytes). The buffer
// fields hold userspace addresses; the kernel advances the consumed
// counters as it drains and fills them.
type writeRead struct {
	writeSize     uint64
	writeConsumed uint64
	writeBuffer   uint64
	readSize      uint64
	readConsumed  uint64
	readBuffer    uint64
}

// transactionData mirrors struct binder_transaction_data (64 bytes)
// with the target and data unions flattened to their 64-bit widths.
// For an outbound client transaction only the low word of target is
// meaningful (the remote handle).
type transactionData struct {
	target      uint64
	cookie      uint64
	code        uint32
	flags       uint32
	senderPID   int32
	senderEUID  uint32
	dataSize    uint64
	offsetsSize uint64
	dataBuffer  uint64
	dataOffsets uint64
}

// transactionDataSize is the wire size of transactionData.
const transactionDataSize = 64

func (td *transactionData) encode() [transactionDataSize]byte {
	var b [transactionDataSize]byte
	binary.LittleEndian.PutUint64(b[0:], td.target)
	binary.LittleEndian.PutUint64(b[8:], td.cookie)
	binary.LittleEndian.PutUint32(b[16:], td.code)
	binary.LittleEndian.PutUint32(b[20:], td.flags)
	binary.LittleEndian.PutUint32(b[24:], uint32(td.senderPID))
	binary.LittleEndian.PutUint32(b[28:], td.senderEUID)
	binary.LittleEndian.PutUint64(b[32:], td.dataSize)
	binary.LittleEndian.PutUint64(b[40:], td.offsetsSize)
	binary.LittleEndian.PutUint64(b[48:], td.dataBuffer)
	binary.LittleEndian.PutUint64(b[56:], td.dataOffsets)
	return b
}

func decodeTransactionData(b []byte) transactionData {
	return transactionData{
		target:      binary.LittleEndian.Uint64(b[0:]),
		cookie:      binary.LittleEndian.Uint64(b[8:]),
		code:        binary.LittleEndian.Uint32(b[16:]),
		flags:       binary.LittleEndian.Uint32(b[20:]),
		senderPID:   int32(binary.LittleEndian.Uint32(b[24:])),
		senderEUID:  binary.LittleEndian.Uint32(b[28:]),
		dataSize:    binary.LittleEndian.Uint64(b[32:]),
		offsetsSize: binary.LittleEndian.Uint64(b[40:]),
		dataBuffer:  binary.LittleEndian.Uint64(b[48:]),
		dataOffsets: binary.LittleEndian.Uint64(b[56:]),
	}
}

func ioctl(fd int, request uint64, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(request), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
