// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	// ErrDriverUnavailable marks every failure to reach or prepare the
	// transaction device. A process that sees it has no revival
	// transport and runs inert.
	ErrDriverUnavailable = errors.New("binder: driver unavailable")

	// ErrTransaction marks failures on an established channel: driver
	// rejections, dead targets, remote error status.
	ErrTransaction = errors.New("binder: transaction failed")
)

// driver is the seam between the transaction loop and the kernel.
// The real implementation wraps BINDER_WRITE_READ and the mapped
// receive region; tests script one in memory.
type driver interface {
	// writeRead runs one exchange: submit as much of outgoing as the
	// kernel accepts and, when wantRead is set, collect pending return
	// commands. incoming is valid until the next call.
	writeRead(outgoing []byte, wantRead bool) (consumed int, incoming []byte, err error)

	// buffer resolves a payload address announced in a reply to the
	// bytes it covers.
	buffer(address, size uint64) ([]byte, error)

	close() error
}

// Channel is one open conduit to the transaction device: the
// descriptor, its receive mapping, and the set of reply buffers the
// kernel has lent out and not yet been given back. Channels are not
// safe for concurrent use.
type Channel struct {
	driver  driver
	pending map[uint64]struct{}
}

func newChannel(d driver) *Channel {
	return &Channel{driver: d, pending: make(map[uint64]struct{})}
}

// Open prepares a channel on the named device: open it, verify the
// protocol version, cap the driver thread pool, and map the receive
// region. Every failure wraps ErrDriverUnavailable.
func Open(device string) (*Channel, error) {
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrDriverUnavailable, device, err)
	}
	var version int32
	if err := ioctl(fd, binderVersionRequest, unsafe.Pointer(&version)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: reading protocol version: %v", ErrDriverUnavailable, err)
	}
	if version != ProtocolVersion {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: protocol version %d, want %d", ErrDriverUnavailable, version, ProtocolVersion)
	}
	threads := uint32(maxDriverThreads)
	if err := ioctl(fd, binderSetMaxThreadsRequest, unsafe.Pointer(&threads)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: capping driver threads: %v", ErrDriverUnavailable, err)
	}
	mapping, err := unix.Mmap(fd, 0, receiveRegionSize(), unix.PROT_READ, unix.MAP_PRIVATE|unix.MAP_NORESERVE)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: mapping receive region: %v", ErrDriverUnavailable, err)
	}
	return newChannel(&deviceDriver{fd: fd, mapping: mapping}), nil
}

// Transact sends one transaction and runs the return-command loop to
// its outcome. For a one-way transaction the driver's completion
// acknowledgement ends the call with a nil payload; otherwise the
// reply payload is copied out and the kernel buffer returned before
// Transact comes back.
func (c *Channel) Transact(handle, code uint32, p *Parcel, oneWay bool) ([]byte, error) {
	if c.driver == nil {
		return nil, fmt.Errorf("%w: channel closed", ErrTransaction)
	}
	payload := p.Bytes()
	offsets := p.objectTable()
	td := transactionData{
		target:      uint64(handle),
		code:        code,
		dataSize:    uint64(len(payload)),
		offsetsSize: uint64(len(offsets)),
	}
	if oneWay {
		td.flags = tfOneWay
	} else {
		td.flags = tfAcceptFDs
	}
	if len(payload) > 0 {
		td.dataBuffer = uint64(uintptr(unsafe.Pointer(&payload[0])))
	}
	if len(offsets) > 0 {
		td.dataOffsets = uint64(uintptr(unsafe.Pointer(&offsets[0])))
	}
	body := td.encode()
	outgoing := make([]byte, 0, 4+transactionDataSize)
	outgoing = binary.LittleEndian.AppendUint32(outgoing, bcTransaction)
	outgoing = append(outgoing, body[:]...)

	for {
		consumed, incoming, err := c.driver.writeRead(outgoing, true)
		runtime.KeepAlive(payload)
		runtime.KeepAlive(offsets)
		if err != nil {
			return nil, fmt.Errorf("%w: write_read: %v", ErrTransaction, err)
		}
		outgoing = outgoing[consumed:]

		for len(incoming) >= 4 {
			command := binary.LittleEndian.Uint32(incoming)
			incoming = incoming[4:]
			size := returnPayloadSize(command)
			if size > len(incoming) {
				return nil, fmt.Errorf("%w: truncated return command %#x", ErrTransaction, command)
			}
			commandBody := incoming[:size]
			incoming = incoming[size:]

			switch command {
			case brNoop, brSpawnLooper:
			case brTransactionComplete:
				if oneWay {
					return nil, nil
				}
			case brDeadReply:
				return nil, fmt.Errorf("%w: target died", ErrTransaction)
			case brFailedReply:
				return nil, fmt.Errorf("%w: transaction refused", ErrTransaction)
			case brError:
				status := int32(binary.LittleEndian.Uint32(commandBody))
				return nil, fmt.Errorf("%w: driver error %d", ErrTransaction, status)
			case brReply:
				return c.consumeReply(decodeTransactionData(commandBody))
			default:
				// Reference-count traffic targets local objects this
				// client never publishes; the encoded payload size
				// already advanced past it.
			}
		}
	}
}

// consumeReply copies a reply payload out of the receive region and
// hands the kernel its buffer back. A failed release leaves the
// address pending so Close can retry it.
func (c *Channel) consumeReply(td transactionData) ([]byte, error) {
	if td.dataBuffer == 0 {
		return nil, nil
	}
	c.pending[td.dataBuffer] = struct{}{}
	body, err := c.driver.buffer(td.dataBuffer, td.dataSize)
	if err != nil {
		c.releaseBuffer(td.dataBuffer)
		return nil, fmt.Errorf("%w: %v", ErrTransaction, err)
	}
	if td.flags&tfStatusCode != 0 {
		var status int32
		if len(body) >= 4 {
			status = int32(binary.LittleEndian.Uint32(body))
		}
		c.releaseBuffer(td.dataBuffer)
		if status != 0 {
			return nil, fmt.Errorf("%w: remote status %d", ErrTransaction, status)
		}
		return nil, nil
	}
	reply := make([]byte, len(body))
	copy(reply, body)
	c.releaseBuffer(td.dataBuffer)
	return reply, nil
}

// releaseBuffer returns one lent buffer to the kernel with a
// write-only exchange.
func (c *Channel) releaseBuffer(address uint64) error {
	outgoing := make([]byte, 0, 12)
	outgoing = binary.LittleEndian.AppendUint32(outgoing, bcFreeBuffer)
	outgoing = binary.LittleEndian.AppendUint64(outgoing, address)
	if _, _, err := c.driver.writeRead(outgoing, false); err != nil {
		return err
	}
	delete(c.pending, address)
	return nil
}

// Close gives back any reply buffers still owed to the kernel and
// closes the device. A closed channel rejects further transactions.
func (c *Channel) Close() error {
	if c.driver == nil {
		return nil
	}
	for address := range c.pending {
		c.releaseBuffer(address)
	}
	err := c.driver.close()
	c.driver = nil
	return err
}

// deviceDriver is the kernel-backed driver: a descriptor on the
// character device plus the read-only receive mapping the driver
// places reply payloads in.
type deviceDriver struct {
	fd      int
	mapping []byte
	readBuf [readBufferSize]byte
}

func (d *deviceDriver) writeRead(outgoing []byte, wantRead bool) (int, []byte, error) {
	var request writeRead
	if len(outgoing) > 0 {
		request.writeSize = uint64(len(outgoing))
		request.writeBuffer = uint64(uintptr(unsafe.Pointer(&outgoing[0])))
	}
	if wantRead {
		request.readSize = uint64(len(d.readBuf))
		request.readBuffer = uint64(uintptr(unsafe.Pointer(&d.readBuf[0])))
	}
	for {
		err := ioctl(d.fd, binderWriteReadRequest, unsafe.Pointer(&request))
		runtime.KeepAlive(outgoing)
		if errors.Is(err, unix.EINTR) {
			// The kernel tracked partial progress in the consumed
			// counters; reissue the same request.
			continue
		}
		if err != nil {
			return int(request.writeConsumed), nil, err
		}
		return int(request.writeConsumed), d.readBuf[:request.readConsumed], nil
	}
}

func (d *deviceDriver) buffer(address, size uint64) ([]byte, error) {
	base := uint64(uintptr(unsafe.Pointer(&d.mapping[0])))
	if address < base || address+size > base+uint64(len(d.mapping)) {
		return nil, fmt.Errorf("reply buffer %#x+%d outside receive region", address, size)
	}
	offset := address - base
	return d.mapping[offset : offset+size], nil
}

func (d *deviceDriver) close() error {
	err := unix.Munmap(d.mapping)
	if closeErr := unix.Close(d.fd); err == nil {
		err = closeErr
	}
	return err
}
