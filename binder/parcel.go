// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binder

import (
	"encoding/binary"
	"unicode/utf16"
)

// Parcel builds transaction payloads in the framework wire layout:
// little-endian scalars at 4-byte alignment, UTF-16 strings, and a
// side table recording the offset of every flat object so the driver
// can translate references in place.
//
// The zero value is not usable; call NewParcel.
type Parcel struct {
	data    []byte
	objects []uint64
}

func NewParcel() *Parcel {
	return &Parcel{data: make([]byte, 0, 256)}
}

// Bytes returns the accumulated payload. The slice aliases the
// parcel's buffer and is invalidated by further writes.
func (p *Parcel) Bytes() []byte {
	return p.data
}

// objectTable renders the flat-object offsets as the binder_size_t
// array the driver expects alongside the payload. It returns nil when
// the parcel holds no objects.
func (p *Parcel) objectTable() []byte {
	if len(p.objects) == 0 {
		return nil
	}
	table := make([]byte, 8*len(p.objects))
	for i, offset := range p.objects {
		binary.LittleEndian.PutUint64(table[8*i:], offset)
	}
	return table
}

// WriteInt32 appends one signed 32-bit word.
func (p *Parcel) WriteInt32(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	p.data = append(p.data, b[:]...)
}

// WriteString16 appends a UTF-16 string: a leading count of code
// units, the units themselves, a zero terminator, and padding back to
// 4-byte alignment. For the framework's null-string encoding use
// WriteNullString16.
func (p *Parcel) WriteString16(s string) {
	units := utf16.Encode([]rune(s))
	p.WriteInt32(int32(len(units)))
	var b [2]byte
	for _, u := range units {
		binary.LittleEndian.PutUint16(b[:], u)
		p.data = append(p.data, b[:]...)
	}
	p.data = append(p.data, 0, 0)
	for len(p.data)%4 != 0 {
		p.data = append(p.data, 0)
	}
}

// WriteNullString16 appends the framework encoding of a null string,
// a bare -1 count with no payload.
func (p *Parcel) WriteNullString16() {
	p.WriteInt32(-1)
}

// WriteInterfaceToken appends the RPC header the framework checks
// before dispatching: the strict-mode policy word followed by the
// interface descriptor. The policy word carries the gather-penalty
// bit and nothing else, the layout every release before Q expects.
func (p *Parcel) WriteInterfaceToken(descriptor string) {
	const strictModePenaltyGather = 0x40 << 16
	p.WriteInt32(strictModePenaltyGather)
	p.WriteString16(descriptor)
}

// WriteNullBinder appends an empty strong-object slot: a flat object
// of the local-binder type with zero pointer and cookie, recorded in
// the object table. Receivers read it back as a null IBinder.
func (p *Parcel) WriteNullBinder() {
	p.objects = append(p.objects, uint64(len(p.data)))
	var obj [flatObjectSize]byte
	binary.LittleEndian.PutUint32(obj[0:], typeBinder)
	p.data = append(p.data, obj[:]...)
}

// DecodeHandle extracts the remote reference handle from a reply
// whose payload begins with a flat object, the shape the context
// manager returns for a service lookup. It reports 0 when the reply
// is too short or carries no reference there; handle 0 doubles as
// the unresolved sentinel throughout the package.
func DecodeHandle(reply []byte) uint32 {
	if len(reply) < flatObjectSize {
		return 0
	}
	switch binary.LittleEndian.Uint32(reply[0:]) {
	case typeHandle, typeWeakHandle:
		return binary.LittleEndian.Uint32(reply[8:])
	}
	return 0
}
