// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wire implements the low-level byte encodings shared by every
// protocol buffers field: base-128 varints, zigzag-mapped signed varints,
// little-endian fixed32/fixed64, and tag framing. Nothing in this package
// touches struct layout or field dispatch; it only turns values into bytes
// and back.
package wire

import "math"

// WireType identifies the on-the-wire body encoding selected by the low
// three bits of a tag.
type WireType uint8

const (
	WireVarint  WireType = 0
	WireFixed64 WireType = 1
	WireString  WireType = 2
	WireFixed32 WireType = 5
)

// MaxVarintBytes is the longest a 64-bit varint can be on the wire.
const MaxVarintBytes = 10

// EncodeTag combines a field number and wire type into the varint-encoded
// value written immediately before a field's body.
func EncodeTag(fieldNumber uint32, wt WireType) uint64 {
	return uint64(fieldNumber)<<3 | uint64(wt&7)
}

// AppendTag appends the encoded tag for fieldNumber/wt to buf.
func AppendTag(buf []byte, fieldNumber uint32, wt WireType) []byte {
	return AppendVarint(buf, EncodeTag(fieldNumber, wt))
}

// DecodeTag splits a tag into its field number and wire type. Field number
// zero is returned as-is; callers must reject it except when terminating a
// null-terminated message (see engine.ModeNullTerminated).
func DecodeTag(v uint64) (fieldNumber uint32, wt WireType) {
	return uint32(v >> 3), WireType(v & 7)
}

// AppendVarint appends x to buf using the standard base-128 little-endian
// encoding: 7 payload bits per byte, continuation bit 0x80.
func AppendVarint(buf []byte, x uint64) []byte {
	for x >= 1<<7 {
		buf = append(buf, uint8(x&0x7f|0x80))
		x >>= 7
	}
	return append(buf, uint8(x))
}

// SizeVarint returns the number of bytes AppendVarint would produce for x.
func SizeVarint(x uint64) int {
	n := 1
	for x >= 1<<7 {
		x >>= 7
		n++
	}
	return n
}

// ConsumeVarint decodes a varint from the front of buf. It returns the
// decoded value and the number of bytes consumed, or n == 0 if buf does not
// contain a complete, valid varint (more than 10 bytes, or a 10th byte
// greater than 1, whose payload would not fit in 64 bits).
func ConsumeVarint(buf []byte) (x uint64, n int) {
	for shift := uint(0); shift < 64; shift += 7 {
		if n >= len(buf) {
			return 0, 0
		}
		b := buf[n]
		n++
		if shift == 63 && b > 1 {
			// 10th byte: only bit 0 of the payload fits in a 64-bit result,
			// so anything else means the source encoded something that
			// cannot round-trip through 64 bits.
			return 0, 0
		}
		x |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return x, n
		}
	}
	return 0, 0
}

// ConsumeVarint32 decodes a varint destined for a 32-bit-or-narrower field,
// honoring the legacy protobuf rule for negative values there: a negative
// int32 is always varint-encoded as the full 10-byte sign extension of its
// 64-bit form, even though the field itself is only 32 bits wide. So a
// 32-bit decoder must still consume up to 10 bytes, and accept them only if
// bytes 5..9 are a valid sign-extension of bit 31 (all 0x00 if bit 31 is
// clear, all 0xFF if it is set), with the 10th byte's top 3 bits always
// zero. Anything else is a genuine overflow of the 32-bit destination.
func ConsumeVarint32(buf []byte) (x uint32, n int) {
	v, n := ConsumeVarint(buf)
	if n == 0 {
		return 0, 0
	}
	lo := uint32(v)
	hi := v >> 32
	if lo&(1<<31) != 0 && n > 5 {
		if hi != 0xffffffff {
			return 0, 0
		}
	} else if hi != 0 {
		return 0, 0
	}
	return lo, n
}

// EncodeZigzag32 maps a signed 32-bit integer onto the unsigned wire
// encoding used by the sint32 type: (n<<1) XOR (n>>31).
func EncodeZigzag32(n int32) uint32 {
	return uint32((n << 1) ^ (n >> 31))
}

// DecodeZigzag32 inverts EncodeZigzag32.
func DecodeZigzag32(x uint32) int32 {
	return int32(x>>1) ^ -int32(x&1)
}

// EncodeZigzag64 maps a signed 64-bit integer onto the unsigned wire
// encoding used by the sint64 type: (n<<1) XOR (n>>63).
func EncodeZigzag64(n int64) uint64 {
	return uint64((n << 1) ^ (n >> 63))
}

// DecodeZigzag64 inverts EncodeZigzag64.
func DecodeZigzag64(x uint64) int64 {
	return int64(x>>1) ^ -int64(x&1)
}

// AppendFixed32 appends the little-endian 4-byte encoding of x.
func AppendFixed32(buf []byte, x uint32) []byte {
	return append(buf, uint8(x), uint8(x>>8), uint8(x>>16), uint8(x>>24))
}

// AppendFixed64 appends the little-endian 8-byte encoding of x.
func AppendFixed64(buf []byte, x uint64) []byte {
	return append(buf,
		uint8(x), uint8(x>>8), uint8(x>>16), uint8(x>>24),
		uint8(x>>32), uint8(x>>40), uint8(x>>48), uint8(x>>56))
}

// ConsumeFixed32 decodes a little-endian 4-byte value from the front of buf.
// n is 0 if buf is too short.
func ConsumeFixed32(buf []byte) (x uint32, n int) {
	if len(buf) < 4 {
		return 0, 0
	}
	x = uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	return x, 4
}

// ConsumeFixed64 decodes a little-endian 8-byte value from the front of buf.
// n is 0 if buf is too short.
func ConsumeFixed64(buf []byte) (x uint64, n int) {
	if len(buf) < 8 {
		return 0, 0
	}
	x = uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24 |
		uint64(buf[4])<<32 | uint64(buf[5])<<40 | uint64(buf[6])<<48 | uint64(buf[7])<<56
	return x, 8
}

// NarrowFloat64 rounds a double to the nearest float32, per IEEE-754
// round-to-nearest-even, mapping magnitudes beyond float32 range to ±Inf
// and preserving subnormals and signed zero. The engine does not call it:
// FIXED64 fields are always stored in 8 bytes.
func NarrowFloat64(f float64) float32 {
	return float32(f)
}

// WidenFloat32 widens a float32 to float64 exactly; this direction never
// loses precision.
func WidenFloat32(f float32) float64 {
	return float64(f)
}

// Float32FromBits and Float64FromBits round-trip the IEEE-754 bit patterns
// carried by fixed32/fixed64 wire values.
func Float32FromBits(bits uint32) float32 { return math.Float32frombits(bits) }
func Float64FromBits(bits uint64) float64 { return math.Float64frombits(bits) }
func Float32Bits(f float32) uint32        { return math.Float32bits(f) }
func Float64Bits(f float64) uint64        { return math.Float64bits(f) }

// IsPackable reports whether values of the given wire type may be packed
// into a single length-delimited run (varint, fixed32, fixed64 bodies).
func IsPackable(wt WireType) bool {
	switch wt {
	case WireVarint, WireFixed32, WireFixed64:
		return true
	default:
		return false
	}
}

// ConsumeFieldValue skips over a single field's value given its wire type,
// returning the number of bytes consumed or -1 if wt is not a recognized
// wire type or the buffer is truncated.
func ConsumeFieldValue(wt WireType, buf []byte) int {
	switch wt {
	case WireVarint:
		_, n := ConsumeVarint(buf)
		if n == 0 {
			return -1
		}
		return n
	case WireFixed32:
		if len(buf) < 4 {
			return -1
		}
		return 4
	case WireFixed64:
		if len(buf) < 8 {
			return -1
		}
		return 8
	case WireString:
		l, n := ConsumeVarint(buf)
		if n == 0 || uint64(n)+l > uint64(len(buf)) {
			return -1
		}
		return n + int(l)
	default:
		return -1
	}
}
