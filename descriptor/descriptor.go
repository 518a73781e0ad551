// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package descriptor defines the ABI between a .proto-to-descriptor
// generator (not part of this module; see DESIGN.md) and the codec: the
// bit-packed field-info words a generator emits, and the MessageDescriptor
// that ties them together with a message's submessage pointers, default
// blob, and optional field callback. Nothing in this package touches a
// live message's memory — that starts in the internal/engine package once a
// message base pointer is available.
package descriptor

// LType is the 4-bit logical type carried by a field's Type byte. It
// selects the wire encoding and the Go storage kind expected at DataOffset.
type LType uint8

const (
	LTypeBool LType = iota
	LTypeVarint
	LTypeUvarint
	LTypeSvarint
	LTypeFixed32
	LTypeFixed64
	LTypeBytes
	LTypeString
	LTypeSubmessage
	LTypeSubmsgWithCallback
	LTypeExtension
	LTypeFixedLengthBytes
)

// LTypeLastPackable is the largest LType that may appear in a packed array.
const LTypeLastPackable = LTypeFixed64

// IsPackable reports whether lt may be packed into a length-delimited run.
func (lt LType) IsPackable() bool { return lt <= LTypeLastPackable }

// IsSubmessage reports whether lt denotes a nested message, with or without
// a pre-decoding callback.
func (lt LType) IsSubmessage() bool {
	return lt == LTypeSubmessage || lt == LTypeSubmsgWithCallback
}

func (lt LType) String() string {
	switch lt {
	case LTypeBool:
		return "bool"
	case LTypeVarint:
		return "varint"
	case LTypeUvarint:
		return "uvarint"
	case LTypeSvarint:
		return "svarint"
	case LTypeFixed32:
		return "fixed32"
	case LTypeFixed64:
		return "fixed64"
	case LTypeBytes:
		return "bytes"
	case LTypeString:
		return "string"
	case LTypeSubmessage:
		return "submessage"
	case LTypeSubmsgWithCallback:
		return "submessage_with_callback"
	case LTypeExtension:
		return "extension"
	case LTypeFixedLengthBytes:
		return "fixed_length_bytes"
	default:
		return "invalid"
	}
}

// HType is the 2-bit repetition discipline of a field.
type HType uint8

const (
	HTypeRequired HType = iota
	HTypeOptional       // a.k.a. Singular in proto3
	HTypeRepeated       // a.k.a. FixArray for static storage
	HTypeOneof
)

func (ht HType) String() string {
	switch ht {
	case HTypeRequired:
		return "required"
	case HTypeOptional:
		return "optional"
	case HTypeRepeated:
		return "repeated"
	case HTypeOneof:
		return "oneof"
	default:
		return "invalid"
	}
}

// AType is the 2-bit storage discipline of a field: where the bytes that
// make up the field's payload actually live.
type AType uint8

const (
	// AStatic fields are stored inline in the message struct.
	AStatic AType = iota
	// APointer fields are owned by the message but separately allocated;
	// a null pointer means "absent". Requires dynamic storage.
	APointer
	// ACallback fields hand the bytes to caller-supplied encode/decode
	// functions instead of storing them at all.
	ACallback
)

func (at AType) String() string {
	switch at {
	case AStatic:
		return "static"
	case APointer:
		return "pointer"
	case ACallback:
		return "callback"
	default:
		return "invalid"
	}
}

// Type is the single-byte field type tag: logical type, repetition, and
// allocation discipline packed together, matching the generator's
// compact on-wire descriptor encoding.
type Type uint8

// MakeType packs the three field-type components into one byte.
func MakeType(lt LType, ht HType, at AType) Type {
	return Type(uint8(lt)&0x0F | uint8(ht)&0x3<<4 | uint8(at)&0x3<<6)
}

func (t Type) LType() LType { return LType(t & 0x0F) }
func (t Type) HType() HType { return HType((t >> 4) & 0x3) }
func (t Type) AType() AType { return AType((t >> 6) & 0x3) }

// FieldInfo is one decoded field-info record: everything the descriptor
// bytes carry about a field before it is combined with a live message base
// pointer.
type FieldInfo struct {
	Tag        uint32
	Type       Type
	DataOffset uint32
	// SizeOffset is the signed byte delta from DataOffset back to the
	// presence flag, element count, or oneof discriminator; zero means no
	// separate presence storage exists for this field.
	SizeOffset int32
	DataSize   uint32
	ArraySize  uint32
	// Words is how many 32-bit words this record occupied, so a scan can
	// advance to the next record.
	Words int
}

// DecodeFieldInfo unpacks the field-info record beginning at words[idx],
// selecting one of the four record widths by the low 2 bits of words[idx].
// It returns the decoded record; callers advance by record.Words.
func DecodeFieldInfo(words []uint32, idx int) FieldInfo {
	word0 := words[idx]
	var fi FieldInfo
	fi.Type = Type((word0 >> 8) & 0xFF)

	switch word0 & 3 {
	case 0: // 1-word
		fi.Words = 1
		fi.ArraySize = 1
		fi.Tag = (word0 >> 2) & 0x3F
		fi.SizeOffset = signExtend(int32((word0>>24)&0x0F), 4)
		fi.DataOffset = (word0 >> 16) & 0xFF
		fi.DataSize = (word0 >> 28) & 0x0F

	case 1: // 2-word
		fi.Words = 2
		word1 := words[idx+1]
		fi.ArraySize = (word0 >> 16) & 0x0FFF
		fi.Tag = ((word0 >> 2) & 0x3F) | ((word1 >> 28) << 6)
		fi.SizeOffset = signExtend(int32((word0>>28)&0x0F), 4)
		fi.DataOffset = word1 & 0xFFFF
		fi.DataSize = (word1 >> 16) & 0x0FFF

	case 2: // 4-word
		fi.Words = 4
		word1, word2, word3 := words[idx+1], words[idx+2], words[idx+3]
		fi.ArraySize = word0 >> 16
		fi.Tag = ((word0 >> 2) & 0x3F) | ((word1 >> 8) << 6)
		fi.SizeOffset = signExtend(int32(word1&0xFF), 8)
		fi.DataOffset = word2
		fi.DataSize = word3

	default: // 8-word
		fi.Words = 8
		word1, word2, word3, word4 := words[idx+1], words[idx+2], words[idx+3], words[idx+4]
		fi.ArraySize = word4
		fi.Tag = ((word0 >> 2) & 0x3F) | ((word1 >> 8) << 6)
		fi.SizeOffset = signExtend(int32(word1&0xFF), 8)
		fi.DataOffset = word2
		fi.DataSize = word3
	}
	return fi
}

// signExtend sign-extends the low `bits` bits of v.
func signExtend(v int32, bits uint) int32 {
	shift := 32 - bits
	return (v << shift) >> shift
}

// FieldCallback implements a whole message's worth of ACallback fields
// generically: the engine invokes it once per callback field with a
// FieldView describing which field is current. Its concrete parameter
// types live in internal/engine, since only there does a FieldView exist.
type FieldCallback interface{}

// MessageDescriptor is the immutable, generator-emitted description of one
// message type: its packed field-info words, one submessage descriptor
// pointer per submessage-typed field (in descriptor order), an optional
// pre-serialized default-value blob, and summary counts. The engine reads
// only RequiredFieldCount, to check its required-field bitmap; FieldCount
// and LargestTag are carried but not read.
type MessageDescriptor struct {
	FieldInfo          []uint32
	SubmsgInfo         []*MessageDescriptor
	DefaultValue       []byte
	FieldCallback      FieldCallback
	FieldCount         uint32
	RequiredFieldCount uint32
	LargestTag         uint32
}

// ExtensionType describes a field declared outside a message's own schema.
// The codec treats the message's EXTENSION-typed placeholder field as the
// head of a singly-linked list of *Extension records built by the caller.
type ExtensionType struct {
	// Decode is invoked for each unrecognized tag while the extension
	// chain is being walked; return true having consumed the field's
	// bytes (or deliberately skipped them) to claim it, or true having
	// read nothing to decline it. Return false on error. Nil selects the
	// engine's default scalar/submessage decode for Type.
	Decode func(in ExtensionDecodeArgs) (bool, error)
	// Encode is invoked once per extension record during encoding. Nil
	// selects the engine's default encode for Type.
	Encode func(out ExtensionEncodeArgs) (bool, error)
	Type   FieldInfo
	Arg    interface{}
}

// Extension is one entry in a message's extension chain.
type Extension struct {
	Type  *ExtensionType
	Dest  interface{} // pointer to the decoded value's storage
	Next  *Extension
	Found bool
}

// ExtensionDecodeArgs and ExtensionEncodeArgs carry the stream/engine
// context into a custom extension's Decode/Encode hook. They are opaque
// structs filled in by internal/engine; the field names are stable API.
type ExtensionDecodeArgs struct {
	Stream    interface{} // *stream.InputStream
	Extension *Extension
	Tag       uint32
	WireType  uint8
}

type ExtensionEncodeArgs struct {
	Stream    interface{} // *stream.OutputStream
	Extension *Extension
}
