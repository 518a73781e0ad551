// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pointer wraps the raw unsafe.Pointer arithmetic the engine needs
// to turn a message's base address plus a descriptor's byte offsets into
// addressable Go storage. A generator lays out fields exactly like a Go
// struct and hands the engine only integer offsets, so there is no
// reflect.StructField available to fall back to a reflect-based
// implementation the way a struct-tag-driven codec can; see DESIGN.md for
// why this package has a single unsafe-based implementation and no purego
// build-tag variant.
package pointer

import (
	"reflect"
	"unsafe"
)

// Pointer addresses a byte inside a message, either the message's own base
// address or some field or sub-field reached from it by a chain of Apply
// calls.
type Pointer struct{ p unsafe.Pointer }

// Zero is the nil Pointer.
var Zero = Pointer{}

// OfMessage returns the base address of msg, which must be a non-nil
// pointer to a struct.
func OfMessage(msg interface{}) Pointer {
	v := reflect.ValueOf(msg)
	return Pointer{p: unsafe.Pointer(v.Pointer())}
}

// FromUnsafe wraps a raw unsafe.Pointer.
func FromUnsafe(p unsafe.Pointer) Pointer { return Pointer{p: p} }

// IsNil reports whether p addresses nothing.
func (p Pointer) IsNil() bool { return p.p == nil }

// Apply returns the address offset bytes from p, i.e. the address of a
// field at the given byte offset within the struct p points at.
func (p Pointer) Apply(offset uintptr) Pointer {
	if p.IsNil() {
		panic("pointer: Apply on nil pointer")
	}
	return Pointer{p: unsafe.Pointer(uintptr(p.p) + offset)}
}

// Raw returns the wrapped unsafe.Pointer.
func (p Pointer) Raw() unsafe.Pointer { return p.p }

// ApplySigned is Apply for a signed byte delta, used for a field's
// size_offset, which points backward from the field's data to its
// presence flag, element count, or oneof discriminator.
func (p Pointer) ApplySigned(offset int32) Pointer {
	if offset >= 0 {
		return p.Apply(uintptr(offset))
	}
	return Pointer{p: unsafe.Pointer(uintptr(p.p) - uintptr(-offset))}
}

// Deref treats p as a pointer-to-pointer (the storage of an APointer field)
// and returns the pointer it contains, or the zero Pointer if that slot
// itself holds nil.
func (p Pointer) Deref() Pointer {
	return Pointer{p: *(*unsafe.Pointer)(p.p)}
}

// SetDeref stores v into the pointer-to-pointer slot at p.
func (p Pointer) SetDeref(v Pointer) {
	*(*unsafe.Pointer)(p.p) = v.p
}

func (p Pointer) Bool() *bool           { return (*bool)(p.p) }
func (p Pointer) Uint8() *uint8         { return (*uint8)(p.p) }
func (p Pointer) Int8() *int8           { return (*int8)(p.p) }
func (p Pointer) Uint16() *uint16       { return (*uint16)(p.p) }
func (p Pointer) Int16() *int16         { return (*int16)(p.p) }
func (p Pointer) Uint32() *uint32       { return (*uint32)(p.p) }
func (p Pointer) Int32() *int32         { return (*int32)(p.p) }
func (p Pointer) Uint64() *uint64       { return (*uint64)(p.p) }
func (p Pointer) Int64() *int64         { return (*int64)(p.p) }
func (p Pointer) Float32() *float32     { return (*float32)(p.p) }
func (p Pointer) Float64() *float64     { return (*float64)(p.p) }
func (p Pointer) String() *string       { return (*string)(p.p) }
func (p Pointer) Bytes() *[]byte        { return (*[]byte)(p.p) }

// UnsafePointer exposes the raw pointer-sized slot at p as an
// *unsafe.Pointer.
func (p Pointer) UnsafePointer() *unsafe.Pointer { return (*unsafe.Pointer)(p.p) }

// SliceHeaderAt returns p as the unsafe.Pointer address of a Go slice
// header.
func (p Pointer) SliceHeaderAt() unsafe.Pointer { return p.p }
