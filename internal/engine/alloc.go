package engine

import (
	"reflect"
	"unsafe"

	"github.com/nzottmann/nanopb/descriptor"
	"github.com/nzottmann/nanopb/internal/errors"
	"github.com/nzottmann/nanopb/internal/pointer"
)

var byteType = reflect.TypeOf(byte(0))

// sliceHeaderSize is the stride used when indexing a repeated bytes
// field's backing array of slice headers.
const sliceHeaderSize = unsafe.Sizeof([]byte(nil))

// elementGoType returns an opaque, exactly-sized byte-array type to back an
// APointer field's allocation. The descriptor gives the engine a byte count
// (DataSize), not a Go type — the generator that would normally supply a
// concrete struct field type is out of scope here — so the engine allocates
// raw storage wide enough for any scalar or submessage Go layout at that
// offset and addresses it purely through internal/pointer's typed accessors.
func elementGoType(dataSize uint32) reflect.Type {
	n := int(dataSize)
	if n == 0 {
		n = 1
	}
	return reflect.ArrayOf(n, byteType)
}

// allocSlice grows the []T stored at p by grow elements. It always
// allocates a new backing array of the larger length and copies the
// existing elements into it, so a pointer taken into the previous backing
// array no longer addresses the field's elements afterwards. elemType is
// reflect.TypeOf a zero T.
func allocSlice(p pointer.Pointer, elemType reflect.Type, grow int) (reflect.Value, error) {
	if grow < 0 {
		return reflect.Value{}, errors.ReallocFailed
	}
	sliceType := reflect.SliceOf(elemType)
	cur := reflect.NewAt(sliceType, p.Raw()).Elem()
	newLen := cur.Len() + grow
	if newLen < cur.Len() {
		return reflect.Value{}, errors.ReallocFailed
	}
	grown := reflect.MakeSlice(sliceType, newLen, newLen)
	reflect.Copy(grown, cur)
	cur.Set(grown)
	return grown, nil
}

// allocPointerField allocates a new zero value of elemType and stores its
// address at the APointer field's slot, replacing (and so releasing) any
// value already there, and returns the new value's address. It has no
// failure path of its own.
func allocPointerField(field pointer.Pointer, elemType reflect.Type) pointer.Pointer {
	v := reflect.New(elemType)
	field.SetDeref(pointer.FromUnsafe(v.UnsafePointer()))
	return pointer.FromUnsafe(v.UnsafePointer())
}

// releasePointerField clears an APointer field's slot. Go's garbage
// collector reclaims the previous target once nothing references it; unlike
// nanopb's pb_release, there is no explicit free to perform, but submessage
// fields still need their own nested pointer fields cleared first so stale
// sub-values are not merge-ed into on the next decode.
func releasePointerField(field pointer.Pointer) {
	field.SetDeref(pointer.Zero)
}

// releaseOneofArm releases the payload belonging to the oneof field tagged
// armTag, the arm the discriminator is about to be switched away from. An
// APointer arm's allocation (and, if it is itself a submessage, everything
// reachable from it) is released the same way releaseMessage releases any
// other pointer field; an AStatic arm is left as it is, since each arm has
// its own struct field. The per-submessage decode path reapplies defaults
// to whichever submessage arm is decoded next but does not zero its static
// fields.
func releaseOneofArm(base pointer.Pointer, desc *descriptor.MessageDescriptor, armTag uint32) {
	it := NewIterator(base, desc)
	if !it.Begin() {
		return
	}
	for {
		v := it.View()
		if v.Tag() == armTag {
			if v.AType() == descriptor.APointer {
				if sub := v.SubMsgDesc; sub != nil && !v.PData.IsNil() {
					releaseMessage(v.PData, sub)
				}
				releasePointerField(v.PField)
			}
			return
		}
		if !it.Next() {
			return
		}
	}
}

// releaseMessage recursively clears every APointer field reachable from
// base via desc, matching pb_release's walk over submessages and repeated
// pointer fields. It does not need to free anything explicitly; its job is
// to reset the struct to its zero-pointer layout so that a decode into a
// reused destination does not keep stale targets. applyDefaults calls it at
// the start of every message decode. For a repeated submessage field only
// the first element is walked.
func releaseMessage(base pointer.Pointer, desc *descriptor.MessageDescriptor) {
	it := NewIterator(base, desc)
	if !it.Begin() {
		return
	}
	for {
		v := it.View()
		if v.AType() == descriptor.APointer {
			if sub := v.SubMsgDesc; sub != nil && !v.PData.IsNil() {
				releaseMessage(v.PData, sub)
			}
			if v.HType() == descriptor.HTypeRepeated {
				*v.PField.Bytes() = nil // clears the whole slice header, length included
			} else {
				releasePointerField(v.PField)
			}
		} else if v.LType().IsSubmessage() && v.SubMsgDesc != nil && v.Present() {
			releaseMessage(v.PData, v.SubMsgDesc)
		}
		if !it.Next() {
			break
		}
	}
}
