// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine is the descriptor-driven codec core: it combines a
// MessageDescriptor with a live message's base address to decide, field by
// field, how to read or write that field's bytes. Nothing here knows about
// any particular message type; every decision is made by inspecting the
// descriptor's Type byte and offsets, the same way the field iterator in
// usr_pb_common.c drives both encode and decode from one pass over the
// field-info table.
package engine

import (
	"github.com/nzottmann/nanopb/descriptor"
	"github.com/nzottmann/nanopb/internal/pointer"
)

// FieldView is the current field's descriptor record combined with the
// live addresses that record resolves to against a particular message
// instance. It is produced by Iterator and consumed by the encoder and
// decoder; nothing else constructs one.
type FieldView struct {
	Info descriptor.FieldInfo

	// PField is the address of the field's own storage slot as laid out
	// in the struct: for AStatic fields this is the payload itself; for
	// APointer fields it is the address of the pointer (or slice header)
	// that owns the separately allocated payload.
	PField pointer.Pointer

	// PData is where the payload actually lives: equal to PField for
	// AStatic fields, or PField's dereferenced target for APointer
	// fields (the zero Pointer if that target is currently absent).
	PData pointer.Pointer

	// PSize addresses the field's presence flag (HTypeOptional), element
	// count (HTypeRepeated), or oneof discriminator (HTypeOneof). It is
	// the zero Pointer when Info.SizeOffset is zero, meaning the field
	// carries no separate presence storage (HTypeRequired, or a
	// zero-suppressed proto3 singular field).
	PSize pointer.Pointer

	// SubMsgDesc is the nested message's descriptor, set only when
	// Info.Type.LType() is a submessage type.
	SubMsgDesc *descriptor.MessageDescriptor

	// Callback is the enclosing message's descriptor.FieldCallback, copied
	// onto every field view so decode/encode dispatch for an ACallback
	// field doesn't need its own reference back to the MessageDescriptor.
	Callback descriptor.FieldCallback
}

// Tag is the field's wire tag number.
func (v *FieldView) Tag() uint32 { return v.Info.Tag }

// LType, HType, AType project the field's packed type byte.
func (v *FieldView) LType() descriptor.LType { return v.Info.Type.LType() }
func (v *FieldView) HType() descriptor.HType { return v.Info.Type.HType() }
func (v *FieldView) AType() descriptor.AType { return v.Info.Type.AType() }

// ArrayCount reads the field's current element count. For HTypeRepeated
// with a dedicated counter slot the count lives at PSize. A fixed-count
// repeated field (Info.SizeOffset == 0, no slot of its own) has no PSize
// of its own to report; decode repoints PSize at a local tracker variable
// for the duration of that field (see decodeFields), so by the time this
// is called during decode, PSize is never actually nil for a field being
// read element by element. The nil case below is only reached on the
// encode side, where a fixed-count field is always fully populated and
// its count is simply its declared ArraySize. A non-repeated field always
// has a count of 0 or 1, reported via presence rather than this method.
func (v *FieldView) ArrayCount() uint32 {
	if v.PSize.IsNil() {
		return v.Info.ArraySize
	}
	return sizeSlotGet(v.PSize, v.Info)
}

// SetArrayCount writes n into the field's element-count slot.
func (v *FieldView) SetArrayCount(n uint32) {
	if !v.PSize.IsNil() {
		sizeSlotSet(v.PSize, v.Info, n)
	}
}

// Present reports whether an HTypeOptional field's presence flag is set,
// or an HTypeOneof field's discriminator currently names this field.
func (v *FieldView) Present() bool {
	if v.PSize.IsNil() {
		return true
	}
	switch v.HType() {
	case descriptor.HTypeOneof:
		return sizeSlotGet(v.PSize, v.Info) == v.Info.Tag
	default:
		return *v.PSize.Bool()
	}
}

// SetPresent marks an HTypeOptional field present/absent, or switches an
// HTypeOneof discriminator to (or away from) this field's tag.
func (v *FieldView) SetPresent(present bool) {
	if v.PSize.IsNil() {
		return
	}
	switch v.HType() {
	case descriptor.HTypeOneof:
		if present {
			sizeSlotSet(v.PSize, v.Info, v.Info.Tag)
		} else if sizeSlotGet(v.PSize, v.Info) == v.Info.Tag {
			sizeSlotSet(v.PSize, v.Info, 0)
		}
	default:
		*v.PSize.Bool() = present
	}
}

// sizeSlotGet/sizeSlotSet read the size_offset slot as a uint32 regardless
// of whether the generator chose a 1-, 2-, or 4-byte counter; DataSize on
// the *size* field itself is not tracked by the descriptor; the engine
// always uses a plain uint32 for counts and oneof tags, matching pb_size_t
// promoted to its widest practical form.
func sizeSlotGet(p pointer.Pointer, _ descriptor.FieldInfo) uint32 {
	return *p.Uint32()
}

func sizeSlotSet(p pointer.Pointer, _ descriptor.FieldInfo, v uint32) {
	*p.Uint32() = v
}
