package engine

import (
	"github.com/nzottmann/nanopb/descriptor"
	"github.com/nzottmann/nanopb/internal/pointer"
)

// Iterator walks a message's field-info records in descriptor order,
// projecting each one into a FieldView against a fixed message base
// address. Encode and decode both drive the same iterator: encode scans
// it straight through, decode uses Find to jump to the record matching an
// incoming tag and otherwise relies on the wraparound search nanopb calls
// "cached find" to stay fast for the common case of fields arriving in
// declaration order.
type Iterator struct {
	base pointer.Pointer
	desc *descriptor.MessageDescriptor

	wordIdx     int // index into desc.FieldInfo of the current record
	fieldIdx    uint32
	submsgIdx   int
	view        FieldView
}

// NewIterator starts an iterator over desc's fields against the message
// at base. Callers must call Begin before the first View is valid.
func NewIterator(base pointer.Pointer, desc *descriptor.MessageDescriptor) *Iterator {
	return &Iterator{base: base, desc: desc}
}

// Begin positions the iterator at the first field, if any.
func (it *Iterator) Begin() bool {
	it.wordIdx = 0
	it.fieldIdx = 0
	it.submsgIdx = 0
	if len(it.desc.FieldInfo) == 0 {
		return false
	}
	it.load()
	return true
}

// Next advances to the following field record, returning false once the
// last record has been passed.
func (it *Iterator) Next() bool {
	consumedSubmsg := it.view.LType().IsSubmessage()
	it.wordIdx += it.view.Info.Words
	it.fieldIdx++
	if consumedSubmsg {
		it.submsgIdx++
	}
	if it.wordIdx >= len(it.desc.FieldInfo) {
		return false
	}
	it.load()
	return true
}

// Find repositions the iterator at the record for tag, scanning forward
// from the current position and wrapping around to the start once. It
// reports false, leaving the iterator at its prior position, if no field
// carries that tag.
func (it *Iterator) Find(tag uint32) bool {
	if len(it.desc.FieldInfo) == 0 {
		return false
	}
	startWord, startField, startSubmsg := it.wordIdx, it.fieldIdx, it.submsgIdx
	for {
		if it.view.Info.Tag == tag {
			return true
		}
		if !it.Next() {
			if !it.Begin() {
				return false
			}
		}
		if it.wordIdx == startWord {
			it.wordIdx, it.fieldIdx, it.submsgIdx = startWord, startField, startSubmsg
			it.load()
			return false
		}
	}
}

// View returns the FieldView for the iterator's current position.
func (it *Iterator) View() *FieldView { return &it.view }

func (it *Iterator) load() {
	fi := descriptor.DecodeFieldInfo(it.desc.FieldInfo, it.wordIdx)
	v := FieldView{Info: fi}

	v.PField = it.base.Apply(uintptr(fi.DataOffset))
	if fi.SizeOffset != 0 {
		v.PSize = v.PField.ApplySigned(fi.SizeOffset)
	}

	switch fi.Type.AType() {
	case descriptor.APointer:
		v.PData = v.PField.Deref()
	default:
		v.PData = v.PField
	}

	if fi.Type.LType().IsSubmessage() && it.submsgIdx < len(it.desc.SubmsgInfo) {
		v.SubMsgDesc = it.desc.SubmsgInfo[it.submsgIdx]
	}
	v.Callback = it.desc.FieldCallback

	it.view = v
}
