package engine

import (
	"github.com/nzottmann/nanopb/descriptor"
	"github.com/nzottmann/nanopb/internal/pointer"
	"github.com/nzottmann/nanopb/stream"
)

// applyDefaults zeroes every APointer slot reachable from base (so a
// decode into a reused destination never inherits a stale nested message
// or previous repeated-field backing array) and then, if desc carries a
// pre-serialized default blob, replays it through the ordinary decode path
// to seed non-zero proto2 defaults. Defaulting this way means a field's
// default never needs its own bespoke representation: it is just another
// message, decoded the same way any wire input is. Finally the presence
// flag of every optional static field is cleared, since a default value
// is not presence. Static field values are not zeroed.
func applyDefaults(base pointer.Pointer, desc *descriptor.MessageDescriptor) error {
	releaseMessage(base, desc)
	if len(desc.DefaultValue) > 0 {
		s := stream.NewBufferInputStream(desc.DefaultValue)
		if err := decodeFields(s, base, desc, ModeBare); err != nil {
			return err
		}
	}
	it := NewIterator(base, desc)
	if !it.Begin() {
		return nil
	}
	for {
		if v := it.View(); v.HType() == descriptor.HTypeOptional && v.AType() == descriptor.AStatic {
			v.SetPresent(false)
		}
		if !it.Next() {
			return nil
		}
	}
}
