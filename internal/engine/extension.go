package engine

import (
	"reflect"
	"unsafe"

	"github.com/nzottmann/nanopb/descriptor"
	"github.com/nzottmann/nanopb/internal/errors"
	"github.com/nzottmann/nanopb/internal/pointer"
	"github.com/nzottmann/nanopb/stream"
	"github.com/nzottmann/nanopb/wire"
)

// findExtensionField looks for the one EXTENSION-typed placeholder field a
// message descriptor may declare. Its tag marks the start of the message's
// extension range: any unrecognized incoming tag at or above it is tried
// against the chain stored at the field's address before being given up on
// as unknown, the same two-step lookup usr_pb_decode.c's decode loop does
// around its own extension_range_start.
func findExtensionField(base pointer.Pointer, desc *descriptor.MessageDescriptor) (head *descriptor.Extension, rangeStart uint32, found bool) {
	it := NewIterator(base, desc)
	if !it.Begin() {
		return nil, 0, false
	}
	for {
		if it.View().LType() == descriptor.LTypeExtension {
			return extensionHeadAt(it.View().PData), it.View().Tag(), true
		}
		if !it.Next() {
			return nil, 0, false
		}
	}
}

// extensionHeadAt reads the *Extension chain head stored at a field's data
// address. The slot holds the pointer value itself, not a pointer to it, so
// this is a single cast rather than a Pointer.Deref.
func extensionHeadAt(data pointer.Pointer) *descriptor.Extension {
	if data.IsNil() {
		return nil
	}
	return *(**descriptor.Extension)(data.Raw())
}

// decodeExtensionChain tries each extension in turn against an unrecognized
// tag, stopping as soon as one of them consumes the field's bytes. Like
// decode_extension in usr_pb_decode.c, whether a node actually claimed the
// tag is detected by the stream's BytesLeft changing, not by its return
// value; the bool a Decode hook returns says only whether it failed
// outright (false), as opposed to running cleanly whether or not it found
// anything to do (true).
func decodeExtensionChain(s *stream.InputStream, tag uint32, wt wire.WireType, head *descriptor.Extension) error {
	before := s.BytesLeft
	for ext := head; ext != nil; ext = ext.Next {
		if ext.Type.Decode != nil {
			ok, err := ext.Type.Decode(descriptor.ExtensionDecodeArgs{
				Stream:    s,
				Extension: ext,
				Tag:       tag,
				WireType:  uint8(wt),
			})
			if err != nil {
				return err
			}
			if !ok {
				return errors.InvalidExtension
			}
		} else if err := defaultExtensionDecode(s, ext, tag, wt); err != nil {
			return err
		}
		if s.BytesLeft != before {
			return nil
		}
	}
	return nil
}

// defaultExtensionDecode is the behavior an ExtensionType gets for free when
// it leaves Decode nil: the extension's own single FieldInfo is checked
// against the incoming tag, and on a match the field is decoded straight
// into Dest exactly like any other scalar or submessage field.
func defaultExtensionDecode(s *stream.InputStream, ext *descriptor.Extension, tag uint32, wt wire.WireType) error {
	fi := ext.Type.Type
	if fi.Tag != tag {
		return nil
	}
	ext.Found = true
	target := extensionDestPointer(ext.Dest)
	view := &FieldView{Info: fi}
	if fi.Type.LType().IsSubmessage() {
		view.SubMsgDesc, _ = ext.Type.Arg.(*descriptor.MessageDescriptor)
	}
	return decodeScalar(s, target, view, wt)
}

// encodeExtensionChain walks a message's extension chain at encode time,
// giving each entry a chance to write itself, mirroring
// encode_extension_field in usr_pb_encode.c.
func encodeExtensionChain(s *stream.OutputStream, head *descriptor.Extension) error {
	for ext := head; ext != nil; ext = ext.Next {
		if ext.Type.Encode != nil {
			ok, err := ext.Type.Encode(descriptor.ExtensionEncodeArgs{Stream: s, Extension: ext})
			if err != nil {
				return err
			}
			if !ok {
				return errors.InvalidExtension
			}
		} else if err := defaultExtensionEncode(s, ext); err != nil {
			return err
		}
	}
	return nil
}

// defaultExtensionEncode mirrors defaultExtensionDecode: an ExtensionType
// with no Encode hook is written using its own FieldInfo and Dest, exactly
// as if it were an ordinary field of the enclosing message.
func defaultExtensionEncode(s *stream.OutputStream, ext *descriptor.Extension) error {
	fi := ext.Type.Type
	target := extensionDestPointer(ext.Dest)
	view := &FieldView{Info: fi, PData: target}
	if fi.Type.LType().IsSubmessage() {
		view.SubMsgDesc, _ = ext.Type.Arg.(*descriptor.MessageDescriptor)
	}
	return encodeSingle(s, view, target)
}

// extensionDestPointer turns the caller-supplied Dest (a typed Go pointer
// such as *int32 or *string, boxed as an interface{} since ExtensionType
// can't know the field's Go type ahead of time) into the unsafe Pointer the
// rest of the engine works with.
func extensionDestPointer(dest interface{}) pointer.Pointer {
	return pointer.FromUnsafe(unsafe.Pointer(reflect.ValueOf(dest).Pointer()))
}
