package engine

import (
	"github.com/nzottmann/nanopb/descriptor"
	"github.com/nzottmann/nanopb/internal/errors"
	"github.com/nzottmann/nanopb/internal/pointer"
	"github.com/nzottmann/nanopb/stream"
	"github.com/nzottmann/nanopb/wire"
)

// EncodeMessage writes msg, described by desc, to s. Submessages are always
// framed length-delimited: the engine first runs the submessage through a
// sizing stream to learn its length, writes that as a varint, then encodes
// the real bytes, and fails with "submsg size changed" if the second pass
// does not match the first byte for byte. This is the same two-pass shape
// pb_encode uses to frame a submessage without buffering it.
func EncodeMessage(s *stream.OutputStream, msg interface{}, desc *descriptor.MessageDescriptor) error {
	return encodeMessageBody(s, pointer.OfMessage(msg), desc)
}

func encodeMessageBody(s *stream.OutputStream, base pointer.Pointer, desc *descriptor.MessageDescriptor) error {
	it := NewIterator(base, desc)
	if !it.Begin() {
		return nil
	}
	for {
		if err := encodeField(s, it.View()); err != nil {
			return err
		}
		if !it.Next() {
			break
		}
	}
	return nil
}

func encodeField(s *stream.OutputStream, v *FieldView) error {
	if v.LType() == descriptor.LTypeExtension {
		return encodeExtensionChain(s, extensionHeadAt(v.PData))
	}
	if v.AType() == descriptor.ACallback {
		return encodeCallbackField(s, v)
	}
	switch v.HType() {
	case descriptor.HTypeRequired:
		if v.AType() == descriptor.APointer && v.PData.IsNil() {
			s.SetError(errors.MissingRequiredField.Error())
			return s.Err()
		}
		return encodeSingle(s, v, v.PData)
	case descriptor.HTypeOptional:
		if v.AType() == descriptor.APointer && v.PData.IsNil() {
			return nil
		}
		if !v.Present() {
			return nil
		}
		if v.AType() == descriptor.AStatic && isProto3ZeroValue(v) {
			return nil
		}
		return encodeSingle(s, v, v.PData)
	case descriptor.HTypeOneof:
		if !v.Present() {
			return nil
		}
		return encodeSingle(s, v, v.PData)
	case descriptor.HTypeRepeated:
		return encodeArray(s, v)
	}
	return nil
}

// isProto3ZeroValue reports whether a singular field with no separate
// presence flag currently holds its type's zero value, which proto3
// suppresses from the wire entirely. Submessages are never suppressed this
// way: their own presence is tracked through the pointer/flag mechanism,
// never through "is every field inside it zero".
func isProto3ZeroValue(v *FieldView) bool {
	if !v.PSize.IsNil() {
		return false // has explicit presence tracking, not zero-suppressed
	}
	if v.LType().IsSubmessage() {
		return false
	}
	switch v.LType() {
	case descriptor.LTypeBool:
		return !*v.PData.Bool()
	case descriptor.LTypeVarint:
		return readSignedVarintStorage(v.PData, v.Info.DataSize) == 0
	case descriptor.LTypeUvarint, descriptor.LTypeSvarint:
		return readUnsignedStorage(v.PData, v.Info.DataSize) == 0
	case descriptor.LTypeFixed32:
		return *v.PData.Uint32() == 0
	case descriptor.LTypeFixed64:
		return *v.PData.Uint64() == 0
	case descriptor.LTypeBytes:
		return len(*v.PData.Bytes()) == 0
	case descriptor.LTypeString:
		return *v.PData.String() == ""
	}
	return false
}

func encodeSingle(s *stream.OutputStream, v *FieldView, data pointer.Pointer) error {
	switch v.LType() {
	case descriptor.LTypeSubmessage, descriptor.LTypeSubmsgWithCallback:
		return encodeSubmessage(s, v, data)
	default:
		if !appendTagTo(s, v.Tag(), wireTypeFor2(v.LType())) {
			return s.Err()
		}
		return encodeScalarBody(s, data, v)
	}
}

func encodeSubmessage(s *stream.OutputStream, v *FieldView, data pointer.Pointer) error {
	sizer := stream.NewSizingStream()
	if err := encodeMessageBody(sizer, data, v.SubMsgDesc); err != nil {
		return err
	}
	if !appendTagTo(s, v.Tag(), wire.WireString) {
		return s.Err()
	}
	if !appendVarintTo(s, sizer.BytesWritten) {
		return s.Err()
	}
	before := s.BytesWritten
	if err := encodeMessageBody(s, data, v.SubMsgDesc); err != nil {
		return err
	}
	if s.BytesWritten-before != sizer.BytesWritten {
		s.SetError(errors.SubmsgSizeChanged.Error())
		return s.Err()
	}
	return nil
}

func encodeArray(s *stream.OutputStream, v *FieldView) error {
	n := v.ArrayCount()
	if n == 0 {
		return nil
	}
	if v.LType().IsPackable() {
		return encodePackedArray(s, v, n)
	}
	for i := uint32(0); i < n; i++ {
		elem := elementAt(v, i)
		if err := encodeSingle(s, v, elem); err != nil {
			return err
		}
	}
	return nil
}

func encodePackedArray(s *stream.OutputStream, v *FieldView, n uint32) error {
	sizer := stream.NewSizingStream()
	for i := uint32(0); i < n; i++ {
		if err := encodeScalarBody(sizer, elementAt(v, i), v); err != nil {
			return err
		}
	}
	if !appendTagTo(s, v.Tag(), wire.WireString) {
		return s.Err()
	}
	if !appendVarintTo(s, sizer.BytesWritten) {
		return s.Err()
	}
	for i := uint32(0); i < n; i++ {
		if err := encodeScalarBody(s, elementAt(v, i), v); err != nil {
			return err
		}
	}
	return nil
}

func elementAt(v *FieldView, i uint32) pointer.Pointer {
	return v.PData.Apply(uintptr(i) * uintptr(elementStride(v.LType(), v.Info.DataSize)))
}

// encodeScalarBody writes just the value bytes (no tag), the shape every
// packed-array element and every submessage field value needs.
func encodeScalarBody(s *stream.OutputStream, data pointer.Pointer, v *FieldView) error {
	switch v.LType() {
	case descriptor.LTypeBool:
		b := uint64(0)
		if *data.Bool() {
			b = 1
		}
		if !appendVarintTo(s, b) {
			return s.Err()
		}
	case descriptor.LTypeVarint:
		x := readSignedVarintStorage(data, v.Info.DataSize)
		if !appendVarintTo(s, uint64(x)) {
			return s.Err()
		}
	case descriptor.LTypeUvarint:
		x := readUnsignedStorage(data, v.Info.DataSize)
		if !appendVarintTo(s, x) {
			return s.Err()
		}
	case descriptor.LTypeSvarint:
		var x uint64
		if v.Info.DataSize == 4 {
			x = uint64(wire.EncodeZigzag32(*data.Int32()))
		} else {
			x = wire.EncodeZigzag64(*data.Int64())
		}
		if !appendVarintTo(s, x) {
			return s.Err()
		}
	case descriptor.LTypeFixed32:
		var bits uint32
		if v.wantsFloat() {
			bits = wire.Float32Bits(*data.Float32())
		} else {
			bits = *data.Uint32()
		}
		if !s.Write(wire.AppendFixed32(nil, bits)) {
			return s.Err()
		}
	case descriptor.LTypeFixed64:
		var bits uint64
		if v.wantsFloat() {
			bits = wire.Float64Bits(*data.Float64())
		} else {
			bits = *data.Uint64()
		}
		if !s.Write(wire.AppendFixed64(nil, bits)) {
			return s.Err()
		}
	case descriptor.LTypeBytes, descriptor.LTypeFixedLengthBytes:
		b := *data.Bytes()
		if !appendVarintTo(s, uint64(len(b))) {
			return s.Err()
		}
		if !s.Write(b) {
			return s.Err()
		}
	case descriptor.LTypeString:
		str := *data.String()
		if !appendVarintTo(s, uint64(len(str))) {
			return s.Err()
		}
		if !s.Write([]byte(str)) {
			return s.Err()
		}
	case descriptor.LTypeSubmessage, descriptor.LTypeSubmsgWithCallback:
		return encodeMessageBody(s, data, v.SubMsgDesc)
	default:
		return errors.InvalidFieldType
	}
	return nil
}

func wireTypeFor2(lt descriptor.LType) wire.WireType {
	switch lt {
	case descriptor.LTypeFixed32:
		return wire.WireFixed32
	case descriptor.LTypeFixed64:
		return wire.WireFixed64
	case descriptor.LTypeBytes, descriptor.LTypeString, descriptor.LTypeFixedLengthBytes,
		descriptor.LTypeSubmessage, descriptor.LTypeSubmsgWithCallback:
		return wire.WireString
	default:
		return wire.WireVarint
	}
}

func appendVarintTo(s *stream.OutputStream, x uint64) bool {
	return s.Write(wire.AppendVarint(nil, x))
}

func appendTagTo(s *stream.OutputStream, fieldNumber uint32, wt wire.WireType) bool {
	return s.Write(wire.AppendTag(nil, fieldNumber, wt))
}

func readSignedVarintStorage(p pointer.Pointer, dataSize uint32) int64 {
	switch dataSize {
	case 1:
		return int64(*p.Int8())
	case 2:
		return int64(*p.Int16())
	case 4:
		return int64(*p.Int32())
	default:
		return *p.Int64()
	}
}

func readUnsignedStorage(p pointer.Pointer, dataSize uint32) uint64 {
	switch dataSize {
	case 1:
		return uint64(*p.Uint8())
	case 2:
		return uint64(*p.Uint16())
	case 4:
		return uint64(*p.Uint32())
	default:
		return *p.Uint64()
	}
}
