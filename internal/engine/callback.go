package engine

import (
	"github.com/nzottmann/nanopb/internal/errors"
	"github.com/nzottmann/nanopb/stream"
	"github.com/nzottmann/nanopb/wire"
)

// FieldCallback is a message descriptor's single escape hatch for
// ACallback-storage fields. It is invoked once per callback field
// encountered during decode or encode, with exactly one of in/out set,
// mirroring the two-direction field_callback(istream, ostream, field)
// signature usr_pb_decode.c/usr_pb_encode.c share between both directions.
// v.Tag() and v.Info tell the callback which field it was called for, since
// one message has only one FieldCallback covering every callback field it
// declares.
type FieldCallback func(in *stream.InputStream, out *stream.OutputStream, v *FieldView) error

func fieldCallbackOf(v *FieldView) (FieldCallback, bool) {
	cb, ok := v.Callback.(FieldCallback)
	return cb, ok && cb != nil
}

// decodeCallbackField hands a callback field's bytes to the message's
// FieldCallback. A WireString field is bounded to a substream and the
// callback is invoked repeatedly as long as it keeps consuming bytes from
// it, the mechanism usr_pb_decode.c uses to let one callback decode a
// caller-defined repeated value out of a single length-delimited run. Any
// other wire type is first copied into a small on-stack-style buffer so the
// callback always sees a stream bounded to exactly that one value,
// regardless of how much the parent stream has left.
func decodeCallbackField(s *stream.InputStream, v *FieldView, wt wire.WireType) error {
	cb, ok := fieldCallbackOf(v)
	if !ok {
		if !skipCallbackField(s, wt) {
			return s.Err()
		}
		return nil
	}

	if wt == wire.WireString {
		sub, ok := s.MakeStringSubstream()
		if !ok {
			return s.Err()
		}
		for {
			before := sub.BytesLeft
			if err := cb(sub, nil, v); err != nil {
				s.SetError(errors.CallbackFailed.Error())
				return s.Err()
			}
			if sub.BytesLeft == 0 || sub.BytesLeft >= before {
				break
			}
		}
		if !s.CloseStringSubstream(sub) {
			return s.Err()
		}
		return nil
	}

	raw, ok := readRawScalarBytes(s, wt)
	if !ok {
		return s.Err()
	}
	sub := stream.NewBufferInputStream(raw)
	if err := cb(sub, nil, v); err != nil {
		s.SetError(errors.CallbackFailed.Error())
		return s.Err()
	}
	return nil
}

// skipCallbackField is what a callback field with no FieldCallback set
// degrades to: the bytes are simply discarded, same as an unrecognized tag.
func skipCallbackField(s *stream.InputStream, wt wire.WireType) bool {
	return skipUnknownField(s, wt)
}

// readRawScalarBytes copies exactly one wire value of the given type out of
// s without interpreting it, for handing to a callback as its own bounded
// substream.
func readRawScalarBytes(s *stream.InputStream, wt wire.WireType) ([]byte, bool) {
	switch wt {
	case wire.WireVarint:
		buf := make([]byte, wire.MaxVarintBytes)
		n := 0
		for n < len(buf) {
			if !s.Read(buf[n:n+1], 1) {
				return nil, false
			}
			b := buf[n]
			n++
			if b < 0x80 {
				break
			}
		}
		return buf[:n], true
	case wire.WireFixed32:
		buf := make([]byte, 4)
		if !s.Read(buf, 4) {
			return nil, false
		}
		return buf, true
	case wire.WireFixed64:
		buf := make([]byte, 8)
		if !s.Read(buf, 8) {
			return nil, false
		}
		return buf, true
	default:
		s.SetError(errors.InvalidWireType.Error())
		return nil, false
	}
}

// encodeCallbackField gives the message's FieldCallback a chance to write a
// callback field's value(s); a field with no callback set simply encodes
// nothing, the same "absent" behavior as an unset APointer field.
func encodeCallbackField(s *stream.OutputStream, v *FieldView) error {
	cb, ok := fieldCallbackOf(v)
	if !ok {
		return nil
	}
	if err := cb(nil, s, v); err != nil {
		s.SetError(errors.CallbackError.Error())
		return s.Err()
	}
	return nil
}
