// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package proto is the public entry point for the codec: Marshal, Unmarshal,
// and Size, plus the small Message interface a generated type implements to
// plug its descriptor into the engine.
package proto

import (
	"github.com/nzottmann/nanopb/descriptor"
	"github.com/nzottmann/nanopb/internal/engine"
	"github.com/nzottmann/nanopb/stream"
)

// Message is implemented by a generated struct pointer. ProtoDescriptor
// returns the message's field layout; the struct's own exported fields are
// addressed directly by the engine via the offsets that descriptor carries,
// not through this interface.
type Message interface {
	ProtoDescriptor() *descriptor.MessageDescriptor
}

// Marshal returns the wire encoding of m.
func Marshal(m Message) ([]byte, error) {
	n, err := Size(m)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, n)
	s := stream.NewBufferOutputStream(&buf)
	if err := engine.EncodeMessage(s, m, m.ProtoDescriptor()); err != nil {
		return nil, err
	}
	return buf, nil
}

// MarshalAppend appends the wire encoding of m to buf and returns the
// extended slice, avoiding the second allocation Marshal's size pre-pass
// would otherwise force on a caller that already owns a growable buffer.
func MarshalAppend(buf []byte, m Message) ([]byte, error) {
	s := stream.NewBufferOutputStream(&buf)
	if err := engine.EncodeMessage(s, m, m.ProtoDescriptor()); err != nil {
		return nil, err
	}
	return buf, nil
}

// Size returns the number of bytes Marshal(m) would produce, computed by
// running the encoder against a sizing stream that counts bytes without
// writing them.
func Size(m Message) (int, error) {
	s := stream.NewSizingStream()
	if err := engine.EncodeMessage(s, m, m.ProtoDescriptor()); err != nil {
		return 0, err
	}
	return int(s.BytesWritten), nil
}

// Unmarshal decodes the wire encoding in b into m, which must be a pointer
// to a zero-valued message: static fields are not zeroed before decoding.
// Any APointer fields already set on m are released first regardless, and
// the descriptor's default values, if any, are applied before b is read.
func Unmarshal(b []byte, m Message) error {
	s := stream.NewBufferInputStream(b)
	return engine.DecodeMessage(s, m, m.ProtoDescriptor(), engine.ModeBare)
}

// UnmarshalDelimited reads one length-prefixed message from the front of
// s, for callers concatenating messages back to back
// with no outer framing of their own.
func UnmarshalDelimited(s *stream.InputStream, m Message) error {
	return engine.DecodeMessage(s, m, m.ProtoDescriptor(), engine.ModeDelimited)
}
