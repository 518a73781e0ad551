// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errors collects the codec's fixed vocabulary of error kinds: every
// failure the wire engine can report is one of these stable English
// diagnostic strings, never a formatted, caller-specific message. Keeping
// them as named constants here, rather than scattered string literals at
// each call site, is what lets a caller match on a specific failure with a
// plain equality check against an error's Error() text.
package errors

// Kind is a sticky error kind: the engine's streams record the first Kind
// set against them and ignore every Set after that, so the root cause,
// not a downstream symptom, is what callers see.
type Kind string

func (k Kind) Error() string { return string(k) }

// Stream exhaustion.
const (
	EndOfStream          Kind = "end-of-stream"
	IOError              Kind = "io error"
	StreamFull           Kind = "stream full"
	ParentStreamTooShort Kind = "parent stream too short"
)

// Wire format.
const (
	VarintOverflow  Kind = "varint overflow"
	InvalidWireType Kind = "invalid wire_type"
	WrongWireType   Kind = "wrong wire type"
	ZeroTag         Kind = "zero tag"
)

// Schema.
const (
	InvalidFieldType       Kind = "invalid field type"
	InvalidFieldDescriptor Kind = "invalid field descriptor"
	InvalidExtension       Kind = "invalid extension"
	MissingRequiredField   Kind = "missing required field"
	InvalidUnionTag        Kind = "invalid union tag"
)

// Size and bounds.
const (
	ArrayOverflow             Kind = "array overflow"
	TooManyArrayEntries       Kind = "too many array entries"
	ArrayMaxSizeExceeded      Kind = "array max size exceeded"
	BytesOverflow             Kind = "bytes overflow"
	StringOverflow            Kind = "string overflow"
	SizeTooLarge              Kind = "size too large"
	IncorrectFixedLengthBytes Kind = "incorrect fixed length bytes size"
	WrongSizeForFixedCount    Kind = "wrong size for fixed count field"
)

// Encoding side.
const (
	SubmsgSizeChanged  Kind = "submsg size changed"
	UnterminatedString Kind = "unterminated string"
	ZeroLengthString   Kind = "zero-length string"
)

// Content.
const InvalidUTF8 Kind = "invalid utf8"

// Dynamic storage.
const (
	ReallocFailed   Kind = "realloc failed"
	NoMallocSupport Kind = "no malloc support"
)

// Callbacks.
const (
	CallbackFailed Kind = "callback failed"
	CallbackError  Kind = "callback error"
)

// Integer narrowing.
const (
	IntegerTooLarge Kind = "integer too large"
	InvalidDataSize Kind = "invalid data_size"
)
