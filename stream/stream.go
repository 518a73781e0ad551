// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stream provides the host I/O abstraction the codec encodes to
// and decodes from: a single read or write callback supplied by the
// caller, plus the length-delimited substream bookkeeping that submessages
// and packed arrays need. It deliberately does not wrap os.File or net.Conn
// directly — the host decides what "read" and "write" mean, which is what
// lets the same descriptor-driven engine run over a buffer, a socket, or a
// ring of flash pages without the core importing any of them.
package stream

import (
	"github.com/nzottmann/nanopb/internal/errors"
	"github.com/nzottmann/nanopb/wire"
)

// ReadFunc supplies bytes to an InputStream. A nil dst means "skip count
// bytes without copying them anywhere" — implementations must not require
// scratch storage from the caller to support that case. It returns false on
// any I/O failure; the stream is poisoned afterward and must not be reused.
type ReadFunc func(s *InputStream, dst []byte, count int) bool

// InputStream is a bounded, callback-driven source of bytes. BytesLeft is
// decremented as bytes are consumed and must reach zero exactly at the end
// of a well-formed message or submessage.
type InputStream struct {
	callback  ReadFunc
	State     interface{} // opaque, free for the callback implementation
	BytesLeft uint64
	errmsg    string
	poisoned  bool
}

// NewInputStream wraps callback as a bounded input stream of the given
// length. A nil callback with BUFFER_ONLY-style usage is not supported here;
// use NewBufferInputStream for the common in-memory case.
func NewInputStream(callback ReadFunc, state interface{}, length uint64) *InputStream {
	return &InputStream{callback: callback, State: state, BytesLeft: length}
}

// NewBufferInputStream returns an input stream that reads directly out of
// buf, the fast path used when BUFFER_ONLY semantics are in effect.
func NewBufferInputStream(buf []byte) *InputStream {
	state := &bufState{buf: buf}
	return NewInputStream(bufReadCallback, state, uint64(len(buf)))
}

type bufState struct {
	buf []byte
}

func bufReadCallback(s *InputStream, dst []byte, count int) bool {
	st := s.State.(*bufState)
	if len(st.buf) < count {
		return false
	}
	if dst != nil {
		copy(dst, st.buf[:count])
	}
	st.buf = st.buf[count:]
	return true
}

// Err reports the first error recorded against the stream, or nil.
func (s *InputStream) Err() error {
	if s.errmsg == "" {
		return nil
	}
	return errString(s.errmsg)
}

// SetError records msg as the stream's error if none has been recorded yet;
// the first error always wins ("sticky errmsg") so the root cause, not a
// downstream symptom, is what callers see.
func (s *InputStream) SetError(msg string) {
	if s.errmsg == "" {
		s.errmsg = msg
	}
	s.poisoned = true
}

// Poisoned reports whether an error has been recorded against the stream
// (every failed Read records one); once true the stream must not be read
// from again.
func (s *InputStream) Poisoned() bool { return s.poisoned }

// Read pulls count bytes into dst (or discards them, if dst is nil) and
// decrements BytesLeft. It fails with "end-of-stream" if fewer than count
// bytes remain, without invoking the callback at all, and otherwise
// delegates to the callback, recording "io error" on a callback failure.
func (s *InputStream) Read(dst []byte, count int) bool {
	if s.poisoned {
		return false
	}
	if uint64(count) > s.BytesLeft {
		s.SetError(errors.EndOfStream.Error())
		return false
	}
	if s.callback == nil {
		s.SetError(errors.IOError.Error())
		return false
	}
	if !s.callback(s, dst, count) {
		s.SetError(errors.IOError.Error())
		return false
	}
	s.BytesLeft -= uint64(count)
	return true
}

// Skip discards count bytes without copying them anywhere.
func (s *InputStream) Skip(count int) bool {
	return s.Read(nil, count)
}

// MakeStringSubstream reads a varint length prefix from s and returns a
// child stream bounded to that many bytes, sharing s's callback and state.
// It fails with "parent stream too short" if the declared length exceeds
// what remains in the parent.
func (s *InputStream) MakeStringSubstream() (*InputStream, bool) {
	lbuf := make([]byte, wire.MaxVarintBytes)
	n := 0
	for {
		if n >= len(lbuf) {
			s.SetError(errors.VarintOverflow.Error())
			return nil, false
		}
		if !s.Read(lbuf[n:n+1], 1) {
			return nil, false
		}
		b := lbuf[n]
		n++
		if b < 0x80 {
			break
		}
	}
	length, consumed := wire.ConsumeVarint(lbuf[:n])
	if consumed == 0 {
		s.SetError(errors.VarintOverflow.Error())
		return nil, false
	}
	if length > s.BytesLeft {
		s.SetError(errors.ParentStreamTooShort.Error())
		return nil, false
	}
	child := &InputStream{callback: s.callback, State: s.State, BytesLeft: length}
	s.BytesLeft -= length
	return child, true
}

// CloseStringSubstream drains any bytes the caller left unread in child into
// the parent stream's accounting and propagates the child's error, if any,
// to the parent.
func (s *InputStream) CloseStringSubstream(child *InputStream) bool {
	if child.BytesLeft > 0 {
		if !child.Skip(int(child.BytesLeft)) {
			s.SetError(child.errmsg)
			return false
		}
	}
	if err := child.errmsg; err != "" {
		s.SetError(err)
		return false
	}
	return true
}

// WriteFunc consumes bytes written to an OutputStream. It returns false on
// any I/O failure.
type WriteFunc func(s *OutputStream, buf []byte) bool

// OutputStream is a bounded, callback-driven sink of bytes. A nil callback
// turns the stream into a sizing stream: Write still advances BytesWritten
// so callers can measure an encoding without performing I/O.
type OutputStream struct {
	callback     WriteFunc
	State        interface{}
	BytesWritten uint64
	MaxSize      uint64
	errmsg       string
}

// NewOutputStream wraps callback as a bounded output stream. maxSize of 0
// means unbounded (bounded only by overflow of BytesWritten itself).
func NewOutputStream(callback WriteFunc, state interface{}, maxSize uint64) *OutputStream {
	return &OutputStream{callback: callback, State: state, MaxSize: maxSize}
}

// NewSizingStream returns an output stream with no callback: every Write
// succeeds and only tallies BytesWritten.
func NewSizingStream() *OutputStream {
	return &OutputStream{MaxSize: ^uint64(0)}
}

// NewBufferOutputStream returns an output stream that appends to *buf.
func NewBufferOutputStream(buf *[]byte) *OutputStream {
	st := &bufOutState{dst: buf}
	return NewOutputStream(bufWriteCallback, st, ^uint64(0))
}

type bufOutState struct {
	dst *[]byte
}

func bufWriteCallback(s *OutputStream, buf []byte) bool {
	st := s.State.(*bufOutState)
	*st.dst = append(*st.dst, buf...)
	return true
}

// Err reports the first error recorded against the stream, or nil.
func (s *OutputStream) Err() error {
	if s.errmsg == "" {
		return nil
	}
	return errString(s.errmsg)
}

// SetError records msg as the stream's error if none has been recorded yet.
func (s *OutputStream) SetError(msg string) {
	if s.errmsg == "" {
		s.errmsg = msg
	}
}

// IsSizing reports whether the stream has no callback and so only counts
// bytes rather than writing them.
func (s *OutputStream) IsSizing() bool { return s.callback == nil }

// Write appends buf to the stream. If MaxSize is nonzero and writing buf
// would make BytesWritten exceed it (checked so as to detect wraparound),
// the write fails with "stream full" and BytesWritten is left unchanged.
func (s *OutputStream) Write(buf []byte) bool {
	n := uint64(len(buf))
	if s.MaxSize != 0 {
		sum := s.BytesWritten + n
		if sum < s.BytesWritten || sum > s.MaxSize {
			s.SetError(errors.StreamFull.Error())
			return false
		}
	}
	if s.callback != nil {
		if !s.callback(s, buf) {
			s.SetError(errors.IOError.Error())
			return false
		}
	}
	s.BytesWritten += n
	return true
}

type errString string

func (e errString) Error() string { return string(e) }
