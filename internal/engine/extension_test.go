package engine

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzottmann/nanopb/descriptor"
	"github.com/nzottmann/nanopb/internal/pointer"
	"github.com/nzottmann/nanopb/stream"
	"github.com/nzottmann/nanopb/wire"
)

// extHost has a single EXTENSION-typed placeholder field at tag 100: every
// tag at or above that is tried against the *descriptor.Extension chain
// stored there instead of being skipped outright.
type extHost struct {
	Ext *descriptor.Extension
}

var extHostDesc = &descriptor.MessageDescriptor{
	FieldInfo: descriptor.EncodeFieldInfo(100,
		descriptor.MakeType(descriptor.LTypeExtension, descriptor.HTypeOptional, descriptor.AStatic),
		1, uint32(unsafe.Offsetof(extHost{}.Ext)), 8, 0),
	FieldCount: 1,
}

func uvarintExtensionType(tag uint32) *descriptor.ExtensionType {
	return &descriptor.ExtensionType{
		Type: descriptor.FieldInfo{
			Tag:      tag,
			Type:     descriptor.MakeType(descriptor.LTypeUvarint, descriptor.HTypeOptional, descriptor.AStatic),
			DataSize: 4,
		},
	}
}

func TestFindExtensionFieldLocatesPlaceholderAndItsRangeStart(t *testing.T) {
	base := pointer.OfMessage(&extHost{})
	head, start, ok := findExtensionField(base, extHostDesc)
	assert.True(t, ok)
	assert.Nil(t, head)
	assert.Equal(t, uint32(100), start)
}

func TestFindExtensionFieldReportsAbsenceWhenNoPlaceholderDeclared(t *testing.T) {
	plainDesc := &descriptor.MessageDescriptor{
		FieldInfo: descriptor.EncodeFieldInfo(1,
			descriptor.MakeType(descriptor.LTypeUvarint, descriptor.HTypeOptional, descriptor.AStatic),
			1, 0, 4, 0),
		FieldCount: 1,
	}
	_, _, ok := findExtensionField(pointer.OfMessage(&extHost{}), plainDesc)
	assert.False(t, ok)
}

func TestDecodeExtensionChainDefaultDecoderClaimsMatchingTag(t *testing.T) {
	var got uint32
	ext := &descriptor.Extension{Type: uvarintExtensionType(150), Dest: &got}

	// Just the value body: the tag itself is consumed by the caller before
	// decodeExtensionChain is ever reached.
	s := stream.NewBufferInputStream([]byte{0x07})
	err := decodeExtensionChain(s, 150, wire.WireVarint, ext)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got)
	assert.True(t, ext.Found)
}

func TestDecodeExtensionChainSkipsNonMatchingNodes(t *testing.T) {
	var a, b uint32
	second := &descriptor.Extension{Type: uvarintExtensionType(151), Dest: &b}
	first := &descriptor.Extension{Type: uvarintExtensionType(150), Dest: &a, Next: second}

	s := stream.NewBufferInputStream([]byte{0x09})
	err := decodeExtensionChain(s, 151, wire.WireVarint, first)
	require.NoError(t, err)
	assert.False(t, first.Found)
	assert.True(t, second.Found)
	assert.Equal(t, uint32(9), b)
}

func TestDecodeExtensionChainLeavesFieldUnclaimedWhenNoNodeMatches(t *testing.T) {
	var a uint32
	ext := &descriptor.Extension{Type: uvarintExtensionType(150), Dest: &a}

	s := stream.NewBufferInputStream([]byte{0x09})
	before := s.BytesLeft
	err := decodeExtensionChain(s, 999, wire.WireVarint, ext)
	require.NoError(t, err)
	assert.False(t, ext.Found)
	assert.Equal(t, before, s.BytesLeft)
}

func TestEncodeExtensionChainWritesEachNodeInOrder(t *testing.T) {
	a, b := uint32(5), uint32(6)
	second := &descriptor.Extension{Type: uvarintExtensionType(151), Dest: &b}
	first := &descriptor.Extension{Type: uvarintExtensionType(150), Dest: &a, Next: second}

	var buf []byte
	s := stream.NewBufferOutputStream(&buf)
	require.NoError(t, encodeExtensionChain(s, first))
	require.NotEmpty(t, buf)

	gotA, okA := decodeUvarintFieldForTest(buf, 150)
	gotB, okB := decodeUvarintFieldForTest(buf, 151)
	assert.True(t, okA)
	assert.True(t, okB)
	assert.Equal(t, uint32(5), gotA)
	assert.Equal(t, uint32(6), gotB)
}

// decodeUvarintFieldForTest is a tiny hand-rolled reader for this test's own
// encoded output, independent of decodeExtensionChain, so the encode test
// doesn't just check its own encode path agrees with a decoder built on the
// same assumptions.
func decodeUvarintFieldForTest(buf []byte, wantTag uint32) (uint32, bool) {
	for len(buf) > 0 {
		tagv, n := wire.ConsumeVarint(buf)
		if n == 0 {
			return 0, false
		}
		buf = buf[n:]
		tag, _ := wire.DecodeTag(tagv)
		val, n := wire.ConsumeVarint(buf)
		if n == 0 {
			return 0, false
		}
		buf = buf[n:]
		if tag == wantTag {
			return uint32(val), true
		}
	}
	return 0, false
}
