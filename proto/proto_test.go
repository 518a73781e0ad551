package proto

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzottmann/nanopb/descriptor"
	"github.com/nzottmann/nanopb/internal/engine"
)

// scenario1 holds a single proto3 singular uint32, matching the spec's
// worked example: {x: 150} encodes to 08 96 01.
type scenario1 struct {
	X uint32
}

var scenario1Desc = &descriptor.MessageDescriptor{
	FieldInfo: descriptor.EncodeFieldInfo(1,
		descriptor.MakeType(descriptor.LTypeUvarint, descriptor.HTypeOptional, descriptor.AStatic),
		1, uint32(unsafe.Offsetof(scenario1{}.X)), 4, 0),
	FieldCount: 1,
}

func (m *scenario1) ProtoDescriptor() *descriptor.MessageDescriptor { return scenario1Desc }

func TestScenario1SingleUint32(t *testing.T) {
	buf, err := Marshal(&scenario1{X: 150})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x96, 0x01}, buf)

	var got scenario1
	require.NoError(t, Unmarshal(buf, &got))
	assert.Equal(t, uint32(150), got.X)
}

func TestScenario1ZeroSuppressed(t *testing.T) {
	buf, err := Marshal(&scenario1{X: 0})
	require.NoError(t, err)
	assert.Empty(t, buf)
}

// scenario3 holds a single sint32, matching the spec's zigzag example:
// encode(-1) == 08 01.
type scenario3 struct {
	X int32
}

var scenario3Desc = &descriptor.MessageDescriptor{
	FieldInfo: descriptor.EncodeFieldInfo(1,
		descriptor.MakeType(descriptor.LTypeSvarint, descriptor.HTypeRequired, descriptor.AStatic),
		1, uint32(unsafe.Offsetof(scenario3{}.X)), 4, 0),
	FieldCount:         1,
	RequiredFieldCount: 1,
}

func (m *scenario3) ProtoDescriptor() *descriptor.MessageDescriptor { return scenario3Desc }

func TestScenario3SignedZigzag(t *testing.T) {
	buf, err := Marshal(&scenario3{X: -1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x01}, buf)

	var got scenario3
	require.NoError(t, Unmarshal(buf, &got))
	assert.Equal(t, int32(-1), got.X)
}

// scenario4 holds a single proto3 singular string field.
type scenario4 struct {
	Name string
}

var scenario4Desc = &descriptor.MessageDescriptor{
	FieldInfo: descriptor.EncodeFieldInfo(1,
		descriptor.MakeType(descriptor.LTypeString, descriptor.HTypeOptional, descriptor.AStatic),
		1, uint32(unsafe.Offsetof(scenario4{}.Name)), 0, 0),
	FieldCount: 1,
}

func (m *scenario4) ProtoDescriptor() *descriptor.MessageDescriptor { return scenario4Desc }

func TestScenario4String(t *testing.T) {
	buf, err := Marshal(&scenario4{Name: "abc"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0A, 0x03, 0x61, 0x62, 0x63}, buf)

	var got scenario4
	require.NoError(t, Unmarshal(buf, &got))
	assert.Equal(t, "abc", got.Name)
}

func TestScenario4RejectsOverlongUTF8(t *testing.T) {
	engine.ValidateUTF8 = true
	defer func() { engine.ValidateUTF8 = false }()

	var got scenario4
	err := Unmarshal([]byte{0x0A, 0x02, 0xC0, 0x80}, &got)
	assert.EqualError(t, err, "invalid utf8")
}

// scenario2 holds a repeated packed uint32 array, as a fixed-size static
// array with a preceding element count, matching the spec's [1,2,3] example.
type scenario2 struct {
	Count  uint32
	Values [8]uint32
}

var scenario2Desc = &descriptor.MessageDescriptor{
	FieldInfo: descriptor.EncodeFieldInfo(1,
		descriptor.MakeType(descriptor.LTypeUvarint, descriptor.HTypeRepeated, descriptor.AStatic),
		8, uint32(unsafe.Offsetof(scenario2{}.Values)), 4,
		int32(unsafe.Offsetof(scenario2{}.Count))-int32(unsafe.Offsetof(scenario2{}.Values))),
	FieldCount: 1,
}

func (m *scenario2) ProtoDescriptor() *descriptor.MessageDescriptor { return scenario2Desc }

func TestScenario2PackedRepeated(t *testing.T) {
	buf, err := Marshal(&scenario2{Count: 3, Values: [8]uint32{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0A, 0x03, 0x01, 0x02, 0x03}, buf)

	var got scenario2
	require.NoError(t, Unmarshal(buf, &got))
	assert.Equal(t, uint32(3), got.Count)
	assert.Equal(t, [8]uint32{1, 2, 3, 0, 0, 0, 0, 0}, got.Values)
}

func TestScenario2UnpackedDecodesSameMessage(t *testing.T) {
	unpacked := []byte{0x08, 0x01, 0x08, 0x02, 0x08, 0x03}
	var got scenario2
	require.NoError(t, Unmarshal(unpacked, &got))
	assert.Equal(t, uint32(3), got.Count)
	assert.Equal(t, uint32(1), got.Values[0])
	assert.Equal(t, uint32(2), got.Values[1])
	assert.Equal(t, uint32(3), got.Values[2])
}

// outer/inner model the spec's submessage scenario: outer field 1 holds an
// inner message with a single int32 field 1 == 42.
type innerMsg struct {
	Value int32
}

var innerDesc = &descriptor.MessageDescriptor{
	FieldInfo: descriptor.EncodeFieldInfo(1,
		descriptor.MakeType(descriptor.LTypeVarint, descriptor.HTypeRequired, descriptor.AStatic),
		1, uint32(unsafe.Offsetof(innerMsg{}.Value)), 4, 0),
	FieldCount:         1,
	RequiredFieldCount: 1,
}

func (m *innerMsg) ProtoDescriptor() *descriptor.MessageDescriptor { return innerDesc }

type outerMsg struct {
	Inner innerMsg
}

var outerDesc = &descriptor.MessageDescriptor{
	FieldInfo: descriptor.EncodeFieldInfo(1,
		descriptor.MakeType(descriptor.LTypeSubmessage, descriptor.HTypeRequired, descriptor.AStatic),
		1, uint32(unsafe.Offsetof(outerMsg{}.Inner)), 0, 0),
	SubmsgInfo:         []*descriptor.MessageDescriptor{innerDesc},
	FieldCount:         1,
	RequiredFieldCount: 1,
}

func (m *outerMsg) ProtoDescriptor() *descriptor.MessageDescriptor { return outerDesc }

func TestScenario5Submessage(t *testing.T) {
	buf, err := Marshal(&outerMsg{Inner: innerMsg{Value: 42}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0A, 0x02, 0x08, 0x2A}, buf)

	var got outerMsg
	require.NoError(t, Unmarshal(buf, &got))
	assert.Equal(t, int32(42), got.Inner.Value)
}

// scenario6 holds a FIXARRAY: a repeated field with a compile-time-fixed
// element count and no counter slot of its own (SizeOffset == 0), unlike
// scenario2's counted repeated field.
type scenario6 struct {
	Values [3]uint32
}

var scenario6Desc = &descriptor.MessageDescriptor{
	FieldInfo: descriptor.EncodeFieldInfo(1,
		descriptor.MakeType(descriptor.LTypeUvarint, descriptor.HTypeRepeated, descriptor.AStatic),
		3, uint32(unsafe.Offsetof(scenario6{}.Values)), 4, 0),
	FieldCount: 1,
}

func (m *scenario6) ProtoDescriptor() *descriptor.MessageDescriptor { return scenario6Desc }

func TestScenario6FixedCountUnpackedDecodesAllThree(t *testing.T) {
	unpacked := []byte{0x08, 0x01, 0x08, 0x02, 0x08, 0x03}
	var got scenario6
	require.NoError(t, Unmarshal(unpacked, &got))
	assert.Equal(t, [3]uint32{1, 2, 3}, got.Values)
}

func TestScenario6FixedCountPackedDecodesAllThree(t *testing.T) {
	packed := []byte{0x0A, 0x03, 0x01, 0x02, 0x03}
	var got scenario6
	require.NoError(t, Unmarshal(packed, &got))
	assert.Equal(t, [3]uint32{1, 2, 3}, got.Values)
}

func TestScenario6FixedCountShortOfTotalFails(t *testing.T) {
	short := []byte{0x08, 0x01, 0x08, 0x02}
	var got scenario6
	err := Unmarshal(short, &got)
	assert.EqualError(t, err, "wrong size for fixed count field")
}

func TestScenario6FixedCountPackedSubstreamNotDivisibleFails(t *testing.T) {
	// Length 2 but only 2 of the declared 3 elements arrive.
	short := []byte{0x0A, 0x02, 0x01, 0x02}
	var got scenario6
	err := Unmarshal(short, &got)
	assert.EqualError(t, err, "wrong size for fixed count field")
}

// oneofInner is the submessage used by scenario8's pointer-allocated arm.
type oneofInner struct {
	V int32
}

var oneofInnerDesc = &descriptor.MessageDescriptor{
	FieldInfo: descriptor.EncodeFieldInfo(1,
		descriptor.MakeType(descriptor.LTypeVarint, descriptor.HTypeRequired, descriptor.AStatic),
		1, uint32(unsafe.Offsetof(oneofInner{}.V)), 4, 0),
	FieldCount:         1,
	RequiredFieldCount: 1,
}

func (m *oneofInner) ProtoDescriptor() *descriptor.MessageDescriptor { return oneofInnerDesc }

// scenario7 is a oneof with two inline (AStatic) arms: int32 tag 1 and
// string tag 2, matching the spec's worked oneof example.
type scenario7 struct {
	Which uint32
	A     int32
	B     string
}

var scenario7Desc = &descriptor.MessageDescriptor{
	FieldInfo: append(
		descriptor.EncodeFieldInfo(1,
			descriptor.MakeType(descriptor.LTypeVarint, descriptor.HTypeOneof, descriptor.AStatic),
			1, uint32(unsafe.Offsetof(scenario7{}.A)), 4,
			int32(unsafe.Offsetof(scenario7{}.Which))-int32(unsafe.Offsetof(scenario7{}.A))),
		descriptor.EncodeFieldInfo(2,
			descriptor.MakeType(descriptor.LTypeString, descriptor.HTypeOneof, descriptor.AStatic),
			1, uint32(unsafe.Offsetof(scenario7{}.B)), 0,
			int32(unsafe.Offsetof(scenario7{}.Which))-int32(unsafe.Offsetof(scenario7{}.B)))...),
	FieldCount: 2,
}

func (m *scenario7) ProtoDescriptor() *descriptor.MessageDescriptor { return scenario7Desc }

func TestScenario7OneofSwitchesArmAndSetsDiscriminator(t *testing.T) {
	// arm A (tag 1, int32 7) followed by arm B (tag 2, string "foo").
	buf := []byte{0x08, 0x07, 0x12, 0x03, 0x66, 0x6F, 0x6F}
	var got scenario7
	require.NoError(t, Unmarshal(buf, &got))
	assert.Equal(t, uint32(2), got.Which)
	assert.Equal(t, "foo", got.B)
}

// scenario8 is a oneof whose first arm is a pointer-allocated submessage,
// to verify the prior arm's payload is released when decode switches away
// from it mid-stream.
type scenario8 struct {
	Which uint32
	A     *oneofInner
	B     int32
}

var scenario8Desc = &descriptor.MessageDescriptor{
	FieldInfo: append(
		descriptor.EncodeFieldInfo(1,
			descriptor.MakeType(descriptor.LTypeSubmessage, descriptor.HTypeOneof, descriptor.APointer),
			1, uint32(unsafe.Offsetof(scenario8{}.A)), uint32(unsafe.Sizeof(oneofInner{})),
			int32(unsafe.Offsetof(scenario8{}.Which))-int32(unsafe.Offsetof(scenario8{}.A))),
		descriptor.EncodeFieldInfo(2,
			descriptor.MakeType(descriptor.LTypeVarint, descriptor.HTypeOneof, descriptor.AStatic),
			1, uint32(unsafe.Offsetof(scenario8{}.B)), 4,
			int32(unsafe.Offsetof(scenario8{}.Which))-int32(unsafe.Offsetof(scenario8{}.B)))...),
	SubmsgInfo: []*descriptor.MessageDescriptor{oneofInnerDesc},
	FieldCount: 2,
}

func (m *scenario8) ProtoDescriptor() *descriptor.MessageDescriptor { return scenario8Desc }

func TestScenario8OneofReleasesPriorPointerArmOnSwitch(t *testing.T) {
	// arm A (tag 1, submessage {V: 5}) followed by arm B (tag 2, int32 9).
	buf := []byte{0x0A, 0x02, 0x08, 0x05, 0x10, 0x09}
	var got scenario8
	require.NoError(t, Unmarshal(buf, &got))
	assert.Equal(t, uint32(2), got.Which)
	assert.Equal(t, int32(9), got.B)
	assert.Nil(t, got.A)
}

func TestRequiredFieldEnforced(t *testing.T) {
	err := Unmarshal([]byte{}, &scenario3{})
	assert.EqualError(t, err, "missing required field")
}

func TestSizeMatchesMarshalLength(t *testing.T) {
	m := &scenario1{X: 1 << 20}
	n, err := Size(m)
	require.NoError(t, err)
	buf, err := Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
}
