package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 150, 1 << 20, 1<<63 - 1, math.MaxUint64}
	for _, x := range cases {
		buf := AppendVarint(nil, x)
		assert.Equal(t, SizeVarint(x), len(buf))
		got, n := ConsumeVarint(buf)
		require.NotZero(t, n)
		assert.Equal(t, x, got)
	}
}

func TestConsumeVarintTruncated(t *testing.T) {
	buf := AppendVarint(nil, 1<<20)
	_, n := ConsumeVarint(buf[:len(buf)-1])
	assert.Zero(t, n)
}

func TestConsumeVarintOverlong(t *testing.T) {
	// 10 bytes, but the 10th byte's payload exceeds what fits in 64 bits.
	buf := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x02}
	_, n := ConsumeVarint(buf)
	assert.Zero(t, n, "varint overflow must be rejected")
}

func TestConsumeVarint32SignExtension(t *testing.T) {
	// The canonical encoding of -1 cast through int32 is the 10-byte
	// sign-extended varint for 0xFFFFFFFFFFFFFFFF.
	buf := AppendVarint(nil, math.MaxUint64)
	x, n := ConsumeVarint32(buf)
	require.NotZero(t, n)
	assert.Equal(t, int32(-1), int32(x))
}

func TestConsumeVarint32RejectsBadSignExtension(t *testing.T) {
	// bit 31 is clear but the high bytes are not all zero: not a legal
	// sign-extension of a 32-bit value.
	buf := AppendVarint(nil, 0x1_0000_0001)
	_, n := ConsumeVarint32(buf)
	assert.Zero(t, n)
}

func TestZigzagLaw(t *testing.T) {
	for _, n := range []int64{0, -1, 1, -2, 2, math.MinInt64, math.MaxInt64} {
		got := EncodeZigzag64(n)
		want := uint64((n << 1) ^ (n >> 63))
		assert.Equal(t, want, got)
		assert.Equal(t, n, DecodeZigzag64(got))
	}
	for _, n := range []int32{0, -1, 1, -2, 2, math.MinInt32, math.MaxInt32} {
		got := EncodeZigzag32(n)
		assert.Equal(t, n, DecodeZigzag32(got))
	}
}

func TestFixed32RoundTrip(t *testing.T) {
	buf := AppendFixed32(nil, 0xdeadbeef)
	x, n := ConsumeFixed32(buf)
	require.Equal(t, 4, n)
	assert.Equal(t, uint32(0xdeadbeef), x)
}

func TestFixed64RoundTrip(t *testing.T) {
	buf := AppendFixed64(nil, 0x0102030405060708)
	x, n := ConsumeFixed64(buf)
	require.Equal(t, 8, n)
	assert.Equal(t, uint64(0x0102030405060708), x)
}

func TestTagRoundTrip(t *testing.T) {
	buf := AppendTag(nil, 1, WireString)
	v, n := ConsumeVarint(buf)
	require.NotZero(t, n)
	num, wt := DecodeTag(v)
	assert.Equal(t, uint32(1), num)
	assert.Equal(t, WireString, wt)
}

func TestNarrowFloat64(t *testing.T) {
	assert.InDelta(t, float64(float32(3.14)), float64(NarrowFloat64(3.14)), 1e-6)
	assert.True(t, math.IsInf(float64(NarrowFloat64(1e300)), 1))
	assert.True(t, math.IsInf(float64(NarrowFloat64(-1e300)), -1))
}

func TestExampleUint32_150(t *testing.T) {
	// Scenario 1 from the end-to-end table: field 1, UVARINT, value 150.
	buf := AppendTag(nil, 1, WireVarint)
	buf = AppendVarint(buf, 150)
	assert.Equal(t, []byte{0x08, 0x96, 0x01}, buf)
}
