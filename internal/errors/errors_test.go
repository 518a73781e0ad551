package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindErrorReturnsItsOwnText(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{EndOfStream, "end-of-stream"},
		{IOError, "io error"},
		{StreamFull, "stream full"},
		{ParentStreamTooShort, "parent stream too short"},
		{VarintOverflow, "varint overflow"},
		{InvalidWireType, "invalid wire_type"},
		{WrongWireType, "wrong wire type"},
		{ZeroTag, "zero tag"},
		{InvalidFieldType, "invalid field type"},
		{InvalidFieldDescriptor, "invalid field descriptor"},
		{InvalidExtension, "invalid extension"},
		{MissingRequiredField, "missing required field"},
		{InvalidUnionTag, "invalid union tag"},
		{ArrayOverflow, "array overflow"},
		{TooManyArrayEntries, "too many array entries"},
		{ArrayMaxSizeExceeded, "array max size exceeded"},
		{BytesOverflow, "bytes overflow"},
		{StringOverflow, "string overflow"},
		{SizeTooLarge, "size too large"},
		{IncorrectFixedLengthBytes, "incorrect fixed length bytes size"},
		{WrongSizeForFixedCount, "wrong size for fixed count field"},
		{SubmsgSizeChanged, "submsg size changed"},
		{UnterminatedString, "unterminated string"},
		{ZeroLengthString, "zero-length string"},
		{InvalidUTF8, "invalid utf8"},
		{ReallocFailed, "realloc failed"},
		{NoMallocSupport, "no malloc support"},
		{CallbackFailed, "callback failed"},
		{CallbackError, "callback error"},
		{IntegerTooLarge, "integer too large"},
		{InvalidDataSize, "invalid data_size"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Error())
			var err error = tt.kind
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestKindEqualityIsUsableAsASentinel(t *testing.T) {
	var err error = MissingRequiredField
	assert.ErrorIs(t, err, MissingRequiredField)
	assert.NotErrorIs(t, err, ZeroTag)
}
