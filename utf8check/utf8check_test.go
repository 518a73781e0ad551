package utf8check

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestValidASCII(t *testing.T) {
	assert.True(t, ValidString("hello world"))
}

func TestValidMultibyte(t *testing.T) {
	assert.True(t, ValidString("café 中文 \U0001F600"))
}

func TestRejectsOverlong2Byte(t *testing.T) {
	// 0xC0 0x80 is an overlong encoding of NUL.
	assert.False(t, Valid([]byte{0xc0, 0x80}))
}

func TestRejectsOverlong3Byte(t *testing.T) {
	assert.False(t, Valid([]byte{0xe0, 0x80, 0x80}))
}

func TestRejectsSurrogate(t *testing.T) {
	// U+D800, a lone high surrogate, encoded as three bytes.
	assert.False(t, Valid([]byte{0xed, 0xa0, 0x80}))
}

func TestRejectsNoncharacter(t *testing.T) {
	// U+FFFE, valid per stdlib but rejected here.
	b := []byte{0xef, 0xbf, 0xbe}
	assert.True(t, utf8.Valid(b), "stdlib accepts noncharacters")
	assert.False(t, Valid(b))
}

func TestRejectsBeyondMaxCodepoint(t *testing.T) {
	// 0xF5 starts a sequence that would decode past U+10FFFF.
	assert.False(t, Valid([]byte{0xf5, 0x80, 0x80, 0x80}))
}

func TestRejectsTruncatedSequence(t *testing.T) {
	assert.False(t, Valid([]byte{0xe4, 0xb8})) // missing 3rd byte of a CJK char
}

func TestEmptyIsValid(t *testing.T) {
	assert.True(t, Valid(nil))
}
