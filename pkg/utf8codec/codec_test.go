package utf8codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeNextASCII(t *testing.T) {
	cp, pos, err := DecodeNext([]byte("abc"), 0)
	require.NoError(t, err)
	require.Equal(t, CodePoint('a'), cp)
	require.Equal(t, 1, pos)
}

func TestDecodeNextMultiByte(t *testing.T) {
	text := "собирать"
	cp, pos, err := DecodeNext([]byte(text), 0)
	require.NoError(t, err)
	require.Equal(t, CodePoint('с'), cp)
	require.Equal(t, 2, pos)
}

func TestDecodeNextInvalid(t *testing.T) {
	_, _, err := DecodeNext([]byte{0xFF, 0x00}, 0)
	require.ErrorIs(t, err, ErrInvalidUTF8)

	// Truncated 3-byte sequence.
	_, _, err = DecodeNext([]byte{0xE0, 0x80}, 0)
	require.ErrorIs(t, err, ErrInvalidUTF8)

	// Overlong encoding of '/'.
	_, _, err = DecodeNext([]byte{0xC0, 0xAF}, 0)
	require.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestDecodeNextLenientReplacesMalformed(t *testing.T) {
	cp, pos := DecodeNextLenient([]byte{0xFF, 'a'}, 0)
	require.Equal(t, ReplacementChar, cp)
	require.Equal(t, 1, pos)

	cp, pos = DecodeNextLenient([]byte{0xFF, 'a'}, pos)
	require.Equal(t, CodePoint('a'), cp)
	require.Equal(t, 2, pos)
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, s := range []string{"a", "с", "€", "😀"} {
		r := []rune(s)[0]
		encoded := Encode(r)
		require.Equal(t, s, string(encoded))

		decoded, n, err := DecodeNext(encoded, 0)
		require.NoError(t, err)
		require.Equal(t, r, decoded)
		require.Equal(t, len(encoded), n)
	}
}

func TestIsSpace(t *testing.T) {
	require.True(t, IsSpace(' '))
	require.True(t, IsSpace('\t'))
	require.True(t, IsSpace('\n'))
	require.True(t, IsSpace(0x00)) // ASCII control
	require.False(t, IsSpace('a'))
}

func TestIsPunct(t *testing.T) {
	require.True(t, IsPunct(','))
	require.True(t, IsPunct('!'))
	require.False(t, IsPunct('a'))
	require.False(t, IsPunct(' '))
}

func TestToLower(t *testing.T) {
	require.Equal(t, CodePoint('a'), ToLower('A'))
	require.Equal(t, CodePoint('с'), ToLower('С'))
	require.Equal(t, CodePoint('a'), ToLower('a'))
}
