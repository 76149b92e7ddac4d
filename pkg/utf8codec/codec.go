// Package utf8codec decodes and classifies UTF-8 code points for the
// tokenizer's training and encoding paths.
//
// Decoding is hand-rolled rather than delegated to the standard library's
// utf8.DecodeRune because training and inference need different failure
// behavior on the same byte math: training replaces malformed sequences
// with the Unicode replacement character, inference reports ErrInvalidUTF8.
// A single continuation-byte validator backs both.
package utf8codec

import (
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CodePoint is a Unicode scalar value.
type CodePoint = rune

// SpaceMarker is the internal sentinel prepended to every word so that
// whitespace can be reconstructed from a bare token sequence.
const SpaceMarker CodePoint = '▁'

// VisibleMarker is how SpaceMarker renders in a subword's printable string.
const VisibleMarker = "▁"

// ReplacementChar is substituted for malformed byte sequences during
// training's lenient decode.
const ReplacementChar CodePoint = unicode.ReplacementChar

// ErrInvalidUTF8 is returned by DecodeNext when the input cannot be decoded.
var ErrInvalidUTF8 = errors.New("utf8codec: invalid UTF-8 sequence")

var lowerCaser = cases.Lower(language.Und)

// DecodeNext decodes the code point starting at pos, returning the code
// point and the position immediately after it. It is strict: any malformed
// sequence is reported as ErrInvalidUTF8, per spec for inference-time
// decoding.
func DecodeNext(b []byte, pos int) (CodePoint, int, error) {
	cp, n, ok := decode(b, pos)
	if !ok {
		return 0, pos, errors.Wrapf(ErrInvalidUTF8, "at byte offset %d", pos)
	}
	return cp, pos + n, nil
}

// DecodeNextLenient decodes the code point starting at pos. Malformed
// sequences are replaced with a single ReplacementChar and consume exactly
// one byte, matching the training-time recovery policy.
func DecodeNextLenient(b []byte, pos int) (CodePoint, int) {
	cp, n, ok := decode(b, pos)
	if !ok {
		return ReplacementChar, pos + 1
	}
	return cp, pos + n
}

// decode implements the raw UTF-8 byte math: (code point, byte length, ok).
func decode(b []byte, pos int) (CodePoint, int, bool) {
	if pos >= len(b) {
		return 0, 0, false
	}
	b0 := b[pos]

	if b0 < 0x80 {
		return CodePoint(b0), 1, true
	}

	switch {
	case b0&0xE0 == 0xC0: // 2-byte sequence
		if pos+1 >= len(b) || !isContinuation(b[pos+1]) {
			return 0, 0, false
		}
		cp := CodePoint(b0&0x1F)<<6 | CodePoint(b[pos+1]&0x3F)
		if cp < 0x80 {
			return 0, 0, false // overlong encoding
		}
		return cp, 2, true

	case b0&0xF0 == 0xE0: // 3-byte sequence
		if pos+2 >= len(b) || !isContinuation(b[pos+1]) || !isContinuation(b[pos+2]) {
			return 0, 0, false
		}
		cp := CodePoint(b0&0x0F)<<12 | CodePoint(b[pos+1]&0x3F)<<6 | CodePoint(b[pos+2]&0x3F)
		if cp < 0x800 || (cp >= 0xD800 && cp <= 0xDFFF) {
			return 0, 0, false // overlong or surrogate
		}
		return cp, 3, true

	case b0&0xF8 == 0xF0: // 4-byte sequence
		if pos+3 >= len(b) || !isContinuation(b[pos+1]) || !isContinuation(b[pos+2]) || !isContinuation(b[pos+3]) {
			return 0, 0, false
		}
		cp := CodePoint(b0&0x07)<<18 | CodePoint(b[pos+1]&0x3F)<<12 | CodePoint(b[pos+2]&0x3F)<<6 | CodePoint(b[pos+3]&0x3F)
		if cp < 0x10000 || cp > 0x10FFFF {
			return 0, 0, false // overlong or out of range
		}
		return cp, 4, true

	default:
		return 0, 0, false
	}
}

func isContinuation(b byte) bool {
	return b&0xC0 == 0x80
}

// Encode renders cp as UTF-8 bytes.
func Encode(cp CodePoint) []byte {
	buf := make([]byte, 4)
	n := encodeInto(buf, cp)
	return buf[:n]
}

// AppendEncode appends the UTF-8 encoding of cp to buf, returning the
// extended slice.
func AppendEncode(buf []byte, cp CodePoint) []byte {
	var tmp [4]byte
	n := encodeInto(tmp[:], cp)
	return append(buf, tmp[:n]...)
}

func encodeInto(buf []byte, cp CodePoint) int {
	switch {
	case cp < 0x80:
		buf[0] = byte(cp)
		return 1
	case cp < 0x800:
		buf[0] = 0xC0 | byte(cp>>6)
		buf[1] = 0x80 | byte(cp&0x3F)
		return 2
	case cp < 0x10000:
		buf[0] = 0xE0 | byte(cp>>12)
		buf[1] = 0x80 | byte((cp>>6)&0x3F)
		buf[2] = 0x80 | byte(cp&0x3F)
		return 3
	default:
		buf[0] = 0xF0 | byte(cp>>18)
		buf[1] = 0x80 | byte((cp>>12)&0x3F)
		buf[2] = 0x80 | byte((cp>>6)&0x3F)
		buf[3] = 0x80 | byte(cp&0x3F)
		return 4
	}
}

// IsSpace reports whether cp is whitespace: the Unicode White_Space
// property plus ASCII controls below 0x20.
func IsSpace(cp CodePoint) bool {
	if cp < 0x20 {
		return true
	}
	return unicode.IsSpace(cp)
}

// IsPunct reports whether cp is a Unicode punctuation or symbol character,
// for WordPiece's punctuation-splits-into-its-own-word rule.
func IsPunct(cp CodePoint) bool {
	return unicode.IsPunct(cp) || unicode.IsSymbol(cp)
}

// ToLower case-folds cp using Unicode-aware lowercasing, for training
// normalization.
func ToLower(cp CodePoint) CodePoint {
	lowered := lowerCaser.String(string(cp))
	for _, r := range lowered {
		return r
	}
	return cp
}
