// Package chunk splits a byte buffer into balanced ranges for worker
// threads without ever cutting a code point or a word in two.
package chunk

import "github.com/ha1tch/yttmgo/pkg/utf8codec"

// Range is a half-open byte range [Start, End) within the original buffer.
type Range struct {
	Start, End int
}

// Split partitions data into at most n ranges. Every boundary (other than
// 0 and len(data)) falls immediately after a whitespace code point; if a
// candidate boundary's chunk would contain no whitespace, the search
// extends forward until one is found or EOF is reached. Concatenating the
// ranges in order always reconstructs data exactly.
func Split(data []byte, n int) []Range {
	if n < 1 {
		n = 1
	}
	if len(data) == 0 {
		return []Range{{0, 0}}
	}
	if n == 1 {
		return []Range{{0, len(data)}}
	}

	chunkSize := len(data) / n
	if chunkSize == 0 {
		chunkSize = 1
	}

	bounds := make([]int, 0, n+1)
	bounds = append(bounds, 0)
	for i := 1; i < n; i++ {
		approx := i * chunkSize
		if approx >= len(data) {
			break
		}
		bounds = append(bounds, findBoundary(data, approx))
	}
	bounds = append(bounds, len(data))

	ranges := make([]Range, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		if bounds[i+1] <= bounds[i] {
			continue
		}
		ranges = append(ranges, Range{bounds[i], bounds[i+1]})
	}
	if len(ranges) == 0 {
		return []Range{{0, len(data)}}
	}
	// The last recorded range must always reach EOF.
	ranges[len(ranges)-1].End = len(data)
	return ranges
}

// findBoundary locates the first whitespace-following position at or after
// start, realigning to a code point boundary first so a split never lands
// inside a multi-byte sequence.
func findBoundary(data []byte, start int) int {
	pos := start
	for pos < len(data) && isContinuation(data[pos]) {
		pos++
	}
	for pos < len(data) {
		cp, next := utf8codec.DecodeNextLenient(data, pos)
		if utf8codec.IsSpace(cp) {
			return next
		}
		pos = next
	}
	return len(data)
}

func isContinuation(b byte) bool {
	return b&0xC0 == 0x80
}
