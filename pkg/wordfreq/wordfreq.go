// Package wordfreq streams a training corpus, segments it into
// whitespace-delimited words, and accumulates the frequencies the merge
// engine and alphabet selection need.
package wordfreq

import (
	"context"
	"io"
	"runtime"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ha1tch/yttmgo/pkg/chunk"
	"github.com/ha1tch/yttmgo/pkg/utf8codec"
)

// ErrEmptyCorpus is returned when the corpus contains no words at all.
var ErrEmptyCorpus = errors.New("wordfreq: empty corpus")

// FreqTable holds the word-type frequencies and the per-code-point
// occurrence counts gathered from a corpus.
type FreqTable struct {
	// Words maps a word (its code points rendered as a Go string, space
	// marker included) to its occurrence count.
	Words map[string]uint64
	// CodePoints maps each distinct code point seen (space marker
	// included) to its total occurrence count, for coverage selection.
	CodePoints map[utf8codec.CodePoint]uint64
}

// Character is one entry of a coverage-selected alphabet: a code point and
// its aggregate frequency across the corpus.
type Character struct {
	CodePoint utf8codec.CodePoint
	Freq      uint64
}

// Count streams r in full, splits it across workers chunk-wise (via
// pkg/chunk), and returns the merged word/code-point frequency table.
// workers <= 0 means "hardware concurrency".
func Count(ctx context.Context, r io.Reader, workers int) (*FreqTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "wordfreq: reading corpus")
	}
	if len(data) == 0 {
		return nil, ErrEmptyCorpus
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	ranges := chunk.Split(data, workers)

	shardTables := make([]*FreqTable, len(ranges))
	g, _ := errgroup.WithContext(ctx)
	for i, rng := range ranges {
		i, rng := i, rng
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			shardTables[i] = countShard(data[rng.Start:rng.End])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := &FreqTable{
		Words:      make(map[string]uint64),
		CodePoints: make(map[utf8codec.CodePoint]uint64),
	}
	for _, shard := range shardTables {
		for w, c := range shard.Words {
			merged.Words[w] += c
		}
		for cp, c := range shard.CodePoints {
			merged.CodePoints[cp] += c
		}
	}
	if len(merged.Words) == 0 {
		return nil, ErrEmptyCorpus
	}
	return merged, nil
}

// countShard segments one byte range into words, using lenient decoding so
// malformed bytes become a single replacement code point rather than
// aborting the training run (spec: corpus parse errors are recovered
// locally during training).
func countShard(data []byte) *FreqTable {
	ft := &FreqTable{
		Words:      make(map[string]uint64),
		CodePoints: make(map[utf8codec.CodePoint]uint64),
	}

	pos := 0
	word := make([]utf8codec.CodePoint, 0, 16)
	for pos < len(data) {
		cp, next := utf8codec.DecodeNextLenient(data, pos)
		pos = next
		if utf8codec.IsSpace(cp) {
			continue
		}

		word = word[:0]
		word = append(word, utf8codec.SpaceMarker)
		word = append(word, cp)
		for pos < len(data) {
			next2cp, next2 := utf8codec.DecodeNextLenient(data, pos)
			if utf8codec.IsSpace(next2cp) {
				break
			}
			word = append(word, next2cp)
			pos = next2
		}

		ft.Words[string(word)]++
		for _, c := range word {
			ft.CodePoints[c]++
		}
	}
	return ft
}

// SelectAlphabet sorts distinct code points by descending frequency (ties
// broken by ascending code point value, for determinism) and includes them
// in order until the cumulative frequency fraction reaches coverage. The
// remainder fall back to UNK at training time.
func SelectAlphabet(ft *FreqTable, coverage float64) []Character {
	chars := make([]Character, 0, len(ft.CodePoints))
	var total uint64
	for cp, freq := range ft.CodePoints {
		chars = append(chars, Character{CodePoint: cp, Freq: freq})
		total += freq
	}
	sort.Slice(chars, func(i, j int) bool {
		if chars[i].Freq != chars[j].Freq {
			return chars[i].Freq > chars[j].Freq
		}
		return chars[i].CodePoint < chars[j].CodePoint
	})

	if total == 0 {
		return nil
	}

	var cumulative uint64
	target := uint64(coverage * float64(total))
	cut := len(chars)
	for i, c := range chars {
		cumulative += c.Freq
		if cumulative >= target {
			cut = i + 1
			break
		}
	}
	return chars[:cut]
}
