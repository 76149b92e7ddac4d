package bpe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateIDsSkipsReserved(t *testing.T) {
	specials := Specials{PadID: 0, UnkID: 1, BosID: 2, EosID: 3}
	ids, next := allocateIDs(5, specials)
	require.Equal(t, []int{4, 5, 6, 7, 8}, ids)
	require.Equal(t, 9, next)
}

func TestAllocateIDsScatteredSpecials(t *testing.T) {
	// Specials need not be contiguous or at the front of id space.
	specials := Specials{PadID: 0, UnkID: 10, BosID: 1, EosID: 2}
	ids, next := allocateIDs(3, specials)
	// ids 0,1,2 reserved up front -> alphabet gets the next free ids 3,4,5;
	// the scattered reservation at 10 isn't reached by this small alphabet.
	require.Equal(t, []int{3, 4, 5}, ids)
	require.Equal(t, 6, next)

	specials2 := Specials{PadID: 0, UnkID: 1, BosID: 2, EosID: 3}
	ids2, _ := allocateIDs(0, specials2)
	require.Empty(t, ids2)
}

func TestSpecialsValidateRejectsDuplicates(t *testing.T) {
	s := Specials{PadID: 0, UnkID: 0, BosID: 1, EosID: 2}
	err := s.validate(10)
	require.ErrorIs(t, err, ErrReservedIdCollision)
}

func TestSpecialsValidateRejectsOutOfRange(t *testing.T) {
	s := Specials{PadID: 0, UnkID: 1, BosID: 2, EosID: 10}
	err := s.validate(5)
	require.ErrorIs(t, err, ErrReservedIdCollision)
}

func TestFinalizeBuildsContiguousVocab(t *testing.T) {
	m := &Model{
		Alphabet: []rune{'a', 'b'},
		Specials: Specials{PadID: 0, UnkID: 1, BosID: 2, EosID: 3},
		Rules:    nil,
	}
	require.NoError(t, m.finalize())

	require.Equal(t, 6, m.VocabSize())
	vocab := m.Vocab()
	require.Equal(t, "<PAD>", vocab[0])
	require.Equal(t, "<UNK>", vocab[1])
	require.Equal(t, "<BOS>", vocab[2])
	require.Equal(t, "<EOS>", vocab[3])
	require.Equal(t, "a", vocab[4])
	require.Equal(t, "b", vocab[5])

	id, ok := m.SubwordToID("a")
	require.True(t, ok)
	require.Equal(t, 4, id)
}

func TestFinalizeAppliesMergeRules(t *testing.T) {
	m := &Model{
		Alphabet: []rune{'a', 'b'},
		Specials: Specials{PadID: 0, UnkID: 1, BosID: 2, EosID: 3},
		Rules:    []MergeRule{{Left: 4, Right: 5, Result: 6}},
	}
	require.NoError(t, m.finalize())

	s, ok := m.IDToSubword(6)
	require.True(t, ok)
	require.Equal(t, "ab", s)

	rank, result, ok := m.rankOf(4, 5)
	require.True(t, ok)
	require.Equal(t, 0, rank)
	require.Equal(t, 6, result)
}

func TestFinalizeRejectsOutOfRangeRule(t *testing.T) {
	m := &Model{
		Alphabet: []rune{'a'},
		Specials: Specials{PadID: 0, UnkID: 1, BosID: 2, EosID: 3},
		Rules:    []MergeRule{{Left: 4, Right: 99, Result: 5}},
	}
	err := m.finalize()
	require.ErrorIs(t, err, ErrModelCorrupt)
}
