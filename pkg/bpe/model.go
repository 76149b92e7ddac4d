package bpe

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/ha1tch/yttmgo/pkg/utf8codec"
)

// NumSpecials is the fixed number of reserved special tokens: PAD, UNK,
// BOS, EOS.
const NumSpecials = 4

// Specials holds the four reserved special token ids. They need not be
// contiguous or adjacent to each other; the model serializer records them
// verbatim and the id allocator reserves exactly these slots.
type Specials struct {
	PadID int
	UnkID int
	BosID int
	EosID int
}

// ids returns the four special ids in a fixed order (pad, unk, bos, eos).
func (s Specials) ids() [NumSpecials]int {
	return [NumSpecials]int{s.PadID, s.UnkID, s.BosID, s.EosID}
}

// names returns the canonical printable string for each special id, in the
// same order as ids().
func (s Specials) names() [NumSpecials]string {
	return [NumSpecials]string{"<PAD>", "<UNK>", "<BOS>", "<EOS>"}
}

// validate checks that the four special ids are distinct and fall within
// [0, vocabSize).
func (s Specials) validate(vocabSize int) error {
	ids := s.ids()
	seen := make(map[int]bool, NumSpecials)
	for _, id := range ids {
		if id < 0 || id >= vocabSize {
			return errors.Wrapf(ErrReservedIdCollision, "special id %d out of range [0,%d)", id, vocabSize)
		}
		if seen[id] {
			return errors.Wrapf(ErrReservedIdCollision, "duplicate special id %d", id)
		}
		seen[id] = true
	}
	return nil
}

// MergeRule is one learned merge: Left and Right are the ids of the two
// symbols merged, Result is the newly allocated id of the merged symbol.
// Its rank is implicit: its index within Model.Rules.
type MergeRule struct {
	Left   int
	Right  int
	Result int
}

// Model is the complete, immutable artifact produced by training: the
// coverage-selected alphabet, the four special tokens, the ordered list of
// merge rules, and the derived dense id -> canonical-string table.
type Model struct {
	Alphabet []utf8codec.CodePoint // order defines leaf ids, via allocateIDs
	Specials Specials
	Rules    []MergeRule

	// Derived, built by finalize().
	idToSubword    []string
	subwordToID    map[string]int
	codepointToID  map[utf8codec.CodePoint]int
	alphabetIDs    []int // alphabetIDs[i] is the id assigned to Alphabet[i]
	ruleIndexCache map[pairKey]int
}

// VocabSize returns the total number of ids in the model.
func (m *Model) VocabSize() int {
	return len(m.idToSubword)
}

// allocateIDs assigns ids to alphabet entries in array order, skipping any
// id reserved by specials, matching the scattered-specials layout the
// model format uses: specials may sit anywhere in [0, vocab_size), and
// organic ids simply route around them. It returns the alphabet ids and
// the cursor's final value (the next free id after the alphabet), so the
// merge engine can continue the same skip-reserved allocation for merge
// results.
func allocateIDs(alphabetLen int, specials Specials) (alphabetIDs []int, nextFree int) {
	reserved := make(map[int]bool, NumSpecials)
	for _, id := range specials.ids() {
		reserved[id] = true
	}
	alphabetIDs = make([]int, alphabetLen)
	cursor := 0
	for i := 0; i < alphabetLen; i++ {
		for reserved[cursor] {
			cursor++
		}
		alphabetIDs[i] = cursor
		cursor++
	}
	for reserved[cursor] {
		cursor++
	}
	return alphabetIDs, cursor
}

// finalize builds the dense id -> subword tables from Alphabet, Specials,
// and Rules. It is called once after training completes or a model file is
// loaded.
func (m *Model) finalize() error {
	alphabetIDs, _ := allocateIDs(len(m.Alphabet), m.Specials)
	m.alphabetIDs = alphabetIDs

	vocabSize := NumSpecials + len(m.Alphabet) + len(m.Rules)
	if err := m.Specials.validate(vocabSize); err != nil {
		return err
	}

	m.idToSubword = make([]string, vocabSize)
	m.codepointToID = make(map[utf8codec.CodePoint]int, len(m.Alphabet))

	specialIDs := m.Specials.ids()
	specialNames := m.Specials.names()
	for i, id := range specialIDs {
		m.idToSubword[id] = specialNames[i]
	}
	for i, cp := range m.Alphabet {
		id := alphabetIDs[i]
		m.idToSubword[id] = string(cp)
		m.codepointToID[cp] = id
	}
	for _, rule := range m.Rules {
		if rule.Left < 0 || rule.Left >= vocabSize || rule.Right < 0 || rule.Right >= vocabSize ||
			rule.Result < 0 || rule.Result >= vocabSize {
			return errors.Wrap(ErrModelCorrupt, "merge rule id out of range")
		}
		left, right := m.idToSubword[rule.Left], m.idToSubword[rule.Right]
		if left == "" || right == "" {
			return errors.Wrap(ErrModelCorrupt, "merge rule references an unassigned id")
		}
		m.idToSubword[rule.Result] = left + right
	}
	for id, s := range m.idToSubword {
		if s == "" {
			return errors.Wrapf(ErrModelCorrupt, "id %d was never assigned a subword", id)
		}
	}

	m.subwordToID = make(map[string]int, vocabSize)
	for id, s := range m.idToSubword {
		m.subwordToID[s] = id
	}
	m.buildRuleIndex()
	return nil
}

// Vocab returns the ordered list of every subword string, indexed by id.
func (m *Model) Vocab() []string {
	out := make([]string, len(m.idToSubword))
	copy(out, m.idToSubword)
	return out
}

// SubwordToID returns the id of a subword string.
func (m *Model) SubwordToID(s string) (int, bool) {
	id, ok := m.subwordToID[s]
	return id, ok
}

// IDToSubword returns the canonical printable string for an id.
func (m *Model) IDToSubword(id int) (string, bool) {
	if id < 0 || id >= len(m.idToSubword) {
		return "", false
	}
	return m.idToSubword[id], true
}

// idForCodePoint maps a code point to its alphabet id, or UnkID if the
// code point isn't covered by the alphabet.
func (m *Model) idForCodePoint(cp utf8codec.CodePoint) int {
	if id, ok := m.codepointToID[cp]; ok {
		return id
	}
	return m.Specials.UnkID
}

// rankOf returns the merge rank (insertion order, lower = earlier/higher
// priority) of the rule that merges (l, r) and that rule's result id; ok is
// false if no such rule exists.
// Safe for concurrent use: ruleIndexCache is built once in finalize() and
// only read afterward, including by concurrent encoders.
func (m *Model) rankOf(l, r int) (rank int, result int, ok bool) {
	id, found := m.ruleIndexCache[pairKey{l, r}]
	if !found {
		return 0, 0, false
	}
	return id, m.Rules[id].Result, true
}

type pairKey struct {
	Left, Right int
}

// buildRuleIndex is invoked once by finalize() to populate ruleIndexCache.
func (m *Model) buildRuleIndex() {
	idx := make(map[pairKey]int, len(m.Rules))
	for i, rule := range m.Rules {
		idx[pairKey{rule.Left, rule.Right}] = i
	}
	m.ruleIndexCache = idx
}

// replaceMarker is used by decode to turn the internal space marker back into
// ASCII space, kept as a named helper so the replacement policy lives in
// one place.
func replaceMarker(s string) string {
	return strings.ReplaceAll(s, utf8codec.VisibleMarker, " ")
}
