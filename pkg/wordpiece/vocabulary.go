package wordpiece

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/ha1tch/yttmgo/pkg/utf8codec"
)

// ContinuationPrefix marks a vocabulary entry as matching only inside a
// word, never at its start.
const ContinuationPrefix = "##"

// ErrEmptyVocabulary is returned when a vocabulary file has no entries.
var ErrEmptyVocabulary = errors.New("wordpiece: empty vocabulary")

// Vocabulary is a loaded, ready-to-match WordPiece vocabulary: the ordered
// entry list (continuation entries keep their "##" marker, as stored) plus
// the two trie automata used for the longest-match scan.
type Vocabulary struct {
	entries      []string
	prefix       *byteTrie
	continuation *byteTrie
}

// NewVocabulary builds a Vocabulary directly from an ordered entry list;
// entries[i]'s id is i.
func NewVocabulary(entries []string) (*Vocabulary, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyVocabulary
	}
	v := &Vocabulary{
		entries:      entries,
		prefix:       newByteTrie(),
		continuation: newByteTrie(),
	}
	for id, e := range entries {
		if strings.HasPrefix(e, ContinuationPrefix) {
			v.continuation.insert([]byte(strings.TrimPrefix(e, ContinuationPrefix)), id)
		} else {
			v.prefix.insert([]byte(e), id)
		}
	}
	return v, nil
}

// Size returns the number of entries in the vocabulary.
func (v *Vocabulary) Size() int { return len(v.entries) }

// Entry returns the canonical string (continuation marker included, if
// any) for id.
func (v *Vocabulary) Entry(id int) (string, bool) {
	if id < 0 || id >= len(v.entries) {
		return "", false
	}
	return v.entries[id], true
}

var (
	loadCacheMu sync.Mutex
	loadCache   = make(map[string]*Vocabulary)
)

// LoadVocabulary reads a newline-delimited vocabulary file (one entry per
// line, "##"-prefixed continuation entries as spec'd) and returns the
// parsed Vocabulary. Results are memoized by the path string as given, so repeated
// loads of the same file within a process are free; this generalizes the
// build-once-reuse shape of a fixed per-language singleton cache into one
// keyed by file path instead of a closed enum.
func LoadVocabulary(path string) (*Vocabulary, error) {
	loadCacheMu.Lock()
	if v, ok := loadCache[path]; ok {
		loadCacheMu.Unlock()
		return v, nil
	}
	loadCacheMu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "wordpiece: opening vocabulary file")
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "wordpiece: reading vocabulary file")
	}

	v, err := NewVocabulary(entries)
	if err != nil {
		return nil, err
	}

	loadCacheMu.Lock()
	loadCache[path] = v
	loadCacheMu.Unlock()
	return v, nil
}

// splitWords breaks text into whitespace- and punctuation-delimited words;
// each punctuation code point becomes its own single-character word.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, cp := range text {
		switch {
		case utf8codec.IsSpace(cp):
			flush()
		case utf8codec.IsPunct(cp):
			flush()
			words = append(words, string(cp))
		default:
			current.WriteRune(cp)
		}
	}
	flush()
	return words
}

// Encode tokenizes text: it is split into words (whitespace- and
// punctuation-delimited), and each word is resolved independently via
// longest prefix match followed by repeated longest continuation match. A
// word that cannot be fully covered resolves to a single -1.
func (v *Vocabulary) Encode(text string) []int {
	words := splitWords(text)
	out := make([]int, 0, len(words))
	for _, w := range words {
		out = append(out, v.encodeWord(w)...)
	}
	return out
}

func (v *Vocabulary) encodeWord(word string) []int {
	b := []byte(word)
	matchLen, id := v.prefix.longestMatch(b)
	if matchLen == 0 {
		return []int{-1}
	}
	ids := []int{id}
	pos := matchLen
	for pos < len(b) {
		contLen, contID := v.continuation.longestMatch(b[pos:])
		if contLen == 0 {
			return []int{-1}
		}
		ids = append(ids, contID)
		pos += contLen
	}
	return ids
}
