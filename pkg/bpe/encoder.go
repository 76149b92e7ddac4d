package bpe

import (
	"bufio"
	"container/heap"
	"context"
	"io"
	"math/rand"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ha1tch/yttmgo/pkg/utf8codec"
	"github.com/ha1tch/yttmgo/pkg/wordpiece"
)

// EncodeOptions controls one EncodeBatch/EncodeStream call.
type EncodeOptions struct {
	BOS, EOS bool
	Reverse  bool
	// DropoutProb is BPE-dropout's per-pop rejection probability, in
	// [0,1]. 0 reproduces canonical greedy BPE.
	DropoutProb float64
	// Workers bounds EncodeBatch's fan-out. <= 0 means hardware
	// concurrency.
	Workers int
	// CustomTokens, if non-empty, are matched as whole literal units with
	// highest priority before BPE segmentation (resolves the original
	// "custom_tokens" parameter). Omitting it reproduces canonical
	// behavior exactly.
	CustomTokens map[string]int
	// Seed fixes the dropout RNG for reproducible tests; 0 derives a seed
	// from the current time.
	Seed int64
}

func (o EncodeOptions) validate() error {
	if o.DropoutProb < 0 || o.DropoutProb > 1 {
		return errors.Wrap(ErrInvalidArgument, "dropout_prob must be in [0,1]")
	}
	return nil
}

// wordNode is one per-word scratch linked-list slot; local to a single
// encodeWord call, never shared across words or goroutines.
type wordNode struct {
	tokenID int
	prev    int
	next    int
	alive   bool
}

type rankEntry struct {
	rank int
	node int
}

type rankHeap []rankEntry

func (h rankHeap) Len() int            { return len(h) }
func (h rankHeap) Less(i, j int) bool  { return h[i].rank < h[j].rank }
func (h rankHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *rankHeap) Push(x interface{}) { *h = append(*h, x.(rankEntry)) }
func (h *rankHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// encodeWordIDs takes one word already mapped to alphabet ids (space-marker
// id first) and runs the merge loop to completion, honoring dropout when
// dropoutProb is positive.
func (m *Model) encodeWordIDs(ids []int, dropoutProb float64, rng *rand.Rand) []int {
	if len(ids) == 0 {
		return nil
	}
	nodes := make([]wordNode, len(ids))
	for i, id := range ids {
		n := wordNode{tokenID: id, prev: -1, next: -1, alive: true}
		if i > 0 {
			n.prev = i - 1
		}
		if i < len(ids)-1 {
			n.next = i + 1
		}
		nodes[i] = n
	}

	h := make(rankHeap, 0, len(ids))
	pushIfKnown := func(left int) {
		if left == -1 || nodes[left].next == -1 {
			return
		}
		l, r := nodes[left].tokenID, nodes[nodes[left].next].tokenID
		if rank, _, ok := m.rankOf(l, r); ok {
			heap.Push(&h, rankEntry{rank: rank, node: left})
		}
	}
	for i := range nodes {
		pushIfKnown(i)
	}

	for h.Len() > 0 {
		e := heap.Pop(&h).(rankEntry)
		left := e.node
		if !nodes[left].alive || nodes[left].next == -1 {
			continue
		}
		right := nodes[left].next
		if !nodes[right].alive {
			continue
		}
		rank, result, ok := m.rankOf(nodes[left].tokenID, nodes[right].tokenID)
		if !ok || rank != e.rank {
			continue
		}

		if dropoutProb > 0 && rng.Float64() < dropoutProb {
			continue
		}

		p := nodes[left].prev
		q := nodes[right].next

		nodes[right].alive = false
		nodes[left].tokenID = result
		nodes[left].next = q
		if q != -1 {
			nodes[q].prev = left
		}

		pushIfKnown(p)
		pushIfKnown(left)
	}

	out := make([]int, 0, len(ids))
	for i := 0; i != -1; {
		if nodes[i].alive {
			out = append(out, nodes[i].tokenID)
		}
		i = nodes[i].next
	}
	return out
}

// encodeWordCodepoints maps decoded code points (space-marker already
// prepended) to alphabet ids and applies merges.
func (m *Model) encodeWordCodepoints(cps []utf8codec.CodePoint, dropoutProb float64, rng *rand.Rand) []int {
	ids := make([]int, len(cps))
	for i, cp := range cps {
		ids[i] = m.idForCodePoint(cp)
	}
	return m.encodeWordIDs(ids, dropoutProb, rng)
}

// encodeWordWithCustomTokens applies custom-token pre-segmentation (spec's
// resolved "custom_tokens" parameter): at each position, the longest
// registered custom token matching the remaining word string is emitted
// whole; runs of the word not covered by any custom token are handed to the
// ordinary BPE merge loop.
func (m *Model) encodeWordWithCustomTokens(word string, matcher *wordpiece.PrefixMatcher, dropoutProb float64, rng *rand.Rand) []int {
	var out []int
	var pendingStart int
	runes := []rune(word)

	flushPending := func(end int) {
		if end > pendingStart {
			out = append(out, m.encodeWordCodepoints(toCodePoints(runes[pendingStart:end]), dropoutProb, rng)...)
		}
	}

	i := 0
	for i < len(runes) {
		remainder := string(runes[i:])
		length, id, ok := matcher.LongestPrefix(remainder)
		if !ok {
			i++
			continue
		}
		flushPending(i)
		out = append(out, id)
		consumed := len([]rune(remainder[:length]))
		i += consumed
		pendingStart = i
	}
	flushPending(len(runes))
	return out
}

func toCodePoints(runes []rune) []utf8codec.CodePoint {
	out := make([]utf8codec.CodePoint, len(runes))
	for i, r := range runes {
		out[i] = utf8codec.CodePoint(r)
	}
	return out
}

// splitSentenceWords splits a sentence into whitespace-delimited words,
// decoding strictly: malformed UTF-8 is a hard error during inference.
func splitSentenceWords(sentence string) ([][]utf8codec.CodePoint, error) {
	data := []byte(sentence)
	var words [][]utf8codec.CodePoint
	var current []utf8codec.CodePoint

	pos := 0
	for pos < len(data) {
		cp, next, err := utf8codec.DecodeNext(data, pos)
		if err != nil {
			return nil, err
		}
		pos = next
		if utf8codec.IsSpace(cp) {
			if len(current) > 0 {
				words = append(words, current)
				current = nil
			}
			continue
		}
		if len(current) == 0 {
			current = append(current, utf8codec.SpaceMarker)
		}
		current = append(current, cp)
	}
	if len(current) > 0 {
		words = append(words, current)
	}
	return words, nil
}

// encodeSentence encodes one sentence into a flat id sequence (words keep
// their space-marker prefix, so no explicit separator token is needed).
func (m *Model) encodeSentence(sentence string, opts EncodeOptions, rng *rand.Rand) ([]int, error) {
	words, err := splitSentenceWords(sentence)
	if err != nil {
		return nil, errors.Wrap(err, "bpe: encoding sentence")
	}

	var matcher *wordpiece.PrefixMatcher
	if len(opts.CustomTokens) > 0 {
		matcher = wordpiece.NewPrefixMatcher(opts.CustomTokens)
	}

	var ids []int
	if opts.BOS {
		ids = append(ids, m.Specials.BosID)
	}
	for _, w := range words {
		if matcher != nil {
			ids = append(ids, m.encodeWordWithCustomTokens(string(runesOf(w)), matcher, opts.DropoutProb, rng)...)
		} else {
			ids = append(ids, m.encodeWordCodepoints(w, opts.DropoutProb, rng)...)
		}
	}
	if opts.EOS {
		ids = append(ids, m.Specials.EosID)
	}
	if opts.Reverse {
		reverseInPlace(ids)
	}
	return ids, nil
}

func runesOf(cps []utf8codec.CodePoint) []rune {
	out := make([]rune, len(cps))
	for i, cp := range cps {
		out[i] = rune(cp)
	}
	return out
}

func reverseInPlace(ids []int) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}

// EncodeBatch encodes an ordered sequence of sentences in parallel, each
// worker task encoding one contiguous range of sentences; output order
// matches input order regardless of scheduling.
func (m *Model) EncodeBatch(ctx context.Context, sentences []string, opts EncodeOptions) ([][]int, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if len(sentences) == 0 {
		return nil, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(sentences) {
		workers = len(sentences)
	}

	out := make([][]int, len(sentences))
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	chunkSize := (len(sentences) + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(sentences); start += chunkSize {
		end := start + chunkSize
		if end > len(sentences) {
			end = len(sentences)
		}
		start, end := start, end
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed + int64(start)))
			for i := start; i < end; i++ {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				ids, err := m.encodeSentence(sentences[i], opts, rng)
				if err != nil {
					return err
				}
				out[i] = ids
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// OutputType selects how EncodeStream renders each line's token sequence.
type OutputType int

const (
	// OutputID writes space-separated integer ids (the default).
	OutputID OutputType = iota
	// OutputSubword writes space-separated canonical subword strings,
	// visible space-marker included.
	OutputSubword
)

// EncodeStream reads newline-delimited sentences from r, encodes each line
// independently, and writes the resulting token sequence (one per line,
// space separated, rendered per output) to w, flushing per line. Used for
// shell pipelines where buffering the whole input isn't acceptable.
func (m *Model) EncodeStream(ctx context.Context, r io.Reader, w io.Writer, output OutputType, opts EncodeOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	if opts.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		ids, err := m.encodeSentence(scanner.Text(), opts, rng)
		if err != nil {
			return err
		}
		switch output {
		case OutputSubword:
			err = m.writeSubwordLine(bw, ids)
		default:
			err = writeIDLine(bw, ids)
		}
		if err != nil {
			return errors.Wrap(err, "bpe: writing stream output")
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "bpe: reading stream input")
	}
	return nil
}

func writeIDLine(w *bufio.Writer, ids []int) error {
	for i, id := range ids {
		if i > 0 {
			if _, err := w.WriteRune(' '); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(itoa(id)); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

// writeSubwordLine renders ids as their canonical subword strings, space
// separated, one line. Mirrors EncodeSubwords' resolution so batch and
// streaming encode report the same error for an id outside the model's
// vocabulary (only reachable via custom tokens that were never resolved).
func (m *Model) writeSubwordLine(w *bufio.Writer, ids []int) error {
	for i, id := range ids {
		if i > 0 {
			if _, err := w.WriteRune(' '); err != nil {
				return err
			}
		}
		s, ok := m.IDToSubword(id)
		if !ok {
			return errors.Wrapf(ErrUnknownToken, "id %d", id)
		}
		if _, err := w.WriteString(s); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// Decode assembles the canonical strings of ids in order, skipping any id
// present in ignoreIDs, replaces the space-marker with ASCII space, and
// strips the single leading space introduced by the first word's marker.
func (m *Model) Decode(ids []int, ignoreIDs map[int]bool) (string, error) {
	var raw []byte
	for _, id := range ids {
		if ignoreIDs != nil && ignoreIDs[id] {
			continue
		}
		s, ok := m.IDToSubword(id)
		if !ok {
			return "", errors.Wrapf(ErrUnknownToken, "id %d", id)
		}
		raw = append(raw, s...)
	}
	out := replaceMarker(string(raw))
	if len(out) > 0 && out[0] == ' ' {
		out = out[1:]
	}
	return out, nil
}
