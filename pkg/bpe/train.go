package bpe

import (
	"container/heap"
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ha1tch/yttmgo/internal/logging"
	"github.com/ha1tch/yttmgo/pkg/utf8codec"
	"github.com/ha1tch/yttmgo/pkg/wordfreq"
)

// milestoneInterval is how often (in applied merges) the training loop logs
// progress. Kept off the per-merge hot path: the check is a cheap modulo.
const milestoneInterval = 1000

// TrainConfig carries the parameters of one training run.
type TrainConfig struct {
	VocabSize int
	Coverage  float64
	Specials  Specials
	// Workers bounds the parallel fan-out used to map each word-type's code
	// points to alphabet ids before handoff to the single-threaded merge
	// coordinator. <= 0 means hardware concurrency.
	Workers int
}

// symbolNode is one arena slot: one code-point occurrence within one
// word-type's linked list, indices into the shared global arena.
type symbolNode struct {
	tokenID int
	prev    int
	next    int
	alive   bool
	count   uint64 // the owning word-type's frequency
}

// heapEntry is one snapshot of a pair's priority: count (primary), then the
// lexicographically smallest concatenated subword bytes (tie-break), then a
// version stamp used for lazy invalidation.
type heapEntry struct {
	count    uint64
	tieBreak string
	l, r     int
	version  uint64
}

type pairHeap []heapEntry

func (h pairHeap) Len() int { return len(h) }
func (h pairHeap) Less(i, j int) bool {
	if h[i].count != h[j].count {
		return h[i].count > h[j].count
	}
	return h[i].tieBreak < h[j].tieBreak
}
func (h pairHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *pairHeap) Push(x interface{}) { *h = append(*h, x.(heapEntry)) }
func (h *pairHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

// trainer owns all coordinator-side state for one Train call: the symbol
// arena, the authoritative pair-count/position indices, the lazily
// invalidated priority heap, and the running id->subword table. All of its
// methods run on a single goroutine (the merge coordinator) by construction.
type trainer struct {
	arena         []symbolNode
	pairCount     map[pairKey]uint64
	pairPositions map[pairKey]map[int]struct{}
	pairVersion   map[pairKey]uint64
	subwordOf     map[int]string
	heap          pairHeap
}

func newTrainer() *trainer {
	return &trainer{
		pairCount:     make(map[pairKey]uint64),
		pairPositions: make(map[pairKey]map[int]struct{}),
		pairVersion:   make(map[pairKey]uint64),
		subwordOf:     make(map[int]string),
	}
}

// touch applies delta to pairCount[key], records the position change, bumps
// the pair's version, and -- if the resulting count is still positive --
// pushes a fresh heap entry. Apart from Train clearing a pair once it has
// been merged, this is the only way pairCount, pairPositions, and the heap
// are mutated, so the three always stay consistent.
func (tr *trainer) touch(key pairKey, delta int64, node int, insert bool) {
	newCount := int64(tr.pairCount[key]) + delta
	if newCount <= 0 {
		delete(tr.pairCount, key)
		newCount = 0
	} else {
		tr.pairCount[key] = uint64(newCount)
	}

	if insert {
		set := tr.pairPositions[key]
		if set == nil {
			set = make(map[int]struct{})
			tr.pairPositions[key] = set
		}
		set[node] = struct{}{}
	} else if set, ok := tr.pairPositions[key]; ok {
		delete(set, node)
	}

	tr.pairVersion[key]++
	if newCount > 0 {
		heap.Push(&tr.heap, heapEntry{
			count:    uint64(newCount),
			tieBreak: tr.subwordOf[key.Left] + tr.subwordOf[key.Right],
			l:        key.Left,
			r:        key.Right,
			version:  tr.pairVersion[key],
		})
	}
}

// popValid pops heap entries until it finds one still matching the
// authoritative pairCount/pairVersion state, discarding everything stale
// along the way. ok is false once the heap is exhausted.
func (tr *trainer) popValid() (entry heapEntry, ok bool) {
	for tr.heap.Len() > 0 {
		e := heap.Pop(&tr.heap).(heapEntry)
		key := pairKey{e.l, e.r}
		if tr.pairVersion[key] != e.version {
			continue
		}
		if tr.pairCount[key] != e.count || e.count == 0 {
			continue
		}
		return e, true
	}
	return heapEntry{}, false
}

// wordTokens is the pure, parallelizable result of mapping one word-type's
// code points to alphabet ids, dropping any code point coverage excluded
// (per spec: uncovered occurrences are dropped from word-types entirely,
// not replaced by a live UNK symbol -- UNK never participates in training
// merges).
type wordTokens struct {
	ids   []int
	count uint64
}

// buildWordTokens maps every word-type's code points to alphabet ids in
// parallel, writing results into a slot indexed by the word's position in
// the (already sorted) keys slice -- so the result ordering is identical
// regardless of worker count, preserving determinism.
func buildWordTokens(ctx context.Context, keys []string, words map[string]uint64, cpToID map[utf8codec.CodePoint]int, workers int) ([]wordTokens, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(keys) {
		workers = len(keys)
	}
	out := make([]wordTokens, len(keys))
	if workers == 0 {
		return out, nil
	}

	chunkSize := (len(keys) + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(keys); start += chunkSize {
		end := start + chunkSize
		if end > len(keys) {
			end = len(keys)
		}
		start, end := start, end
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			for i := start; i < end; i++ {
				key := keys[i]
				count := words[key]
				runes := []rune(key)
				ids := make([]int, 0, len(runes))
				for _, cp := range runes {
					if id, ok := cpToID[utf8codec.CodePoint(cp)]; ok {
						ids = append(ids, id)
					}
				}
				out[i] = wordTokens{ids: ids, count: count}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Train runs the full training pipeline over ft and returns the finished
// Model. log receives merge-loop milestones; a nil log is treated as
// logging.NewNop().
func Train(ctx context.Context, ft *wordfreq.FreqTable, cfg TrainConfig, log logging.Logger) (*Model, error) {
	if log == nil {
		log = logging.NewNop()
	}
	if ft == nil || len(ft.Words) == 0 {
		return nil, ErrEmptyCorpus
	}
	if cfg.VocabSize <= 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "vocab_size must be positive")
	}

	alphabetChars := wordfreq.SelectAlphabet(ft, cfg.Coverage)
	alphabet := make([]utf8codec.CodePoint, len(alphabetChars))
	for i, c := range alphabetChars {
		alphabet[i] = c.CodePoint
	}

	vocabSize := NumSpecials + len(alphabet)
	if cfg.VocabSize < vocabSize {
		return nil, errors.Wrapf(ErrInvalidArgument, "vocab_size %d too small for %d specials+alphabet", cfg.VocabSize, vocabSize)
	}
	if err := cfg.Specials.validate(cfg.VocabSize); err != nil {
		return nil, err
	}
	alphabetIDs, nextID := allocateIDs(len(alphabet), cfg.Specials)
	targetMerges := cfg.VocabSize - vocabSize

	cpToID := make(map[utf8codec.CodePoint]int, len(alphabet))
	tr := newTrainer()
	for i, cp := range alphabet {
		id := alphabetIDs[i]
		cpToID[cp] = id
		tr.subwordOf[id] = string(cp)
	}

	keys := make([]string, 0, len(ft.Words))
	for w := range ft.Words {
		keys = append(keys, w)
	}
	sort.Strings(keys)

	tokensByWord, err := buildWordTokens(ctx, keys, ft.Words, cpToID, cfg.Workers)
	if err != nil {
		return nil, errors.Wrap(err, "bpe: building word token sequences")
	}

	for _, wt := range tokensByWord {
		if len(wt.ids) == 0 {
			continue
		}
		start := len(tr.arena)
		for i, id := range wt.ids {
			node := symbolNode{
				tokenID: id,
				prev:    -1,
				next:    -1,
				alive:   true,
				count:   wt.count,
			}
			if i > 0 {
				node.prev = start + i - 1
			}
			if i < len(wt.ids)-1 {
				node.next = start + i + 1
			}
			tr.arena = append(tr.arena, node)
		}
		for i := 0; i < len(wt.ids)-1; i++ {
			left := start + i
			key := pairKey{wt.ids[i], wt.ids[i+1]}
			tr.touch(key, int64(wt.count), left, true)
		}
	}

	reserved := make(map[int]bool, NumSpecials)
	for _, id := range cfg.Specials.ids() {
		reserved[id] = true
	}

	rules := make([]MergeRule, 0, targetMerges)
	lastMilestone := time.Now()
	for len(rules) < targetMerges {
		entry, ok := tr.popValid()
		if !ok {
			break
		}
		if entry.count <= 1 {
			break
		}

		l, r := entry.l, entry.r
		key := pairKey{l, r}
		o := nextID
		nextID++
		for reserved[nextID] {
			nextID++
		}
		tr.subwordOf[o] = tr.subwordOf[l] + tr.subwordOf[r]
		rules = append(rules, MergeRule{Left: l, Right: r, Result: o})

		positions := tr.pairPositions[key]
		nodeIndices := make([]int, 0, len(positions))
		for idx := range positions {
			nodeIndices = append(nodeIndices, idx)
		}
		sort.Ints(nodeIndices)

		for _, i := range nodeIndices {
			node := &tr.arena[i]
			if !node.alive || node.next == -1 {
				continue
			}
			q := node.next
			nq := &tr.arena[q]
			if !nq.alive || node.tokenID != l || nq.tokenID != r {
				continue
			}
			p := node.prev
			r2 := nq.next
			cnt := int64(node.count)

			if p != -1 {
				tr.touch(pairKey{tr.arena[p].tokenID, l}, -cnt, p, false)
			}
			if r2 != -1 {
				tr.touch(pairKey{r, tr.arena[r2].tokenID}, -cnt, q, false)
			}

			nq.alive = false
			node.tokenID = o
			node.next = r2
			if r2 != -1 {
				tr.arena[r2].prev = i
			}

			if p != -1 {
				tr.touch(pairKey{tr.arena[p].tokenID, o}, cnt, p, true)
			}
			if r2 != -1 {
				tr.touch(pairKey{o, tr.arena[r2].tokenID}, cnt, i, true)
			}
		}

		delete(tr.pairCount, key)
		delete(tr.pairPositions, key)
		tr.pairVersion[key]++

		if len(rules)%milestoneInterval == 0 {
			now := time.Now()
			log.Info("merge milestone",
				logging.Int("rules_applied", len(rules)),
				logging.Int("target_rules", targetMerges),
				logging.Duration("since_last_milestone", now.Sub(lastMilestone)),
			)
			lastMilestone = now
		}
	}

	if len(rules) < targetMerges {
		return nil, errors.Wrapf(ErrVocabTooLarge,
			"only %d of %d requested merges could be formed from this corpus", len(rules), targetMerges)
	}

	log.Info("training complete",
		logging.Int("alphabet_size", len(alphabet)),
		logging.Int("rules", len(rules)),
		logging.Int("vocab_size", cfg.VocabSize),
	)

	model := &Model{
		Alphabet: alphabet,
		Specials: cfg.Specials,
		Rules:    rules,
	}
	if err := model.finalize(); err != nil {
		return nil, err
	}
	return model, nil
}
