package bpe

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ha1tch/yttmgo/internal/logging"
	"github.com/ha1tch/yttmgo/pkg/wordfreq"
)

func countCorpus(t *testing.T, text string, workers int) *wordfreq.FreqTable {
	t.Helper()
	ft, err := wordfreq.Count(context.Background(), strings.NewReader(text), workers)
	require.NoError(t, err)
	return ft
}

func defaultSpecials() Specials {
	return Specials{PadID: 0, UnkID: 1, BosID: 2, EosID: 3}
}

func TestTrainEmptyCorpus(t *testing.T) {
	_, err := Train(context.Background(), nil, TrainConfig{VocabSize: 10, Coverage: 1, Specials: defaultSpecials()}, nil)
	require.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestTrainVocabTooSmallForAlphabet(t *testing.T) {
	ft := countCorpus(t, "aaabdaaabac", 1)
	_, err := Train(context.Background(), ft, TrainConfig{VocabSize: 3, Coverage: 1, Specials: defaultSpecials()}, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

// The very first merge on this corpus is unambiguous: ▁,a,a,a,b,d,a,a,a,b,a,c
// has pair (a,a) at count 4 (two occurrences of "aaa"), strictly greater
// than any other adjacent pair, so it must be the first rule regardless of
// tie-break direction.
func TestTrainFirstMergeIsUnambiguous(t *testing.T) {
	ft := countCorpus(t, "aaabdaaabac", 1)
	model, err := Train(context.Background(), ft, TrainConfig{
		VocabSize: NumSpecials + 5 + 1, // alphabet (▁,a,b,d,c) + one merge
		Coverage:  1,
		Specials:  defaultSpecials(),
	}, nil)
	require.NoError(t, err)
	require.Len(t, model.Rules, 1)

	rule := model.Rules[0]
	left, _ := model.IDToSubword(rule.Left)
	right, _ := model.IDToSubword(rule.Right)
	require.Equal(t, "a", left)
	require.Equal(t, "a", right)
}

func TestTrainDeterministicAcrossWorkerCounts(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 50) +
		strings.Repeat("pack my box with five dozen liquor jugs ", 50)

	cfg := TrainConfig{VocabSize: 80, Coverage: 1.0, Specials: defaultSpecials()}

	var models []*Model
	for _, workers := range []int{1, 2, 4, 8} {
		ft := countCorpus(t, text, workers)
		cfg.Workers = workers
		m, err := Train(context.Background(), ft, cfg, nil)
		require.NoError(t, err)
		models = append(models, m)
	}

	for i := 1; i < len(models); i++ {
		require.Equal(t, models[0].Vocab(), models[i].Vocab())
		require.Equal(t, models[0].Rules, models[i].Rules)
	}
}

func TestTrainIDContiguity(t *testing.T) {
	ft := countCorpus(t, strings.Repeat("hello world foo bar baz qux quux ", 30), 4)
	model, err := Train(context.Background(), ft, TrainConfig{
		VocabSize: 40, Coverage: 1.0, Specials: defaultSpecials(),
	}, nil)
	require.NoError(t, err)

	require.Equal(t, 40, model.VocabSize())
	seen := make(map[string]bool)
	for id := 0; id < model.VocabSize(); id++ {
		s, ok := model.IDToSubword(id)
		require.True(t, ok, "id %d must resolve to a subword", id)
		require.False(t, seen[s], "duplicate subword %q", s)
		seen[s] = true
	}
}

func TestTrainMergeRuleInvariantHolds(t *testing.T) {
	ft := countCorpus(t, strings.Repeat("mississippi river banks ", 40), 2)
	model, err := Train(context.Background(), ft, TrainConfig{
		VocabSize: 30, Coverage: 1.0, Specials: defaultSpecials(),
	}, nil)
	require.NoError(t, err)

	for _, rule := range model.Rules {
		left, ok := model.IDToSubword(rule.Left)
		require.True(t, ok)
		right, ok := model.IDToSubword(rule.Right)
		require.True(t, ok)
		result, ok := model.IDToSubword(rule.Result)
		require.True(t, ok)
		require.Equal(t, left+right, result)
	}
}

func TestTrainWithExplicitLogger(t *testing.T) {
	ft := countCorpus(t, strings.Repeat("aaaa bbbb cccc dddd eeee ffff gggg ", 200), 1)
	log := logging.NewNop()
	_, err := Train(context.Background(), ft, TrainConfig{
		VocabSize: 30, Coverage: 1.0, Specials: defaultSpecials(),
	}, log)
	require.NoError(t, err)
}
