package bpe

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	model := trainToyModel(t)

	ids, err := model.EncodeBatch(context.Background(), []string{"hello world", "general kenobi"}, EncodeOptions{})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	for i, sentence := range []string{"hello world", "general kenobi"} {
		text, err := model.Decode(ids[i], nil)
		require.NoError(t, err)
		require.Equal(t, sentence, text)
	}
}

func TestEncodeBatchPreservesOrderAcrossWorkers(t *testing.T) {
	model := trainToyModel(t)
	sentences := make([]string, 40)
	for i := range sentences {
		if i%2 == 0 {
			sentences[i] = "hello world"
		} else {
			sentences[i] = "general kenobi"
		}
	}

	single, err := model.EncodeBatch(context.Background(), sentences, EncodeOptions{Workers: 1})
	require.NoError(t, err)
	multi, err := model.EncodeBatch(context.Background(), sentences, EncodeOptions{Workers: 8})
	require.NoError(t, err)

	require.Equal(t, single, multi)
}

func TestEncodeBOSEOSFraming(t *testing.T) {
	model := trainToyModel(t)
	ids, err := model.EncodeBatch(context.Background(), []string{"hello"}, EncodeOptions{BOS: true, EOS: true})
	require.NoError(t, err)

	require.Equal(t, model.Specials.BosID, ids[0][0])
	require.Equal(t, model.Specials.EosID, ids[0][len(ids[0])-1])
}

func TestEncodeReverseAppliesAfterFraming(t *testing.T) {
	model := trainToyModel(t)
	forward, err := model.EncodeBatch(context.Background(), []string{"hello world"}, EncodeOptions{BOS: true, EOS: true})
	require.NoError(t, err)
	reversed, err := model.EncodeBatch(context.Background(), []string{"hello world"}, EncodeOptions{BOS: true, EOS: true, Reverse: true})
	require.NoError(t, err)

	// Reverse happens after BOS/EOS placement, so EOS comes first and BOS last.
	require.Equal(t, model.Specials.EosID, reversed[0][0])
	require.Equal(t, model.Specials.BosID, reversed[0][len(reversed[0])-1])

	middleForward := forward[0][1 : len(forward[0])-1]
	middleReversed := reversed[0][1 : len(reversed[0])-1]
	require.Len(t, middleReversed, len(middleForward))
	for i := range middleForward {
		require.Equal(t, middleForward[i], middleReversed[len(middleReversed)-1-i])
	}
}

func TestEncodeDropoutZeroIsDeterministic(t *testing.T) {
	model := trainToyModel(t)
	a, err := model.EncodeBatch(context.Background(), []string{"hello world"}, EncodeOptions{DropoutProb: 0})
	require.NoError(t, err)
	b, err := model.EncodeBatch(context.Background(), []string{"hello world"}, EncodeOptions{DropoutProb: 0})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestEncodeDropoutOneRejectsEveryMerge(t *testing.T) {
	model := trainToyModel(t)
	ids, err := model.EncodeBatch(context.Background(), []string{"hello world"}, EncodeOptions{DropoutProb: 1, Seed: 42})
	require.NoError(t, err)

	// With every popped merge rejected, each code point (including the
	// per-word space marker) stays its own alphabet-mapped symbol.
	var wantLen int
	for _, w := range []string{"hello", "world"} {
		wantLen += len(w) + 1 // +1 for the leading space marker
	}
	require.Len(t, ids[0], wantLen)
}

func TestEncodeRejectsInvalidUTF8(t *testing.T) {
	model := trainToyModel(t)
	_, err := model.EncodeBatch(context.Background(), []string{string([]byte{0xff, 0xfe})}, EncodeOptions{})
	require.Error(t, err)
}

func TestEncodeRejectsBadDropoutProb(t *testing.T) {
	model := trainToyModel(t)
	_, err := model.EncodeBatch(context.Background(), []string{"hello"}, EncodeOptions{DropoutProb: 1.5})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDecodeSkipsIgnoredIDs(t *testing.T) {
	model := trainToyModel(t)
	ids, err := model.EncodeBatch(context.Background(), []string{"hello"}, EncodeOptions{BOS: true, EOS: true})
	require.NoError(t, err)

	ignore := map[int]bool{model.Specials.BosID: true, model.Specials.EosID: true}
	text, err := model.Decode(ids[0], ignore)
	require.NoError(t, err)
	require.Equal(t, "hello", text)
}

func TestEncodeCustomTokensMatchWholeUnit(t *testing.T) {
	model := trainToyModel(t)
	customID := model.VocabSize() + 100 // outside the model's own id space, as a custom tag

	ids, err := model.EncodeBatch(context.Background(), []string{"hello world"}, EncodeOptions{
		CustomTokens: map[string]int{"hello": customID},
	})
	require.NoError(t, err)
	require.Contains(t, ids[0], customID)
}

func TestEncodeStreamWritesOneLinePerInput(t *testing.T) {
	model := trainToyModel(t)
	var out bytes.Buffer
	err := model.EncodeStream(context.Background(), strings.NewReader("hello world\ngeneral kenobi\n"), &out, OutputID, EncodeOptions{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
}

func TestEncodeStreamSubwordOutputMatchesBatch(t *testing.T) {
	model := trainToyModel(t)
	sentences := "hello world\ngeneral kenobi\n"

	var streamed bytes.Buffer
	err := model.EncodeStream(context.Background(), strings.NewReader(sentences), &streamed, OutputSubword, EncodeOptions{})
	require.NoError(t, err)
	streamedLines := strings.Split(strings.TrimRight(streamed.String(), "\n"), "\n")

	batched, err := model.EncodeSubwords(context.Background(), []string{"hello world", "general kenobi"}, EncodeOptions{})
	require.NoError(t, err)

	require.Len(t, streamedLines, len(batched))
	for i, subwords := range batched {
		require.Equal(t, strings.Join(subwords, " "), streamedLines[i])
	}
}
