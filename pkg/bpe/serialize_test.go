package bpe

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ha1tch/yttmgo/pkg/wordfreq"
)

func trainToyModel(t *testing.T) *Model {
	t.Helper()
	ft, err := wordfreq.Count(context.Background(), strings.NewReader(
		strings.Repeat("hello world hello there general kenobi ", 20)), 2)
	require.NoError(t, err)
	model, err := Train(context.Background(), ft, TrainConfig{
		VocabSize: 40, Coverage: 1.0, Specials: defaultSpecials(),
	}, nil)
	require.NoError(t, err)
	return model
}

func TestSaveLoadRoundTrip(t *testing.T) {
	model := trainToyModel(t)

	var buf bytes.Buffer
	require.NoError(t, model.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)

	require.Equal(t, model.Vocab(), loaded.Vocab())
	require.Equal(t, model.Rules, loaded.Rules)
	require.Equal(t, model.Specials, loaded.Specials)
	require.Equal(t, model.VocabSize(), loaded.VocabSize())
}

func TestLoadRejectsBadMagic(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("NOPE12345678")))
	require.ErrorIs(t, err, ErrModelMagicMismatch)
}

func TestLoadRejectsTruncatedFile(t *testing.T) {
	model := trainToyModel(t)
	var buf bytes.Buffer
	require.NoError(t, model.Save(&buf))

	truncated := buf.Bytes()[:len(buf.Bytes())/2]
	_, err := Load(bytes.NewReader(truncated))
	require.Error(t, err)
}

func TestLoadRejectsBadVersion(t *testing.T) {
	model := trainToyModel(t)
	var buf bytes.Buffer
	require.NoError(t, model.Save(&buf))

	raw := buf.Bytes()
	raw[4] = 0xFF // corrupt the version field (little-endian u32 at offset 4)
	_, err := Load(bytes.NewReader(raw))
	require.ErrorIs(t, err, ErrModelVersionUnsupported)
}
