package bpe

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/ha1tch/yttmgo/internal/corr"
	"github.com/ha1tch/yttmgo/internal/logging"
	"github.com/ha1tch/yttmgo/pkg/wordfreq"
)

// TrainFromCorpus is the one-call façade over word counting and training:
// it streams r, builds the frequency table, tags the run with a fresh
// correlation id, and trains a Model. It mirrors youtokentome.py's
// BPE.train classmethod, minus corpus-path plumbing (callers open their own
// io.Reader, matching this module's explicit-dependency style).
func TrainFromCorpus(ctx context.Context, r io.Reader, cfg TrainConfig, log logging.Logger) (*Model, error) {
	if log == nil {
		log = logging.NewNop()
	}
	runLog := log.With(logging.String("run_id", corr.NewRunID()))

	runLog.Info("counting corpus", logging.Int("workers", cfg.Workers))
	ft, err := wordfreq.Count(ctx, r, cfg.Workers)
	if err != nil {
		return nil, errors.Wrap(err, "bpe: counting corpus")
	}

	runLog.Info("training started",
		logging.Int("vocab_size", cfg.VocabSize),
		logging.Float64("coverage", cfg.Coverage),
	)
	model, err := Train(ctx, ft, cfg, runLog)
	if err != nil {
		return nil, err
	}
	return model, nil
}

// Vocab, SubwordToID, IDToSubword, VocabSize are already exposed directly on
// *Model (see model.go); Save/Load/SaveFile/LoadFile are exposed in
// serialize.go. This file only adds the operations that need more than one
// of those pieces wired together.

// EncodeSubwords is a convenience over EncodeBatch that resolves each id to
// its canonical subword string instead of returning raw ids, matching the
// façade's output=subword mode.
func (m *Model) EncodeSubwords(ctx context.Context, sentences []string, opts EncodeOptions) ([][]string, error) {
	idBatches, err := m.EncodeBatch(ctx, sentences, opts)
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(idBatches))
	for i, ids := range idBatches {
		subwords := make([]string, len(ids))
		for j, id := range ids {
			s, ok := m.IDToSubword(id)
			if !ok {
				return nil, errors.Wrapf(ErrUnknownToken, "id %d", id)
			}
			subwords[j] = s
		}
		out[i] = subwords
	}
	return out, nil
}
