package main

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ha1tch/yttmgo/internal/logging"
	"github.com/ha1tch/yttmgo/pkg/bpe"
)

type bpeFlags struct {
	data      string
	model     string
	vocabSize int
	coverage  float64
	nThreads  int
	padID     int
	unkID     int
	bosID     int
	eosID     int
}

// newBPECmd builds the "bpe" subcommand: train a model from a corpus file
// and write it to disk. logPtr is read after PersistentPreRunE has run.
func newBPECmd(logPtr *logging.Logger) *cobra.Command {
	f := &bpeFlags{}
	cmd := &cobra.Command{
		Use:   "bpe",
		Short: "Train a BPE model from a text corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBPE(cmd, f, *logPtr)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.data, "data", "", "path to the training corpus (required)")
	flags.StringVar(&f.model, "model", "", "path to write the trained model (required)")
	flags.IntVar(&f.vocabSize, "vocab_size", 0, "target vocabulary size (required)")
	flags.Float64Var(&f.coverage, "coverage", 1.0, "fraction of corpus characters the alphabet must cover")
	flags.IntVar(&f.nThreads, "n_threads", -1, "worker count; -1 uses all available cores")
	flags.IntVar(&f.padID, "pad_id", 0, "id reserved for the padding token")
	flags.IntVar(&f.unkID, "unk_id", 1, "id reserved for the unknown token")
	flags.IntVar(&f.bosID, "bos_id", 2, "id reserved for the beginning-of-sentence token")
	flags.IntVar(&f.eosID, "eos_id", 3, "id reserved for the end-of-sentence token")
	cmd.MarkFlagRequired("data")
	cmd.MarkFlagRequired("model")
	cmd.MarkFlagRequired("vocab_size")

	return cmd
}

func runBPE(cmd *cobra.Command, f *bpeFlags, log logging.Logger) error {
	corpusFile, err := os.Open(f.data)
	if err != nil {
		return err
	}
	defer corpusFile.Close()

	info, err := corpusFile.Stat()
	if err == nil {
		log.Info("corpus opened", logging.String("path", f.data), logging.String("size", humanize.Bytes(uint64(info.Size()))))
	}

	workers := f.nThreads
	if workers < 0 {
		workers = 0 // 0 means "hardware concurrency" to pkg/bpe
	}

	model, err := bpe.TrainFromCorpus(cmd.Context(), corpusFile, bpe.TrainConfig{
		VocabSize: f.vocabSize,
		Coverage:  f.coverage,
		Workers:   workers,
		Specials: bpe.Specials{
			PadID: f.padID,
			UnkID: f.unkID,
			BosID: f.bosID,
			EosID: f.eosID,
		},
	}, log)
	if err != nil {
		return err
	}

	if err := model.SaveFile(f.model); err != nil {
		return err
	}

	cmd.Printf("trained model with %s tokens, written to %s\n", humanize.Comma(int64(model.VocabSize())), f.model)
	return nil
}
