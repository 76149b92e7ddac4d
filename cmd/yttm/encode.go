package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ha1tch/yttmgo/internal/logging"
	"github.com/ha1tch/yttmgo/pkg/bpe"
)

type encodeFlags struct {
	model       string
	outputType  string
	nThreads    int
	bos         bool
	eos         bool
	reverse     bool
	stream      bool
	dropoutProb float64
}

func newEncodeCmd(logPtr *logging.Logger) *cobra.Command {
	f := &encodeFlags{}
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode stdin sentences with a trained model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(cmd, f, *logPtr)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.model, "model", "", "path to a trained model file (required)")
	flags.StringVar(&f.outputType, "output_type", "id", "output format: id or subword")
	flags.IntVar(&f.nThreads, "n_threads", -1, "worker count; -1 uses all available cores")
	flags.BoolVar(&f.bos, "bos", false, "prepend the beginning-of-sentence token")
	flags.BoolVar(&f.eos, "eos", false, "append the end-of-sentence token")
	flags.BoolVar(&f.reverse, "reverse", false, "reverse token order after BOS/EOS framing")
	flags.BoolVar(&f.stream, "stream", false, "encode line-by-line instead of batching all of stdin")
	flags.Float64Var(&f.dropoutProb, "dropout_prob", 0.0, "BPE-dropout per-merge rejection probability")
	cmd.MarkFlagRequired("model")

	return cmd
}

func runEncode(cmd *cobra.Command, f *encodeFlags, log logging.Logger) error {
	if f.outputType != "id" && f.outputType != "subword" {
		return fmt.Errorf("output_type must be id or subword, got %q: %w", f.outputType, bpe.ErrInvalidArgument)
	}

	model, err := bpe.LoadFile(f.model)
	if err != nil {
		return err
	}

	workers := f.nThreads
	if workers < 0 {
		workers = 0
	}
	opts := bpe.EncodeOptions{
		BOS:         f.bos,
		EOS:         f.eos,
		Reverse:     f.reverse,
		DropoutProb: f.dropoutProb,
		Workers:     workers,
	}

	out := cmd.OutOrStdout()
	if f.stream {
		output := bpe.OutputID
		if f.outputType == "subword" {
			output = bpe.OutputSubword
		}
		return model.EncodeStream(cmd.Context(), cmd.InOrStdin(), out, output, opts)
	}

	if isatty.IsTerminal(os.Stdin.Fd()) {
		log.Info("reading sentences from terminal stdin; press ctrl-D to end input")
	}

	sentences, err := readAllLines(cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(sentences) == 0 {
		return nil
	}

	w := bufio.NewWriter(out)
	defer w.Flush()

	if f.outputType == "subword" {
		batches, err := model.EncodeSubwords(cmd.Context(), sentences, opts)
		if err != nil {
			return err
		}
		for _, subwords := range batches {
			w.WriteString(strings.Join(subwords, " "))
			w.WriteByte('\n')
		}
		return nil
	}

	batches, err := model.EncodeBatch(cmd.Context(), sentences, opts)
	if err != nil {
		return err
	}
	for _, ids := range batches {
		strIDs := make([]string, len(ids))
		for i, id := range ids {
			strIDs[i] = strconv.Itoa(id)
		}
		w.WriteString(strings.Join(strIDs, " "))
		w.WriteByte('\n')
	}
	return nil
}

func readAllLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
