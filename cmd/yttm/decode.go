package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ha1tch/yttmgo/internal/logging"
	"github.com/ha1tch/yttmgo/pkg/bpe"
)

type decodeFlags struct {
	model     string
	ignoreIDs string
}

func newDecodeCmd(logPtr *logging.Logger) *cobra.Command {
	f := &decodeFlags{}
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode whitespace-separated ids from stdin back to text",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.model, "model", "", "path to a trained model file (required)")
	flags.StringVar(&f.ignoreIDs, "ignore_ids", "", "comma-separated ids to drop from decoded output")
	cmd.MarkFlagRequired("model")

	return cmd
}

func runDecode(cmd *cobra.Command, f *decodeFlags) error {
	model, err := bpe.LoadFile(f.model)
	if err != nil {
		return err
	}

	ignore, err := parseIgnoreIDs(f.ignoreIDs)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	w := bufio.NewWriter(cmd.OutOrStdout())
	defer w.Flush()

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		ids := make([]int, len(fields))
		for i, tok := range fields {
			id, err := strconv.Atoi(tok)
			if err != nil {
				return errors.Wrapf(bpe.ErrInvalidArgument, "decode: %q is not an integer id", tok)
			}
			ids[i] = id
		}
		text, err := model.Decode(ids, ignore)
		if err != nil {
			return err
		}
		w.WriteString(text)
		w.WriteByte('\n')
	}
	return scanner.Err()
}

func parseIgnoreIDs(csv string) (map[int]bool, error) {
	if csv == "" {
		return nil, nil
	}
	out := make(map[int]bool)
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("ignore_ids: %q is not an integer id: %w", part, bpe.ErrInvalidArgument)
		}
		out[id] = true
	}
	return out, nil
}
