package main

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ha1tch/yttmgo/internal/logging"
	"github.com/ha1tch/yttmgo/pkg/bpe"
)

type vocabFlags struct {
	model   string
	verbose bool
}

func newVocabCmd(logPtr *logging.Logger) *cobra.Command {
	f := &vocabFlags{}
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Print a trained model's vocabulary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVocab(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.model, "model", "", "path to a trained model file (required)")
	flags.BoolVar(&f.verbose, "verbose", false, "append merge rule components for non-leaf tokens")
	cmd.MarkFlagRequired("model")

	return cmd
}

func runVocab(cmd *cobra.Command, f *vocabFlags) error {
	model, err := bpe.LoadFile(f.model)
	if err != nil {
		return err
	}

	// resultToRule maps a merge's Result id back to the rule that produced
	// it, so --verbose can print a non-leaf token's two components.
	var resultToRule map[int]bpe.MergeRule
	if f.verbose {
		resultToRule = make(map[int]bpe.MergeRule, len(model.Rules))
		for _, rule := range model.Rules {
			resultToRule[rule.Result] = rule
		}
	}

	w := bufio.NewWriter(cmd.OutOrStdout())
	defer w.Flush()

	for id, subword := range model.Vocab() {
		if !f.verbose {
			fmt.Fprintf(w, "%d\t%s\n", id, subword)
			continue
		}
		rule, isMerge := resultToRule[id]
		if !isMerge {
			fmt.Fprintf(w, "%d\t%s\n", id, subword)
			continue
		}
		left, _ := model.IDToSubword(rule.Left)
		right, _ := model.IDToSubword(rule.Right)
		fmt.Fprintf(w, "%d\t%s\t%s + %s\n", id, subword, left, right)
	}
	return nil
}
