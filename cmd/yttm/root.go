package main

import (
	"github.com/spf13/cobra"

	"github.com/ha1tch/yttmgo/internal/logging"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	verbose bool
}

// NewRootCommand builds the yttm root command and mounts every subcommand.
// logger construction is deferred to PersistentPreRunE so --verbose (parsed
// by cobra before that hook runs) can select the logging level.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	var log logging.Logger

	root := &cobra.Command{
		Use:           "yttm",
		Short:         "yttm trains and runs byte-pair-encoding subword tokenizers",
		Long:          "yttm is an unsupervised subword tokenizer: train a BPE model from a\nplain-text corpus, then encode and decode sentences with it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.verbose {
				log, err = logging.NewDevelopment()
			} else {
				log, err = logging.NewProduction()
			}
			return err
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug-level logging on stderr")

	root.AddCommand(
		newBPECmd(&log),
		newEncodeCmd(&log),
		newDecodeCmd(&log),
		newVocabCmd(&log),
	)
	return root
}

// Execute runs the CLI and returns any error for main to translate into an
// exit code.
func Execute() error {
	return NewRootCommand().Execute()
}
