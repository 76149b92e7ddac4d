// Command yttm is the unsupervised subword tokenizer CLI: train a model
// from a corpus, encode text to ids or subwords, decode ids back to text,
// and inspect a trained vocabulary.
package main

import (
	"fmt"
	"os"

	"github.com/ha1tch/yttmgo/pkg/bpe"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "yttm: %s\n", err.Error())
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a pkg/bpe sentinel error to a distinct process exit
// code, so scripts can branch on failure kind without scraping stderr.
func exitCodeFor(err error) int {
	switch {
	case bpe.IsInvalidArgument(err):
		return 2
	case bpe.IsEmptyCorpus(err):
		return 3
	case bpe.IsVocabTooLarge(err):
		return 4
	case bpe.IsModelCorrupt(err):
		return 5
	case bpe.IsUnknownToken(err):
		return 6
	default:
		return 1
	}
}
