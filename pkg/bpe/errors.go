package bpe

import "github.com/pkg/errors"

// Error kinds surfaced by training, serialization, and encoding.
var (
	ErrInvalidUTF8             = errors.New("bpe: invalid utf-8 in input")
	ErrEmptyCorpus             = errors.New("bpe: empty corpus")
	ErrVocabTooLarge           = errors.New("bpe: requested vocabulary cannot be formed from this corpus")
	ErrReservedIdCollision     = errors.New("bpe: special token id collides with another reserved id")
	ErrModelMagicMismatch      = errors.New("bpe: not a yttmgo model file")
	ErrModelVersionUnsupported = errors.New("bpe: unsupported model version")
	ErrModelCorrupt            = errors.New("bpe: corrupted model file")
	ErrUnknownToken            = errors.New("bpe: unknown subword or id")
	ErrInvalidArgument         = errors.New("bpe: invalid argument")
)

// The Is* helpers let callers (notably the CLI) branch on error kind
// without importing github.com/pkg/errors themselves.

// IsInvalidArgument reports whether err wraps ErrInvalidArgument.
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

// IsEmptyCorpus reports whether err wraps ErrEmptyCorpus.
func IsEmptyCorpus(err error) bool { return errors.Is(err, ErrEmptyCorpus) }

// IsVocabTooLarge reports whether err wraps ErrVocabTooLarge.
func IsVocabTooLarge(err error) bool { return errors.Is(err, ErrVocabTooLarge) }

// IsModelCorrupt reports whether err wraps ErrModelCorrupt, ErrModelMagicMismatch,
// or ErrModelVersionUnsupported -- the three "this isn't a usable model file" kinds.
func IsModelCorrupt(err error) bool {
	return errors.Is(err, ErrModelCorrupt) ||
		errors.Is(err, ErrModelMagicMismatch) ||
		errors.Is(err, ErrModelVersionUnsupported)
}

// IsUnknownToken reports whether err wraps ErrUnknownToken.
func IsUnknownToken(err error) bool { return errors.Is(err, ErrUnknownToken) }
