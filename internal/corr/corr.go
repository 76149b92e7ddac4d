// Package corr mints ephemeral run-correlation identifiers used only to tie
// together the log lines of one Train call. They never enter a serialized
// model: doing so would break the guarantee that identical corpora and
// parameters produce byte-identical model files regardless of run.
package corr

import "github.com/google/uuid"

// NewRunID returns a fresh v4 identifier for tagging one Train invocation's
// log output.
func NewRunID() string {
	return uuid.NewString()
}
