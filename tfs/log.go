package tfs

import (
	"io"
	"log"
	"os"
)

// logger is a thin wrapper around the standard library's log.Logger.
// The core never depends on a third-party logging framework, matching
// every example in the pack: diagnostics are best-effort log lines
// (§7), not structured events consumed by anything.
type logger struct {
	*log.Logger
}

func newLogger(prefix string, w io.Writer) *logger {
	if w == nil {
		w = os.Stderr
	}
	return &logger{log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)}
}
