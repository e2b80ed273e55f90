package ir

import "errors"

// ErrIRInvariant is the sentinel for IRInvariantError (spec §7): a
// dominance, compaction, or data-flow invariant a validation pass
// checks for has been violated. Surfaced as a fatal assertion in debug
// builds (when the Manager is built with pass.WithAssertions(true)) and
// elided in release.
var ErrIRInvariant = errors.New("ir: invariant violated")
