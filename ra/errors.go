package ra

import "errors"

// ErrInfeasible is the sentinel for RAInfeasibility (spec §7): an op
// requires more registers than its class's physical budget even after
// spilling — most commonly a tied-partner chain longer than the class
// has physical registers, which spec §9 says must be treated as fatal
// rather than attempted.
var ErrInfeasible = errors.New("ra: infeasible allocation")
