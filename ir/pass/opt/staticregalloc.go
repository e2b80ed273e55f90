package opt

import (
	"github.com/sarchlab/x86dbt/ir"
	"github.com/sarchlab/x86dbt/ra"
)

// StaticRegAlloc is the optional pipeline step named in spec §6's
// AddDefaultPasses(static_reg_alloc bool). It attempts a single
// no-spill coloring pass via ra.TryStaticColor, purely to let a caller
// that enabled it detect up front (via Feasible) whether the block will
// need the full RegisterAllocation pass's spill loop at all. It never
// mutates the IR: the later RegisterAllocation pass still runs and
// produces the AllocationData the backend consumes, so a failed
// attempt here changes nothing about correctness, only an early
// diagnostic signal.
type StaticRegAlloc struct {
	Config ra.ClassConfig

	feasible bool
}

func (p *StaticRegAlloc) Name() string { return "StaticRegAlloc" }

// Feasible reports whether the last Run found a no-spill coloring.
// Meaningless before the first Run.
func (p *StaticRegAlloc) Feasible() bool { return p.feasible }

func (p *StaticRegAlloc) Run(e *ir.Emitter) bool {
	p.feasible = ra.TryStaticColor(e.View(), p.Config)
	return false
}
