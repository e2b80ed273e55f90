package opt

import "github.com/sarchlab/x86dbt/ir"

// Compaction wraps Emitter.Compact as a pipeline stage, so the Manager
// can place it at a fixed point (just before RegisterAllocation, spec
// §4.3) alongside every other pass instead of calling it out of band.
type Compaction struct{}

func (p *Compaction) Name() string { return "Compaction" }

// CompactionPass marks this as the pass.CompactionMarker the Manager
// looks for.
func (p *Compaction) CompactionPass() {}

func (p *Compaction) Run(e *ir.Emitter) bool {
	e.Compact()
	return true
}
