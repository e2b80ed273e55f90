package opt

import (
	"github.com/sarchlab/x86dbt/ir"
	"github.com/sarchlab/x86dbt/ra"
)

// RegisterAllocationPass adapts ra.Allocator to the pass.Pass /
// pass.RegisterAllocationPass interfaces (spec §6's
// InsertRegisterAllocationPass). The manager holds this concrete type
// back (via GetRAPass) so DumpIR and the translation unit can query
// SpillSlotCount/HadFullRA without the pass package importing ra.
type RegisterAllocationPass struct {
	allocator *ra.Allocator
	data      *ra.AllocationData
	err       error
}

// NewRegisterAllocationPass wraps cfg's allocator as a pipeline pass.
func NewRegisterAllocationPass(cfg ra.ClassConfig) *RegisterAllocationPass {
	return &RegisterAllocationPass{allocator: ra.NewAllocator(cfg)}
}

func (p *RegisterAllocationPass) Name() string { return "RegisterAllocation" }

func (p *RegisterAllocationPass) Run(e *ir.Emitter) bool {
	data, err := p.allocator.Run(e)
	p.err = err
	if err != nil {
		return false
	}
	p.data = data
	return true
}

// SpillSlotCount implements pass.RegisterAllocationPass.
func (p *RegisterAllocationPass) SpillSlotCount() uint32 {
	if p.data == nil {
		return 0
	}
	return p.data.SpillSlotCount()
}

// HadFullRA implements pass.RegisterAllocationPass.
func (p *RegisterAllocationPass) HadFullRA() bool {
	if p.data == nil {
		return false
	}
	return p.data.HadFullRA()
}

// Err returns the error from the most recent Run, wrapping
// ra.ErrInfeasible when allocation could not converge (spec §7).
func (p *RegisterAllocationPass) Err() error { return p.err }

// Data returns the most recent successful allocation, the surface the
// backend contract consumes (spec §4.5/§4.6). Nil until a successful
// Run.
func (p *RegisterAllocationPass) Data() *ra.AllocationData { return p.data }
