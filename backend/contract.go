// Package backend defines the narrow, read-only contract the register
// allocator's output is handed across (spec §6's "RA → Backend" API).
// Everything past this point — host instruction encoding, emission — is
// external to this module (SPEC_FULL.md §8's non-goals); this package
// only shapes the handoff.
package backend

import (
	"github.com/sarchlab/x86dbt/ir"
	"github.com/sarchlab/x86dbt/ra"
)

// AllocationView is the read-only export a backend consumes after the
// RegisterAllocation pass has run: GetDestRegister(node_id) -> u64 (high
// 32 = class, low 32 = register), plus the spill frame size and whether
// every class stayed within its physical budget (spec §6).
type AllocationView struct {
	data *ra.AllocationData
}

// NewAllocationView wraps an *ra.AllocationData as the backend-facing
// contract.
func NewAllocationView(data *ra.AllocationData) AllocationView {
	return AllocationView{data: data}
}

// GetDestRegister returns the packed (class, register) allocation for
// node, and whether node was allocated at all.
func (v AllocationView) GetDestRegister(node uint32) (uint64, bool) {
	alloc, ok := v.data.Lookup(node)
	return uint64(alloc), ok
}

// SpillSlotCount is the frame-size input to the backend's emitter.
func (v AllocationView) SpillSlotCount() uint32 { return v.data.SpillSlotCount() }

// HadFullRA reports whether every class's allocation stayed within its
// physical budget.
func (v AllocationView) HadFullRA() bool { return v.data.HadFullRA() }

// Class unpacks a GetDestRegister result's register class.
func Class(packed uint64) ir.RegClass { return ir.RegClass(packed >> 32) }

// Register unpacks a GetDestRegister result's register number.
func Register(packed uint64) uint32 { return uint32(packed) }
