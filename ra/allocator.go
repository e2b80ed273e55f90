package ra

import (
	"fmt"

	"github.com/sarchlab/x86dbt/ir"
)

// maxSpillIterations bounds the compact/liveness/interference/color/spill
// loop: a well-formed class budget converges in a handful of iterations, so
// hitting this is a sign of a genuinely infeasible program rather than slow
// convergence (spec §4.5, §7).
const maxSpillIterations = 64

// Allocator runs the graph-coloring allocation loop described in spec
// §4.5: compact, recompute liveness and interference, attempt a coloring,
// and if some class overflows its physical budget, spill the worst node
// and retry. One Allocator is reused across an emitter's whole lifetime;
// its RegisterGraph and SpillStack storage persist between Run calls, but
// Run clears the SpillStack at its start, so spill slots are not carried
// from one Run to the next.
type Allocator struct {
	Config ClassConfig

	stack SpillStack
	graph *RegisterGraph
}

// NewAllocator builds an Allocator configured with cfg's per-class
// physical budgets and conflict table.
func NewAllocator(cfg ClassConfig) *Allocator {
	return &Allocator{Config: cfg}
}

// Run drives the allocation loop to completion on e's current program,
// returning the resulting AllocationData or an error wrapping
// ErrInfeasible if a tie-partner chain exceeds its class's physical
// register count, or if the loop fails to converge within
// maxSpillIterations (spec §7, §9).
func (a *Allocator) Run(e *ir.Emitter) (*AllocationData, error) {
	a.stack.Reset()

	for iteration := 0; ; iteration++ {
		e.Compact()
		view := e.View()
		l := ComputeLiveness(view)
		nodes := sortedKeys(l.ranges)

		n := view.GetSSACount()
		if a.graph == nil {
			a.graph = NewRegisterGraph(n)
		} else {
			a.graph.Reset(n)
		}

		ComputeInterference(view, l, a.graph)

		if err := a.checkChainsFeasible(view, nodes); err != nil {
			return nil, err
		}

		result := ColorGraph(view, nodes, a.graph, a.Config)
		if result.ok {
			return a.buildAllocationData(nodes, true), nil
		}

		if iteration >= maxSpillIterations {
			return nil, fmt.Errorf("ra: allocation did not converge after %d iterations: %w", maxSpillIterations, ErrInfeasible)
		}

		if len(result.candidates) == 0 {
			return nil, fmt.Errorf("ra: node %d has no free register and no interfering neighbor to spill: %w", result.failedChain[0], ErrInfeasible)
		}

		currentRange := l.ranges[result.failedChain[0]]
		victim := FindNodeToSpill(result.candidates, currentRange, l)
		SpillRegisters(e, view, a.graph, &a.stack, l, victim)
	}
}

// checkChainsFeasible rejects any tie-partner chain longer than its
// class's physical register count outright: no amount of spilling makes a
// chain of N forced-co-resident values fit in fewer than N registers
// (spec §9).
func (a *Allocator) checkChainsFeasible(view ir.View, nodes []uint32) error {
	checked := make(map[uint32]bool, len(nodes))
	for _, node := range nodes {
		if checked[node] {
			continue
		}
		chain := a.graph.TiePartners(node)
		for _, member := range chain {
			checked[member] = true
		}
		class := view.At(node).Class
		if uint32(len(chain)) > a.Config.PhysicalCount[class] {
			return fmt.Errorf("ra: tie-partner chain of %d exceeds class %v budget of %d: %w",
				len(chain), class, a.Config.PhysicalCount[class], ErrInfeasible)
		}
	}
	return nil
}

// buildAllocationData snapshots the graph's current allocations into the
// read-only structure the backend consumes.
func (a *Allocator) buildAllocationData(nodes []uint32, fullRA bool) *AllocationData {
	entries := make(map[uint32]Allocation, len(nodes))
	for _, n := range nodes {
		entries[n] = a.graph.Allocation(n)
	}
	return &AllocationData{
		entries:        entries,
		spillSlotCount: a.stack.Count(),
		fullRA:         fullRA,
	}
}
