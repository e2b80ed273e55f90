package ra

import "github.com/sarchlab/x86dbt/ir"

// colorResult is ColorGraph's outcome: either every node fit (ok), or the
// first node that could not be colored plus its interference set — the
// candidate pool FindNodeToSpill chooses a victim from. Spec §4.5 forbids
// more than one spill per iteration to keep liveness consistent, so
// ColorGraph stops at the first failure rather than collecting every
// overflowing node.
type colorResult struct {
	ok          bool
	failedChain []uint32
	candidates  []uint32
}

// ColorGraph walks nodes in ascending SSA order (program order), assigning
// each has-dest node the lowest-numbered free physical register in its
// class that is not banned by an interfering neighbor's allocation or by
// cfg's conflict table. Tie-partner chains are colored together: the whole
// chain shares one candidate register, checked against the union of every
// member's interference set (spec §4.5, "tried on the union of all
// partners' interference sets"). The first node whose chain has no free
// register stops the walk immediately and is returned for spilling.
func ColorGraph(view ir.View, nodes []uint32, graph *RegisterGraph, cfg ClassConfig) colorResult {
	colored := make(map[uint32]bool, len(nodes))

	for _, node := range nodes {
		if colored[node] {
			continue
		}

		chain := graph.TiePartners(node)
		class := view.At(node).Class
		union := unionInterference(graph, chain)

		reg, ok := firstFreeRegister(graph, cfg, class, union, cfg.PhysicalCount[class])
		if !ok {
			return colorResult{ok: false, failedChain: chain, candidates: union}
		}

		for _, member := range chain {
			graph.SetAllocation(member, Pack(class, reg))
			graph.notePressure(class, reg)
			colored[member] = true
		}
	}

	return colorResult{ok: true}
}

// unionInterference collects the distinct set of nodes any member of chain
// interferes with, excluding chain members themselves.
func unionInterference(graph *RegisterGraph, chain []uint32) []uint32 {
	inChain := make(map[uint32]bool, len(chain))
	for _, n := range chain {
		inChain[n] = true
	}

	seen := make(map[uint32]bool)
	var union []uint32
	for _, n := range chain {
		for _, other := range graph.InterferencesOf(n) {
			if inChain[other] || seen[other] {
				continue
			}
			seen[other] = true
			union = append(union, other)
		}
	}
	return union
}

// firstFreeRegister returns the lowest physical register number in
// [0,budget) not used by any node in neighbors (same class) and not banned
// by cfg's conflict table against any neighbor's allocation, in either
// class.
func firstFreeRegister(graph *RegisterGraph, cfg ClassConfig, class ir.RegClass, neighbors []uint32, budget uint32) (uint32, bool) {
	for candidate := uint32(0); candidate < budget; candidate++ {
		free := true
		for _, n := range neighbors {
			alloc := graph.Allocation(n)
			if alloc == invalidAllocation {
				continue
			}
			if alloc.Class() == class && alloc.Reg() == candidate {
				free = false
				break
			}
			if cfg.conflicts(class, candidate, alloc.Class(), alloc.Reg()) {
				free = false
				break
			}
		}
		if free {
			return candidate, true
		}
	}
	return 0, false
}
