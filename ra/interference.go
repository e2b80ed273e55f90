package ra

import "github.com/sarchlab/x86dbt/ir"

// naiveInterferenceThreshold is the SSA-count cutoff below which the
// allocator uses a plain O(n^2) pairwise scan instead of the
// block-partitioned local/global scan (spec §4.5).
const naiveInterferenceThreshold = 2048

// ComputeInterference populates graph's interference sets from l, choosing
// the naive or partitioned algorithm based on the number of live-ranged
// nodes (spec §4.5).
func ComputeInterference(view ir.View, l *liveness, graph *RegisterGraph) {
	nodes := sortedKeys(l.ranges)

	if len(nodes) < naiveInterferenceThreshold {
		computeInterferenceNaive(nodes, l, graph)
		return
	}

	computeInterferencePartitioned(view, nodes, l, graph)
}

// computeInterferenceNaive pairs every has-dest node against every other,
// adding an interference whenever their live ranges overlap.
func computeInterferenceNaive(nodes []uint32, l *liveness, graph *RegisterGraph) {
	for i, a := range nodes {
		ra := l.ranges[a]
		for _, b := range nodes[i+1:] {
			if ra.Overlaps(l.ranges[b]) {
				graph.AddInterference(a, b)
			}
		}
	}
}

// computeInterferencePartitioned splits nodes into locals (live range never
// crosses a block boundary) and globals (it does), then for each block
// checks only that block's defined nodes against that block's locals plus
// the whole-program global set — avoiding the full O(n^2) pass for large
// IRs while still catching every overlapping pair, since any interference
// involves at least one node live in the block where the other is checked
// (spec §4.5).
func computeInterferencePartitioned(view ir.View, nodes []uint32, l *liveness, graph *RegisterGraph) {
	var globals []uint32
	localsByBlock := make(map[uint32][]uint32)

	for _, n := range nodes {
		if l.global[n] {
			globals = append(globals, n)
			continue
		}
		block := l.defBlock[n]
		localsByBlock[block] = append(localsByBlock[block], n)
	}

	for _, block := range view.Blocks() {
		defined := nodesDefinedIn(view, block, l)
		if len(defined) == 0 {
			continue
		}

		candidates := make([]uint32, 0, len(localsByBlock[block])+len(globals))
		candidates = append(candidates, localsByBlock[block]...)
		candidates = append(candidates, globals...)

		for _, a := range defined {
			ra := l.ranges[a]
			for _, b := range candidates {
				if a == b {
					continue
				}
				if ra.Overlaps(l.ranges[b]) {
					graph.AddInterference(a, b)
				}
			}
		}
	}
}

// nodesDefinedIn returns the has-dest nodes whose definition lives in block,
// in program order.
func nodesDefinedIn(view ir.View, block uint32, l *liveness) []uint32 {
	var out []uint32
	for _, idx := range view.CodeInBlock(block) {
		if _, ok := l.ranges[idx]; ok && l.defBlock[idx] == block {
			out = append(out, idx)
		}
	}
	return out
}

// sortedKeys returns a live-range map's keys in ascending SSA-index order,
// the program-order iteration the spec's naive scan assumes.
func sortedKeys(m map[uint32]LiveRange) []uint32 {
	out := make([]uint32, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
