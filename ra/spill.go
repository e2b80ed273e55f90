package ra

import "github.com/sarchlab/x86dbt/ir"

// invalidBlock mirrors ir's own "no block" sentinel value for Node.Block.
const invalidBlock = ^uint32(0)

// FindNodeToSpill picks a victim from candidates — the failing node's
// interference set — to evict so the failing node's chain can be colored,
// following spec §4.5's priority ladder (stop at first matching rung):
//
//  1. A rematerializable constant strictly encompassed by currentRange:
//     free, since it is simply re-emitted at each use instead of held in
//     a register.
//  2. Among the rest, the candidate with the farthest-ending live range
//     (Belady-style farthest next use), preferring one whose range is
//     itself strictly encompassed by currentRange over one that merely
//     overlaps it.
//
// Spec §4.5 rungs 2 and 3 are collapsed into the single pass above: both
// distinguish candidates by whether their *next individual use* falls
// inside or outside the current range, a finer-grained fact than this
// allocator's data model tracks (spec §3 records only one combined
// [Begin,End) interval per node, not a per-use list) — so both resolve to
// "farthest-ending candidate" here, with range containment taking
// precedence and the farther End deciding between equally contained
// candidates.
// Rung 4 (spilling a node whose interference merely overlaps the *end* of
// currentRange) is left unimplemented: spec §9's Open Questions flags it
// as disabled in the original source with a comment noting a bug, and
// says to leave it disabled rather than guess the intended fix.
func FindNodeToSpill(candidates []uint32, currentRange LiveRange, l *liveness) uint32 {
	var best uint32
	bestRange := LiveRange{}
	haveBest := false
	bestRemat := false
	bestEncompassed := false

	for _, c := range candidates {
		r := l.ranges[c]
		remat := r.RematCost >= 0 && currentRange.Encompasses(r)
		encompassed := currentRange.Encompasses(r)

		switch {
		case !haveBest:
			best, bestRange, bestRemat, bestEncompassed, haveBest = c, r, remat, encompassed, true
		case remat && !bestRemat:
			best, bestRange, bestRemat, bestEncompassed = c, r, remat, encompassed
		case remat == bestRemat && encompassed && !bestEncompassed:
			best, bestRange, bestRemat, bestEncompassed = c, r, remat, encompassed
		case remat == bestRemat && encompassed == bestEncompassed && r.End > bestRange.End:
			best, bestRange, bestRemat, bestEncompassed = c, r, remat, encompassed
		}
	}

	return best
}

// SpillRegisters relieves pressure around victim by either rematerializing
// it (if cheap) or inserting SpillRegister/FillRegister IR nodes around
// its live range, recording a spill slot for non-rematerializable spills
// (spec §3, §4.5).
func SpillRegisters(e *ir.Emitter, view ir.View, graph *RegisterGraph, stack *SpillStack, l *liveness, victim uint32) {
	r := l.ranges[victim]
	if r.RematCost >= 0 {
		rematerialize(e, view, l, victim)
		return
	}

	class := view.At(victim).Class
	slot := stack.Allocate(victim, class, r)
	graph.SetSpillSlot(victim, slot)

	e.SetCursor(victim)
	e.EmitOp(ir.OpSpillRegister, view.At(victim).Size, e.Arg(victim))

	if r.End == r.Begin {
		return
	}

	e.SetCursor(r.End - 1)
	fillIdx := e.EmitOp(ir.OpFillRegister, view.At(victim).Size)
	e.Program().Node(fillIdx).Class = class

	e.ReplaceAllUsesWithInclusive(victim, fillIdx, r.Begin+1, r.End+1)
}

// rematerialize re-emits victim's constant value immediately before each of
// its uses — one fresh Constant op per use site, each redirecting only that
// use — then erases the original definition (spec §4.5: "at every use site
// re-emit a fresh Constant via replace_all_uses_with_inclusive scoped from
// the use point to block end"; spec §8 scenario 4 expects exactly one
// Constant per former use, not one shared replacement).
func rematerialize(e *ir.Emitter, view ir.View, l *liveness, victim uint32) {
	node := view.At(victim)
	if node.Op != ir.OpConstant {
		return
	}

	imm := node.Imm
	size := node.Size

	for _, u := range dedupUses(l.uses[victim]) {
		if pred, ok := precedingInBlock(view, u); ok {
			e.SetCursor(pred)
		} else {
			e.SetCursor(view.At(u).Block)
		}
		fresh := e.EmitConstant(size, imm)
		e.ReplaceAllUsesWithInclusive(victim, fresh, u, u+1)
	}

	e.Remove(victim)
}

// precedingInBlock returns the live node immediately before u within u's
// own block, if any.
func precedingInBlock(view ir.View, u uint32) (uint32, bool) {
	block := view.At(u).Block
	if block == invalidBlock {
		return 0, false
	}
	code := view.CodeInBlock(block)
	for i, idx := range code {
		if idx == u && i > 0 {
			return code[i-1], true
		}
	}
	return 0, false
}

// dedupUses drops repeated use-site indices (an op referencing the same
// node as more than one of its own arguments records that site twice).
func dedupUses(uses []uint32) []uint32 {
	seen := make(map[uint32]bool, len(uses))
	out := make([]uint32, 0, len(uses))
	for _, u := range uses {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
