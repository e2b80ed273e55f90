package ra

import "github.com/sarchlab/x86dbt/ir"

// liveness holds the per-run outputs of ComputeLiveness: each has-dest
// node's LiveRange plus whether any of its uses crossed a block boundary
// (spec §4.5's local/global interference split).
type liveness struct {
	ranges   map[uint32]LiveRange
	global   map[uint32]bool
	defBlock map[uint32]uint32
	uses     map[uint32][]uint32
}

// ComputeLiveness walks every block in program order, setting each
// has-dest node's Begin at its definition and widening End to the
// latest use index seen anywhere in the program — in a successor block
// (a global) or the same block (a local) — per spec §4.5.
func ComputeLiveness(view ir.View) *liveness {
	l := &liveness{
		ranges:   make(map[uint32]LiveRange),
		global:   make(map[uint32]bool),
		defBlock: make(map[uint32]uint32),
		uses:     make(map[uint32][]uint32),
	}

	for _, block := range view.Blocks() {
		for _, idx := range view.CodeInBlock(block) {
			node := view.At(idx)
			if node.HasDest {
				l.ranges[idx] = LiveRange{Begin: idx, End: idx, RematCost: rematCost(node)}
				l.defBlock[idx] = block
			}
			for _, arg := range node.Args {
				use := arg.Index()
				r, ok := l.ranges[use]
				if !ok {
					continue
				}
				if idx > r.End {
					r.End = idx
				}
				l.ranges[use] = r
				l.uses[use] = append(l.uses[use], idx)
				if l.defBlock[use] != block {
					l.global[use] = true
				}
			}
		}
	}

	return l
}

// rematCost reports a node's rematerialization cost: 1 for constants
// (cheap to recompute), -1 for everything else (spec §3, §4.5).
func rematCost(n *ir.Node) int32 {
	if n.Op == ir.OpConstant {
		return 1
	}
	return -1
}
