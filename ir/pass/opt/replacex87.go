package opt

import (
	"github.com/sarchlab/x86dbt/ir"
	"github.com/sarchlab/x86dbt/ir/pass"
)

const x87StackDepth = 8

// invalidIndex mirrors ir's own "no node" sentinel; ir doesn't export it.
const invalidIndex = ^uint32(0)

// slotEntry records the last value written to one of the 8 logical x87
// stack slots, so a later StackLoad at the same physical slot can forward
// the value directly instead of round-tripping through context memory.
type slotEntry struct {
	value ir.Argument
	valid bool
}

// ReplaceX87 is the peephole described in spec §4.4: it tracks a logical
// pending top displacement (coalescing consecutive AdjustTop offsets
// instead of materializing each one) and a per-slot last-store table,
// forwarding StackStore values directly to matching StackLoads and
// eliminating the now-redundant stores. It also lowers F80ADD.
//
// The displacement/slot table is reset at the start of each block: the
// table only ever caches an Argument value (not a node reference), so a
// store can be safely removed as soon as its value is captured — any
// later load at the same physical slot within the block still forwards
// correctly from the cached value, and unconsumed state at block end is
// flushed as one consolidated AdjustTop rather than carried across a
// block boundary this peephole does not reason about.
type ReplaceX87 struct {
	pass.Base
}

func (p *ReplaceX87) Name() string { return "ReplaceX87" }

func (p *ReplaceX87) Run(e *ir.Emitter) bool {
	changed := false
	for _, block := range e.View().Blocks() {
		if p.runBlock(e, block) {
			changed = true
			// Spec §4.4/§9: on flushing an ambiguous state the pass bails
			// out immediately, returning its changed bit honestly rather
			// than continuing to reason about now-stale node indices.
			return changed
		}
	}
	return changed
}

// runBlock processes one block; it returns true the moment it performs a
// flush-and-bail (an ambiguous GetTop/SetTop encountered with pending
// displacement), signaling the caller to stop the whole Run.
func (p *ReplaceX87) runBlock(e *ir.Emitter, block uint32) bool {
	var pending int32
	var slots [x87StackDepth]slotEntry
	lastTopUser := invalidIndex

	flush := func() {
		if pending == 0 {
			return
		}
		if lastTopUser != invalidIndex {
			e.SetCursor(lastTopUser)
		} else {
			e.SetCursor(block)
		}
		adjust := e.EmitOp(ir.OpAdjustTop, 8)
		e.Program().Node(adjust).Offset = pending
		pending = 0
	}

	for _, idx := range e.View().CodeInBlock(block) {
		node := e.View().At(idx)
		switch node.Op {
		case ir.OpAdjustTop:
			pending += node.Offset
			e.Remove(idx)

		case ir.OpGetTop, ir.OpSetTop:
			if pending != 0 {
				flush()
				return true
			}
			lastTopUser = idx

		case ir.OpStackStore:
			slot := normalizeSlot(node.Offset, pending)
			slots[slot] = slotEntry{value: node.Args[0], valid: true}
			e.Remove(idx)

		case ir.OpStackLoad:
			slot := normalizeSlot(node.Offset, pending)
			if entry := slots[slot]; entry.valid {
				e.ReplaceAllUsesWith(idx, e.Unwrap(entry.value))
				e.Remove(idx)
			} else {
				lastTopUser = idx
			}

		case ir.OpF80Add:
			p.lowerF80Add(e, idx, node)
		}
	}

	// The end-of-block flush goes after the block's last live node.
	if code := e.View().CodeInBlock(block); len(code) > 0 {
		lastTopUser = code[len(code)-1]
	}
	flush()
	return false
}

func normalizeSlot(off int32, pending int32) int {
	s := (int(off) + int(pending)) % x87StackDepth
	if s < 0 {
		s += x87StackDepth
	}
	return s
}

// lowerF80Add converts an 80-bit extended x87 add into a 64-bit FPR add —
// "converting x87-extended operands to doubles, emitting vector-float
// arithmetic, and re-wrapping the result" per spec §4.4. The original
// source's switch has a case here that falls through to a default arm by
// missing a break (spec §9's Open Questions); that fall-through is a
// known bug and is deliberately not reproduced — this case simply returns
// after handling F80ADD.
func (p *ReplaceX87) lowerF80Add(e *ir.Emitter, node uint32, n *ir.Node) {
	e.SetCursor(node)
	double := e.EmitOp(ir.OpAdd, 64, n.Args[0], n.Args[1])
	e.Program().Node(double).Class = ir.ClassFPR
	e.ReplaceAllUsesWith(node, double)
	e.Remove(node)
}
