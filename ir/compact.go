package ir

// Compact renumbers nodes densely and rebuilds the linked-list indices,
// so indices are again dense and monotonic — a precondition for the
// register allocator's vector-keyed-by-index data structures (spec §4.4,
// §8 "compaction density"). Must be called before re-indexing after any
// pass has removed nodes. The write cursor is reset to the program's
// last node; callers that need a specific cursor position must save and
// restore their own mapping, consistent with spec §9's "no hidden global
// state" design note.
func (e *Emitter) Compact() {
	p := e.prog
	view := View{prog: p}
	oldBlocks := p.Blocks()

	order := []uint32{p.headerIndex}
	for _, b := range oldBlocks {
		order = append(order, b)
		order = append(order, view.CodeInBlock(b)...)
	}

	oldToNew := make(map[uint32]uint32, len(order))
	for i, old := range order {
		oldToNew[old] = uint32(i)
	}
	remap := func(old uint32) uint32 {
		if old == invalidIndex {
			return invalidIndex
		}
		return oldToNew[old]
	}

	newNodes := make([]Node, len(order))
	for i, old := range order {
		n := p.nodes[old]
		n.removed = false

		if len(n.Args) > 0 {
			newArgs := make([]Argument, len(n.Args))
			for j, a := range n.Args {
				newArgs[j] = Argument{node: remap(a.node)}
			}
			n.Args = newArgs
		}

		n.Block = remap(n.Block)

		if i == 0 {
			n.prev = invalidIndex
		} else {
			n.prev = uint32(i - 1)
		}
		if i == len(order)-1 {
			n.next = invalidIndex
		} else {
			n.next = uint32(i + 1)
		}

		if n.Op == OpCodeBlock {
			code := view.CodeInBlock(old)
			if len(code) == 0 {
				n.FirstNode, n.LastNode = invalidIndex, invalidIndex
			} else {
				n.FirstNode = remap(code[0])
				n.LastNode = remap(code[len(code)-1])
			}
		}

		newNodes[i] = n
	}

	for bi, b := range oldBlocks {
		newIdx := oldToNew[b]
		if bi+1 < len(oldBlocks) {
			newNodes[newIdx].NextBlock = oldToNew[oldBlocks[bi+1]]
		} else {
			newNodes[newIdx].NextBlock = invalidIndex
		}
	}

	if len(oldBlocks) > 0 {
		newNodes[0].Blocks = oldToNew[oldBlocks[0]]
	} else {
		newNodes[0].Blocks = invalidIndex
	}

	p.nodes = newNodes
	p.headerIndex = 0
	e.cursor = uint32(len(newNodes) - 1)
}
