package ir

// Program owns the node storage for one IR. Its lifetime is the
// Emitter's: released when the Emitter that built it is discarded (spec
// §5, "each IR's node storage is owned by the IREmitter").
type Program struct {
	nodes       []Node
	headerIndex uint32
}

// SSACount returns the number of node slots, including removed ones not
// yet compacted away.
func (p *Program) SSACount() uint32 { return uint32(len(p.nodes)) }

// Node returns a pointer to the node at index. Indices are stable only
// between compactions (spec §9).
func (p *Program) Node(index uint32) *Node { return &p.nodes[index] }

// Header returns the program's single IRHeader node.
func (p *Program) Header() *Node { return &p.nodes[p.headerIndex] }

// HeaderIndex returns the IRHeader's own node index.
func (p *Program) HeaderIndex() uint32 { return p.headerIndex }

// Blocks returns the CodeBlock node indices in program order by walking
// the IRHeader's linked list.
func (p *Program) Blocks() []uint32 {
	var out []uint32
	for b := p.Header().Blocks; b != invalidIndex; b = p.nodes[b].NextBlock {
		out = append(out, b)
	}
	return out
}

// Emitter builds a Program through a movable write cursor (spec §4.2).
// Inserts always place the new node immediately after the cursor; the
// cursor itself is ordinary state a pass saves and restores at its own
// entry/exit, never hidden global state (spec §9). The block a new node
// belongs to is derived from the cursor's own position (the cursor node's
// Block, or the cursor itself if it is a CodeBlock) rather than tracked as
// separate state, so moving the cursor anywhere — including into a
// different block than the last one built with NewBlock — always
// attributes inserted nodes to the right block.
type Emitter struct {
	prog   *Program
	cursor uint32
}

// NewEmitter creates an Emitter over a fresh Program containing only an
// IRHeader node, cursor positioned on it.
func NewEmitter() *Emitter {
	prog := &Program{
		nodes: []Node{{
			Op:     OpIRHeader,
			Block:  invalidIndex,
			Blocks: invalidIndex,
			next:   invalidIndex,
			prev:   invalidIndex,
		}},
	}
	return &Emitter{prog: prog, cursor: 0}
}

// Program returns the Emitter's underlying Program.
func (e *Emitter) Program() *Program { return e.prog }

// Cursor returns the current write-cursor node index.
func (e *Emitter) Cursor() uint32 { return e.cursor }

// SetCursor repositions the write cursor. Passes must save and restore
// this themselves around any traversal that moves it (spec §4.3, §9).
func (e *Emitter) SetCursor(index uint32) { e.cursor = index }

// Arg wraps a node index as an Argument.
func (e *Emitter) Arg(index uint32) Argument { return Argument{node: index} }

// Unwrap returns the node index an Argument refers to.
func (e *Emitter) Unwrap(a Argument) uint32 { return a.node }

// NewBlock starts a new CodeBlock, appended to the IRHeader's block list,
// and makes it the current insertion target for subsequent EmitOp calls.
// Returns the CodeBlock's own node index.
func (e *Emitter) NewBlock() uint32 {
	idx := e.append(Node{Op: OpCodeBlock, Block: invalidIndex, FirstNode: invalidIndex, LastNode: invalidIndex, NextBlock: invalidIndex})

	header := e.prog.Header()
	if header.Blocks == invalidIndex {
		header.Blocks = idx
	} else {
		last := header.Blocks
		for e.prog.nodes[last].NextBlock != invalidIndex {
			last = e.prog.nodes[last].NextBlock
		}
		e.prog.nodes[last].NextBlock = idx
	}

	e.cursor = idx
	return idx
}

// cursorBlock reports the block the cursor's current node belongs to:
// the cursor itself if it is a CodeBlock, otherwise that node's own Block
// (invalidIndex for the IRHeader or a node not yet attached to any block).
func (e *Emitter) cursorBlock() uint32 {
	cur := &e.prog.nodes[e.cursor]
	if cur.Op == OpCodeBlock {
		return e.cursor
	}
	return cur.Block
}

// EmitOp appends a new op-header node after the write cursor and advances
// the cursor to it, returning the new node's SSA index. The node is
// attributed to whichever block the cursor currently sits in. Inserting in
// the middle of a block (cursor not on that block's current last node)
// only splices the new node into the chain — it does not pull the block's
// LastNode backward, since a node after the true last is still reachable
// by CodeInBlock's walk.
func (e *Emitter) EmitOp(op Op, size uint8, args ...Argument) uint32 {
	block := e.cursorBlock()

	var atBlockEnd, atBlockHead bool
	if block != invalidIndex {
		b := &e.prog.nodes[block]
		atBlockHead = e.cursor == block
		atBlockEnd = e.cursor == b.LastNode || (atBlockHead && b.LastNode == invalidIndex)
	}

	n := Node{
		Op:      op,
		Size:    size,
		Class:   DefaultClass(op),
		HasDest: HasDest(op),
		Args:    append([]Argument(nil), args...),
		Block:   invalidIndex,
	}
	idx := e.insertAfterCursor(n)

	if block != invalidIndex {
		e.prog.nodes[idx].Block = block
		b := &e.prog.nodes[block]
		if b.FirstNode == invalidIndex || atBlockHead {
			b.FirstNode = idx
		}
		if atBlockEnd {
			b.LastNode = idx
		}
	}
	return idx
}

// EmitConstant emits an OpConstant node carrying imm.
func (e *Emitter) EmitConstant(size uint8, imm int64) uint32 {
	idx := e.EmitOp(OpConstant, size)
	e.prog.nodes[idx].Imm = imm
	return idx
}

// insertAfterCursor performs the actual linked-list splice and advances
// the cursor, used by both EmitOp and NewBlock.
func (e *Emitter) insertAfterCursor(n Node) uint32 {
	idx := uint32(len(e.prog.nodes))
	n.prev = e.cursor
	n.next = e.prog.nodes[e.cursor].next
	if n.next != invalidIndex {
		e.prog.nodes[n.next].prev = idx
	}
	e.prog.nodes[e.cursor].next = idx
	e.prog.nodes = append(e.prog.nodes, n)
	e.cursor = idx
	return idx
}

func (e *Emitter) append(n Node) uint32 {
	return e.insertAfterCursor(n)
}

// Remove unlinks node from the program and marks its index invalid. Uses
// of it are not rewritten — callers must ReplaceAllUsesWith first.
func (e *Emitter) Remove(node uint32) {
	n := &e.prog.nodes[node]
	if n.removed {
		return
	}
	if n.prev != invalidIndex {
		e.prog.nodes[n.prev].next = n.next
	}
	if n.next != invalidIndex {
		e.prog.nodes[n.next].prev = n.prev
	}
	n.removed = true

	if n.Op != OpCodeBlock && n.Op != OpIRHeader && n.Block != invalidIndex {
		block := &e.prog.nodes[n.Block]
		switch {
		case block.FirstNode == block.LastNode:
			block.FirstNode, block.LastNode = invalidIndex, invalidIndex
		case block.FirstNode == node:
			block.FirstNode = n.next
		case block.LastNode == node:
			block.LastNode = n.prev
		}
	}
}

// ReplaceAllUsesWith rewrites every argument reference to old, anywhere
// in the program, to new.
func (e *Emitter) ReplaceAllUsesWith(old, new uint32) {
	e.ReplaceAllUsesWithInclusive(old, new, 0, uint32(len(e.prog.nodes)))
}

// ReplaceAllUsesWithInclusive rewrites argument references to old with
// new, but only for op nodes whose own index lies in [begin, end) — the
// scoped rewrite the spill-rematerialization path uses to limit a
// replacement to "from the use point to block end" (spec §4.5).
func (e *Emitter) ReplaceAllUsesWithInclusive(old, new uint32, begin, end uint32) {
	for i := begin; i < end && i < uint32(len(e.prog.nodes)); i++ {
		node := &e.prog.nodes[i]
		if node.removed {
			continue
		}
		for a := range node.Args {
			if node.Args[a].node == old {
				node.Args[a].node = new
			}
		}
	}
}

// View returns a read-only handle over the current program state.
func (e *Emitter) View() View { return View{prog: e.prog} }
