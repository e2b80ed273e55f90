package opt

import "github.com/sarchlab/x86dbt/ir"

// ContextLoadStoreElim forwards a GuestContext load from a preceding
// store at the same static offset, and removes a store made dead by a
// later store to the same offset before any intervening load (spec
// §4.3/§4.4). It runs per block, resetting its table at each block
// boundary — context state isn't tracked across a block edge here.
//
// Only plain context accesses (no dynamic index Arg, as LowerX87 emits
// for GetTop/SetTop/AdjustTop) are tracked; the MM-stack accesses
// LowerX87 emits for StackLoad/StackStore carry a dynamic index and are
// left untouched; offset is not alone a safe aliasing key for those.
type ContextLoadStoreElim struct{}

func (p *ContextLoadStoreElim) Name() string { return "ContextLoadStoreElim" }

type ctxEntry struct {
	value ir.Argument
	store uint32
	valid bool
}

func (p *ContextLoadStoreElim) Run(e *ir.Emitter) bool {
	changed := false
	for _, block := range e.View().Blocks() {
		if p.runBlock(e, block) {
			changed = true
		}
	}
	return changed
}

func (p *ContextLoadStoreElim) runBlock(e *ir.Emitter, block uint32) bool {
	changed := false
	table := make(map[int32]ctxEntry)

	for _, idx := range e.View().CodeInBlock(block) {
		node := e.View().At(idx)
		switch node.Op {
		case ir.OpStoreContext:
			if len(node.Args) != 1 {
				continue
			}
			if prev, ok := table[node.Offset]; ok && prev.valid {
				e.Remove(prev.store)
				changed = true
			}
			table[node.Offset] = ctxEntry{value: node.Args[0], store: idx, valid: true}

		case ir.OpLoadContext:
			if len(node.Args) != 0 {
				continue
			}
			if entry, ok := table[node.Offset]; ok && entry.valid {
				e.ReplaceAllUsesWith(idx, e.Unwrap(entry.value))
				e.Remove(idx)
				changed = true
			}
		}
	}
	return changed
}
