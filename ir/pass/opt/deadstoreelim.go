package opt

import "github.com/sarchlab/x86dbt/ir"

// DeadStoreElim removes a guest-memory store overwritten by a later
// store to the provably same address (the same SSA node as the address
// argument) before any intervening load, and forwards a load from a
// store at the same address (spec §4.3/§4.4). Unlike
// ContextLoadStoreElim, guest memory addresses are arbitrary computed
// values with no static offset to key on, so aliasing is only assumed
// absent when two stores share the literal same address SSA node — any
// other store conservatively invalidates tracked entries, since it might
// alias them at runtime.
type DeadStoreElim struct{}

func (p *DeadStoreElim) Name() string { return "DeadStoreElim" }

func (p *DeadStoreElim) Run(e *ir.Emitter) bool {
	changed := false
	for _, block := range e.View().Blocks() {
		if p.runBlock(e, block) {
			changed = true
		}
	}
	return changed
}

func (p *DeadStoreElim) runBlock(e *ir.Emitter, block uint32) bool {
	changed := false
	lastStore := make(map[uint32]uint32)

	for _, idx := range e.View().CodeInBlock(block) {
		node := e.View().At(idx)
		switch node.Op {
		case ir.OpStore, ir.OpStoreMem:
			if len(node.Args) != 2 {
				continue
			}
			addr := node.Args[0].Index()
			if prev, ok := lastStore[addr]; ok {
				e.Remove(prev)
				changed = true
			}
			for k := range lastStore {
				delete(lastStore, k)
			}
			lastStore[addr] = idx

		case ir.OpLoad, ir.OpLoadMem:
			if len(node.Args) != 1 {
				continue
			}
			addr := node.Args[0].Index()
			if store, ok := lastStore[addr]; ok {
				storeNode := e.View().At(store)
				e.ReplaceAllUsesWith(idx, storeNode.Args[1].Index())
				e.Remove(idx)
				changed = true
			}
			// A load keeps every earlier tracked store live, since it
			// might read any of them at runtime.
			for k := range lastStore {
				delete(lastStore, k)
			}
		}
	}
	return changed
}
