// Package opt implements the lowering and optimization passes spec.md
// §4.4 names, plus the default wiring (AddDefaultPasses,
// AddDefaultValidationPasses, InsertRegisterAllocationPass) that spec.md
// §6 describes as PassManager methods. Those three live here as free
// functions instead, installing onto a *pass.Manager from the outside:
// pass.Manager cannot import opt (opt needs ra, and ra's allocator needs
// to be wrapped as a pass.RegisterAllocationPass here), so putting the
// defaults on Manager itself would create an import cycle between
// ir/pass and ir/pass/opt.
package opt

import (
	"github.com/sarchlab/x86dbt/ir"
	"github.com/sarchlab/x86dbt/ir/pass"
)

// LowerX87 replaces the abstract x87-stack ops (GetTop, SetTop, AdjustTop,
// StackLoad, StackStore) with concrete GuestContext loads/stores (spec
// §4.4). It runs after ReplaceX87 has folded away everything it can
// resolve statically, so whatever survives genuinely needs the top
// pointer read at runtime.
//
// StackLoad/StackStore's dynamic MM-stack index cannot be expressed as
// OpLoadContext's static Offset alone, and the IR op catalog has no
// multiply op to scale an index by MMEntrySize — so this lowering passes
// the (unscaled, 0..7) index as the op's single Arg and records the
// per-entry byte stride in the node's ElementSize field, generalizing its
// "vector element width" meaning to "dynamic-index stride" for this one
// case; the backend contract (an external collaborator here) is expected
// to multiply Arg-index by ElementSize when materializing the address.
type LowerX87 struct {
	pass.Base
	Context ir.GuestContext
}

func (p *LowerX87) Name() string { return "LowerX87" }

func (p *LowerX87) Run(e *ir.Emitter) bool {
	changed := false
	for _, idx := range e.View().GetAllCode() {
		node := e.View().At(idx)
		switch node.Op {
		case ir.OpGetTop:
			p.lowerGetTop(e, idx)
			changed = true
		case ir.OpSetTop:
			p.lowerSetTop(e, idx, node.Args[0])
			changed = true
		case ir.OpAdjustTop:
			p.lowerAdjustTop(e, idx, node.Offset)
			changed = true
		case ir.OpStackLoad:
			p.lowerStackLoad(e, idx, node.Offset)
			changed = true
		case ir.OpStackStore:
			p.lowerStackStore(e, idx, node.Offset, node.Args[0])
			changed = true
		}
	}
	return changed
}

func (p *LowerX87) topOffset() int32 {
	return int32(p.Context.FlagsOffset + p.Context.X87TopLocBit)
}

func (p *LowerX87) lowerGetTop(e *ir.Emitter, node uint32) {
	e.SetCursor(node)
	top := e.EmitOp(ir.OpLoadContext, 8)
	e.Program().Node(top).Offset = p.topOffset()
	e.ReplaceAllUsesWith(node, top)
	e.Remove(node)
}

func (p *LowerX87) lowerSetTop(e *ir.Emitter, node uint32, v ir.Argument) {
	e.SetCursor(node)
	store := e.EmitOp(ir.OpStoreContext, 8, v)
	e.Program().Node(store).Offset = p.topOffset()
	e.Remove(node)
}

func (p *LowerX87) lowerAdjustTop(e *ir.Emitter, node uint32, off int32) {
	e.SetCursor(node)
	top := e.EmitOp(ir.OpLoadContext, 8)
	e.Program().Node(top).Offset = p.topOffset()

	offConst := e.EmitConstant(8, int64(off))
	summed := e.EmitOp(ir.OpAdd, 8, e.Arg(top), e.Arg(offConst))

	maskConst := e.EmitConstant(8, 7)
	masked := e.EmitOp(ir.OpAnd, 8, e.Arg(summed), e.Arg(maskConst))

	store := e.EmitOp(ir.OpStoreContext, 8, e.Arg(masked))
	e.Program().Node(store).Offset = p.topOffset()

	e.Remove(node)
}

// mmIndex emits the IR computing the effective MM-stack index for a
// StackLoad/StackStore at displacement off from the current top: the raw
// top pointer when off is zero, else (top+off)&7.
func (p *LowerX87) mmIndex(e *ir.Emitter, off int32) uint32 {
	top := e.EmitOp(ir.OpLoadContext, 8)
	e.Program().Node(top).Offset = p.topOffset()

	if off == 0 {
		return top
	}
	offConst := e.EmitConstant(8, int64(off))
	base := e.EmitOp(ir.OpAdd, 8, e.Arg(top), e.Arg(offConst))

	maskConst := e.EmitConstant(8, 7)
	return e.EmitOp(ir.OpAnd, 8, e.Arg(base), e.Arg(maskConst))
}

func (p *LowerX87) lowerStackLoad(e *ir.Emitter, node uint32, off int32) {
	e.SetCursor(node)
	idx := p.mmIndex(e, off)
	loaded := e.EmitOp(ir.OpLoadContext, 128, e.Arg(idx))
	n := e.Program().Node(loaded)
	n.Offset = int32(p.Context.MMOffset)
	n.ElementSize = uint8(p.Context.MMEntrySize)

	e.ReplaceAllUsesWith(node, loaded)
	e.Remove(node)
}

func (p *LowerX87) lowerStackStore(e *ir.Emitter, node uint32, off int32, v ir.Argument) {
	e.SetCursor(node)
	idx := p.mmIndex(e, off)
	store := e.EmitOp(ir.OpStoreContext, 128, e.Arg(idx), v)
	n := e.Program().Node(store)
	n.Offset = int32(p.Context.MMOffset)
	n.ElementSize = uint8(p.Context.MMEntrySize)

	e.Remove(node)
}
