package opt

import "github.com/sarchlab/x86dbt/ir"

// ConstProp folds a binary arithmetic/logic op whose operands are both
// OpConstant into a single OpConstant carrying the computed result (spec
// §4.4). The original op is left for DCE to remove once its result has no
// remaining uses.
type ConstProp struct{}

func (p *ConstProp) Name() string { return "ConstProp" }

func (p *ConstProp) Run(e *ir.Emitter) bool {
	changed := false
	view := e.View()
	for _, idx := range view.GetAllCode() {
		node := view.At(idx)
		fold, ok := foldFn[node.Op]
		if !ok || len(node.Args) != 2 {
			continue
		}

		a, aOK := constValue(view, node.Args[0])
		b, bOK := constValue(view, node.Args[1])
		if !aOK || !bOK {
			continue
		}

		e.SetCursor(idx)
		folded := e.EmitConstant(node.Size, fold(a, b))
		e.ReplaceAllUsesWith(idx, folded)
		changed = true
	}
	return changed
}

func constValue(view ir.View, arg ir.Argument) (int64, bool) {
	n := view.At(arg.Index())
	if n.Op != ir.OpConstant {
		return 0, false
	}
	return n.Imm, true
}

var foldFn = map[ir.Op]func(a, b int64) int64{
	ir.OpAdd: func(a, b int64) int64 { return a + b },
	ir.OpSub: func(a, b int64) int64 { return a - b },
	ir.OpAnd: func(a, b int64) int64 { return a & b },
	ir.OpOr:  func(a, b int64) int64 { return a | b },
	ir.OpXor: func(a, b int64) int64 { return a ^ b },
}
