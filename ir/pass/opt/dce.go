package opt

import "github.com/sarchlab/x86dbt/ir"

// pureOps are has-dest ops DCE may remove when unused: side-effect-free
// computation and context reads. OpLoad/OpLoadMem are guest memory reads
// and are deliberately excluded — they may fault, so removing an unused
// one would change guest-visible behavior.
var pureOps = map[ir.Op]bool{
	ir.OpConstant:      true,
	ir.OpEntryGPR:      true,
	ir.OpEntryFPR:      true,
	ir.OpAdd:           true,
	ir.OpSub:           true,
	ir.OpAnd:           true,
	ir.OpOr:            true,
	ir.OpXor:           true,
	ir.OpLoadContext:   true,
	ir.OpGetTop:        true,
	ir.OpStackLoad:     true,
	ir.OpF80Add:        true,
}

// DCE removes has-dest nodes in pureOps with zero remaining uses,
// repeating until a fixed point so a chain of now-dead producers is
// fully swept in one Run (spec §4.4).
type DCE struct{}

func (p *DCE) Name() string { return "DCE" }

func (p *DCE) Run(e *ir.Emitter) bool {
	changed := false
	for p.sweep(e) {
		changed = true
	}
	return changed
}

func (p *DCE) sweep(e *ir.Emitter) bool {
	view := e.View()
	code := view.GetAllCode()

	used := make(map[uint32]bool, len(code))
	for _, idx := range code {
		for _, arg := range view.At(idx).Args {
			used[arg.Index()] = true
		}
	}

	swept := false
	for _, idx := range code {
		node := view.At(idx)
		if !node.HasDest || !pureOps[node.Op] {
			continue
		}
		if used[idx] {
			continue
		}
		e.Remove(idx)
		swept = true
	}
	return swept
}
