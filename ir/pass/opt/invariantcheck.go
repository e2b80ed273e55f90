package opt

import (
	"fmt"

	"github.com/sarchlab/x86dbt/ir"
)

// InvariantCheck is the default validation pass (spec §4.3, §7's
// IRInvariantError): it verifies every live node's arguments reference
// live, already-defined nodes, and that every live node is reachable
// from its own block's CodeInBlock walk. This IR has no control-flow
// joins other than straight block succession, so dominance here reduces
// to "a use's argument must come strictly earlier in program order than
// the use itself" (positions along the GetAllCode walk, not raw node
// indices) — the same program-order requirement Compaction's own output
// depends on.
//
// It only ever runs when the Manager was built with
// pass.WithAssertions(true) (spec §7: "fatal assertion in debug builds;
// elided in release"), so a violation panics rather than returning an
// error Run has no way to report.
type InvariantCheck struct{}

func (p *InvariantCheck) Name() string { return "InvariantCheck" }

func (p *InvariantCheck) Run(e *ir.Emitter) bool {
	view := e.View()

	inBlock := make(map[uint32]bool)
	for _, block := range view.Blocks() {
		for _, idx := range view.CodeInBlock(block) {
			inBlock[idx] = true
		}
	}

	// Position in this program-order walk, not the raw SSA index, is
	// what def-before-use means here: a node inserted via the cursor
	// always gets a larger index than everything emitted before it,
	// regardless of where in the block it was spliced in, so only
	// linked-list order reflects actual execution order pre-compaction.
	order := view.GetAllCode()
	position := make(map[uint32]int, len(order))
	for i, idx := range order {
		position[idx] = i
	}

	for i, idx := range order {
		node := view.At(idx)
		if !inBlock[idx] {
			panic(fmt.Errorf("%w: node %d not reachable from its block's CodeInBlock walk", ir.ErrIRInvariant, idx))
		}
		for _, arg := range node.Args {
			useIdx := arg.Index()
			defPos, ok := position[useIdx]
			if !ok || defPos >= i {
				panic(fmt.Errorf("%w: node %d uses node %d which is not defined earlier", ir.ErrIRInvariant, idx, useIdx))
			}
			if view.At(useIdx).Removed() {
				panic(fmt.Errorf("%w: node %d uses removed node %d", ir.ErrIRInvariant, idx, useIdx))
			}
		}
	}
	return false
}
