package opt

import (
	"fmt"
	"io"

	"github.com/sarchlab/x86dbt/ir"
	"github.com/sarchlab/x86dbt/ir/pass"
)

// DumpIR prints the current program to Writer, one line per live node,
// tagged with Label (the phase name, e.g. "pre-ra" or "post-ra" — spec
// §6's DumpIR configuration option names phases this way). When the
// Manager has an inserted RA pass whose last run reached a full
// allocation, each line is suffixed with that run's spill-slot count;
// no per-node register assignment is printed.
type DumpIR struct {
	pass.Base
	Label  string
	Writer io.Writer
}

func (p *DumpIR) Name() string { return "DumpIR:" + p.Label }

func (p *DumpIR) Run(e *ir.Emitter) bool {
	view := e.View()
	fmt.Fprintf(p.Writer, "-- IR dump (%s) --\n", p.Label)

	var ra pass.RegisterAllocationPass
	if m := p.Manager(); m != nil {
		ra = m.GetRAPass()
	}

	for _, idx := range view.GetAllCode() {
		node := view.At(idx)
		fmt.Fprintf(p.Writer, "%6d: %-16v size=%-3d class=%v args=%v", idx, node.Op, node.Size, node.Class, argIndices(node.Args))
		if ra != nil && ra.HadFullRA() {
			fmt.Fprintf(p.Writer, " spills=%d", ra.SpillSlotCount())
		}
		fmt.Fprintln(p.Writer)
	}
	return false
}

func argIndices(args []ir.Argument) []uint32 {
	out := make([]uint32, len(args))
	for i, a := range args {
		out[i] = a.Index()
	}
	return out
}
