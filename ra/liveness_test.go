package ra_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/x86dbt/ir"
	"github.com/sarchlab/x86dbt/ra"
)

var _ = Describe("ComputeLiveness and ComputeInterference", func() {
	It("overlapping ranges interfere symmetrically and non-overlapping ones do not", func() {
		e := ir.NewEmitter()
		e.NewBlock()

		c1 := e.EmitConstant(32, 1)
		c2 := e.EmitConstant(32, 2)
		sum := e.EmitOp(ir.OpAdd, 32, e.Arg(c1), e.Arg(c2))
		e.EmitOp(ir.OpExitBlock, 32, e.Arg(sum))

		view := e.View()
		l := ra.ComputeLiveness(view)
		graph := ra.NewRegisterGraph(view.GetSSACount())
		ra.ComputeInterference(view, l, graph)

		// c1 and c2 are both live up to sum's definition: they interfere.
		Expect(graph.Interferes(c1, c2)).To(BeTrue())
		Expect(graph.Interferes(c2, c1)).To(BeTrue())

		// sum is defined after c1/c2 end: it does not interfere with them.
		Expect(graph.Interferes(c1, sum)).To(BeFalse())
		Expect(graph.Interferes(c2, sum)).To(BeFalse())
	})

	It("gives a value used across a block boundary no self-interference", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		c := e.EmitConstant(32, 7)
		e.EmitOp(ir.OpCondJump, 32, e.Arg(c))

		e.NewBlock()
		e.EmitOp(ir.OpExitBlock, 32, e.Arg(c))

		view := e.View()
		l := ra.ComputeLiveness(view)
		graph := ra.NewRegisterGraph(view.GetSSACount())
		ra.ComputeInterference(view, l, graph)

		// No crash and no self-interference is the property under test;
		// the partitioned path is only exercised above the 2048 threshold,
		// so this just exercises the local/global bookkeeping that feeds
		// it without asserting on graph internals directly.
		Expect(graph.Interferes(c, c)).To(BeFalse())
	})
})
