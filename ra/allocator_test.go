package ra

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/x86dbt/ir"
)

var _ = Describe("Allocator", func() {
	It("allocates within budget without spilling when pressure is low", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		c1 := e.EmitConstant(32, 1)
		c2 := e.EmitConstant(32, 2)
		sum := e.EmitOp(ir.OpAdd, 32, e.Arg(c1), e.Arg(c2))
		e.EmitOp(ir.OpExitBlock, 32, e.Arg(sum))

		cfg := ClassConfig{PhysicalCount: map[ir.RegClass]uint32{ir.ClassGPR: 4}}
		a := NewAllocator(cfg)

		data, err := a.Run(e)
		Expect(err).NotTo(HaveOccurred())
		Expect(data.HadFullRA()).To(BeTrue())
		Expect(data.SpillSlotCount()).To(BeNumerically("==", 0))
	})

	It("spills to converge when three real values are briefly live at once under a tight budget", func() {
		e := ir.NewEmitter()
		e.NewBlock()

		c1 := e.EmitConstant(32, 1)
		c2 := e.EmitConstant(32, 2)
		c3 := e.EmitConstant(32, 3)
		c4 := e.EmitConstant(32, 4)
		c5 := e.EmitConstant(32, 5)
		c6 := e.EmitConstant(32, 6)

		// c is computed early and not consumed until s2, so it stays live
		// across a and b's computation and s1's combination of them —
		// three non-rematerializable values alive at once at s1.
		c := e.EmitOp(ir.OpAdd, 32, e.Arg(c5), e.Arg(c6))
		a := e.EmitOp(ir.OpAdd, 32, e.Arg(c1), e.Arg(c2))
		b := e.EmitOp(ir.OpAdd, 32, e.Arg(c3), e.Arg(c4))
		s1 := e.EmitOp(ir.OpAdd, 32, e.Arg(a), e.Arg(b))
		s2 := e.EmitOp(ir.OpAdd, 32, e.Arg(s1), e.Arg(c))
		e.EmitOp(ir.OpExitBlock, 32, e.Arg(s2))

		cfg := ClassConfig{PhysicalCount: map[ir.RegClass]uint32{ir.ClassGPR: 2}}
		alloc := NewAllocator(cfg)

		data, err := alloc.Run(e)
		Expect(err).NotTo(HaveOccurred())
		Expect(data.HadFullRA()).To(BeTrue())
		Expect(data.SpillSlotCount()).To(BeNumerically(">=", 1))
	})

	It("reports infeasible when a single op needs more operands live than the budget allows", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		c1 := e.EmitConstant(32, 1)
		c2 := e.EmitConstant(32, 2)
		sum := e.EmitOp(ir.OpAdd, 32, e.Arg(c1), e.Arg(c2))
		e.EmitOp(ir.OpExitBlock, 32, e.Arg(sum))

		cfg := ClassConfig{PhysicalCount: map[ir.RegClass]uint32{ir.ClassGPR: 1}}
		alloc := NewAllocator(cfg)

		_, err := alloc.Run(e)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, ErrInfeasible)).To(BeTrue())
	})

	It("picks the farthest-next-use FPR to spill when 33 cross a block boundary against a 32 budget", func() {
		// spec §8 scenario 3: block A defines 33 live FPRs that all cross
		// into block B against a physical FPR count of 32 — RA must spill
		// exactly one node, the one with the farthest next use in block B.
		e := ir.NewEmitter()
		e.NewBlock()
		defs := make([]uint32, 33)
		for i := range defs {
			defs[i] = e.EmitOp(ir.OpEntryFPR, 64)
		}

		e.NewBlock()
		for _, d := range defs {
			// OpStore has no dest, so consuming a def here adds no GPR
			// register pressure of its own — only the 33 FPR defs compete
			// for the FPR budget below.
			e.EmitOp(ir.OpStore, 64, e.Arg(d), e.Arg(d))
		}
		e.EmitOp(ir.OpExitBlock, 0)

		view := e.View()
		l := ComputeLiveness(view)
		graph := NewRegisterGraph(view.GetSSACount())
		ComputeInterference(view, l, graph)

		cfg := ClassConfig{PhysicalCount: map[ir.RegClass]uint32{ir.ClassFPR: 32}}
		nodes := sortedKeys(l.ranges)
		result := ColorGraph(view, nodes, graph, cfg)
		Expect(result.ok).To(BeFalse())
		Expect(result.failedChain).To(Equal([]uint32{defs[32]}))

		currentRange := l.ranges[defs[32]]
		victim := FindNodeToSpill(result.candidates, currentRange, l)
		Expect(victim).To(Equal(defs[31]))

		var stack SpillStack
		SpillRegisters(e, view, graph, &stack, l, victim)
		Expect(stack.Count()).To(BeNumerically("==", 1))
	})

	It("rematerializes a constant instead of spilling a non-constant value it outlives", func() {
		// spec §8 scenario 4: Constant(0) feeds three uses spread across a
		// range that fully contains another non-constant definition — RA
		// must rematerialize the constant at each use rather than spill the
		// non-constant, leaving three Constant ops and zero SpillRegister
		// ops in the result.
		e := ir.NewEmitter()
		e.NewBlock()

		c0 := e.EmitConstant(32, 0)
		u1 := e.EmitOp(ir.OpAdd, 32, e.Arg(c0), e.Arg(c0))
		v := e.EmitOp(ir.OpAdd, 32, e.Arg(u1), e.Arg(u1))
		e.EmitOp(ir.OpAdd, 32, e.Arg(c0), e.Arg(v))
		e.EmitOp(ir.OpAdd, 32, e.Arg(c0), e.Arg(c0))
		e.EmitOp(ir.OpExitBlock, 0)

		view := e.View()
		l := ComputeLiveness(view)

		cRange := l.ranges[c0]
		vRange := l.ranges[v]
		Expect(cRange.Encompasses(vRange)).To(BeTrue())

		graph := NewRegisterGraph(view.GetSSACount())
		currentRange := LiveRange{Begin: 0, End: view.GetSSACount()}
		victim := FindNodeToSpill([]uint32{v, c0}, currentRange, l)
		Expect(victim).To(Equal(c0))

		var stack SpillStack
		SpillRegisters(e, view, graph, &stack, l, victim)
		Expect(stack.Count()).To(BeNumerically("==", 0))

		constants, spills := 0, 0
		for _, idx := range view.GetAllCode() {
			switch view.At(idx).Op {
			case ir.OpConstant:
				constants++
			case ir.OpSpillRegister:
				spills++
			}
		}
		Expect(constants).To(Equal(3))
		Expect(spills).To(Equal(0))
	})

	It("rejects a tie-partner chain longer than its class budget", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		c1 := e.EmitConstant(32, 1)
		c2 := e.EmitConstant(32, 2)
		c3 := e.EmitConstant(32, 3)
		e.EmitOp(ir.OpExitBlock, 32, e.Arg(c1))

		view := e.View()
		l := ComputeLiveness(view)
		graph := NewRegisterGraph(view.GetSSACount())
		ComputeInterference(view, l, graph)
		graph.TieTogether(c1, c2)
		graph.TieTogether(c1, c3)

		cfg := ClassConfig{PhysicalCount: map[ir.RegClass]uint32{ir.ClassGPR: 2}}
		alloc := &Allocator{Config: cfg, graph: graph}

		err := alloc.checkChainsFeasible(view, []uint32{c1, c2, c3})
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, ErrInfeasible)).To(BeTrue())
	})
})
