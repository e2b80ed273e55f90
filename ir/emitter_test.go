package ir_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/x86dbt/ir"
)

func TestIR(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ir Suite")
}

var _ = Describe("Emitter", func() {
	It("builds a single block with a constant and an add", func() {
		e := ir.NewEmitter()
		e.NewBlock()

		c1 := e.EmitConstant(32, 1)
		c2 := e.EmitConstant(32, 2)
		sum := e.EmitOp(ir.OpAdd, 32, e.Arg(c1), e.Arg(c2))

		view := e.View()
		code := view.GetAllCode()
		Expect(code).To(Equal([]uint32{c1, c2, sum}))
		Expect(view.At(sum).HasDest).To(BeTrue())
		Expect(view.At(sum).Args).To(HaveLen(2))
	})

	It("replaces all uses of a node", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		c1 := e.EmitConstant(32, 1)
		c2 := e.EmitConstant(32, 2)
		use := e.EmitOp(ir.OpAdd, 32, e.Arg(c1), e.Arg(c1))

		e.ReplaceAllUsesWith(c1, c2)

		args := e.View().At(use).Args
		Expect(e.Unwrap(args[0])).To(Equal(c2))
		Expect(e.Unwrap(args[1])).To(Equal(c2))
	})

	It("removes a node and closes the gap in block iteration", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		c1 := e.EmitConstant(32, 1)
		c2 := e.EmitConstant(32, 2)
		sum := e.EmitOp(ir.OpAdd, 32, e.Arg(c1), e.Arg(c2))

		e.Remove(c2)

		code := e.View().GetAllCode()
		Expect(code).To(Equal([]uint32{c1, sum}))
	})

	It("scopes ReplaceAllUsesWithInclusive to an index window", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		c1 := e.EmitConstant(32, 7)
		useBefore := e.EmitOp(ir.OpAdd, 32, e.Arg(c1), e.Arg(c1))
		c2 := e.EmitConstant(32, 9)
		useAfter := e.EmitOp(ir.OpAdd, 32, e.Arg(c1), e.Arg(c1))

		e.ReplaceAllUsesWithInclusive(c1, c2, useAfter, useAfter+1)

		Expect(e.Unwrap(e.View().At(useBefore).Args[0])).To(Equal(c1))
		Expect(e.Unwrap(e.View().At(useAfter).Args[0])).To(Equal(c2))
	})
})
