package opt_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/x86dbt/ir"
	"github.com/sarchlab/x86dbt/ir/pass/opt"
	"github.com/sarchlab/x86dbt/ra"
)

func TestOpt(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "opt Suite")
}

var _ = Describe("ReplaceX87", func() {
	It("forwards a stack store to a matching load through an AdjustTop and coalesces the displacement", func() {
		e := ir.NewEmitter()
		block := e.NewBlock()

		adjust := e.EmitOp(ir.OpAdjustTop, 8)
		e.Program().Node(adjust).Offset = 1

		v1 := e.EmitConstant(64, 7)
		store := e.EmitOp(ir.OpStackStore, 64, e.Arg(v1))
		e.Program().Node(store).Offset = 0

		load := e.EmitOp(ir.OpStackLoad, 64)
		e.Program().Node(load).Offset = 0

		use := e.EmitOp(ir.OpAdd, 64, e.Arg(load), e.Arg(load))

		p := &opt.ReplaceX87{}
		p.Run(e)

		code := e.View().CodeInBlock(block)
		Expect(code).NotTo(ContainElement(store))
		Expect(code).NotTo(ContainElement(load))

		useArgs := e.View().At(use).Args
		Expect(e.Unwrap(useArgs[0])).To(Equal(v1))
		Expect(e.Unwrap(useArgs[1])).To(Equal(v1))

		var adjustCount int
		var lastAdjustOffset int32
		for _, idx := range code {
			if e.View().At(idx).Op == ir.OpAdjustTop {
				adjustCount++
				lastAdjustOffset = e.View().At(idx).Offset
			}
		}
		Expect(adjustCount).To(Equal(1))
		Expect(lastAdjustOffset).To(Equal(int32(1)))
	})

	It("bails out and flushes when GetTop observes a pending displacement", func() {
		e := ir.NewEmitter()
		e.NewBlock()

		adjust := e.EmitOp(ir.OpAdjustTop, 8)
		e.Program().Node(adjust).Offset = 2

		top := e.EmitOp(ir.OpGetTop, 8)
		_ = top

		p := &opt.ReplaceX87{}
		changed := p.Run(e)
		Expect(changed).To(BeTrue())

		var sawFlush bool
		for _, idx := range e.View().GetAllCode() {
			if e.View().At(idx).Op == ir.OpAdjustTop {
				sawFlush = true
			}
		}
		Expect(sawFlush).To(BeTrue())
	})
})

var _ = Describe("DCE", func() {
	It("removes an unused pure node", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		dead := e.EmitConstant(32, 1)
		live := e.EmitConstant(32, 2)
		sum := e.EmitOp(ir.OpAdd, 32, e.Arg(live), e.Arg(live))
		e.EmitOp(ir.OpExitBlock, 0, e.Arg(sum))

		(&opt.DCE{}).Run(e)

		Expect(e.View().GetAllCode()).NotTo(ContainElement(dead))
		Expect(e.View().GetAllCode()).To(ContainElement(live))
	})

	It("never removes a memory load, even if unused", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		addr := e.EmitConstant(64, 0x1000)
		load := e.EmitOp(ir.OpLoad, 32, e.Arg(addr))

		(&opt.DCE{}).Run(e)

		Expect(e.View().GetAllCode()).To(ContainElement(load))
	})
})

var _ = Describe("ConstProp", func() {
	It("folds a constant add into a single constant", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		a := e.EmitConstant(32, 3)
		b := e.EmitConstant(32, 4)
		sum := e.EmitOp(ir.OpAdd, 32, e.Arg(a), e.Arg(b))
		use := e.EmitOp(ir.OpAdd, 32, e.Arg(sum), e.Arg(sum))

		(&opt.ConstProp{}).Run(e)

		useArgs := e.View().At(use).Args
		folded := e.View().At(e.Unwrap(useArgs[0]))
		Expect(folded.Op).To(Equal(ir.OpConstant))
		Expect(folded.Imm).To(Equal(int64(7)))
	})
})

var _ = Describe("ContextLoadStoreElim", func() {
	It("forwards a context store to a matching load at the same offset", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		v := e.EmitConstant(64, 42)
		store := e.EmitOp(ir.OpStoreContext, 64, e.Arg(v))
		e.Program().Node(store).Offset = 8

		load := e.EmitOp(ir.OpLoadContext, 64)
		e.Program().Node(load).Offset = 8
		use := e.EmitOp(ir.OpAdd, 64, e.Arg(load), e.Arg(load))

		(&opt.ContextLoadStoreElim{}).Run(e)

		useArgs := e.View().At(use).Args
		Expect(e.Unwrap(useArgs[0])).To(Equal(v))
	})

	It("leaves a dynamically-indexed context access alone", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		idx := e.EmitConstant(32, 1)
		v := e.EmitConstant(64, 1)
		store := e.EmitOp(ir.OpStoreContext, 64, e.Arg(v), e.Arg(idx))
		e.Program().Node(store).Offset = 8

		load := e.EmitOp(ir.OpLoadContext, 64, e.Arg(idx))
		e.Program().Node(load).Offset = 8

		changed := (&opt.ContextLoadStoreElim{}).Run(e)

		Expect(changed).To(BeFalse())
		Expect(e.View().GetAllCode()).To(ContainElement(load))
	})
})

var _ = Describe("DeadStoreElim", func() {
	It("removes a store overwritten before any intervening load of the same address", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		addr := e.EmitConstant(64, 0x2000)
		v1 := e.EmitConstant(32, 1)
		v2 := e.EmitConstant(32, 2)

		first := e.EmitOp(ir.OpStore, 32, e.Arg(addr), e.Arg(v1))
		_ = e.EmitOp(ir.OpStore, 32, e.Arg(addr), e.Arg(v2))

		(&opt.DeadStoreElim{}).Run(e)

		Expect(e.View().GetAllCode()).NotTo(ContainElement(first))
	})

	It("keeps both stores when an intervening load reads the address", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		addr := e.EmitConstant(64, 0x2000)
		v1 := e.EmitConstant(32, 1)

		first := e.EmitOp(ir.OpStore, 32, e.Arg(addr), e.Arg(v1))
		load := e.EmitOp(ir.OpLoad, 32, e.Arg(addr))
		_ = e.EmitOp(ir.OpStore, 32, e.Arg(addr), e.Arg(load))

		(&opt.DeadStoreElim{}).Run(e)

		Expect(e.View().GetAllCode()).To(ContainElement(first))
	})
})

var _ = Describe("SyscallOpt", func() {
	It("removes an exact, strictly-adjacent duplicate syscall", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		num := e.EmitConstant(64, 1)
		first := e.EmitOp(ir.OpSyscall, 64, e.Arg(num))
		dup := e.EmitOp(ir.OpSyscall, 64, e.Arg(num))

		(&opt.SyscallOpt{}).Run(e)

		code := e.View().GetAllCode()
		Expect(code).To(ContainElement(first))
		Expect(code).NotTo(ContainElement(dup))
	})

	It("keeps two syscalls separated by another instruction", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		num := e.EmitConstant(64, 1)
		first := e.EmitOp(ir.OpSyscall, 64, e.Arg(num))
		_ = e.EmitConstant(64, 9)
		second := e.EmitOp(ir.OpSyscall, 64, e.Arg(num))

		(&opt.SyscallOpt{}).Run(e)

		code := e.View().GetAllCode()
		Expect(code).To(ContainElement(first))
		Expect(code).To(ContainElement(second))
	})
})

var _ = Describe("Compaction", func() {
	It("delegates to Emitter.Compact", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		dead := e.EmitConstant(32, 1)
		e.Remove(dead)

		changed := (&opt.Compaction{}).Run(e)

		Expect(changed).To(BeTrue())
	})
})

var _ = Describe("InvariantCheck", func() {
	It("accepts a well-formed program", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		a := e.EmitConstant(32, 1)
		b := e.EmitConstant(32, 2)
		_ = e.EmitOp(ir.OpAdd, 32, e.Arg(a), e.Arg(b))

		Expect(func() { (&opt.InvariantCheck{}).Run(e) }).NotTo(Panic())
	})

	It("panics when a node uses a removed node", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		a := e.EmitConstant(32, 1)
		b := e.EmitConstant(32, 2)
		_ = e.EmitOp(ir.OpAdd, 32, e.Arg(a), e.Arg(b))
		e.Remove(a)

		Expect(func() { (&opt.InvariantCheck{}).Run(e) }).To(Panic())
	})
})

var _ = Describe("RegisterAllocationPass", func() {
	It("reports full allocation and zero spills for a small program within budget", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		a := e.EmitConstant(32, 1)
		b := e.EmitConstant(32, 2)
		_ = e.EmitOp(ir.OpAdd, 32, e.Arg(a), e.Arg(b))

		cfg := ra.ClassConfig{PhysicalCount: map[ir.RegClass]uint32{ir.ClassGPR: 8, ir.ClassFPR: 4}}
		p := opt.NewRegisterAllocationPass(cfg)

		p.Run(e)

		Expect(p.Err()).NotTo(HaveOccurred())
		Expect(p.HadFullRA()).To(BeTrue())
		Expect(p.SpillSlotCount()).To(Equal(uint32(0)))
	})
})

var _ = Describe("StaticRegAlloc", func() {
	It("doesn't mutate the program", func() {
		e := ir.NewEmitter()
		e.NewBlock()
		a := e.EmitConstant(32, 1)
		b := e.EmitConstant(32, 2)
		_ = e.EmitOp(ir.OpAdd, 32, e.Arg(a), e.Arg(b))

		before := len(e.View().GetAllCode())

		cfg := ra.ClassConfig{PhysicalCount: map[ir.RegClass]uint32{ir.ClassGPR: 8, ir.ClassFPR: 4}}
		p := &opt.StaticRegAlloc{Config: cfg}
		changed := p.Run(e)

		Expect(changed).To(BeFalse())
		Expect(e.View().GetAllCode()).To(HaveLen(before))
		Expect(p.Feasible()).To(BeTrue())
	})
})
