package ir

import "github.com/sarchlab/x86dbt/decode"

// arithOpFor maps a decoded mnemonic to its IR op, for the ops the
// builder lowers into a single arithmetic node (spec §6's "Decoder → IR
// builder... writes SSA nodes whose classes are derived from
// opcode/table-info").
var arithOpFor = map[decode.Op]Op{
	decode.OpADD:  OpAdd,
	decode.OpSUB:  OpSub,
	decode.OpAND:  OpAnd,
	decode.OpOR:   OpOr,
	decode.OpXOR:  OpXor,
	decode.OpCMP:  OpSub, // flags-only: result computed, never written back
	decode.OpTEST: OpAnd, // flags-only: result computed, never written back
	decode.OpADC:  OpAdd, // carry-in not modeled; same approximation as CMP/TEST's flag elision
	decode.OpSBB:  OpSub, // borrow-in not modeled; same approximation as CMP/TEST's flag elision
}

// discardResultOps are the arithOpFor entries whose numeric result is
// never written to a register — condition-flag computation isn't
// modeled in this IR, so the node is left for DCE to remove once
// nothing references it.
var discardResultOps = map[decode.Op]bool{
	decode.OpCMP:  true,
	decode.OpTEST: true,
}

// blockEnderOpFor maps a decoded block-ending mnemonic to the IR op
// BuildBlock emits as the block's final node. JMP/CALL/RET/UD2 all
// become a plain ExitBlock marker; JCC becomes CondJump; SYSCALL becomes
// a Syscall node carrying rax, rdi, rsi and rdx. Neither ExitBlock nor
// CondJump carries the branch target or condition code into the IR — control-flow
// resolution past the decoded block boundary is a backend/loader
// concern external to this module (SPEC_FULL.md §8).
var blockEnderOpFor = map[decode.Op]Op{
	decode.OpJMP:     OpExitBlock,
	decode.OpCALL:    OpExitBlock,
	decode.OpRET:     OpExitBlock,
	decode.OpUD2:     OpExitBlock,
	decode.OpJCC:     OpCondJump,
	decode.OpSYSCALL: OpSyscall,
}

// builder holds the per-block state BuildBlock threads through each
// decoded instruction: the emitter, the guest context layout, and a
// lazily-populated map from GPR number to the SSA node currently holding
// its value (an SSA-construction register map, in the same spirit as a
// classic mem2reg pass — a GPR read before any local definition becomes
// an EntryGPR node instead of a fresh context load every time).
type builder struct {
	e    *Emitter
	ctx  GuestContext
	regs map[uint8]uint32
}

// BuildBlock lowers a decode.DecodedBlock into IR within a fresh block on
// e, using ctx's offsets for any register read that needs to reach back
// to the guest context. Returns the new block's own node index.
func BuildBlock(e *Emitter, ctx GuestContext, block decode.DecodedBlock) uint32 {
	b := &builder{e: e, ctx: ctx, regs: make(map[uint8]uint32)}
	blockIdx := e.NewBlock()

	for _, inst := range block.Instructions {
		b.buildInst(inst)
	}

	return blockIdx
}

func (b *builder) buildInst(inst decode.DecodedInstruction) {
	op := inst.Table.Op

	if ender, ok := blockEnderOpFor[op]; ok {
		b.buildBlockEnder(ender, op, inst)
		return
	}

	switch op {
	case decode.OpMOV:
		b.storeOperand(inst.Dest, b.loadOperand(inst.Src1, inst.Dest.Size))
	case decode.OpNOP:
		// No IR effect; NOP carries no value and ends no block.
	default:
		if irOp, ok := arithOpFor[op]; ok {
			b.buildArith(irOp, op, inst)
		}
	}
}

func (b *builder) buildArith(irOp Op, decOp decode.Op, inst decode.DecodedInstruction) {
	size := inst.Dest.Size
	a := b.loadOperand(inst.Dest, size)
	c := b.loadOperand(inst.Src1, size)
	result := b.e.EmitOp(irOp, size, b.e.Arg(a), b.e.Arg(c))

	if !discardResultOps[decOp] {
		b.storeOperand(inst.Dest, result)
	}
}

func (b *builder) buildBlockEnder(irOp Op, decOp decode.Op, inst decode.DecodedInstruction) {
	if decOp == decode.OpSYSCALL {
		b.e.EmitOp(OpSyscall, 64,
			b.e.Arg(b.readGPR(regRAX, 64)),
			b.e.Arg(b.readGPR(regRDI, 64)),
			b.e.Arg(b.readGPR(regRSI, 64)),
			b.e.Arg(b.readGPR(regRDX, 64)),
		)
		return
	}
	b.e.EmitOp(irOp, 0)
}

// x86-64 syscall ABI register numbers (rax, rdi, rsi, rdx).
const (
	regRAX uint8 = 0
	regRDI uint8 = 7
	regRSI uint8 = 6
	regRDX uint8 = 2
)

// loadOperand returns the SSA node currently holding op's value,
// materializing a GPR's entry value or a memory read on first use.
func (b *builder) loadOperand(op decode.Operand, size uint8) uint32 {
	switch op.Kind {
	case decode.OperandGPR:
		return b.readGPR(op.Reg, size)
	case decode.OperandImmediate:
		return b.e.EmitConstant(size, op.Imm)
	case decode.OperandGPRDirectAddress, decode.OperandGPRIndirectDisp, decode.OperandSIB:
		addr := b.computeAddress(op)
		loaded := b.e.EmitOp(OpLoad, size, b.e.Arg(addr))
		return loaded
	case decode.OperandRIPRelativeLiteral:
		addr := b.e.EmitConstant(64, int64(op.Disp))
		return b.e.EmitOp(OpLoadMem, size, b.e.Arg(addr))
	default:
		return b.e.EmitConstant(size, 0)
	}
}

// storeOperand writes value into op's location: a GPR update just moves
// the register map entry, a memory operand emits a store.
func (b *builder) storeOperand(op decode.Operand, value uint32) {
	switch op.Kind {
	case decode.OperandGPR:
		b.regs[op.Reg] = value
	case decode.OperandGPRDirectAddress, decode.OperandGPRIndirectDisp, decode.OperandSIB:
		addr := b.computeAddress(op)
		b.e.EmitOp(OpStore, op.Size, b.e.Arg(addr), b.e.Arg(value))
	case decode.OperandRIPRelativeLiteral:
		addr := b.e.EmitConstant(64, int64(op.Disp))
		b.e.EmitOp(OpStoreMem, op.Size, b.e.Arg(addr), b.e.Arg(value))
	}
}

// computeAddress lowers a register-relative addressing form to base +
// disp; SIB's index*scale term is omitted, as with LowerX87's MM-stack
// indexing, because the IR op catalog has no multiply op to scale it —
// a SIB operand's Index/Scale fields are left for the backend contract
// to fold in, consistent with ElementSize's use elsewhere in this module
// for a dynamic-index stride the IR itself cannot compute.
func (b *builder) computeAddress(op decode.Operand) uint32 {
	if op.NoBase {
		return b.e.EmitConstant(64, int64(op.Disp))
	}

	base := b.readGPR(op.Base, 64)
	if op.Disp == 0 {
		return base
	}

	dispConst := b.e.EmitConstant(64, int64(op.Disp))
	return b.e.EmitOp(OpAdd, 64, b.e.Arg(base), b.e.Arg(dispConst))
}

// readGPR returns reg's current SSA value, materializing an EntryGPR
// read of the guest context on first reference within this block.
func (b *builder) readGPR(reg uint8, size uint8) uint32 {
	if v, ok := b.regs[reg]; ok {
		return v
	}
	entry := b.e.EmitOp(OpEntryGPR, size)
	b.e.Program().Node(entry).Offset = int32(b.ctx.GPRContextOffset(reg))
	b.regs[reg] = entry
	return entry
}
