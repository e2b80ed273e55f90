// Package decode implements the guest instruction decoder: a prefix-aware,
// variable-length x86-64 frontend that turns a guest byte stream into a
// typed DecodedInstruction stream, optionally following branches across
// basic-block boundaries within a single translation unit.
package decode

// Flag bits recorded on a DecodedInstruction. Multiple flags may be set.
type Flag uint32

const (
	FlagOperandSize16 Flag = 1 << iota // 0x66 prefix seen
	FlagAddressSize32                  // 0x67 prefix seen
	FlagSegFS
	FlagSegGS
	FlagLock      // 0xF0 LOCK prefix
	FlagRepne     // 0xF2 prefix
	FlagRep       // 0xF3 prefix
	FlagRexPrefix // any REX byte (0x40-0x4F) present
	FlagRexWidening
	FlagRexR
	FlagRexX
	FlagRexB
	FlagModRMPresent
	FlagSIBPresent
	FlagBlockEnd // opcode table marks this a basic-block terminator
	FlagSetsRIP  // opcode writes RIP directly (branch/call/ret)
	FlagVEX      // VEX-prefixed (0xC4/0xC5) encoding seen
	FlagVEXLong  // VEX.L set (256-bit form)
	Flag3DNow    // 0x0F 0x0F 3DNow! escape seen
)

// OperandKind tags the variant carried by an Operand.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandGPR
	OperandGPRDirectAddress   // [reg]
	OperandGPRIndirectDisp    // [reg+disp]
	OperandSIB                // [base+index*scale+disp]
	OperandRIPRelativeLiteral // [rip+disp]
	OperandImmediate
)

// Operand is a tagged variant covering every x86 addressing form the
// decoder produces. Only the fields relevant to Kind are meaningful.
type Operand struct {
	Kind OperandKind

	Reg     uint8 // GPR/XMM number, already REX-extended
	HighByte bool // true for ah/ch/dh/bh (no-REX, reg>=4, 8-bit)

	Base  uint8 // SIB base register (or GPRIndirectDisp's reg)
	Index uint8 // SIB index register
	Scale uint8 // SIB scale: 1,2,4,8
	NoBase  bool // SIB base field signalled "absent" (mod=00,base=101)
	NoIndex bool // SIB index field signalled "absent" (index=100, no REX.X)

	Disp  int32 // displacement (1 or 4 bytes, sign-extended)
	Imm   int64 // sign-extended immediate literal

	Size     uint8 // operand size in bits: 8,16,32,64,128
	IsXMM    bool
}

// TableInfo is the static, opcode-indexed metadata the decoder consults to
// size operands and to classify block-enders. A real implementation keys
// a much larger table off (map select, pp, opcode, reg-field); the subset
// implemented here is sufficient to decode the instructions this module's
// IR emitter and passes need to exercise (§8 scenarios 1, 2, 6), plus
// group-1's ModRM-reg-field routing (spec §4.1's opcode-group step).
type TableInfo struct {
	Name string
	Op   Op

	DestIsFixed, Src1IsFixed bool // hard-coded operands (rax/rcx/rdx)
	FixedDest, FixedSrc1     uint8

	NumOperands int

	// HasModRM lets the caller know whether to run the ModRM/SIB decode
	// step at all; most opcodes do.
	HasModRM bool

	// IsGroup marks an opcode-group entry (spec §4.1: "read ModRM first,
	// route by {group, prefix, reg-field}"): the table lookup alone
	// doesn't name the real mnemonic, the ModRM reg field does, via
	// GroupOps. Op is left OpInvalid on a group entry; decodeOne
	// resolves it once the reg field is known.
	IsGroup  bool
	GroupOps [8]Op

	// ForcedSize overrides operandSize()'s REX.W/0x66-driven result when
	// an opcode's operand width is fixed by the encoding itself (e.g.
	// group 1's 0x80 r/m8, imm8 form is always 8-bit regardless of
	// prefixes). Zero means "use operandSize() as normal".
	ForcedSize uint8

	// ImmSize is the trailing immediate size in bytes (0 = none).
	ImmSize        uint8
	ImmSignExtend  bool
	ImmScalesWithRexW bool // ×2 width promotion under REX.W
	ImmHalvesWith66   bool // ÷2 width under operand-size override

	Flags Flag
}

// Op identifies a decoded x86 operation at the granularity the IR cares
// about (mnemonic-level, not encoding-level).
type Op uint16

const (
	OpInvalid Op = iota
	OpMOV
	OpNOP
	OpADD
	OpSUB
	OpAND
	OpOR
	OpXOR
	OpCMP
	OpTEST
	OpJMP
	OpJCC
	OpCALL
	OpRET
	OpUD2
	OpSYSCALL
	OpADC
	OpSBB
)

// DecodedInstruction is the structured record produced per instruction.
// Invariants (spec §3): ByteLen <= 15; at most one Immediate operand;
// ModRMPresent flag set iff ModRM was actually consumed.
type DecodedInstruction struct {
	PC      uint64
	OpIndex int // index into the opcode table this instruction matched
	Flags   Flag

	ModRM    uint8
	HasModRM bool
	SIB      uint8
	HasSIB   bool

	Dest, Src1, Src2 Operand
	NumOperands      int

	ByteLen uint8

	Table *TableInfo
}

// BlockEnder reports whether this instruction's table info marks it as a
// basic-block terminator (unconditional branch, call, ret, trap, syscall).
func (d *DecodedInstruction) BlockEnder() bool {
	return d.Flags&FlagBlockEnd != 0
}

// SetsRIP reports whether the instruction can redirect control flow.
func (d *DecodedInstruction) SetsRIP() bool {
	return d.Flags&FlagSetsRIP != 0
}

// DecodedBlock is an ordered run of DecodedInstructions covering one or
// more guest basic blocks joined by conditional branches whose targets
// fall inside the multiblock window (spec §3).
type DecodedBlock struct {
	EntryPC      uint64
	Instructions []DecodedInstruction
}

// TotalBytes returns the sum of decoded instruction sizes, which must
// equal the number of bytes consumed from the guest stream (spec §8,
// "decoder round-trip size").
func (b *DecodedBlock) TotalBytes() int {
	total := 0
	for _, inst := range b.Instructions {
		total += int(inst.ByteLen)
	}
	return total
}
