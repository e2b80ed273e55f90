package decode

// Opcode table entries. Indexing follows the one-byte map directly for
// entries keyed off a single primary byte, and a small two-byte map for
// entries reached through the 0x0F escape. A production frontend carries
// the full one/two/three-byte + group tables described in spec §4.1;
// this subset covers the mnemonics the IR/pass/RA pipeline in this module
// exercises, plus the decode-only properties (ModRM/SIB/immediate sizing,
// block-ender classification) spec §8's concrete scenarios check. Group 1
// (0x80/0x81/0x83) is carried in full, since every one of its eight
// reg-field-selected mnemonics already has an IR lowering; the VEX
// (0xC4/0xC5) and 3DNow! (0x0F 0x0F) encodings are parsed structurally in
// decoder.go but have no table entries here, since this IR's op catalog
// has nothing to lower an AVX-vector or 3DNow op to (see decoder.go's
// decodeVEX/decode3DNow doc comments).

// group1Ops are the eight mnemonics opcodes 0x80/0x81/0x83 route to by
// ModRM reg field (spec §4.1's "route by {group, prefix, reg-field}"),
// in Intel's canonical group-1 order.
var group1Ops = [8]Op{OpADD, OpOR, OpADC, OpSBB, OpAND, OpSUB, OpXOR, OpCMP}

var oneByteTable = map[uint8]TableInfo{
	// MOV r/m64, r64  (89 /r) — REX.W promotes both operand sizes to 64.
	0x89: {Name: "MOV", Op: OpMOV, NumOperands: 2, HasModRM: true},
	0x8B: {Name: "MOV", Op: OpMOV, NumOperands: 2, HasModRM: true},

	0x01: {Name: "ADD", Op: OpADD, NumOperands: 2, HasModRM: true},
	0x03: {Name: "ADD", Op: OpADD, NumOperands: 2, HasModRM: true},
	0x29: {Name: "SUB", Op: OpSUB, NumOperands: 2, HasModRM: true},
	0x2B: {Name: "SUB", Op: OpSUB, NumOperands: 2, HasModRM: true},
	0x21: {Name: "AND", Op: OpAND, NumOperands: 2, HasModRM: true},
	0x09: {Name: "OR", Op: OpOR, NumOperands: 2, HasModRM: true},
	0x31: {Name: "XOR", Op: OpXOR, NumOperands: 2, HasModRM: true},
	0x39: {Name: "CMP", Op: OpCMP, NumOperands: 2, HasModRM: true},
	0x85: {Name: "TEST", Op: OpTEST, NumOperands: 2, HasModRM: true},

	// JMP rel8 / rel32
	0xEB: {Name: "JMP", Op: OpJMP, NumOperands: 1, ImmSize: 1, ImmSignExtend: true, Flags: FlagBlockEnd | FlagSetsRIP},
	0xE9: {Name: "JMP", Op: OpJMP, NumOperands: 1, ImmSize: 4, ImmSignExtend: true, Flags: FlagBlockEnd | FlagSetsRIP},

	// Jcc rel8, 0x70-0x7F (conditional, not an unconditional block end —
	// continuation policy in decoder.go decides whether to fall through).
	0x70: {Name: "JCC", Op: OpJCC, NumOperands: 1, ImmSize: 1, ImmSignExtend: true, Flags: FlagSetsRIP},

	0xE8: {Name: "CALL", Op: OpCALL, NumOperands: 1, ImmSize: 4, ImmSignExtend: true, Flags: FlagBlockEnd | FlagSetsRIP},
	0xC3: {Name: "RET", Op: OpRET, NumOperands: 0, Flags: FlagBlockEnd | FlagSetsRIP},

	// Group 1: ADD/OR/ADC/SBB/AND/SUB/XOR/CMP r/m, imm — reg field
	// selects the real mnemonic via group1Ops, read after ModRM.
	0x80: {Name: "GRP1", IsGroup: true, GroupOps: group1Ops, NumOperands: 2, HasModRM: true, ImmSize: 1, ForcedSize: 8},
	0x81: {Name: "GRP1", IsGroup: true, GroupOps: group1Ops, NumOperands: 2, HasModRM: true, ImmSize: 4, ImmSignExtend: true, ImmHalvesWith66: true},
	0x83: {Name: "GRP1", IsGroup: true, GroupOps: group1Ops, NumOperands: 2, HasModRM: true, ImmSize: 1, ImmSignExtend: true},
}

// jccBase is 0x70; any byte in [0x70, 0x7F] is a Jcc variant sharing the
// 0x70 table entry's shape (the condition code itself lives outside this
// module's concern — the IR only needs branch-or-not and target).
const jccBase, jccLast = 0x70, 0x7F

var twoByteTable = map[uint8]TableInfo{
	// NOP r/m (0F 1F /0) — ModRM+SIB+disp32 form used in spec §8 scenario 2.
	0x1F: {Name: "NOP", Op: OpNOP, NumOperands: 1, HasModRM: true},
	0x0B: {Name: "UD2", Op: OpUD2, NumOperands: 0, Flags: FlagBlockEnd},
	0x05: {Name: "SYSCALL", Op: OpSYSCALL, NumOperands: 0, Flags: FlagBlockEnd | FlagSetsRIP},
}

func lookupOneByte(b uint8) (TableInfo, bool) {
	if b >= jccBase && b <= jccLast {
		info := oneByteTable[jccBase]
		return info, true
	}
	info, ok := oneByteTable[b]
	return info, ok
}

func lookupTwoByte(b uint8) (TableInfo, bool) {
	info, ok := twoByteTable[b]
	return info, ok
}

// vexTable would key (map_select, pp, opcode) to a TableInfo the way
// oneByteTable/twoByteTable do; it is empty because no AVX-vector op
// exists in this module's IR catalog to lower to (see decoder.go's
// decodeVEX doc comment) — every VEX-prefixed instruction this decoder
// sees still resolves to an illegal-opcode error, now for that reason
// rather than by mis-decoding 0xC4/0xC5 as one-byte opcodes.
var vexTable = map[[3]uint8]TableInfo{}

func lookupVEX(mapSelect, pp, opcode uint8) (TableInfo, bool) {
	info, ok := vexTable[[3]uint8{mapSelect, pp, opcode}]
	return info, ok
}

// threeDNowTable keys the 3DNow! postfix byte (read after ModRM/SIB/disp,
// per decoder.go's decode3DNow) to a TableInfo; empty for the same
// reason vexTable is — no MMX-packed-float op exists in this module's IR
// catalog to lower to.
var threeDNowTable = map[uint8]TableInfo{}

func lookup3DNow(postfix uint8) (TableInfo, bool) {
	info, ok := threeDNowTable[postfix]
	return info, ok
}
