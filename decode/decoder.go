package decode

import "fmt"

// legacy prefix bytes.
const (
	pfxOperandSize = 0x66
	pfxAddressSize = 0x67
	pfxSegCS       = 0x2E
	pfxSegSS       = 0x36
	pfxSegDS       = 0x3E
	pfxSegES       = 0x26
	pfxSegFS       = 0x64
	pfxSegGS       = 0x65
	pfxLock        = 0xF0
	pfxRepne       = 0xF2
	pfxRep         = 0xF3
	pfxEscape      = 0x0F

	vex2Prefix      = 0xC5 // two-byte VEX
	vex3Prefix      = 0xC4 // three-byte VEX
	threeDNowEscape = 0x0F // second byte of the 0x0F 0x0F 3DNow! escape
)

func isLegacyPrefix(b uint8) bool {
	switch b {
	case pfxOperandSize, pfxAddressSize, pfxSegCS, pfxSegSS, pfxSegDS, pfxSegES, pfxSegFS, pfxSegGS, pfxLock, pfxRepne, pfxRep:
		return true
	}
	return false
}

func isREX(b uint8) bool { return b >= 0x40 && b <= 0x4F }

// Decoder turns a guest byte stream into DecodedInstructions. It carries
// no state between DecodeOne calls; DecodeBlock is the only stateful
// operation, and its state (the multiblock continuation set) is local to
// one call.
type Decoder struct {
	Multiblock           bool
	MaxInstPerBlock       int64 // -1 = unlimited
	MaxCondBranchBackward int64
	MaxCondBranchForward  int64
	BreakOnFrontendFailure bool
}

// NewDecoder returns a Decoder with conservative defaults: multiblock
// decoding disabled, no instruction cap, a +/-4KiB branch window.
func NewDecoder() *Decoder {
	return &Decoder{
		MaxInstPerBlock:        -1,
		MaxCondBranchBackward:  4096,
		MaxCondBranchForward:   4096,
		BreakOnFrontendFailure: true,
	}
}

// DecodeOne decodes a single instruction at pc. It returns false (with no
// panic) on malformed encoding per spec §4.1's contract: true plus an
// appended DecodedInstruction on success.
func (d *Decoder) DecodeOne(mem GuestMemory, pc uint64) (DecodedInstruction, bool) {
	inst, err := d.decodeOne(mem, pc)
	if err != nil {
		return DecodedInstruction{}, false
	}
	return inst, true
}

func (d *Decoder) decodeOne(mem GuestMemory, pc uint64) (DecodedInstruction, error) {
	c := newCursor(mem, pc)
	var inst DecodedInstruction
	inst.PC = pc

	var rex uint8
	var hasRex bool

	// Prefix accumulation loop. A legacy prefix seen after a REX byte is
	// malformed (REX must immediately precede the opcode).
	for {
		b, err := c.peek()
		if err != nil {
			return inst, err
		}
		switch {
		case isLegacyPrefix(b):
			if hasRex {
				return inst, fmt.Errorf("%w: legacy prefix %#x after REX at pc=%#x", ErrDecode, b, pc)
			}
			c.take()
			switch b {
			case pfxOperandSize:
				inst.Flags |= FlagOperandSize16
			case pfxAddressSize:
				inst.Flags |= FlagAddressSize32
			case pfxSegFS:
				inst.Flags |= FlagSegFS
			case pfxSegGS:
				inst.Flags |= FlagSegGS
			case pfxLock:
				inst.Flags |= FlagLock
			case pfxRepne:
				inst.Flags |= FlagRepne
			case pfxRep:
				inst.Flags |= FlagRep
			}
		case isREX(b):
			c.take()
			rex = b
			hasRex = true
			inst.Flags |= FlagRexPrefix
			if rex&0x8 != 0 {
				inst.Flags |= FlagRexWidening
			}
			if rex&0x4 != 0 {
				inst.Flags |= FlagRexR
			}
			if rex&0x2 != 0 {
				inst.Flags |= FlagRexX
			}
			if rex&0x1 != 0 {
				inst.Flags |= FlagRexB
			}
		default:
			goto opcode
		}
	}

opcode:
	opByte, err := c.take()
	if err != nil {
		return inst, err
	}

	if opByte == vex2Prefix || opByte == vex3Prefix {
		return d.decodeVEX(c, inst, opByte, hasRex, pc)
	}

	var info TableInfo
	var ok bool
	if opByte == pfxEscape {
		b2, err := c.take()
		if err != nil {
			return inst, err
		}
		if b2 == threeDNowEscape {
			return d.decode3DNow(c, inst, rex, hasRex, pc)
		}
		// This module's two-byte subtable has no prefix-dependent splits:
		// the lookup uses the second opcode byte alone, and a 0x66/0xF2/
		// 0xF3 prefix seen earlier stays in inst.Flags for operand-size
		// math like any other prefix.
		info, ok = lookupTwoByte(b2)
	} else {
		info, ok = lookupOneByte(opByte)
	}
	if !ok {
		return inst, fmt.Errorf("%w: illegal opcode at pc=%#x", ErrDecode, pc)
	}

	destSize := operandSize(inst.Flags)
	if info.ForcedSize != 0 {
		destSize = info.ForcedSize
	}
	inst.Table = &info
	inst.Flags |= info.Flags
	inst.OpIndex = int(info.Op)
	inst.NumOperands = info.NumOperands

	if info.HasModRM {
		modrm, err := c.take()
		if err != nil {
			return inst, err
		}
		inst.ModRM = modrm
		inst.HasModRM = true
		inst.Flags |= FlagModRMPresent

		rm, sib, hasSIB, err := d.decodeModRM(c, modrm, rex, destSize)
		if err != nil {
			return inst, err
		}
		if hasSIB {
			inst.SIB = sib
			inst.HasSIB = true
			inst.Flags |= FlagSIBPresent
		}
		groupSelector := (modrm >> 3) & 0x7
		regField := groupSelector
		if rex&0x4 != 0 {
			regField |= 0x8
		}
		regOperand := mapRegister(regField, hasRex, destSize)

		if info.IsGroup {
			// spec §4.1's opcode-group step: the ModRM reg field is an
			// opcode extension here, not a second register operand — the
			// real mnemonic is only known now that ModRM has been read.
			groupOp := info.GroupOps[groupSelector]
			info.Op = groupOp
			inst.Table = &info
			inst.OpIndex = int(groupOp)
			inst.Dest = rm
		} else {
			switch info.NumOperands {
			case 1:
				inst.Dest = rm
			case 2:
				// Table entries in this module are all `op r/m, reg` or
				// `op reg, r/m`; bit 1 of a one-byte opcode (0x8B, 0x03,
				// 0x2B) selects the `op reg, r/m` direction.
				if opByte != pfxEscape && opByte&0x2 != 0 {
					inst.Dest = regOperand
					inst.Src1 = rm
				} else {
					inst.Dest = rm
					inst.Src1 = regOperand
				}
			}
		}
	}

	if info.DestIsFixed {
		inst.Dest = Operand{Kind: OperandGPR, Reg: info.FixedDest, Size: destSize}
	}
	if info.Src1IsFixed {
		inst.Src1 = Operand{Kind: OperandGPR, Reg: info.FixedSrc1, Size: destSize}
	}

	if info.ImmSize > 0 {
		size := info.ImmSize
		if info.ImmScalesWithRexW && inst.Flags&FlagRexWidening != 0 {
			size *= 2
		}
		if info.ImmHalvesWith66 && inst.Flags&FlagOperandSize16 != 0 && size > 1 {
			size /= 2
		}
		imm, err := readImmediate(c, size, info.ImmSignExtend)
		if err != nil {
			return inst, err
		}
		operand := Operand{Kind: OperandImmediate, Imm: imm, Size: destSize}
		switch {
		case inst.NumOperands == 1:
			inst.Dest = operand
		case info.IsGroup:
			// Group 1's r/m, imm shape: Dest already holds the r/m
			// operand (above), so the immediate is the builder's other
			// arithmetic operand (inst.Src1 — buildArith reads Dest/Src1,
			// never Src2).
			inst.Src1 = operand
		default:
			inst.Src2 = operand
		}
	}

	if c.consumed > maxInstBytes {
		return inst, fmt.Errorf("%w: instruction exceeds %d bytes at pc=%#x", ErrDecode, maxInstBytes, pc)
	}
	inst.ByteLen = c.consumed
	return inst, nil
}

// decodeVEX parses the VEX prefix (spec §4.1's second decode branch):
// 0xC5 is the two-byte form (R, vvvv, L, pp; map_select implicitly 1),
// 0xC4 the three-byte form (R, X, B, map_select in the second byte; W,
// vvvv, L, pp in the third). In 64-bit mode 0xC4/0xC5 are unconditionally
// VEX — there is no legacy LES/LDS ambiguity to disambiguate, unlike
// 32-bit mode. A VEX prefix following a REX byte is malformed (VEX
// carries REX.R/X/B/W itself).
//
// This module's IR op catalog has no AVX-vector ops to lower a
// VEX-encoded instruction's semantics to — the catalog's only
// vector-ish surface is LowerX87's MM-stack handling, which is a
// distinct (legacy x87/MMX) encoding space. So a structurally valid VEX
// prefix still resolves to "illegal opcode" once the trailing opcode
// byte is looked up against the (deliberately empty) vexTable — the
// same terminal outcome as any other opcode this module's tables don't
// carry an entry for, now reached after actually parsing map_select/pp
// instead of mis-consuming 0xC4/0xC5 as one-byte opcodes.
func (d *Decoder) decodeVEX(c *cursor, inst DecodedInstruction, first uint8, hasRex bool, pc uint64) (DecodedInstruction, error) {
	if hasRex {
		return inst, fmt.Errorf("%w: VEX prefix after REX at pc=%#x", ErrDecode, pc)
	}

	var mapSelect, pp uint8
	var vexW, vexL bool

	if first == vex3Prefix {
		b2, err := c.take()
		if err != nil {
			return inst, err
		}
		b3, err := c.take()
		if err != nil {
			return inst, err
		}
		mapSelect = b2 & 0x1F
		if b2&0x80 == 0 {
			inst.Flags |= FlagRexR
		}
		if b2&0x40 == 0 {
			inst.Flags |= FlagRexX
		}
		if b2&0x20 == 0 {
			inst.Flags |= FlagRexB
		}
		vexW = b3&0x80 != 0
		vexL = b3&0x4 != 0
		pp = b3 & 0x3
	} else {
		b2, err := c.take()
		if err != nil {
			return inst, err
		}
		mapSelect = 1
		if b2&0x80 == 0 {
			inst.Flags |= FlagRexR
		}
		vexL = b2&0x4 != 0
		pp = b2 & 0x3
	}

	if vexW {
		inst.Flags |= FlagRexWidening
	}
	if vexL {
		inst.Flags |= FlagVEXLong
	}
	inst.Flags |= FlagVEX

	opByte, err := c.take()
	if err != nil {
		return inst, err
	}

	info, ok := lookupVEX(mapSelect, pp, opByte)
	if !ok {
		return inst, fmt.Errorf("%w: illegal VEX opcode map=%d pp=%d op=%#x at pc=%#x", ErrDecode, mapSelect, pp, opByte, pc)
	}
	inst.Table = &info
	inst.Flags |= info.Flags
	inst.OpIndex = int(info.Op)

	if c.consumed > maxInstBytes {
		return inst, fmt.Errorf("%w: instruction exceeds %d bytes at pc=%#x", ErrDecode, maxInstBytes, pc)
	}
	inst.ByteLen = c.consumed
	return inst, nil
}

// decode3DNow handles the 0x0F 0x0F escape (spec §4.1's third decode
// branch): unlike every other two-byte-table opcode, 3DNow!'s real
// opcode byte comes *after* ModRM/SIB/displacement, as a trailing
// postfix selecting the operation over two MMX registers (or an MMX
// register and a 64-bit memory operand).
//
// As with VEX, this module's IR op catalog has nothing to lower 3DNow!
// MMX-packed-float semantics to, so a structurally valid 3DNow!
// instruction — ModRM decoded, postfix byte read — still resolves to
// "illegal 3DNow! opcode suffix" against the (deliberately empty)
// threeDNowTable, for the same reason VEX does.
func (d *Decoder) decode3DNow(c *cursor, inst DecodedInstruction, rex uint8, hasRex bool, pc uint64) (DecodedInstruction, error) {
	modrm, err := c.take()
	if err != nil {
		return inst, err
	}
	inst.ModRM = modrm
	inst.HasModRM = true
	inst.Flags |= FlagModRMPresent
	inst.Flags |= Flag3DNow

	const mmRegSize = 64
	rm, sib, hasSIB, err := d.decodeModRM(c, modrm, rex, mmRegSize)
	if err != nil {
		return inst, err
	}
	if hasSIB {
		inst.SIB = sib
		inst.HasSIB = true
		inst.Flags |= FlagSIBPresent
	}
	regField := (modrm >> 3) & 0x7
	if rex&0x4 != 0 {
		regField |= 0x8
	}
	regOperand := mapRegister(regField, hasRex, mmRegSize)

	postfix, err := c.take()
	if err != nil {
		return inst, err
	}

	info, ok := lookup3DNow(postfix)
	if !ok {
		return inst, fmt.Errorf("%w: illegal 3DNow! opcode suffix %#x at pc=%#x", ErrDecode, postfix, pc)
	}
	inst.Table = &info
	inst.Flags |= info.Flags
	inst.OpIndex = int(info.Op)
	inst.NumOperands = info.NumOperands
	inst.Dest = rm
	inst.Src1 = regOperand

	if c.consumed > maxInstBytes {
		return inst, fmt.Errorf("%w: instruction exceeds %d bytes at pc=%#x", ErrDecode, maxInstBytes, pc)
	}
	inst.ByteLen = c.consumed
	return inst, nil
}

// operandSize applies Table 1-2's override rules: 32 by default, 16 under
// the operand-size prefix, 64 under REX.W (REX.W wins over 0x66).
func operandSize(flags Flag) uint8 {
	switch {
	case flags&FlagRexWidening != 0:
		return 64
	case flags&FlagOperandSize16 != 0:
		return 16
	default:
		return 32
	}
}

// mapRegister applies REX extension and the 8-bit-high-register quirk:
// ah/ch/dh/bh are selected when there is no REX prefix, the register
// field is 4-7, and the operand size is 8 bits.
func mapRegister(regField uint8, hasRex bool, size uint8) Operand {
	op := Operand{Kind: OperandGPR, Reg: regField, Size: size}
	if size == 8 && !hasRex && regField >= 4 && regField < 8 {
		op.Reg = regField - 4
		op.HighByte = true
	}
	return op
}

// decodeModRM decodes the ModRM byte (and, when required, a SIB byte and
// displacement) following it, returning the r/m-side Operand plus the raw
// SIB byte and whether one was consumed.
func (d *Decoder) decodeModRM(c *cursor, modrm uint8, rex uint8, size uint8) (Operand, uint8, bool, error) {
	mod := modrm >> 6
	rm := modrm & 0x7
	extB := rex&0x1 != 0

	if mod == 0b11 {
		regNum := rm
		if extB {
			regNum |= 0x8
		}
		return mapRegister(regNum, rex != 0, size), 0, false, nil
	}

	var op Operand
	op.Size = size
	var sib uint8
	var hasSIB bool

	if rm == 0b100 {
		sibByte, err := c.take()
		if err != nil {
			return op, 0, false, err
		}
		sib, hasSIB = sibByte, true
		if err := d.decodeSIB(c, sibByte, mod, rex, &op); err != nil {
			return op, sib, hasSIB, err
		}
	} else if mod == 0b00 && rm == 0b101 {
		disp, err := readImmediate(c, 4, true)
		if err != nil {
			return op, 0, false, err
		}
		op.Kind = OperandRIPRelativeLiteral
		op.Disp = int32(disp)
		return op, 0, false, nil
	} else {
		baseReg := rm
		if extB {
			baseReg |= 0x8
		}
		op.Kind = OperandGPRIndirectDisp
		op.Base = baseReg
	}

	switch mod {
	case 0b01:
		disp, err := readImmediate(c, 1, true)
		if err != nil {
			return op, sib, hasSIB, err
		}
		op.Disp = int32(disp)
	case 0b10:
		disp, err := readImmediate(c, 4, true)
		if err != nil {
			return op, sib, hasSIB, err
		}
		op.Disp = int32(disp)
	}

	return op, sib, hasSIB, nil
}

// decodeSIB decodes the SIB byte into op, honoring the "absent base/index"
// corner cases: index=100 with no REX.X means no index register; mod=00
// with base=101 means no base register plus a trailing disp32 (spec
// §4.1's "invalid-offset" treatment).
func (d *Decoder) decodeSIB(c *cursor, sib uint8, mod uint8, rex uint8, op *Operand) error {
	op.Kind = OperandSIB
	scale := sib >> 6
	index := (sib >> 3) & 0x7
	base := sib & 0x7
	extX := rex&0x2 != 0
	extB := rex&0x1 != 0

	op.Scale = uint8(1) << scale

	if index == 0b100 && !extX {
		op.NoIndex = true
	} else {
		idx := index
		if extX {
			idx |= 0x8
		}
		op.Index = idx
	}

	if base == 0b101 && mod == 0b00 {
		op.NoBase = true
		disp, err := readImmediate(c, 4, true)
		if err != nil {
			return err
		}
		op.Disp = int32(disp)
	} else {
		b := base
		if extB {
			b |= 0x8
		}
		op.Base = b
	}
	return nil
}

// readImmediate reads size bytes little-endian and optionally sign-extends.
func readImmediate(c *cursor, size uint8, signExtend bool) (int64, error) {
	var raw uint64
	for i := uint8(0); i < size; i++ {
		b, err := c.take()
		if err != nil {
			return 0, err
		}
		raw |= uint64(b) << (8 * i)
	}
	if !signExtend {
		return int64(raw), nil
	}
	shift := 64 - size*8
	return int64(raw<<shift) >> shift, nil
}
