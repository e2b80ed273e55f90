package ir

// GuestContext describes the fixed offsets into the guest register
// context that the IR builder and LowerX87 emit OpLoadContext/
// OpStoreContext accesses against, and that ContextLoadStoreElim then
// folds by offset (spec §4.4).
//
// Adapted from the teacher's flat, offset-addressable ARM64 RegFile: an
// x86-64 guest has 16 GPRs instead of 31, plus a flags word carrying the
// x87 top-of-stack pointer and an 8-entry MM/FPR stack, neither of which
// the ARM64 register file needed.
type GuestContext struct {
	// GPROffset is the byte offset of GPR 0 (RAX); GPRs are GPRStride
	// bytes apart, 16 entries.
	GPROffset, GPRStride uint32
	NumGPR               uint32

	// FlagsOffset is the byte offset of the flags area. X87TopLocBit is
	// the byte offset of the one-byte x87 top-of-stack pointer within it:
	// LowerX87 reads and writes that byte at FlagsOffset+X87TopLocBit.
	FlagsOffset  uint32
	X87TopLocBit uint32

	// MMOffset is the byte offset of MM[0]; each of the 8 entries is 16
	// bytes (spec §4.4: "indexed FPR context load of 16 bytes at
	// mm[0][0]").
	MMOffset      uint32
	MMEntrySize   uint32
	NumMM         uint32
}

// DefaultGuestContext returns the canonical x86-64 context layout used
// when no caller-supplied layout is given.
func DefaultGuestContext() GuestContext {
	return GuestContext{
		GPROffset:    0,
		GPRStride:    8,
		NumGPR:       16,
		FlagsOffset:  16 * 8,
		X87TopLocBit: 11,
		MMOffset:     16*8 + 16,
		MMEntrySize:  16,
		NumMM:        8,
	}
}

// GPRContextOffset returns the context offset of GPR reg.
func (g GuestContext) GPRContextOffset(reg uint8) uint32 {
	return g.GPROffset + uint32(reg)*g.GPRStride
}

// MMContextOffset returns the context offset of MM-stack slot index
// (already masked into [0, NumMM)).
func (g GuestContext) MMContextOffset(index uint32) uint32 {
	return g.MMOffset + (index%g.NumMM)*g.MMEntrySize
}
