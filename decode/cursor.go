package decode

import "fmt"

// GuestMemory is the minimal read surface the decoder needs into guest
// address space. The memory-mapping/loader layer that backs it is an
// external collaborator (spec §1); the decoder only ever reads bytes.
type GuestMemory interface {
	ReadByte(addr uint64) (uint8, bool)
}

// ByteSliceMemory is a GuestMemory backed by a flat byte slice starting at
// Base. Used by tests and the CLI driver, which decode an in-process blob
// rather than a live mapped guest address space.
type ByteSliceMemory struct {
	Base uint64
	Data []byte
}

// ReadByte implements GuestMemory.
func (m ByteSliceMemory) ReadByte(addr uint64) (uint8, bool) {
	if addr < m.Base || addr-m.Base >= uint64(len(m.Data)) {
		return 0, false
	}
	return m.Data[addr-m.Base], true
}

// maxInstBytes is the hard x86-64 instruction length ceiling (spec §3).
const maxInstBytes = 15

// cursor is a peeking byte reader bounded to maxInstBytes per instruction,
// recording how many bytes have been consumed so InstSize can be reported
// accurately even on a decode failure partway through.
type cursor struct {
	mem      GuestMemory
	pc       uint64
	consumed uint8
}

func newCursor(mem GuestMemory, pc uint64) *cursor {
	return &cursor{mem: mem, pc: pc}
}

// take reads the next byte and advances. Returns an error once the
// instruction would exceed maxInstBytes or the backing memory runs out.
func (c *cursor) take() (uint8, error) {
	if c.consumed >= maxInstBytes {
		return 0, fmt.Errorf("%w: instruction exceeds %d bytes at pc=%#x", ErrDecode, maxInstBytes, c.pc)
	}
	b, ok := c.mem.ReadByte(c.pc + uint64(c.consumed))
	if !ok {
		return 0, fmt.Errorf("%w: guest memory exhausted at pc=%#x", ErrDecode, c.pc+uint64(c.consumed))
	}
	c.consumed++
	return b, nil
}

// peek reads the next byte without advancing the cursor.
func (c *cursor) peek() (uint8, error) {
	if c.consumed >= maxInstBytes {
		return 0, fmt.Errorf("%w: instruction exceeds %d bytes at pc=%#x", ErrDecode, maxInstBytes, c.pc)
	}
	b, ok := c.mem.ReadByte(c.pc + uint64(c.consumed))
	if !ok {
		return 0, fmt.Errorf("%w: guest memory exhausted at pc=%#x", ErrDecode, c.pc+uint64(c.consumed))
	}
	return b, nil
}
