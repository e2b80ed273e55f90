package decode

import "errors"

// ErrDecode is the sentinel wrapped by every decode failure: malformed
// encoding, a legacy prefix where only an escape prefix is legal, a
// ModRM/SIB/immediate that would overrun the instruction, or an illegal
// opcode (spec §7, DecodeError).
var ErrDecode = errors.New("decode: malformed or unsupported encoding")
