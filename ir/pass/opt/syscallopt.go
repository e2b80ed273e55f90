package opt

import "github.com/sarchlab/x86dbt/ir"

// SyscallOpt removes a Syscall node that is an exact back-to-back
// duplicate of the one immediately before it in the same block — same
// argument SSA nodes, nothing else in between. Decode occasionally
// re-emits one guest syscall instruction twice at a block-splitting
// boundary; this pass only ever compares the duplicate's static shape
// (its argument list), never the syscall's effect, so it cannot mistake
// two distinct syscalls that merely happen to share arguments for a
// decode artifact — it requires them to be strictly adjacent.
type SyscallOpt struct{}

func (p *SyscallOpt) Name() string { return "SyscallOpt" }

func (p *SyscallOpt) Run(e *ir.Emitter) bool {
	changed := false
	for _, block := range e.View().Blocks() {
		if p.runBlock(e, block) {
			changed = true
		}
	}
	return changed
}

func (p *SyscallOpt) runBlock(e *ir.Emitter, block uint32) bool {
	changed := false
	var prevSyscall uint32
	havePrev := false

	for _, idx := range e.View().CodeInBlock(block) {
		node := e.View().At(idx)
		if node.Op != ir.OpSyscall {
			havePrev = false
			continue
		}

		if havePrev && sameArgs(e.View().At(prevSyscall).Args, node.Args) {
			e.Remove(idx)
			changed = true
			continue
		}

		prevSyscall = idx
		havePrev = true
	}
	return changed
}

func sameArgs(a, b []ir.Argument) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Index() != b[i].Index() {
			return false
		}
	}
	return true
}
