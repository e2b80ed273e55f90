package decode

// BlockOptions configures one DecodeBlock call. Multiblock and the two
// window fields mirror the Decoder's own defaults but can be overridden
// per call (e.g. a caller retranslating with multiblock disabled after an
// earlier RA infeasibility, per spec §7's propagation policy).
type BlockOptions struct {
	Multiblock            bool
	MaxInstPerBlock       int64
	MaxCondBranchBackward int64
	MaxCondBranchForward  int64
}

// OptionsFromDecoder copies the Decoder's own configuration.
func (d *Decoder) OptionsFromDecoder() BlockOptions {
	return BlockOptions{
		Multiblock:            d.Multiblock,
		MaxInstPerBlock:       d.MaxInstPerBlock,
		MaxCondBranchBackward: d.MaxCondBranchBackward,
		MaxCondBranchForward:  d.MaxCondBranchForward,
	}
}

// DecodeBlock decodes a DecodedBlock starting at entryPC, following
// branches across basic-block boundaries per the continuation policy in
// spec §4.1. Decoding stops at the first block-ender that cannot be
// continued past, on the instruction-count limit, or on buffer
// exhaustion. A partial block is still returned when decoding fails
// mid-stream and BreakOnFrontendFailure is false (spec §7).
func (d *Decoder) DecodeBlock(mem GuestMemory, entryPC uint64, opts BlockOptions) DecodedBlock {
	block := DecodedBlock{EntryPC: entryPC}

	// covered records PCs that a prior conditional forward
	// branch has already brought within the translation unit, so a later
	// block-ender at that PC is known to be continuable.
	covered := make(map[uint64]struct{})

	pc := entryPC
	for {
		if opts.MaxInstPerBlock >= 0 && int64(len(block.Instructions)) >= opts.MaxInstPerBlock {
			break
		}

		inst, err := d.decodeOne(mem, pc)
		if err != nil {
			if d.BreakOnFrontendFailure {
				return block
			}
			break
		}
		block.Instructions = append(block.Instructions, inst)
		nextPC := inst.PC + uint64(inst.ByteLen)

		// Any direct branch — conditional or not — can widen the covered
		// set for a later block-ender, regardless of whether the branch
		// itself is a block-ender. This is what lets a forward Jcc whose
		// target lands past a later UD2/RET "cover" that block-ender
		// (spec §8 scenario 6).
		if opts.Multiblock && inst.SetsRIP() && inst.Dest.Kind == OperandImmediate {
			target := branchTarget(inst)
			forward := int64(target) - int64(nextPC)
			switch {
			case inst.Table.Op == OpJCC && forward >= 0 && forward <= opts.MaxCondBranchForward:
				covered[target] = struct{}{}
			case inst.Table.Op == OpJMP && forward >= 0 && forward <= opts.MaxCondBranchForward:
				covered[target] = struct{}{}
			}
		}

		pc = nextPC

		if !inst.BlockEnder() {
			continue
		}
		if !opts.Multiblock {
			break
		}

		_, alreadyCovered := covered[pc]
		continuable := alreadyCovered
		if inst.Table.Op == OpJCC {
			// A conditional branch's own fallthrough always continues;
			// it is never itself an unconditional block-ender (not
			// marked FlagBlockEnd in the table), so this arm is
			// unreachable today but documents the invariant explicitly.
			continuable = true
		}

		if !continuable {
			break
		}
	}

	return block
}

// branchTarget extracts PC + InstSize + sign-extended-literal for a
// direct branch instruction (spec §4.1).
func branchTarget(inst DecodedInstruction) uint64 {
	return inst.PC + uint64(inst.ByteLen) + uint64(inst.Dest.Imm)
}
