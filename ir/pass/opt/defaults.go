package opt

import (
	"io"

	"github.com/sarchlab/x86dbt/ir"
	"github.com/sarchlab/x86dbt/ir/pass"
	"github.com/sarchlab/x86dbt/ra"
)

// InstallDefaultPasses wires the fixed pipeline order spec §4.3
// specifies onto m, up through step 11: (optional) ReplaceX87,
// LowerX87, ContextLoadStoreElim, DeadStoreElim, DCE, ConstProp,
// SyscallOpt, DCE, (optional) StaticRegAlloc, Compaction, (optional)
// DumpIR. RegisterAllocation and its own optional post-RA DumpIR are
// installed separately by InstallRegisterAllocationPass, after this
// call, so a caller can insert its own passes between Compaction and RA
// if needed.
//
// replaceX87 gates ReplaceX87, matching config.Configuration's
// UnsafeReplaceX87 — the peephole's flush-and-bail behavior on an
// ambiguous top state is a known incomplete optimization (spec §9), so
// callers opt in explicitly.
//
// inlineConstants is accepted for spec-surface fidelity with
// AddDefaultPasses(inline_constants, static_reg_alloc) but does not
// change this pipeline: ConstProp here always folds eagerly, there is
// no separate "inline" mode in this IR's op catalog to gate.
//
// dumpPreRA gates step 11's DumpIR, matching config.Configuration's
// DumpsAt("pre-ra"); dumpWriter is where it writes (config.Configuration.
// DumpWriterOrDefault()).
func InstallDefaultPasses(m *pass.Manager, ctx ir.GuestContext, replaceX87, inlineConstants, staticRegAlloc bool, raConfig ra.ClassConfig, dumpPreRA bool, dumpWriter io.Writer) {
	_ = inlineConstants

	if replaceX87 {
		m.InsertPass(&ReplaceX87{})
	}
	m.InsertPass(&LowerX87{Context: ctx})
	m.InsertPass(&ContextLoadStoreElim{})
	m.InsertPass(&DeadStoreElim{})
	m.InsertPass(&DCE{})
	m.InsertPass(&ConstProp{})
	m.InsertPass(&SyscallOpt{})
	m.InsertPass(&DCE{})

	if staticRegAlloc {
		m.InsertPass(&StaticRegAlloc{Config: raConfig})
	}

	m.InsertPass(&Compaction{})

	if dumpPreRA {
		m.InsertPass(&DumpIR{Label: "pre-ra", Writer: dumpWriter})
	}
}

// InstallDefaultValidationPasses wires the validation-pass sequence that
// only runs when the Manager was built with pass.WithAssertions(true)
// (spec §4.3, §7's IRInvariantError: "surfaced by a validation pass as a
// fatal assertion in debug builds").
func InstallDefaultValidationPasses(m *pass.Manager) {
	m.InsertValidationPass(&InvariantCheck{})
}

// InstallRegisterAllocationPass wraps cfg's allocator as a pipeline pass
// and appends it to m (spec §6's InsertRegisterAllocationPass(optimize_sra
// bool)), followed by step 13's optional post-RA DumpIR, returning the
// concrete RA pass so the caller can read its AllocationData/error after
// the Manager runs.
//
// optimizeSRA is accepted for spec-surface fidelity; it would let the
// allocator skip recomputing liveness/interference when a preceding
// StaticRegAlloc pass already proved a no-spill coloring feasible, but
// ra.Allocator's Run is self-contained and always recomputes from the
// current program, so there is nothing for this flag to gate today.
//
// dumpPostRA gates step 13's DumpIR, matching config.Configuration's
// DumpsAt("post-ra").
func InstallRegisterAllocationPass(m *pass.Manager, raConfig ra.ClassConfig, optimizeSRA, dumpPostRA bool, dumpWriter io.Writer) *RegisterAllocationPass {
	_ = optimizeSRA

	p := NewRegisterAllocationPass(raConfig)
	m.InsertPass(p)

	if dumpPostRA {
		m.InsertPass(&DumpIR{Label: "post-ra", Writer: dumpWriter})
	}
	return p
}
