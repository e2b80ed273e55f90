package pass

import (
	"github.com/go-logr/logr"

	"github.com/sarchlab/x86dbt/ir"
)

// RegisterAllocationPass is the subset of the register-allocation pass's
// surface other passes are allowed to query (e.g. the IR dumper asking
// for the spill-slot count). Modeled as an interface so this package does
// not need to import the ra package's full internals.
type RegisterAllocationPass interface {
	Pass
	SpillSlotCount() uint32
	HadFullRA() bool
}

// CompactionMarker is implemented only by the compaction pass, letting
// the Manager find it among inserted passes without importing its
// concrete type.
type CompactionMarker interface {
	CompactionPass()
}

// ManagerOption configures a Manager at construction, the same
// functional-option shape the teacher uses for its Pipeline.
type ManagerOption func(*Manager)

// WithAssertions enables validation passes (spec §4.3: "validation
// passes run after optimization passes only when assertions are
// enabled").
func WithAssertions(enabled bool) ManagerOption {
	return func(m *Manager) { m.assertionsEnabled = enabled }
}

// WithLogger attaches a structured logger the Manager and its passes
// report progress through.
func WithLogger(logger logr.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// Manager holds an ordered, mutable sequence of passes plus a parallel
// sequence of validation passes (spec §4.3). It keeps back-reference
// pointers to the named RA pass and the compaction pass because other
// passes (and callers) interrogate them.
type Manager struct {
	passes           []Pass
	validationPasses []Pass

	raPass         RegisterAllocationPass
	compactionPass Pass

	assertionsEnabled bool
	logger            logr.Logger

	runsExecuted uint64
	changesSeen  uint64
}

// NewManager creates an empty Manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{logger: logr.Discard()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InsertPass appends an optimization pass, wiring the manager
// back-reference if the pass is ManagerAware.
func (m *Manager) InsertPass(p Pass) {
	if aware, ok := p.(ManagerAware); ok {
		aware.SetManager(m)
	}
	if _, ok := p.(CompactionMarker); ok {
		m.compactionPass = p
	}
	if ra, ok := p.(RegisterAllocationPass); ok {
		m.raPass = ra
	}
	m.passes = append(m.passes, p)
}

// InsertValidationPass appends a pass that only runs when assertions are
// enabled, after all optimization passes have run.
func (m *Manager) InsertValidationPass(p Pass) {
	if aware, ok := p.(ManagerAware); ok {
		aware.SetManager(m)
	}
	m.validationPasses = append(m.validationPasses, p)
}

// HasRAPass reports whether a register-allocation pass has been inserted.
func (m *Manager) HasRAPass() bool { return m.raPass != nil }

// GetRAPass returns the inserted register-allocation pass, or nil.
func (m *Manager) GetRAPass() RegisterAllocationPass { return m.raPass }

// GetCompactionPass returns the inserted compaction pass, or nil.
func (m *Manager) GetCompactionPass() Pass { return m.compactionPass }

// Run invokes every optimization pass in order, then every validation
// pass if assertions are enabled, ORing their changed returns.
func (m *Manager) Run(e *ir.Emitter) bool {
	m.runsExecuted++
	changed := false
	for _, p := range m.passes {
		cursor := e.Cursor()
		if p.Run(e) {
			changed = true
			m.changesSeen++
		}
		e.SetCursor(cursor)
		m.logger.V(1).Info("pass ran", "name", p.Name(), "changed", changed)
	}

	if m.assertionsEnabled {
		for _, p := range m.validationPasses {
			p.Run(e)
		}
	}

	return changed
}

// Stats reports how many times Run has executed and how many pass
// invocations reported a change, for diagnostics.
func (m *Manager) Stats() (runs, changes uint64) {
	return m.runsExecuted, m.changesSeen
}
