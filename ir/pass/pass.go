// Package pass implements the ordered pass pipeline (spec §4.3): a
// Manager holds a mutable sequence of optimization passes and a parallel
// sequence of validation passes, running each pass's Run(ir) and ORing
// their "changed" results.
package pass

import "github.com/sarchlab/x86dbt/ir"

// Pass is one pipeline stage. Run mutates e in place and returns whether
// it changed anything. Implementations hold a non-owning back-reference
// to their Manager (set via SetManager) rather than the Manager holding a
// reference into the pass's private state — the Manager exclusively owns
// the passes and outlives them (spec §9).
type Pass interface {
	Name() string
	Run(e *ir.Emitter) bool
}

// ManagerAware is implemented by passes that need to query their Manager
// (e.g. the IR dumper asking the RA pass for its spill-slot count).
type ManagerAware interface {
	SetManager(m *Manager)
}

// Base is embedded by passes that need the back-reference; it satisfies
// ManagerAware so Manager.InsertPass can wire it automatically.
type Base struct {
	manager *Manager
}

// SetManager implements ManagerAware.
func (b *Base) SetManager(m *Manager) { b.manager = m }

// Manager returns the back-referenced Manager, or nil before insertion.
func (b *Base) Manager() *Manager { return b.manager }
