// Package ra implements the graph-coloring register allocator (spec
// §4.5): live-range computation, block/global interference, color
// assignment, live-range-aware spill selection with constant
// rematerialization, and the AllocationData the backend consumes.
package ra

import "github.com/sarchlab/x86dbt/ir"

// invalidReg marks an allocation slot as not-yet-assigned.
const invalidReg uint32 = ^uint32(0)

// Allocation packs a node's assigned class and register (or virtual
// register, pre-spill) the way the backend contract expects: high 32 =
// class, low 32 = register number (spec §3, §4.6).
type Allocation uint64

// Pack builds an Allocation from a class and register number.
func Pack(class ir.RegClass, reg uint32) Allocation {
	return Allocation(uint64(class)<<32 | uint64(reg))
}

// Class extracts the register class.
func (a Allocation) Class() ir.RegClass { return ir.RegClass(a >> 32) }

// Reg extracts the register number (or virtual register, or spill-slot
// marker, depending on context).
func (a Allocation) Reg() uint32 { return uint32(a) }

// invalidAllocation is the "not yet assigned" sentinel.
var invalidAllocation = Pack(ir.ClassInvalid, invalidReg)

// LiveRange is the half-open index interval during which a has-dest
// node's value must be available, plus its rematerialization cost (spec
// §3): -1 = not rematerializable, >=0 = cheap to recompute (constants).
type LiveRange struct {
	Begin, End uint32
	RematCost  int32
}

// Overlaps reports whether two live ranges intersect.
func (r LiveRange) Overlaps(o LiveRange) bool {
	return r.Begin < o.End && o.Begin < r.End
}

// Encompasses reports whether r fully contains o ("strictly encompassed"
// in spec §4.5's spill-priority ladder).
func (r LiveRange) Encompasses(o LiveRange) bool {
	return r.Begin <= o.Begin && o.End <= r.End
}

// SpillSlot is one entry in the append-only spill stack (spec §3): the
// owning node, its class, and the live-range interval it is currently
// covering. A slot is reused for a later spill whose live range is
// disjoint from the slot's current range, widening the range on reuse.
type SpillSlot struct {
	Owner uint32
	Class ir.RegClass
	Range LiveRange
}

// SpillStack is the append-only, growing pool of spill slots shared
// across RA iterations within one Run (spec §3, §5).
type SpillStack struct {
	slots []SpillSlot
}

// Reset clears the stack at the start of a Run (spec §5: "spill-slot
// vectors belong to the RA's register graph and are cleared at the start
// of each Run").
func (s *SpillStack) Reset() { s.slots = s.slots[:0] }

// Count returns the number of distinct slots allocated so far.
func (s *SpillStack) Count() uint32 { return uint32(len(s.slots)) }

// Allocate finds a reusable slot (disjoint live range, matching class) or
// appends a new one, returning the slot index and updating its range.
func (s *SpillStack) Allocate(owner uint32, class ir.RegClass, r LiveRange) uint32 {
	for i := range s.slots {
		slot := &s.slots[i]
		if slot.Class != class {
			continue
		}
		if slot.Range.Overlaps(r) {
			continue
		}
		slot.Owner = owner
		if r.Begin < slot.Range.Begin {
			slot.Range.Begin = r.Begin
		}
		if r.End > slot.Range.End {
			slot.Range.End = r.End
		}
		return uint32(i)
	}
	s.slots = append(s.slots, SpillSlot{Owner: owner, Class: class, Range: r})
	return uint32(len(s.slots) - 1)
}

// ConflictEntry bans co-assignment of (ClassA, RegA) with (ClassB, RegB);
// conflicts are symmetric (spec §4.5).
type ConflictEntry struct {
	ClassA ir.RegClass
	RegA   uint32
	ClassB ir.RegClass
	RegB   uint32
}

// ClassConfig is the per-class physical-register budget and conflict
// table the allocator is configured with (spec §4.5, §6 "Configuration
// surface").
type ClassConfig struct {
	PhysicalCount map[ir.RegClass]uint32
	Conflicts     []ConflictEntry
}

// conflicts reports whether (classA, regA) is forbidden from coexisting
// with (classB, regB) by the conflict table, in either direction.
func (c ClassConfig) conflicts(classA ir.RegClass, regA uint32, classB ir.RegClass, regB uint32) bool {
	for _, e := range c.Conflicts {
		if e.ClassA == classA && e.RegA == regA && e.ClassB == classB && e.RegB == regB {
			return true
		}
		if e.ClassA == classB && e.RegA == regB && e.ClassB == classA && e.RegB == regA {
			return true
		}
	}
	return false
}

// RegisterGraph holds per-node allocation state: assigned register,
// tie-partner chain, interference set (membership map + ordered vector),
// and spill-slot index (spec §3).
type RegisterGraph struct {
	alloc        []Allocation
	tiePartner   []uint32 // forward-linked list; invalidReg = chain end
	interference []interferenceSet
	spillSlot    []uint32 // invalidReg = not spilled
	peakPressure map[ir.RegClass]uint32
}

// interferenceSet is a dual set+vector representation: the bitset field
// (a map used as a set) gives O(1) membership, the vector gives fast ordered iteration (spec
// §3). Vector capacity doubles on overflow (spec §5).
type interferenceSet struct {
	bitset map[uint32]struct{}
	order  []uint32
}

func (s *interferenceSet) add(node uint32) {
	if s.bitset == nil {
		s.bitset = make(map[uint32]struct{})
	}
	if _, ok := s.bitset[node]; ok {
		return
	}
	s.bitset[node] = struct{}{}
	s.order = append(s.order, node)
}

func (s *interferenceSet) has(node uint32) bool {
	_, ok := s.bitset[node]
	return ok
}

// NewRegisterGraph allocates a graph sized for n SSA nodes.
func NewRegisterGraph(n uint32) *RegisterGraph {
	g := &RegisterGraph{
		alloc:        make([]Allocation, n),
		tiePartner:   make([]uint32, n),
		interference: make([]interferenceSet, n),
		spillSlot:    make([]uint32, n),
		peakPressure: make(map[ir.RegClass]uint32),
	}
	for i := range g.alloc {
		g.alloc[i] = invalidAllocation
		g.tiePartner[i] = invalidReg
		g.spillSlot[i] = invalidReg
	}
	return g
}

// Reset clears all per-node state in place, reallocating if n differs
// from the current size.
func (g *RegisterGraph) Reset(n uint32) {
	if uint32(len(g.alloc)) != n {
		*g = *NewRegisterGraph(n)
		return
	}
	for i := range g.alloc {
		g.alloc[i] = invalidAllocation
		g.tiePartner[i] = invalidReg
		g.interference[i] = interferenceSet{}
		g.spillSlot[i] = invalidReg
	}
	g.peakPressure = make(map[ir.RegClass]uint32)
}

// AddInterference records that a and b interfere, symmetrically (spec
// §8, "interference symmetry").
func (g *RegisterGraph) AddInterference(a, b uint32) {
	if a == b {
		return
	}
	g.interference[a].add(b)
	g.interference[b].add(a)
}

// Interferes reports whether a and b interfere.
func (g *RegisterGraph) Interferes(a, b uint32) bool {
	return g.interference[a].has(b)
}

// InterferencesOf returns the ordered interference list for node.
func (g *RegisterGraph) InterferencesOf(node uint32) []uint32 {
	return g.interference[node].order
}

// TieTogether links a and b into the same tie-partner chain, forcing
// co-allocation (spec §3, §4.5).
func (g *RegisterGraph) TieTogether(a, b uint32) {
	// insert b right after a in a's chain
	next := g.tiePartner[a]
	g.tiePartner[a] = b
	g.tiePartner[b] = next
}

// TiePartners returns every node in node's tie-partner chain, including
// node itself.
func (g *RegisterGraph) TiePartners(node uint32) []uint32 {
	out := []uint32{node}
	for n := g.tiePartner[node]; n != invalidReg && n != node; n = g.tiePartner[n] {
		out = append(out, n)
		if len(out) > len(g.alloc) {
			break // defensive: malformed cyclic chain, never expected
		}
	}
	return out
}

// Allocation returns node's current allocation.
func (g *RegisterGraph) Allocation(node uint32) Allocation { return g.alloc[node] }

// SetAllocation assigns node's allocation.
func (g *RegisterGraph) SetAllocation(node uint32, a Allocation) { g.alloc[node] = a }

// SpillSlotOf returns node's spill-slot index, or invalidReg if unspilled.
func (g *RegisterGraph) SpillSlotOf(node uint32) uint32 { return g.spillSlot[node] }

// SetSpillSlot records node's spill-slot index.
func (g *RegisterGraph) SetSpillSlot(node uint32, slot uint32) { g.spillSlot[node] = slot }

// PeakPressure returns the highest virtual-register index assigned to
// class so far (spec glossary: "peak pressure").
func (g *RegisterGraph) PeakPressure(class ir.RegClass) uint32 { return g.peakPressure[class] }

func (g *RegisterGraph) notePressure(class ir.RegClass, vreg uint32) {
	if vreg > g.peakPressure[class] {
		g.peakPressure[class] = vreg
	}
}

// AllocationData is the read-only SSA-index -> (class, register |
// spill-slot) map the backend consumes (spec §4.5, §4.6).
type AllocationData struct {
	entries        map[uint32]Allocation
	spillSlotCount uint32
	fullRA         bool
}

// Lookup returns the allocation for an SSA node.
func (a *AllocationData) Lookup(node uint32) (Allocation, bool) {
	v, ok := a.entries[node]
	return v, ok
}

// SpillSlotCount returns the total number of distinct spill slots used,
// the frame-size input to the backend's emitter (spec §4.5, §4.6).
func (a *AllocationData) SpillSlotCount() uint32 { return a.spillSlotCount }

// HadFullRA reports whether every class stayed within its physical
// budget without needing virtual registers left unresolved (spec §4.6).
func (a *AllocationData) HadFullRA() bool { return a.fullRA }
