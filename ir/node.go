// Package ir implements the linear SSA-like intermediate representation
// described in spec §3/§4.2: uniform-size nodes chained by next/prev
// indices, special CodeBlock ops linking ranges of those nodes, and an
// IRHeader op that roots the program.
package ir

// RegClass tags which physical register family a has-dest op's result
// belongs to.
type RegClass uint8

const (
	ClassInvalid RegClass = iota
	ClassGPR
	ClassFPR
)

// Op identifies the operation a Node performs. The set here is the
// minimum catalog SPEC_FULL.md §6 requires to make the lowering,
// optimization, and register-allocation passes concrete.
type Op uint16

const (
	OpInvalid Op = iota
	OpIRHeader
	OpCodeBlock
	OpConstant
	OpEntryGPR
	OpEntryFPR
	OpAdd
	OpSub
	OpAnd
	OpOr
	OpXor
	OpLoad
	OpStore
	OpLoadContext
	OpStoreContext
	OpLoadMem
	OpStoreMem
	OpGetTop
	OpSetTop
	OpAdjustTop
	OpStackLoad
	OpStackStore
	OpF80Add
	OpSyscall
	OpSpillRegister
	OpFillRegister
	OpCondJump
	OpExitBlock
)

// hasDestTable records, per Op, whether it produces an SSA value that
// participates in register allocation (spec §3, "has-dest bit").
var hasDestTable = map[Op]bool{
	OpConstant:      true,
	OpEntryGPR:      true,
	OpEntryFPR:      true,
	OpAdd:           true,
	OpSub:           true,
	OpAnd:           true,
	OpOr:            true,
	OpXor:           true,
	OpLoad:          true,
	OpLoadContext:   true,
	OpLoadMem:       true,
	OpGetTop:        true,
	OpStackLoad:     true,
	OpF80Add:        true,
	OpFillRegister:  true,
}

// classTable records the default RegClass an Op's result belongs to, when
// HasDest is true.
var classTable = map[Op]RegClass{
	OpConstant:     ClassGPR,
	OpEntryGPR:     ClassGPR,
	OpEntryFPR:     ClassFPR,
	OpAdd:          ClassGPR,
	OpSub:          ClassGPR,
	OpAnd:          ClassGPR,
	OpOr:           ClassGPR,
	OpXor:          ClassGPR,
	OpLoad:         ClassGPR,
	OpLoadContext:  ClassGPR,
	OpLoadMem:      ClassGPR,
	OpGetTop:       ClassGPR,
	OpStackLoad:    ClassFPR,
	OpF80Add:       ClassFPR,
	OpFillRegister: ClassGPR, // overridden per-instance by the spilled node's own class
}

// HasDest reports whether op produces a register-allocatable value.
func HasDest(op Op) bool { return hasDestTable[op] }

// DefaultClass reports the RegClass an op's result belongs to absent any
// per-instance override.
func DefaultClass(op Op) RegClass { return classTable[op] }

// invalidIndex is the sentinel "no node" value for Next/Prev/FirstNode/
// LastNode/NextBlock links, and for Argument zero-values that don't refer
// to a real node.
const invalidIndex uint32 = ^uint32(0)

// Argument is a wrapper value encoding a node index (spec §3). Reverse
// uses are derived by walking the program and inspecting each op's
// declared Args, never stored directly on the referenced Node.
type Argument struct {
	node uint32
}

// Index returns the underlying node index.
func (a Argument) Index() uint32 { return a.node }

// Valid reports whether the argument refers to a real node.
func (a Argument) Valid() bool { return a.node != invalidIndex }

// Node is a single IR node: either an op header (the common case) or an
// in-place operand carrying extra payload a header alone can't hold
// (e.g. a SIB-shaped memory operand). Every node, regardless of kind,
// occupies one dense SSA index.
type Node struct {
	Op          Op
	Size        uint8 // result width in bits
	ElementSize uint8 // vector element width in bits, 0 if scalar
	Class       RegClass
	HasDest     bool

	Args []Argument

	// Imm holds the payload for OpConstant.
	Imm int64

	// Offset holds the context offset for OpLoadContext/OpStoreContext,
	// and the stack displacement for OpStackLoad/OpStackStore/
	// OpAdjustTop (spec §4.4's LowerX87).
	Offset int32

	// Block is the owning CodeBlock's node index, set when the node is
	// emitted; used to keep that block's FirstNode/LastNode consistent
	// when the node is later removed.
	Block uint32

	// FirstNode/LastNode/NextBlock are only meaningful when Op ==
	// OpCodeBlock: the inclusive [FirstNode, LastNode] range of node
	// indices this block owns, and the next CodeBlock in the IRHeader's
	// linked list.
	FirstNode, LastNode, NextBlock uint32

	// Blocks is only meaningful when Op == OpIRHeader: the head of the
	// CodeBlock linked list.
	Blocks uint32

	next, prev uint32
	removed    bool
}

// Removed reports whether a pass has deleted this node. A removed node's
// index is never reused until the next compaction.
func (n *Node) Removed() bool { return n.removed }
