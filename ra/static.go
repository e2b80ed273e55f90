package ra

import "github.com/sarchlab/x86dbt/ir"

// TryStaticColor attempts a single no-spill coloring pass over view's
// current program and reports whether every class fit its physical
// budget without needing to spill. It is the public surface the
// optional StaticRegAlloc pipeline step (spec §6) uses as an early
// feasibility check; it does not mutate view's program and is safe to
// call speculatively before the full Allocator's spill loop runs.
func TryStaticColor(view ir.View, cfg ClassConfig) bool {
	l := ComputeLiveness(view)
	nodes := sortedKeys(l.ranges)

	graph := NewRegisterGraph(view.GetSSACount())
	ComputeInterference(view, l, graph)

	result := ColorGraph(view, nodes, graph, cfg)
	return result.ok
}
