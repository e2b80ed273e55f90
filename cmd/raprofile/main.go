// Package main provides a profiling wrapper around the register
// allocator, for isolating coloring/spill cost on large synthetic
// programs separately from decode or pass-pipeline overhead. Adapted
// from the teacher's cmd/profile, which wraps the emulator/pipeline the
// same way for CPU/heap profiling.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/x86dbt/ir"
	"github.com/sarchlab/x86dbt/ra"
)

var (
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	numNodes   = flag.Int("nodes", 10000, "number of synthetic SSA nodes to allocate registers for")
	numGPR     = flag.Uint("gpr", 14, "physical GPR budget")
	numFPR     = flag.Uint("fpr", 8, "physical FPR budget")
	seed       = flag.Int64("seed", 1, "PRNG seed for the synthetic program")
)

func main() {
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	e := syntheticProgram(*numNodes, rand.New(rand.NewSource(*seed)))

	cfg := ra.ClassConfig{
		PhysicalCount: map[ir.RegClass]uint32{
			ir.ClassGPR: uint32(*numGPR),
			ir.ClassFPR: uint32(*numFPR),
		},
	}
	allocator := ra.NewAllocator(cfg)

	start := time.Now()
	data, err := allocator.Run(e)
	elapsed := time.Since(start)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "error writing memory profile: %v\n", err)
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "allocation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("nodes: %d\n", *numNodes)
	fmt.Printf("elapsed: %v\n", elapsed)
	fmt.Printf("full register allocation: %v\n", data.HadFullRA())
	fmt.Printf("spill slots: %d\n", data.SpillSlotCount())
}

// syntheticProgram builds a single-block chain of n randomly-classed
// arithmetic nodes, each consuming the previous two live values, to give
// the allocator a worst-case-ish interference pattern without needing a
// real decoded program.
func syntheticProgram(n int, r *rand.Rand) *ir.Emitter {
	e := ir.NewEmitter()
	e.NewBlock()

	ops := []ir.Op{ir.OpAdd, ir.OpSub, ir.OpAnd, ir.OpOr, ir.OpXor}
	prev := e.EmitConstant(64, 1)
	prev2 := e.EmitConstant(64, 2)

	for i := 0; i < n; i++ {
		op := ops[r.Intn(len(ops))]
		node := e.EmitOp(op, 64, e.Arg(prev), e.Arg(prev2))
		prev2 = prev
		prev = node
	}

	return e
}
