// Package main is a placeholder entry point for x86dbt.
//
// For the full CLI, use: go run ./cmd/x86dbt
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("x86dbt - x86-64 dynamic binary translation core")
	fmt.Println("")
	fmt.Println("Usage: x86dbt [options] <blob>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -entry       guest entry address of the block to translate")
	fmt.Println("  -base        guest address the blob is loaded at")
	fmt.Println("  -multiblock  continue decoding past the first block-ending instruction")
	fmt.Println("  -ra-config   path to a register class config JSON file")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/x86dbt' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/x86dbt' instead.")
	}
}
