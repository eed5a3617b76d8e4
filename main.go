// Package main provides the entry point for memsim.
// memsim is a trace-driven cache and DRAM hierarchy simulator built on Akita
// cache directories.
//
// For the full CLI, use: go run ./cmd/memsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("memsim - Memory Hierarchy Simulator")
	fmt.Println("Built on Akita cache directories")
	fmt.Println("")
	fmt.Println("Usage: memsim run [options] <trace>...")
	fmt.Println("       memsim config [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  --mode     Simulation mode A-F")
	fmt.Println("  --config   Path to memory system configuration JSON file")
	fmt.Println("  --trace    Trace file, one per core")
	fmt.Println("  --record   SQLite database for statistics")
	fmt.Println("  -v         Log every memory access")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/memsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/memsim' instead.")
	}
}
