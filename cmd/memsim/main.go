// Command memsim replays instruction traces through a simulated memory
// hierarchy and reports cache, DRAM, and per-core statistics.
//
// Usage:
//
//	memsim run [flags] <trace>...
//	memsim config [flags]
//
// Each trace drives one core. Defaults for --config and --record can be set
// with MEMSIM_CONFIG and MEMSIM_RECORD, in the environment or in a .env file
// in the working directory.
package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	"github.com/tebeka/atexit"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("memsim: ignoring .env: %v", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		atexit.Fatalf("memsim: %v", err)
	}

	atexit.Exit(0)
}
