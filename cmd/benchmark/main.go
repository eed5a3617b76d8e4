// Command benchmark runs the memsim synthetic benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	--csv       Output results in CSV format (default: human-readable)
//	--json      Output results in JSON format
//	--mode      Simulation mode A-F (default: C)
//	--config    Memory system configuration JSON file
//	--core      Run only the quick validation set
//	-v          Print memory system statistics after each benchmark
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Compare the fixed-latency and row-buffer DRAM in CSV
//	go run ./cmd/benchmark --csv --mode B > fixed.csv
//	go run ./cmd/benchmark --csv --mode C > rowbuffer.csv
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/memsim/benchmarks"
	"github.com/sarchlab/memsim/timing/memsys"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("benchmark: ignoring .env: %v", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		atexit.Fatalf("benchmark: %v", err)
	}

	atexit.Exit(0)
}

func newRootCmd() *cobra.Command {
	var (
		csvOutput  bool
		jsonOutput bool
		mode       string
		configPath string
		coreOnly   bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "benchmark",
		Short:         "Run synthetic traces through the memory hierarchy.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config := benchmarks.DefaultConfig()
			config.Output = cmd.OutOrStdout()
			config.Verbose = verbose

			if configPath != "" {
				loaded, err := memsys.LoadConfig(configPath)
				if err != nil {
					return err
				}
				config.Memsys = loaded
			}

			if mode != "" {
				m, err := memsys.ParseMode(mode)
				if err != nil {
					return err
				}
				config.Memsys.Mode = m
			}

			harness := benchmarks.NewHarness(config)
			if coreOnly {
				harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
			} else {
				harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
			}

			if !csvOutput && !jsonOutput {
				_, _ = fmt.Fprintln(config.Output, "memsim Benchmark Harness")
				_, _ = fmt.Fprintln(config.Output, "========================")
				_, _ = fmt.Fprintf(config.Output, "Mode: %s\n\n", config.Memsys.Mode)
			}

			results, err := harness.RunAll()
			if err != nil {
				return err
			}

			switch {
			case jsonOutput:
				return harness.PrintJSON(results)
			case csvOutput:
				harness.PrintCSV(results)
			default:
				harness.PrintResults(results)
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&csvOutput, "csv", false, "output results in CSV format")
	flags.BoolVar(&jsonOutput, "json", false, "output results in JSON format")
	flags.StringVar(&mode, "mode", "", "simulation mode A-F")
	flags.StringVar(&configPath, "config", os.Getenv("MEMSIM_CONFIG"),
		"memory system configuration JSON file")
	flags.BoolVar(&coreOnly, "core", false, "run only the quick validation set")
	flags.BoolVarP(&verbose, "verbose", "v", false,
		"print memory system statistics after each benchmark")

	return cmd
}
