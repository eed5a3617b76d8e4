// Package benchmarks runs synthetic traces through the memory system and
// reports how each hierarchy configuration handles them.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sarchlab/memsim/loader"
	"github.com/sarchlab/memsim/timing/core"
	"github.com/sarchlab/memsim/timing/memsys"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Mode is the simulated hierarchy
	Mode string `json:"mode"`

	// NumCores is the number of traces replayed together
	NumCores int `json:"num_cores"`

	// SimulatedCycles is the sum of the cycles of all cores
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// Average access latencies
	AvgIFetchDelay float64 `json:"avg_ifetch_delay"`
	AvgLoadDelay   float64 `json:"avg_load_delay"`
	AvgStoreDelay  float64 `json:"avg_store_delay"`

	// L1 statistics, summed over cores
	ICacheMisses      uint64 `json:"icache_misses"`
	DCacheMisses      uint64 `json:"dcache_misses"`
	DCacheDirtyEvicts uint64 `json:"dcache_dirty_evicts"`

	// L2 statistics
	L2Misses      uint64 `json:"l2_misses"`
	L2DirtyEvicts uint64 `json:"l2_dirty_evicts"`

	// DRAM statistics (zero without a DRAM)
	DRAMReads  uint64 `json:"dram_reads"`
	DRAMWrites uint64 `json:"dram_writes"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single synthetic workload.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Traces returns one trace per core.
	Traces func() [][]loader.Record

	// Configure adjusts the memory system configuration, e.g. to partition
	// the L2 between the cores.
	Configure func(config *memsys.Config)
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Memsys is the base memory system configuration. The core count is
	// taken from the number of traces of each benchmark.
	Memsys memsys.Config

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose prints the memory system statistics after each benchmark
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Memsys:  memsys.DefaultConfig(),
		Output:  os.Stdout,
		Verbose: false,
	}
}

// Harness runs benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results. It stops at the first
// benchmark whose configuration cannot be built.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result, err := h.runBenchmark(bench)
		if err != nil {
			return results, fmt.Errorf("benchmark %s: %w", bench.Name, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// runBenchmark executes a single benchmark on a fresh memory system.
func (h *Harness) runBenchmark(bench Benchmark) (BenchmarkResult, error) {
	traces := bench.Traces()

	config := h.config.Memsys
	config.NumCores = len(traces)
	if bench.Configure != nil {
		bench.Configure(&config)
	}

	sys, err := memsys.New(config)
	if err != nil {
		return BenchmarkResult{}, err
	}

	cores := make([]*core.Core, len(traces))
	for i, trace := range traces {
		cores[i] = core.NewCore(i, loader.NewSliceSource(trace), sys)
	}

	start := time.Now()
	if err := core.RunAll(cores); err != nil {
		return BenchmarkResult{}, err
	}
	wallTime := time.Since(start)

	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
		Mode:        config.Mode.String(),
		NumCores:    config.NumCores,
		WallTime:    wallTime,
	}

	for _, c := range cores {
		stats := c.Stats()
		result.SimulatedCycles += stats.Cycles
		result.InstructionsRetired += stats.Instructions
	}

	if result.InstructionsRetired > 0 {
		result.CPI = float64(result.SimulatedCycles) / float64(result.InstructionsRetired)
	}

	collectMemsysStats(&result, sys)

	if h.config.Verbose {
		_, _ = fmt.Fprintf(h.config.Output, "--- %s ---", bench.Name)
		sys.PrintStats(h.config.Output)
	}

	return result, nil
}

func collectMemsysStats(result *BenchmarkResult, sys *memsys.MemorySystem) {
	stats := sys.Stats()
	result.AvgIFetchDelay = stats.AvgIFetchDelay()
	result.AvgLoadDelay = stats.AvgLoadDelay()
	result.AvgStoreDelay = stats.AvgStoreDelay()

	for _, nc := range sys.Caches() {
		s := nc.Cache.Stats()
		misses := s.ReadMiss + s.WriteMiss

		switch {
		case strings.HasPrefix(nc.Name, "ICACHE"):
			result.ICacheMisses += misses
		case strings.HasPrefix(nc.Name, "DCACHE"):
			result.DCacheMisses += misses
			result.DCacheDirtyEvicts += s.DirtyEvicts
		case nc.Name == "L2CACHE":
			result.L2Misses += misses
			result.L2DirtyEvicts += s.DirtyEvicts
		}
	}

	if d := sys.DRAM(); d != nil {
		result.DRAMReads = d.Stats().ReadAccess
		result.DRAMWrites = d.Stats().WriteAccess
	}
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== memsim Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Mode: %s, Cores: %d\n", r.Mode, r.NumCores)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Avg IFetch Delay:     %.3f\n", r.AvgIFetchDelay)
		_, _ = fmt.Fprintf(h.config.Output, "  Avg Load Delay:       %.3f\n", r.AvgLoadDelay)
		_, _ = fmt.Fprintf(h.config.Output, "  Avg Store Delay:      %.3f\n", r.AvgStoreDelay)

		_, _ = fmt.Fprintln(h.config.Output, "  --- Caches ---")
		_, _ = fmt.Fprintf(h.config.Output, "  I-Cache Misses:       %d\n", r.ICacheMisses)
		_, _ = fmt.Fprintf(h.config.Output, "  D-Cache Misses:       %d\n", r.DCacheMisses)
		_, _ = fmt.Fprintf(h.config.Output, "  D-Cache Dirty Evicts: %d\n", r.DCacheDirtyEvicts)
		_, _ = fmt.Fprintf(h.config.Output, "  L2 Misses:            %d\n", r.L2Misses)
		_, _ = fmt.Fprintf(h.config.Output, "  L2 Dirty Evicts:      %d\n", r.L2DirtyEvicts)

		if r.DRAMReads > 0 || r.DRAMWrites > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- DRAM ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Reads:  %d\n", r.DRAMReads)
			_, _ = fmt.Fprintf(h.config.Output, "  Writes: %d\n", r.DRAMWrites)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,mode,cores,cycles,instructions,cpi,icache_misses,dcache_misses,dcache_dirty_evicts,l2_misses,l2_dirty_evicts,dram_reads,dram_writes")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%d,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.Mode,
			r.NumCores,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.ICacheMisses,
			r.DCacheMisses,
			r.DCacheDirtyEvicts,
			r.L2Misses,
			r.L2DirtyEvicts,
			r.DRAMReads,
			r.DRAMWrites,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Config is the base memory system configuration
	Config memsys.Config `json:"config"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var totalCycles, totalInstructions uint64
	var totalWallTime time.Duration
	for _, r := range results {
		totalCycles += r.SimulatedCycles
		totalInstructions += r.InstructionsRetired
		totalWallTime += r.WallTime
	}

	avgCPI := float64(0)
	if totalInstructions > 0 {
		avgCPI = float64(totalCycles) / float64(totalInstructions)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Config:    h.config.Memsys,
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			TotalCycles:       totalCycles,
			TotalInstructions: totalInstructions,
			AverageCPI:        avgCPI,
			TotalWallTime:     totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
