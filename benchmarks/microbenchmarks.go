package benchmarks

import (
	"math/rand/v2"

	"github.com/sarchlab/memsim/loader"
	"github.com/sarchlab/memsim/timing/cache"
	"github.com/sarchlab/memsim/timing/memsys"
)

const (
	codeBase   = 0x1000
	loopLength = 16

	dataBase  = 0x1000_0000
	otherBase = 0x2000_0000

	lineSize = 64

	// L1 set stride of the default 32KB 8-way data cache.
	l1SetStride = 64 * lineSize
)

// GetMicrobenchmarks returns the standard set of synthetic workloads.
// Each benchmark targets one behavior of the hierarchy.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		instructionLoop(),
		sequentialStream(),
		setConflict(),
		writebackStorm(),
		randomAccess(),
		twoCoreSharedL2(),
		twoCorePartitionedL2(),
	}
}

// GetCoreBenchmarks returns a minimal set of benchmarks for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		instructionLoop(),
		setConflict(),
		writebackStorm(),
	}
}

// program builds a trace of n instructions running a loop of loopLength
// instructions. op returns the operation and data address of instruction i.
func program(n int, op func(i int) (loader.Op, uint64)) []loader.Record {
	records := make([]loader.Record, n)
	for i := range records {
		o, addr := op(i)
		records[i] = loader.Record{
			PC:   codeBase + uint64(4*(i%loopLength)),
			Op:   o,
			Addr: addr,
		}
	}

	return records
}

func singleCore(records []loader.Record) func() [][]loader.Record {
	return func() [][]loader.Record {
		return [][]loader.Record{records}
	}
}

// 1. Instruction Loop - Tests the instruction fetch path
func instructionLoop() Benchmark {
	return Benchmark{
		Name:        "instruction_loop",
		Description: "100 iterations of a 16-instruction ALU loop - measures L1I hit path",
		Traces: singleCore(program(100*loopLength, func(int) (loader.Op, uint64) {
			return loader.OpALU, 0
		})),
	}
}

// 2. Sequential Stream - Tests spatial locality
func sequentialStream() Benchmark {
	return Benchmark{
		Name:        "sequential_stream",
		Description: "8-byte loads over 64KB - one miss per line, L1 overflow",
		Traces: singleCore(program(64*1024/8, func(i int) (loader.Op, uint64) {
			return loader.OpLoad, dataBase + uint64(8*i)
		})),
	}
}

// 3. Set Conflict - Tests associativity
func setConflict() Benchmark {
	return Benchmark{
		Name:        "set_conflict",
		Description: "Cyclic loads to 9 lines of one L1 set - LRU thrash, L2 hits",
		Traces: singleCore(program(900, func(i int) (loader.Op, uint64) {
			return loader.OpLoad, dataBase + uint64(i%9)*l1SetStride
		})),
	}
}

// 4. Writeback Storm - Tests dirty eviction handling
func writebackStorm() Benchmark {
	return Benchmark{
		Name:        "writeback_storm",
		Description: "Cyclic stores to 9 lines of one L1 set - a dirty eviction per store",
		Traces: singleCore(program(900, func(i int) (loader.Op, uint64) {
			return loader.OpStore, dataBase + uint64(i%9)*l1SetStride
		})),
	}
}

// 5. Random Access - Tests capacity misses
func randomAccess() Benchmark {
	return Benchmark{
		Name:        "random_access",
		Description: "Random loads and stores over 4MB - L2 capacity misses, row conflicts",
		Traces: func() [][]loader.Record {
			rng := rand.New(rand.NewPCG(1, 2))
			return [][]loader.Record{program(20000, func(int) (loader.Op, uint64) {
				addr := dataBase + rng.Uint64N(4*1024*1024)
				if rng.IntN(4) == 0 {
					return loader.OpStore, addr
				}
				return loader.OpLoad, addr
			})}
		},
	}
}

// twoCoreTraces pairs a core streaming through 2MB with a core looping over
// a 256KB working set that fits in its share of the L2.
func twoCoreTraces() [][]loader.Record {
	stream := program(2*1024*1024/lineSize, func(i int) (loader.Op, uint64) {
		return loader.OpLoad, dataBase + uint64(i*lineSize)
	})

	const workingSetLines = 256 * 1024 / lineSize
	reuse := program(4*workingSetLines, func(i int) (loader.Op, uint64) {
		return loader.OpLoad, otherBase + uint64((i%workingSetLines)*lineSize)
	})

	return [][]loader.Record{stream, reuse}
}

// 6. Two Cores, Shared L2 - Tests inter-core interference
func twoCoreSharedL2() Benchmark {
	return Benchmark{
		Name:        "two_core_shared_l2",
		Description: "Streaming core next to a reuse core, global LRU L2",
		Traces:      twoCoreTraces,
		Configure: func(config *memsys.Config) {
			config.Mode = memsys.ModeD
		},
	}
}

// 7. Two Cores, Partitioned L2 - Tests way partitioning
func twoCorePartitionedL2() Benchmark {
	return Benchmark{
		Name:        "two_core_partitioned_l2",
		Description: "Streaming core next to a reuse core, L2 ways split 8/8",
		Traces:      twoCoreTraces,
		Configure: func(config *memsys.Config) {
			config.Mode = memsys.ModeE
			config.L2.Policy = cache.PolicyPartitionedLRU
			config.L2.PartitionWays = cache.TwoCorePartition(
				config.L2.Associativity/2, config.L2.Associativity)
		},
	}
}
