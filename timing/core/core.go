// Package core provides the trace-driven CPU core model.
// Each core replays an instruction trace against the memory system and
// accumulates the cycles its accesses cost.
package core

import (
	"errors"
	"io"

	"github.com/sarchlab/memsim/loader"
	"github.com/sarchlab/memsim/timing/memsys"
)

// Memory is the memory system a core issues its accesses to.
type Memory interface {
	Access(addr uint64, t memsys.AccessType, coreID int) uint64
}

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Loads is the number of load instructions retired.
	Loads uint64
	// Stores is the number of store instructions retired.
	Stores uint64
	// IFetchCycles is the part of Cycles spent fetching instructions.
	IFetchCycles uint64
	// DataCycles is the part of Cycles spent on loads and stores.
	DataCycles uint64
}

// CPI returns cycles per instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Core represents a trace-driven CPU core.
type Core struct {
	// ID is the core id passed with every access.
	ID int

	source loader.Source
	memory Memory

	halted bool
	err    error
	stats  Stats
}

// NewCore creates a core that replays source against memory.
func NewCore(id int, source loader.Source, memory Memory) *Core {
	return &Core{
		ID:     id,
		source: source,
		memory: memory,
	}
}

// Tick executes one instruction of the trace. It returns false once the
// trace is exhausted or could not be read.
func (c *Core) Tick() bool {
	if c.halted {
		return false
	}

	record, err := c.source.Next()
	if err != nil {
		c.halted = true
		if !errors.Is(err, io.EOF) {
			c.err = err
		}

		return false
	}

	c.execute(record)

	return true
}

func (c *Core) execute(record loader.Record) {
	fetch := c.memory.Access(record.PC, memsys.AccessIFetch, c.ID)

	var data uint64
	switch record.Op {
	case loader.OpLoad:
		data = c.memory.Access(record.Addr, memsys.AccessLoad, c.ID)
		c.stats.Loads++
	case loader.OpStore:
		data = c.memory.Access(record.Addr, memsys.AccessStore, c.ID)
		c.stats.Stores++
	}

	// Every instruction occupies at least one cycle, even when the memory
	// system reports no latency.
	cycles := max(fetch+data, 1)

	c.stats.Cycles += cycles
	c.stats.Instructions++
	c.stats.IFetchCycles += fetch
	c.stats.DataCycles += data
}

// Halted returns true once the trace is exhausted.
func (c *Core) Halted() bool {
	return c.halted
}

// Err returns the error that stopped the core, or nil if the trace ended
// normally.
func (c *Core) Err() error {
	return c.err
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return c.stats
}

// Run executes the core until its trace is exhausted.
func (c *Core) Run() error {
	for c.Tick() {
	}

	return c.err
}

// RunInstructions executes at most n instructions.
// Returns true if still running, false if halted.
func (c *Core) RunInstructions(n uint64) bool {
	for i := uint64(0); i < n; i++ {
		if !c.Tick() {
			return false
		}
	}

	return !c.halted
}

// RunAll interleaves the cores one instruction at a time, in order of the
// slice, until every trace is exhausted. It returns the first read error.
func RunAll(cores []*Core) error {
	for {
		running := false
		for _, c := range cores {
			if c.Tick() {
				running = true
			}
		}

		if !running {
			break
		}
	}

	for _, c := range cores {
		if c.err != nil {
			return c.err
		}
	}

	return nil
}
