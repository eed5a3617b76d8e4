// Package latency provides the fixed latencies of the simulated memory
// hierarchy.
//
// The values can be configured via TimingConfig.
package latency

// Level identifies a cache level with a fixed hit latency.
type Level int

// Cache levels with a fixed hit latency.
const (
	LevelICache Level = iota
	LevelDCache
	LevelL2
)

// String returns the report name of the level.
func (l Level) String() string {
	switch l {
	case LevelICache:
		return "ICACHE"
	case LevelDCache:
		return "DCACHE"
	case LevelL2:
		return "L2CACHE"
	default:
		return "UNKNOWN"
	}
}

// Table provides latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// HitLatency returns the hit latency of a cache level.
func (t *Table) HitLatency(level Level) uint64 {
	switch level {
	case LevelICache:
		return t.config.ICacheHitLatency
	case LevelDCache:
		return t.config.DCacheHitLatency
	case LevelL2:
		return t.config.L2HitLatency
	default:
		return 0
	}
}

// MemoryLatency returns the latency of a fixed-latency memory access.
func (t *Table) MemoryLatency() uint64 {
	return t.config.MemoryLatency
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
