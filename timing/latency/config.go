package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds the fixed latencies of the memory hierarchy, in cycles.
type TimingConfig struct {
	// ICacheHitLatency is the latency of an instruction cache hit.
	// Default: 1 cycle.
	ICacheHitLatency uint64 `json:"icache_hit_latency"`

	// DCacheHitLatency is the latency of a data cache hit.
	// Default: 1 cycle.
	DCacheHitLatency uint64 `json:"dcache_hit_latency"`

	// L2HitLatency is the latency of a shared L2 hit. L2 misses add the
	// memory latency on top of it.
	// Default: 10 cycles.
	L2HitLatency uint64 `json:"l2_hit_latency"`

	// MemoryLatency is the latency of every access to a fixed-latency DRAM.
	// Default: 100 cycles.
	MemoryLatency uint64 `json:"memory_latency"`

	// RowActivateLatency (tACT) opens a row in a bank.
	// Default: 45 cycles.
	RowActivateLatency uint64 `json:"row_activate_latency"`

	// ColumnAccessLatency (tCAS) reads or writes the open row.
	// Default: 45 cycles.
	ColumnAccessLatency uint64 `json:"column_access_latency"`

	// PrechargeLatency (tPRE) closes the open row of a bank.
	// Default: 45 cycles.
	PrechargeLatency uint64 `json:"precharge_latency"`

	// BusLatency is the data transfer time on the memory bus.
	// Default: 10 cycles.
	BusLatency uint64 `json:"bus_latency"`
}

// DefaultTimingConfig returns a TimingConfig with the default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ICacheHitLatency:    1,
		DCacheHitLatency:    1,
		L2HitLatency:        10,
		MemoryLatency:       100,
		RowActivateLatency:  45,
		ColumnAccessLatency: 45,
		PrechargeLatency:    45,
		BusLatency:          10,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0).
func (c *TimingConfig) Validate() error {
	if c.ICacheHitLatency == 0 {
		return fmt.Errorf("icache_hit_latency must be > 0")
	}
	if c.DCacheHitLatency == 0 {
		return fmt.Errorf("dcache_hit_latency must be > 0")
	}
	if c.L2HitLatency == 0 {
		return fmt.Errorf("l2_hit_latency must be > 0")
	}
	if c.MemoryLatency == 0 {
		return fmt.Errorf("memory_latency must be > 0")
	}
	if c.ColumnAccessLatency == 0 {
		return fmt.Errorf("column_access_latency must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
