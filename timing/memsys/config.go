package memsys

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/memsim/timing/cache"
	"github.com/sarchlab/memsim/timing/dram"
	"github.com/sarchlab/memsim/timing/latency"
)

// ErrInvalidConfig is returned for configurations that cannot be built.
var ErrInvalidConfig = errors.New("invalid memory system config")

// Mode selects the simulated hierarchy.
type Mode int

// Simulation modes.
const (
	// ModeA has a single data cache and does not model timing.
	ModeA Mode = iota
	// ModeB has shared L1 caches, an L2, and a fixed-latency DRAM.
	ModeB
	// ModeC is ModeB with a row-buffer DRAM.
	ModeC
	// ModeD gives every core private L1 caches in front of a shared L2
	// and a row-buffer DRAM.
	ModeD
	// ModeE has the ModeD hierarchy; it is used for L2 way-partitioning
	// studies.
	ModeE
	// ModeF has the ModeD hierarchy; it is used for L2 replacement studies.
	ModeF
)

// String returns the letter of the mode.
func (m Mode) String() string {
	if m < ModeA || m > ModeF {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return string(rune('A' + int(m)))
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts the mode letter.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMode converts "A" to "F" (case-insensitive) into a Mode.
func ParseMode(s string) (Mode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 1 || s[0] < 'A' || s[0] > 'F' {
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
	}
	return Mode(s[0] - 'A'), nil
}

// Topology is the shape of the hierarchy a mode builds.
type Topology int

// Hierarchy shapes.
const (
	TopologyDataOnly Topology = iota
	TopologyShared
	TopologyPerCore
)

// Topology returns the hierarchy shape of the mode.
func (m Mode) Topology() Topology {
	switch m {
	case ModeA:
		return TopologyDataOnly
	case ModeB, ModeC:
		return TopologyShared
	default:
		return TopologyPerCore
	}
}

// DRAMModel returns the memory timing model of the mode.
func (m Mode) DRAMModel() dram.Model {
	if m == ModeB {
		return dram.ModelFixed
	}
	return dram.ModelRowBuffer
}

// Config holds the full memory system configuration.
type Config struct {
	Mode     Mode `json:"mode"`
	NumCores int  `json:"num_cores"`
	// LineSize applies to every cache and to the DRAM.
	LineSize int `json:"line_size"`

	ICache cache.Config `json:"icache"`
	DCache cache.Config `json:"dcache"`
	L2     cache.Config `json:"l2"`

	// DRAM organization. The timing model is chosen by the mode.
	DRAM dram.Config `json:"dram"`

	Timing *latency.TimingConfig `json:"timing"`
}

// DefaultConfig returns a single-core ModeC configuration.
func DefaultConfig() Config {
	return Config{
		Mode:     ModeC,
		NumCores: 1,
		LineSize: 64,
		ICache:   cache.DefaultL1IConfig(),
		DCache:   cache.DefaultL1DConfig(),
		L2:       cache.DefaultL2Config(),
		DRAM:     dram.DefaultConfig(),
		Timing:   latency.DefaultTimingConfig(),
	}
}

// LoadConfig loads a Config from a JSON file. Fields missing from the file
// keep their default values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read memsys config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse memsys config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON file.
func (c Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize memsys config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write memsys config file: %w", err)
	}

	return nil
}

func (c Config) cacheConfig(base cache.Config) cache.Config {
	base.LineSize = c.LineSize
	return base
}

func (c Config) dramConfig() dram.Config {
	d := c.DRAM
	d.Model = c.Mode.DRAMModel()
	d.LineSize = c.LineSize
	return d
}

// Validate checks that the configuration can be built.
func (c Config) Validate() error {
	if c.Mode < ModeA || c.Mode > ModeF {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, int(c.Mode))
	}

	if c.NumCores < 1 {
		return fmt.Errorf("%w: num_cores must be >= 1, got %d",
			ErrInvalidConfig, c.NumCores)
	}

	if c.LineSize <= 0 {
		return fmt.Errorf("%w: line_size must be > 0", ErrInvalidConfig)
	}

	if c.Timing == nil {
		return fmt.Errorf("%w: missing timing", ErrInvalidConfig)
	}

	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := c.validateCache("dcache", c.DCache); err != nil {
		return err
	}

	if c.Mode.Topology() == TopologyDataOnly {
		return nil
	}

	if err := c.validateCache("icache", c.ICache); err != nil {
		return err
	}

	if err := c.validateCache("l2", c.L2); err != nil {
		return err
	}

	if err := c.dramConfig().Validate(); err != nil {
		return fmt.Errorf("%w: dram: %w", ErrInvalidConfig, err)
	}

	return nil
}

func (c Config) validateCache(name string, level cache.Config) error {
	if err := c.cacheConfig(level).Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
	}

	if level.Policy == cache.PolicyPartitionedLRU &&
		len(level.PartitionWays) != c.NumCores {
		return fmt.Errorf("%w: %s: %d way partitions for %d cores",
			ErrInvalidConfig, name, len(level.PartitionWays), c.NumCores)
	}

	return nil
}
