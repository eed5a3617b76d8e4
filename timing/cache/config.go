package cache

import (
	"errors"
	"fmt"
)

// MaxWays is the largest associativity a cache can be built with.
const MaxWays = 16

var (
	// ErrTooManyWays is returned when the associativity exceeds MaxWays.
	ErrTooManyWays = errors.New("associativity exceeds the supported maximum")

	// ErrInvalidGeometry is returned when size, associativity, and line size
	// do not describe a power-of-two number of sets.
	ErrInvalidGeometry = errors.New("invalid cache geometry")

	// ErrInvalidPartition is returned when the way partition of a
	// partitioned cache does not cover the ways of a set.
	ErrInvalidPartition = errors.New("invalid way partition")

	// ErrUnknownPolicy is returned for replacement policies outside the
	// defined set.
	ErrUnknownPolicy = errors.New("unknown replacement policy")
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int `json:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity"`
	// LineSize in bytes
	LineSize int `json:"line_size"`
	// Policy selects the victim on a full set.
	Policy Policy `json:"policy"`
	// PartitionWays lists the number of ways owned by each core, starting
	// from way 0. Only used by PolicyPartitionedLRU.
	PartitionWays []int `json:"partition_ways,omitempty"`
	// Seed initializes the generator of PolicyRandom.
	Seed uint64 `json:"seed,omitempty"`
}

// DefaultL1IConfig returns default configuration for a private L1
// instruction cache: 32KB, 8-way, 64B lines.
func DefaultL1IConfig() Config {
	return Config{
		Size:          32 * 1024,
		Associativity: 8,
		LineSize:      64,
		Policy:        PolicyLRU,
	}
}

// DefaultL1DConfig returns default configuration for a private L1 data
// cache: 32KB, 8-way, 64B lines.
func DefaultL1DConfig() Config {
	return Config{
		Size:          32 * 1024,
		Associativity: 8,
		LineSize:      64,
		Policy:        PolicyLRU,
	}
}

// DefaultL2Config returns default configuration for the shared L2 cache:
// 1MB, 16-way, 64B lines.
func DefaultL2Config() Config {
	return Config{
		Size:          1024 * 1024,
		Associativity: 16,
		LineSize:      64,
		Policy:        PolicyLRU,
	}
}

// NumSets returns the number of sets the configuration describes.
func (c Config) NumSets() int {
	if c.LineSize <= 0 || c.Associativity <= 0 {
		return 0
	}

	return c.Size / (c.LineSize * c.Associativity)
}

// TwoCorePartition splits ways between two cores, giving the first
// core0Ways ways to core 0 and the rest to core 1.
func TwoCorePartition(core0Ways, ways int) []int {
	return []int{core0Ways, ways - core0Ways}
}

// Validate checks that the configuration can be built.
func (c Config) Validate() error {
	if c.Associativity > MaxWays {
		return fmt.Errorf("%w: %d ways requested, at most %d supported",
			ErrTooManyWays, c.Associativity, MaxWays)
	}

	if c.Size <= 0 || c.Associativity <= 0 || c.LineSize <= 0 {
		return fmt.Errorf("%w: size, associativity, and line size must be > 0",
			ErrInvalidGeometry)
	}

	numSets := c.NumSets()
	if numSets == 0 || c.Size%(c.LineSize*c.Associativity) != 0 {
		return fmt.Errorf("%w: size %d is not a multiple of %d-way x %dB lines",
			ErrInvalidGeometry, c.Size, c.Associativity, c.LineSize)
	}

	if numSets&(numSets-1) != 0 {
		return fmt.Errorf("%w: set count %d is not a power of two",
			ErrInvalidGeometry, numSets)
	}

	switch c.Policy {
	case PolicyLRU, PolicyRandom:
		return nil
	case PolicyPartitionedLRU:
		return c.validatePartition()
	default:
		return fmt.Errorf("%w: %d", ErrUnknownPolicy, int(c.Policy))
	}
}

func (c Config) validatePartition() error {
	if len(c.PartitionWays) == 0 {
		return fmt.Errorf("%w: no partition given", ErrInvalidPartition)
	}

	total := 0
	for core, ways := range c.PartitionWays {
		if ways <= 0 {
			return fmt.Errorf("%w: core %d owns %d ways",
				ErrInvalidPartition, core, ways)
		}
		total += ways
	}

	if total != c.Associativity {
		return fmt.Errorf("%w: partitions cover %d of %d ways",
			ErrInvalidPartition, total, c.Associativity)
	}

	return nil
}
