package cache

import (
	"fmt"
	"log"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Policy identifies a replacement policy.
type Policy int

// The numeric values match the policy codes used in configuration files.
const (
	PolicyLRU Policy = iota
	PolicyRandom
	PolicyPartitionedLRU
)

// String returns the name of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyLRU:
		return "lru"
	case PolicyRandom:
		return "random"
	case PolicyPartitionedLRU:
		return "partitioned"
	default:
		return "policy(" + strconv.Itoa(int(p)) + ")"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts a policy name or its numeric code.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}

// ParsePolicy converts "lru", "random", "partitioned" or the codes 0, 1, 2
// into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lru", "0":
		return PolicyLRU, nil
	case "random", "rand", "1":
		return PolicyRandom, nil
	case "partitioned", "swp", "2":
		return PolicyPartitionedLRU, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// A VictimFinder decides which way of a full set gets evicted.
//
// lastAccess holds the last access time of every way in the set, indexed by
// way.
type VictimFinder interface {
	FindVictim(lastAccess []uint64, coreID int) int
}

// NewVictimFinder returns the victim finder for the configured policy.
func NewVictimFinder(config Config) VictimFinder {
	switch config.Policy {
	case PolicyRandom:
		return NewRandomVictimFinder(config.Seed)
	case PolicyPartitionedLRU:
		return NewPartitionedLRUVictimFinder(config.PartitionWays)
	default:
		return NewLRUVictimFinder()
	}
}

// LRUVictimFinder evicts the least recently used way of the whole set.
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	e := new(LRUVictimFinder)
	return e
}

// FindVictim returns the way with the smallest access time. The lowest way
// wins ties.
func (e *LRUVictimFinder) FindVictim(lastAccess []uint64, _ int) int {
	return oldestWay(lastAccess, 0, len(lastAccess))
}

// RandomVictimFinder evicts a uniformly chosen way.
type RandomVictimFinder struct {
	rng *rand.Rand
}

// NewRandomVictimFinder returns a random evictor seeded with seed.
func NewRandomVictimFinder(seed uint64) *RandomVictimFinder {
	return &RandomVictimFinder{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// FindVictim returns a random way.
func (e *RandomVictimFinder) FindVictim(lastAccess []uint64, _ int) int {
	return e.rng.IntN(len(lastAccess))
}

// PartitionedLRUVictimFinder statically assigns each core a contiguous range
// of ways and runs LRU inside the range of the requesting core.
type PartitionedLRUVictimFinder struct {
	bounds []int
}

// NewPartitionedLRUVictimFinder creates an evictor where core i owns
// partitionWays[i] ways, laid out from way 0 upwards in core order.
func NewPartitionedLRUVictimFinder(partitionWays []int) *PartitionedLRUVictimFinder {
	bounds := make([]int, len(partitionWays)+1)
	for i, ways := range partitionWays {
		bounds[i+1] = bounds[i] + ways
	}

	return &PartitionedLRUVictimFinder{bounds: bounds}
}

// Partition returns the way range [lo, hi) owned by coreID.
func (e *PartitionedLRUVictimFinder) Partition(coreID int) (lo, hi int) {
	if coreID < 0 || coreID >= len(e.bounds)-1 {
		log.Panicf("core %d has no way partition (%d partitions)",
			coreID, len(e.bounds)-1)
	}

	return e.bounds[coreID], e.bounds[coreID+1]
}

// FindVictim returns the least recently used way inside the partition of
// coreID, regardless of how old the lines of other partitions are.
func (e *PartitionedLRUVictimFinder) FindVictim(lastAccess []uint64, coreID int) int {
	lo, hi := e.Partition(coreID)
	return oldestWay(lastAccess, lo, hi)
}

func oldestWay(lastAccess []uint64, lo, hi int) int {
	victim := lo
	oldest := lastAccess[lo]

	for way := lo; way < hi; way++ {
		if lastAccess[way] < oldest {
			oldest = lastAccess[way]
			victim = way
		}
	}

	return victim
}
