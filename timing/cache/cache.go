// Package cache provides the set-associative caches of the memory hierarchy,
// using Akita cache directories for tag and state storage.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
	"github.com/sarchlab/akita/v4/mem/vm"
)

// Line is a snapshot of one way of a set.
type Line struct {
	Valid          bool
	Dirty          bool
	Tag            uint64
	CoreID         int
	LastAccessTime uint64
}

// Set is a snapshot of the lines of one set, indexed by way.
type Set struct {
	Lines []Line
}

// ValidLines returns the number of valid lines in the set.
func (s Set) ValidLines() int {
	n := 0
	for _, l := range s.Lines {
		if l.Valid {
			n++
		}
	}

	return n
}

// Cache is a set-associative cache addressed by line address.
//
// The set index is the low bits of the line address and the tag is the full
// line address. Lines are owned by the core that installed them; a core only
// hits on its own lines.
type Cache struct {
	config  Config
	numSets int
	numWays int

	// Akita cache directory for tag/state management. The block size is one
	// because the cache is fed line addresses.
	directory *akitacache.DirectoryImpl
	sets      []akitacache.Set

	// Last access time per block, indexed by (setID * numWays + wayID)
	lastAccess []uint64

	victimFinder VictimFinder
	clock        Clock
	ownClock     *Counter

	stats Statistics
}

// Option configures optional parts of a Cache.
type Option func(*Cache)

// WithClock makes the cache read LRU timestamps from clock. The caller is
// responsible for advancing it.
func WithClock(clock Clock) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

// WithVictimFinder replaces the victim finder derived from the policy.
func WithVictimFinder(victimFinder VictimFinder) Option {
	return func(c *Cache) {
		c.victimFinder = victimFinder
	}
}

// New creates a new cache with the given configuration.
func New(config Config, opts ...Option) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	numSets := config.NumSets()

	c := &Cache{
		config:  config,
		numSets: numSets,
		numWays: config.Associativity,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			1,
			akitacache.NewLRUVictimFinder(),
		),
		lastAccess: make([]uint64, numSets*config.Associativity),
	}
	c.sets = c.directory.GetSets()

	for _, opt := range opts {
		opt(c)
	}

	if c.victimFinder == nil {
		c.victimFinder = NewVictimFinder(config)
	}

	if c.clock == nil {
		c.ownClock = &Counter{}
		c.clock = c.ownClock
	}

	return c, nil
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// NumSets returns the number of sets.
func (c *Cache) NumSets() int {
	return c.numSets
}

// NumWays returns the associativity.
func (c *Cache) NumWays() int {
	return c.numWays
}

// Policy returns the replacement policy.
func (c *Cache) Policy() Policy {
	return c.config.Policy
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// SetIndex returns the set a line address maps to.
func (c *Cache) SetIndex(lineAddr uint64) uint64 {
	return lineAddr & uint64(c.numSets-1)
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.numWays + block.WayID
}

func (c *Cache) tick() {
	if c.ownClock != nil {
		c.ownClock.Tick()
	}
}

// Access looks up a line. It returns true on a hit, in which case the line's
// access time is refreshed and, for writes, the line is marked dirty. A miss
// changes nothing but the statistics.
func (c *Cache) Access(lineAddr uint64, isWrite bool, coreID int) bool {
	c.tick()

	if isWrite {
		c.stats.WriteAccess++
	} else {
		c.stats.ReadAccess++
	}

	block := c.directory.Lookup(vm.PID(coreID), lineAddr)
	if block != nil {
		c.lastAccess[c.blockIndex(block)] = c.clock.Now()
		if isWrite {
			block.IsDirty = true
		}

		return true
	}

	if isWrite {
		c.stats.WriteMiss++
	} else {
		c.stats.ReadMiss++
	}

	return false
}

// Install places a line in its set. An invalid way is used if there is one;
// otherwise a victim chosen by the replacement policy is overwritten and
// returned with ok set to true. The caller must handle the writeback of a
// dirty victim.
func (c *Cache) Install(lineAddr uint64, isWrite bool, coreID int) (evicted Line, ok bool) {
	c.tick()

	setIndex := c.SetIndex(lineAddr)
	set := c.sets[setIndex]

	for _, block := range set.Blocks {
		if !block.IsValid {
			c.fill(block, lineAddr, isWrite, coreID)
			return Line{}, false
		}
	}

	block := set.Blocks[c.FindVictim(setIndex, coreID)]
	evicted = c.line(block)

	c.stats.Evicts++
	if evicted.Valid && evicted.Dirty {
		c.stats.DirtyEvicts++
	}

	c.fill(block, lineAddr, isWrite, coreID)

	return evicted, true
}

// FindVictim returns the way of the given set that the replacement policy
// would evict for coreID.
func (c *Cache) FindVictim(setIndex uint64, coreID int) int {
	base := int(setIndex) * c.numWays
	return c.victimFinder.FindVictim(c.lastAccess[base:base+c.numWays], coreID)
}

func (c *Cache) fill(block *akitacache.Block, lineAddr uint64, isWrite bool, coreID int) {
	block.IsValid = true
	block.IsDirty = isWrite
	block.Tag = lineAddr
	block.PID = vm.PID(coreID)
	c.lastAccess[c.blockIndex(block)] = c.clock.Now()
}

func (c *Cache) line(block *akitacache.Block) Line {
	return Line{
		Valid:          block.IsValid,
		Dirty:          block.IsDirty,
		Tag:            block.Tag,
		CoreID:         int(block.PID),
		LastAccessTime: c.lastAccess[c.blockIndex(block)],
	}
}

// Set returns a snapshot of the set at index.
func (c *Cache) Set(index uint64) Set {
	blocks := c.sets[index].Blocks

	s := Set{Lines: make([]Line, len(blocks))}
	for i, block := range blocks {
		s.Lines[i] = c.line(block)
	}

	return s
}

// Reset invalidates all lines and clears the statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.sets = c.directory.GetSets()

	for i := range c.lastAccess {
		c.lastAccess[i] = 0
	}

	c.stats = Statistics{}
}
