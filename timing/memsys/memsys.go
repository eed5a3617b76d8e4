// Package memsys assembles caches, address translation, and DRAM into the
// memory hierarchy of the modes the simulator supports.
package memsys

import (
	"log"

	"github.com/sarchlab/memsim/timing/cache"
	"github.com/sarchlab/memsim/timing/dram"
	"github.com/sarchlab/memsim/timing/latency"
	"github.com/sarchlab/memsim/timing/vm"
)

// MemorySystem is the entry point for instruction fetches, loads, and stores.
type MemorySystem struct {
	config Config
	timing *latency.Table

	clock    cache.Clock
	ownClock *cache.Counter

	backing BackingStore
	dram    *dram.DRAM
	topo    topology

	// Number of caches built so far, used to derive per-cache seeds.
	numCaches int

	traceLogger *log.Logger

	stats Stats
}

// Option configures optional parts of a MemorySystem.
type Option func(*MemorySystem)

// WithBackingStore replaces the DRAM built from the configuration.
func WithBackingStore(backing BackingStore) Option {
	return func(m *MemorySystem) {
		m.backing = backing
	}
}

// WithClock makes every cache read LRU timestamps from clock. The caller is
// responsible for advancing it. Without a clock, the memory system advances
// its own by one on every access.
func WithClock(clock cache.Clock) Option {
	return func(m *MemorySystem) {
		m.clock = clock
	}
}

// WithTraceLogger logs every access with its latency.
func WithTraceLogger(logger *log.Logger) Option {
	return func(m *MemorySystem) {
		m.traceLogger = logger
	}
}

// New builds the memory system described by config.
func New(config Config, opts ...Option) (*MemorySystem, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m := &MemorySystem{
		config: config,
		timing: latency.NewTableWithConfig(config.Timing),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.clock == nil {
		m.ownClock = &cache.Counter{}
		m.clock = m.ownClock
	}

	var err error
	switch config.Mode.Topology() {
	case TopologyDataOnly:
		err = m.buildDataOnly()
	default:
		err = m.buildHierarchy()
	}

	if err != nil {
		return nil, err
	}

	return m, nil
}

// seedStride spreads the seeds of caches built from the same configuration.
const seedStride = 0x9e3779b97f4a7c15

// newCache builds a cache on the shared clock. Random caches get their own
// seed, so private caches of the same level do not replay one sequence. The
// first cache built keeps the configured seed.
func (m *MemorySystem) newCache(base cache.Config) (*cache.Cache, error) {
	config := m.config.cacheConfig(base)
	if config.Policy == cache.PolicyRandom {
		config.Seed += uint64(m.numCaches) * seedStride
	}
	m.numCaches++

	return cache.New(config, cache.WithClock(m.clock))
}

func (m *MemorySystem) buildDataOnly() error {
	dcache, err := m.newCache(m.config.DCache)
	if err != nil {
		return err
	}

	m.topo = &dataOnly{dcache: dcache}

	return nil
}

func (m *MemorySystem) buildHierarchy() error {
	if m.backing == nil {
		d, err := dram.New(m.config.dramConfig(), m.config.Timing)
		if err != nil {
			return err
		}

		m.dram = d
		m.backing = d
	}

	l2, err := m.newCache(m.config.L2)
	if err != nil {
		return err
	}

	h := &hierarchy{
		l2: &secondLevel{
			l2:         l2,
			backing:    m.backing,
			hitLatency: m.timing.HitLatency(latency.LevelL2),
		},
		icacheHitLatency: m.timing.HitLatency(latency.LevelICache),
		dcacheHitLatency: m.timing.HitLatency(latency.LevelDCache),
	}

	numPairs := 1
	if m.config.Mode.Topology() == TopologyPerCore {
		numPairs = m.config.NumCores

		h.translator, err = vm.New(m.config.NumCores)
		if err != nil {
			return err
		}
	}

	for i := 0; i < numPairs; i++ {
		icache, err := m.newCache(m.config.ICache)
		if err != nil {
			return err
		}

		dcache, err := m.newCache(m.config.DCache)
		if err != nil {
			return err
		}

		h.l1 = append(h.l1, l1Pair{icache: icache, dcache: dcache})
	}

	m.topo = h

	return nil
}

// Config returns the configuration the memory system was built from.
func (m *MemorySystem) Config() Config {
	return m.config
}

// Stats returns the per-access-type statistics.
func (m *MemorySystem) Stats() Stats {
	return m.stats
}

// Topology returns the hierarchy shape.
func (m *MemorySystem) Topology() Topology {
	return m.config.Mode.Topology()
}

// Backing returns the store behind the L2, or nil in the data-only topology.
func (m *MemorySystem) Backing() BackingStore {
	return m.backing
}

// DRAM returns the DRAM built from the configuration. It is nil when a
// backing store was supplied or the topology has no L2.
func (m *MemorySystem) DRAM() *dram.DRAM {
	return m.dram
}

// Caches returns every cache with its report name, L1s first.
func (m *MemorySystem) Caches() []NamedCache {
	return m.topo.caches()
}

// Cache returns the cache with the given report name, or nil.
func (m *MemorySystem) Cache(name string) *cache.Cache {
	for _, nc := range m.Caches() {
		if nc.Name == name {
			return nc.Cache
		}
	}

	return nil
}

// Access performs one access to the byte address addr on behalf of coreID
// and returns its latency in cycles.
func (m *MemorySystem) Access(addr uint64, t AccessType, coreID int) uint64 {
	if coreID < 0 || coreID >= m.config.NumCores {
		log.Panicf("memsys: core %d out of range [0, %d)", coreID, m.config.NumCores)
	}

	if t < AccessIFetch || t > AccessStore {
		log.Panicf("memsys: unknown access type %d", int(t))
	}

	if m.ownClock != nil {
		m.ownClock.Tick()
	}

	lineAddr := addr / uint64(m.config.LineSize)
	delay := m.topo.access(lineAddr, t, coreID)

	m.stats.record(t, delay)

	if m.traceLogger != nil {
		m.traceLogger.Printf("%d core=%d %s addr=%#x line=%#x delay=%d",
			m.clock.Now(), coreID, t, addr, lineAddr, delay)
	}

	return delay
}

// Reset invalidates every cache, closes all DRAM rows, and clears the
// statistics.
func (m *MemorySystem) Reset() {
	for _, nc := range m.Caches() {
		nc.Cache.Reset()
	}

	if m.dram != nil {
		m.dram.Reset()
	}

	m.stats = Stats{}
}
