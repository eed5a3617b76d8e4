package memsys

import (
	"fmt"

	"github.com/sarchlab/memsim/timing/cache"
	"github.com/sarchlab/memsim/timing/vm"
)

// NamedCache pairs a cache with its report name.
type NamedCache struct {
	Name  string
	Cache *cache.Cache
}

// topology routes a line access through one hierarchy shape and returns its
// latency.
type topology interface {
	access(lineAddr uint64, t AccessType, coreID int) uint64
	caches() []NamedCache
}

// dataOnly is a lone data cache. It tracks hits and misses but no timing;
// instruction fetches bypass it.
type dataOnly struct {
	dcache *cache.Cache
}

func (d *dataOnly) access(lineAddr uint64, t AccessType, coreID int) uint64 {
	if t == AccessIFetch {
		return 0
	}

	isWrite := t == AccessStore
	if !d.dcache.Access(lineAddr, isWrite, coreID) {
		d.dcache.Install(lineAddr, isWrite, coreID)
	}

	return 0
}

func (d *dataOnly) caches() []NamedCache {
	return []NamedCache{{Name: "DCACHE", Cache: d.dcache}}
}

// secondLevel is the shared L2 and the backing store behind it.
type secondLevel struct {
	l2         *cache.Cache
	backing    BackingStore
	hitLatency uint64
}

func (s *secondLevel) access(lineAddr uint64, isWriteback bool, coreID int) uint64 {
	delay := s.hitLatency

	if s.l2.Access(lineAddr, isWriteback, coreID) {
		return delay
	}

	delay += s.backing.Access(lineAddr, false)

	victim, evicted := s.l2.Install(lineAddr, isWriteback, coreID)
	if evicted && victim.Valid && victim.Dirty {
		s.backing.Access(victim.Tag, true)
	}

	return delay
}

type l1Pair struct {
	icache *cache.Cache
	dcache *cache.Cache
}

// hierarchy is an L1 instruction and data cache pair in front of the shared
// L2. With a translator, every core owns a private pair and addresses are
// translated first; without one, a single pair is shared by all cores.
type hierarchy struct {
	l1         []l1Pair
	l2         *secondLevel
	translator *vm.Translator

	icacheHitLatency uint64
	dcacheHitLatency uint64
}

func (h *hierarchy) access(lineAddr uint64, t AccessType, coreID int) uint64 {
	pair := h.l1[0]
	if h.translator != nil {
		lineAddr = h.translator.TranslateLine(lineAddr, coreID)
		pair = h.l1[coreID]
	}

	if t == AccessIFetch {
		return h.fetch(pair.icache, lineAddr, coreID)
	}

	return h.loadStore(pair.dcache, lineAddr, t == AccessStore, coreID)
}

func (h *hierarchy) fetch(icache *cache.Cache, lineAddr uint64, coreID int) uint64 {
	delay := h.icacheHitLatency

	if icache.Access(lineAddr, false, coreID) {
		return delay
	}

	// Instruction lines are never dirty, so the victim needs no writeback.
	icache.Install(lineAddr, false, coreID)

	return delay + h.l2.access(lineAddr, false, coreID)
}

func (h *hierarchy) loadStore(
	dcache *cache.Cache,
	lineAddr uint64,
	isWrite bool,
	coreID int,
) uint64 {
	delay := h.dcacheHitLatency

	if dcache.Access(lineAddr, isWrite, coreID) {
		return delay
	}

	delay += h.l2.access(lineAddr, false, coreID)

	victim, evicted := dcache.Install(lineAddr, isWrite, coreID)
	if evicted && victim.Valid && victim.Dirty {
		h.l2.access(victim.Tag, true, victim.CoreID)
	}

	return delay
}

func (h *hierarchy) caches() []NamedCache {
	var named []NamedCache

	if h.translator == nil {
		named = append(named,
			NamedCache{Name: "ICACHE", Cache: h.l1[0].icache},
			NamedCache{Name: "DCACHE", Cache: h.l1[0].dcache},
		)
	} else {
		for core, pair := range h.l1 {
			named = append(named,
				NamedCache{Name: fmt.Sprintf("ICACHE_%d", core), Cache: pair.icache},
				NamedCache{Name: fmt.Sprintf("DCACHE_%d", core), Cache: pair.dcache},
			)
		}
	}

	return append(named, NamedCache{Name: "L2CACHE", Cache: h.l2.l2})
}
