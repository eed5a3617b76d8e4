package cache_test

import (
	"bytes"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memsim/timing/cache"
)

var _ = Describe("Cache", func() {
	var (
		c     *cache.Cache
		clock *cache.Counter
	)

	// Small cache for testing: 4KB, 4-way, 64B lines = 16 sets.
	// Line addresses that are multiples of 16 all map to set 0.
	smallConfig := func(policy cache.Policy) cache.Config {
		return cache.Config{
			Size:          4 * 1024,
			Associativity: 4,
			LineSize:      64,
			Policy:        policy,
		}
	}

	BeforeEach(func() {
		var err error
		clock = &cache.Counter{}
		c, err = cache.New(smallConfig(cache.PolicyLRU), cache.WithClock(clock))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Construction", func() {
		It("should derive the set count from size, ways, and line size", func() {
			Expect(c.NumSets()).To(Equal(16))
			Expect(c.NumWays()).To(Equal(4))
			Expect(c.Policy()).To(Equal(cache.PolicyLRU))
		})

		It("should reject associativity above the maximum", func() {
			config := smallConfig(cache.PolicyLRU)
			config.Associativity = cache.MaxWays * 2
			config.Size = 64 * config.Associativity

			_, err := cache.New(config)
			Expect(err).To(MatchError(cache.ErrTooManyWays))
		})

		It("should reject a set count that is not a power of two", func() {
			config := smallConfig(cache.PolicyLRU)
			config.Size = 3 * 4 * 64

			_, err := cache.New(config)
			Expect(err).To(MatchError(cache.ErrInvalidGeometry))
		})

		It("should reject a partition that does not cover the set", func() {
			config := smallConfig(cache.PolicyPartitionedLRU)
			config.PartitionWays = []int{1, 2}

			_, err := cache.New(config)
			Expect(err).To(MatchError(cache.ErrInvalidPartition))
		})

		It("should reject an empty partition", func() {
			config := smallConfig(cache.PolicyPartitionedLRU)
			config.PartitionWays = cache.TwoCorePartition(0, 4)

			_, err := cache.New(config)
			Expect(err).To(MatchError(cache.ErrInvalidPartition))
		})

		It("should reject unknown policies", func() {
			_, err := cache.New(smallConfig(cache.Policy(7)))
			Expect(err).To(MatchError(cache.ErrUnknownPolicy))
		})
	})

	Describe("Access", func() {
		It("should miss on a cold cache without changing state", func() {
			Expect(c.Access(0x40, false, 0)).To(BeFalse())

			stats := c.Stats()
			Expect(stats.ReadAccess).To(Equal(uint64(1)))
			Expect(stats.ReadMiss).To(Equal(uint64(1)))
			Expect(c.Set(c.SetIndex(0x40)).ValidLines()).To(Equal(0))
		})

		It("should hit after install", func() {
			c.Install(0x40, false, 0)

			Expect(c.Access(0x40, false, 0)).To(BeTrue())
			Expect(c.Stats().ReadMiss).To(Equal(uint64(0)))
		})

		It("should count writes separately from reads", func() {
			c.Access(0x40, true, 0)
			c.Install(0x40, true, 0)
			c.Access(0x40, true, 0)
			c.Access(0x40, false, 0)

			stats := c.Stats()
			Expect(stats.WriteAccess).To(Equal(uint64(2)))
			Expect(stats.WriteMiss).To(Equal(uint64(1)))
			Expect(stats.ReadAccess).To(Equal(uint64(1)))
			Expect(stats.ReadMiss).To(Equal(uint64(0)))
		})

		It("should not hit on a line owned by another core", func() {
			c.Install(0x40, false, 0)

			Expect(c.Access(0x40, false, 1)).To(BeFalse())
		})

		It("should compare the full line address, not only the set bits", func() {
			c.Install(0x10, false, 0)

			Expect(c.SetIndex(0x10)).To(Equal(c.SetIndex(0x20)))
			Expect(c.Access(0x20, false, 0)).To(BeFalse())
			Expect(c.Access(0x10, false, 0)).To(BeTrue())
		})

		It("should refresh the access time on a hit", func() {
			c.Install(0x40, false, 0)
			clock.Advance(7)
			c.Access(0x40, false, 0)

			line := c.Set(c.SetIndex(0x40)).Lines[0]
			Expect(line.LastAccessTime).To(Equal(uint64(7)))
		})

		It("should mark the line dirty on a write hit and keep it dirty", func() {
			c.Install(0x40, false, 0)
			Expect(c.Access(0x40, true, 0)).To(BeTrue())

			for i := 0; i < 3; i++ {
				clock.Tick()
				Expect(c.Access(0x40, false, 0)).To(BeTrue())
				Expect(c.Set(c.SetIndex(0x40)).Lines[0].Dirty).To(BeTrue())
			}
		})
	})

	Describe("Install", func() {
		It("should fill invalid ways without evicting", func() {
			_, evicted := c.Install(0x00, false, 0)
			Expect(evicted).To(BeFalse())
			_, evicted = c.Install(0x10, true, 0)
			Expect(evicted).To(BeFalse())

			set := c.Set(0)
			Expect(set.Lines[0].Tag).To(Equal(uint64(0x00)))
			Expect(set.Lines[0].Dirty).To(BeFalse())
			Expect(set.Lines[1].Tag).To(Equal(uint64(0x10)))
			Expect(set.Lines[1].Dirty).To(BeTrue())
			Expect(set.Lines[1].CoreID).To(Equal(0))
			Expect(c.Stats().Evicts).To(Equal(uint64(0)))
		})

		It("should evict a dirty line of a direct-mapped cache", func() {
			dm, err := cache.New(cache.Config{
				Size:          64,
				Associativity: 1,
				LineSize:      64,
				Policy:        cache.PolicyRandom,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(dm.NumSets()).To(Equal(1))

			dm.Install(0xA, true, 0)
			victim, evicted := dm.Install(0xB, false, 0)

			Expect(evicted).To(BeTrue())
			Expect(victim.Valid).To(BeTrue())
			Expect(victim.Dirty).To(BeTrue())
			Expect(victim.Tag).To(Equal(uint64(0xA)))
			Expect(dm.Stats().DirtyEvicts).To(Equal(uint64(1)))
			Expect(dm.Access(0xB, false, 0)).To(BeTrue())
			Expect(dm.Access(0xA, false, 0)).To(BeFalse())
		})

		It("should not count clean evictions as dirty", func() {
			for i := uint64(0); i < 5; i++ {
				clock.Tick()
				c.Install(i*16, false, 0)
			}

			Expect(c.Stats().Evicts).To(Equal(uint64(1)))
			Expect(c.Stats().DirtyEvicts).To(Equal(uint64(0)))
		})
	})

	Describe("LRU replacement", func() {
		It("should evict the least recently used way", func() {
			for i := uint64(0); i < 4; i++ {
				clock.Tick()
				c.Install(i*16, false, 0)
			}

			clock.Tick()
			c.Access(0x00, false, 0)

			Expect(c.FindVictim(0, 0)).To(Equal(1))

			victim, evicted := c.Install(0x40, false, 0)
			Expect(evicted).To(BeTrue())
			Expect(victim.Tag).To(Equal(uint64(0x10)))
		})

		It("should pick the lowest way on a tie", func() {
			for i := uint64(0); i < 4; i++ {
				c.Install(i*16, false, 0)
			}

			Expect(c.FindVictim(0, 0)).To(Equal(0))

			clock.Tick()
			c.Access(0x00, false, 0)
			c.Access(0x10, false, 0)

			Expect(c.FindVictim(0, 0)).To(Equal(2))
		})
	})

	Describe("Custom victim finder", func() {
		It("should evict the way chosen by the given finder", func() {
			finder := &fixedWayFinder{way: 2}
			custom, err := cache.New(smallConfig(cache.PolicyLRU),
				cache.WithClock(clock), cache.WithVictimFinder(finder))
			Expect(err).NotTo(HaveOccurred())

			for i := uint64(0); i < 4; i++ {
				custom.Install(i*16, false, 1)
			}

			victim, evicted := custom.Install(0x40, false, 1)
			Expect(evicted).To(BeTrue())
			Expect(victim.Tag).To(Equal(uint64(0x20)))
			Expect(finder.calls).To(Equal(1))
			Expect(finder.coreID).To(Equal(1))
			Expect(finder.ways).To(Equal(4))
		})
	})

	Describe("Partitioned LRU replacement", func() {
		BeforeEach(func() {
			var err error
			config := smallConfig(cache.PolicyPartitionedLRU)
			config.PartitionWays = cache.TwoCorePartition(2, 4)
			c, err = cache.New(config, cache.WithClock(clock))
			Expect(err).NotTo(HaveOccurred())

			clock.Tick()
			c.Install(0x00, false, 0)
			clock.Tick()
			c.Install(0x10, false, 0)
			clock.Tick()
			c.Install(0x20, false, 1)
			clock.Tick()
			c.Install(0x30, false, 1)
		})

		It("should keep core 1 inside its partition", func() {
			clock.Tick()
			victim, evicted := c.Install(0x40, false, 1)

			Expect(evicted).To(BeTrue())
			Expect(victim.Tag).To(Equal(uint64(0x20)))
			Expect(c.Access(0x00, false, 0)).To(BeTrue())
			Expect(c.Access(0x10, false, 0)).To(BeTrue())
		})

		It("should keep core 0 inside its partition", func() {
			clock.Tick()
			c.Access(0x20, false, 1)
			c.Access(0x30, false, 1)

			Expect(c.FindVictim(0, 0)).To(Equal(0))

			clock.Tick()
			c.Access(0x00, false, 0)
			Expect(c.FindVictim(0, 0)).To(Equal(1))
		})

		It("should panic for a core without a partition", func() {
			Expect(func() { c.FindVictim(0, 2) }).To(Panic())
		})
	})

	Describe("Random replacement", func() {
		It("should make the same choices for the same seed", func() {
			config := smallConfig(cache.PolicyRandom)
			config.Seed = 42
			a, _ := cache.New(config)
			b, _ := cache.New(config)

			for i := 0; i < 32; i++ {
				way := a.FindVictim(0, 0)
				Expect(way).To(BeNumerically(">=", 0))
				Expect(way).To(BeNumerically("<", 4))
				Expect(b.FindVictim(0, 0)).To(Equal(way))
			}
		})
	})

	DescribeTable("never holds more valid lines than ways",
		func(policy cache.Policy) {
			config := smallConfig(policy)
			if policy == cache.PolicyPartitionedLRU {
				config.PartitionWays = cache.TwoCorePartition(1, 4)
			}

			pc, err := cache.New(config)
			Expect(err).NotTo(HaveOccurred())

			rng := rand.New(rand.NewPCG(1, 2))
			for i := 0; i < 2000; i++ {
				lineAddr := uint64(rng.IntN(256))
				coreID := rng.IntN(2)
				isWrite := rng.IntN(2) == 0

				if !pc.Access(lineAddr, isWrite, coreID) {
					pc.Install(lineAddr, isWrite, coreID)
				}

				set := pc.Set(pc.SetIndex(lineAddr))
				Expect(set.ValidLines()).To(BeNumerically("<=", 4))

				seen := map[cache.Line]bool{}
				for _, l := range set.Lines {
					if !l.Valid {
						continue
					}
					key := cache.Line{Tag: l.Tag, CoreID: l.CoreID}
					Expect(seen[key]).To(BeFalse())
					seen[key] = true
				}
			}
		},
		Entry("LRU", cache.PolicyLRU),
		Entry("random", cache.PolicyRandom),
		Entry("partitioned", cache.PolicyPartitionedLRU),
	)

	Describe("Statistics", func() {
		It("should report miss rates", func() {
			c.Access(0x40, false, 0)
			c.Install(0x40, false, 0)
			c.Access(0x40, false, 0)

			Expect(c.Stats().ReadMissRate()).To(BeNumerically("~", 0.5))
			Expect(c.Stats().WriteMissRate()).To(BeZero())
		})

		It("should print the counters under the given header", func() {
			c.Access(0x40, true, 0)

			var buf bytes.Buffer
			c.PrintStats(&buf, "DCACHE")

			Expect(buf.String()).To(ContainSubstring("DCACHE_WRITE_ACCESS"))
			Expect(buf.String()).To(ContainSubstring("DCACHE_DIRTY_EVICTS"))
			Expect(buf.String()).To(MatchRegexp(`DCACHE_WRITE_MISSPERC \t\t :\s+100\.000`))
		})

		It("should clear lines and counters on reset", func() {
			c.Install(0x40, true, 0)
			c.Access(0x40, false, 0)

			c.Reset()

			Expect(c.Stats()).To(Equal(cache.Statistics{}))
			Expect(c.Access(0x40, false, 0)).To(BeFalse())
		})
	})

	Describe("Policy parsing", func() {
		It("should accept names and numeric codes", func() {
			for text, want := range map[string]cache.Policy{
				"lru":         cache.PolicyLRU,
				"0":           cache.PolicyLRU,
				"random":      cache.PolicyRandom,
				"1":           cache.PolicyRandom,
				"partitioned": cache.PolicyPartitionedLRU,
				"2":           cache.PolicyPartitionedLRU,
			} {
				got, err := cache.ParsePolicy(text)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(want))
			}

			_, err := cache.ParsePolicy("fifo")
			Expect(err).To(MatchError(cache.ErrUnknownPolicy))
		})
	})

	Describe("Default configurations", func() {
		It("should build the default caches", func() {
			for _, config := range []cache.Config{
				cache.DefaultL1IConfig(),
				cache.DefaultL1DConfig(),
				cache.DefaultL2Config(),
			} {
				Expect(config.Validate()).To(Succeed())
			}

			Expect(cache.DefaultL2Config().NumSets()).To(Equal(1024))
		})
	})
})

type fixedWayFinder struct {
	way    int
	calls  int
	coreID int
	ways   int
}

func (f *fixedWayFinder) FindVictim(lastAccess []uint64, coreID int) int {
	f.calls++
	f.coreID = coreID
	f.ways = len(lastAccess)

	return f.way
}
