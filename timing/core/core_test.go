package core_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memsim/loader"
	"github.com/sarchlab/memsim/timing/core"
	"github.com/sarchlab/memsim/timing/memsys"
)

type access struct {
	addr   uint64
	t      memsys.AccessType
	coreID int
}

// fixedMemory charges a constant latency per access type and records the
// accesses it sees.
type fixedMemory struct {
	latency  map[memsys.AccessType]uint64
	accesses []access
}

func (m *fixedMemory) Access(addr uint64, t memsys.AccessType, coreID int) uint64 {
	m.accesses = append(m.accesses, access{addr: addr, t: t, coreID: coreID})
	return m.latency[t]
}

type failingSource struct{}

func (failingSource) Next() (loader.Record, error) {
	return loader.Record{}, errors.New("disk on fire")
}

var _ = Describe("Core", func() {
	var (
		memory  *fixedMemory
		records []loader.Record
	)

	BeforeEach(func() {
		memory = &fixedMemory{latency: map[memsys.AccessType]uint64{
			memsys.AccessIFetch: 2,
			memsys.AccessLoad:   5,
			memsys.AccessStore:  7,
		}}
		records = []loader.Record{
			{PC: 0x1000, Op: loader.OpALU},
			{PC: 0x1004, Op: loader.OpLoad, Addr: 0x8000},
			{PC: 0x1008, Op: loader.OpStore, Addr: 0x8040},
		}
	})

	It("should not be halted initially", func() {
		c := core.NewCore(0, loader.NewSliceSource(records), memory)
		Expect(c.Halted()).To(BeFalse())
		Expect(c.Stats()).To(Equal(core.Stats{}))
	})

	It("should fetch every instruction and access data for loads and stores", func() {
		c := core.NewCore(3, loader.NewSliceSource(records), memory)
		Expect(c.Run()).To(Succeed())

		Expect(memory.accesses).To(Equal([]access{
			{addr: 0x1000, t: memsys.AccessIFetch, coreID: 3},
			{addr: 0x1004, t: memsys.AccessIFetch, coreID: 3},
			{addr: 0x8000, t: memsys.AccessLoad, coreID: 3},
			{addr: 0x1008, t: memsys.AccessIFetch, coreID: 3},
			{addr: 0x8040, t: memsys.AccessStore, coreID: 3},
		}))
	})

	It("should accumulate the latency of every access", func() {
		c := core.NewCore(0, loader.NewSliceSource(records), memory)
		Expect(c.Run()).To(Succeed())

		stats := c.Stats()
		Expect(stats.Instructions).To(Equal(uint64(3)))
		Expect(stats.Loads).To(Equal(uint64(1)))
		Expect(stats.Stores).To(Equal(uint64(1)))
		Expect(stats.IFetchCycles).To(Equal(uint64(6)))
		Expect(stats.DataCycles).To(Equal(uint64(12)))
		Expect(stats.Cycles).To(Equal(uint64(18)))
		Expect(stats.CPI()).To(BeNumerically("~", 6.0))
		Expect(c.Halted()).To(BeTrue())
	})

	It("should spend at least one cycle per instruction", func() {
		memory.latency = nil
		c := core.NewCore(0, loader.NewSliceSource(records), memory)
		Expect(c.Run()).To(Succeed())

		Expect(c.Stats().Cycles).To(Equal(uint64(3)))
	})

	It("should run for the specified number of instructions", func() {
		c := core.NewCore(0, loader.NewSliceSource(records), memory)

		Expect(c.RunInstructions(2)).To(BeTrue())
		Expect(c.Stats().Instructions).To(Equal(uint64(2)))

		Expect(c.RunInstructions(5)).To(BeFalse())
		Expect(c.Stats().Instructions).To(Equal(uint64(3)))
		Expect(c.Tick()).To(BeFalse())
	})

	It("should stop on a trace error", func() {
		c := core.NewCore(0, failingSource{}, memory)

		Expect(c.Run()).To(MatchError("disk on fire"))
		Expect(c.Halted()).To(BeTrue())
		Expect(c.Err()).To(HaveOccurred())
		Expect(memory.accesses).To(BeEmpty())
	})

	Describe("RunAll", func() {
		It("should interleave cores one instruction at a time", func() {
			c0 := core.NewCore(0, loader.NewSliceSource(records[:2]), memory)
			c1 := core.NewCore(1, loader.NewSliceSource(records[:1]), memory)

			Expect(core.RunAll([]*core.Core{c0, c1})).To(Succeed())

			var order []int
			for _, a := range memory.accesses {
				if a.t == memsys.AccessIFetch {
					order = append(order, a.coreID)
				}
			}
			Expect(order).To(Equal([]int{0, 1, 0}))
			Expect(c0.Halted()).To(BeTrue())
			Expect(c1.Halted()).To(BeTrue())
		})

		It("should return the first trace error", func() {
			c0 := core.NewCore(0, loader.NewSliceSource(records), memory)
			c1 := core.NewCore(1, failingSource{}, memory)

			Expect(core.RunAll([]*core.Core{c0, c1})).To(MatchError("disk on fire"))
			Expect(c0.Stats().Instructions).To(Equal(uint64(3)))
		})
	})

	Describe("with a memory system", func() {
		It("should hit in the L1 on a loop", func() {
			config := memsys.DefaultConfig()
			config.Mode = memsys.ModeB
			m, err := memsys.New(config)
			Expect(err).NotTo(HaveOccurred())

			loop := make([]loader.Record, 0, 40)
			for i := 0; i < 10; i++ {
				loop = append(loop, records...)
				loop = append(loop, loader.Record{PC: 0x100c, Op: loader.OpALU})
			}

			c := core.NewCore(0, loader.NewSliceSource(loop), m)
			Expect(c.Run()).To(Succeed())

			// The code line and both data lines miss once each.
			Expect(c.Stats().Cycles).To(Equal(uint64(40 + 20 + 3*110)))
			Expect(m.Stats().IFetchAccess).To(Equal(uint64(40)))
			Expect(m.Cache("ICACHE").Stats().ReadMiss).To(Equal(uint64(1)))
		})
	})
})
