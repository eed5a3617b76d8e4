package dram_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memsim/timing/dram"
	"github.com/sarchlab/memsim/timing/latency"
)

var _ = Describe("DRAM", func() {
	var (
		d      *dram.DRAM
		config dram.Config
	)

	BeforeEach(func() {
		config = dram.DefaultConfig()
	})

	JustBeforeEach(func() {
		var err error
		d, err = dram.New(config, latency.DefaultTimingConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	Context("with the fixed model", func() {
		BeforeEach(func() {
			config.Model = dram.ModelFixed
		})

		It("should return the memory latency for every access", func() {
			Expect(d.Access(0, false)).To(Equal(uint64(100)))
			Expect(d.Access(0, false)).To(Equal(uint64(100)))
			Expect(d.Access(12345, true)).To(Equal(uint64(100)))
		})

		It("should split reads from writes", func() {
			d.Access(1, false)
			d.Access(2, true)
			d.Access(3, true)

			stats := d.Stats()
			Expect(stats.ReadAccess).To(Equal(uint64(1)))
			Expect(stats.WriteAccess).To(Equal(uint64(2)))
			Expect(stats.WriteDelay).To(Equal(uint64(200)))
			Expect(stats.AvgWriteDelay()).To(BeNumerically("~", 100.0))
		})
	})

	Context("with an open-page row buffer", func() {
		// 1KB rows of 64B lines: 16 lines per row, 16 banks.
		It("should open an empty bank", func() {
			Expect(d.Access(0, false)).To(Equal(uint64(45 + 45 + 10)))
			Expect(d.Stats().RowEmpty).To(Equal(uint64(1)))
		})

		It("should hit in the open row", func() {
			d.Access(0, false)
			Expect(d.Access(15, false)).To(Equal(uint64(45 + 10)))
			Expect(d.Stats().RowHits).To(Equal(uint64(1)))
		})

		It("should precharge on a row conflict", func() {
			d.Access(0, false)
			Expect(d.Access(16*16, false)).To(Equal(uint64(45 + 45 + 45 + 10)))
			Expect(d.Stats().RowConflicts).To(Equal(uint64(1)))
		})

		It("should keep banks independent", func() {
			d.Access(0, false)
			d.Access(16, false)
			Expect(d.Access(1, false)).To(Equal(uint64(55)))
			Expect(d.Access(17, false)).To(Equal(uint64(55)))
		})

		It("should close all rows on reset", func() {
			d.Access(0, false)
			d.Reset()

			Expect(d.Stats()).To(Equal(dram.Statistics{}))
			Expect(d.Access(0, false)).To(Equal(uint64(100)))
		})
	})

	Context("with a close-page row buffer", func() {
		BeforeEach(func() {
			config.PagePolicy = dram.PageClose
		})

		It("should activate on every access", func() {
			Expect(d.Access(0, false)).To(Equal(uint64(100)))
			Expect(d.Access(0, false)).To(Equal(uint64(100)))
			Expect(d.Stats().RowHits).To(BeZero())
		})
	})

	Describe("Configuration", func() {
		It("should reject rows that do not hold whole lines", func() {
			bad := dram.DefaultConfig()
			bad.RowBufferSize = 100

			_, err := dram.New(bad, nil)
			Expect(err).To(MatchError(dram.ErrInvalidConfig))
		})

		It("should reject a bankless row buffer", func() {
			bad := dram.DefaultConfig()
			bad.NumBanks = 0

			Expect(bad.Validate()).To(MatchError(dram.ErrInvalidConfig))
		})

		It("should round-trip model and page policy names through JSON", func() {
			data, err := json.Marshal(dram.Config{
				Model:      dram.ModelRowBuffer,
				PagePolicy: dram.PageClose,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"model":"rowbuffer"`))
			Expect(string(data)).To(ContainSubstring(`"page_policy":"close"`))

			var parsed dram.Config
			Expect(json.Unmarshal(data, &parsed)).To(Succeed())
			Expect(parsed.PagePolicy).To(Equal(dram.PageClose))
		})
	})

	It("should print the report lines", func() {
		d.Access(0, false)

		var buf bytes.Buffer
		d.PrintStats(&buf)

		Expect(buf.String()).To(ContainSubstring("DRAM_READ_ACCESS"))
		Expect(buf.String()).To(ContainSubstring("DRAM_WRITE_DELAY_AVG"))
	})
})
