package vm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memsim/timing/vm"
)

var _ = Describe("Translator", func() {
	var t *vm.Translator

	BeforeEach(func() {
		var err error
		t, err = vm.New(2)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject a translator without cores", func() {
		_, err := vm.New(0)
		Expect(err).To(MatchError(vm.ErrInvalidCoreCount))
	})

	It("should separate two cores by exactly one core stride", func() {
		for _, vpn := range []uint64{0, 1, 0x12345, 0xFFFFF} {
			pfn0 := t.VPNToPFN(vpn, 0)
			pfn1 := t.VPNToPFN(vpn, 1)
			Expect(pfn1 - pfn0).To(Equal(uint64(1 << 21)))
		}
	})

	It("should keep the page tail for core 0", func() {
		Expect(t.VPNToPFN(0xABCDE, 0)).To(Equal(uint64(0xABCDE)))
	})

	It("should add the page head at the core field for two cores", func() {
		Expect(t.VPNToPFN(1<<20, 0)).To(Equal(uint64(1 << 21)))
		Expect(t.VPNToPFN(3<<20+5, 1)).To(Equal(uint64(5 + 1<<21 + 3<<21)))

		for _, vpn := range []uint64{0, 0xABCDE, 1 << 20, 0x7FFF_FFFF_F} {
			for core := 0; core < 2; core++ {
				want := vpn&0xFFFFF + uint64(core)<<21 + vpn>>20<<21
				Expect(t.VPNToPFN(vpn, core)).To(Equal(want))
			}
		}
	})

	It("should move the page head above the core field beyond two cores", func() {
		four, err := vm.New(4)
		Expect(err).NotTo(HaveOccurred())

		Expect(four.NumCores()).To(Equal(4))
		Expect(four.VPNToPFN(1<<20, 0)).To(Equal(uint64(1 << 23)))
		Expect(four.VPNToPFN(0, 3)).To(Equal(uint64(3 << 21)))
	})

	It("should report the core count", func() {
		Expect(t.NumCores()).To(Equal(2))
	})

	It("should keep frames of many cores disjoint", func() {
		four, err := vm.New(4)
		Expect(err).NotTo(HaveOccurred())

		seen := map[uint64]int{}
		for core := 0; core < 4; core++ {
			for _, vpn := range []uint64{0, 7, 1 << 20, 3<<20 + 5} {
				pfn := four.VPNToPFN(vpn, core)
				owner, ok := seen[pfn]
				Expect(ok && owner != core).To(BeFalse())
				seen[pfn] = core
			}
		}
	})

	It("should translate line addresses page by page", func() {
		lineAddr := uint64(3*vm.PageSize + 17)

		Expect(t.TranslateLine(lineAddr, 0)).To(Equal(uint64(3<<12 + 17)))
		Expect(t.TranslateLine(lineAddr, 1)).To(Equal(uint64((3+1<<21)<<12 + 17)))
	})

	It("should panic for a core outside the configured range", func() {
		Expect(func() { t.VPNToPFN(0, 2) }).To(Panic())
	})
})
