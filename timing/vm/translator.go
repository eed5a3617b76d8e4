// Package vm provides the virtual-to-physical translation applied to the
// per-core address streams before they reach shared caches.
package vm

import (
	"errors"
	"fmt"
	"log"
	"math/bits"
)

// PageSize is the translation granularity, in line addresses.
const PageSize = 4096

const (
	tailBits  = 20
	tailMask  = 1<<tailBits - 1
	coreShift = 21
)

// ErrInvalidCoreCount is returned when a translator is requested for fewer
// than one core.
var ErrInvalidCoreCount = errors.New("invalid core count")

// Translator maps per-core virtual pages to physical frames so that
// different cores never share a frame.
//
// The low 20 bits of the virtual page number are kept and the core id is
// placed at bit 21. The remaining high bits of the page number are added at
// bit 21 as well for up to two cores. With more cores they move above the
// core id field so that every core keeps its own frames below 2^20 pages.
type Translator struct {
	numCores  int
	headShift uint
}

// New creates a translator for numCores cores.
func New(numCores int) (*Translator, error) {
	if numCores < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCoreCount, numCores)
	}

	headShift := uint(coreShift)
	if numCores > 2 {
		headShift += uint(bits.Len(uint(numCores - 1)))
	}

	return &Translator{
		numCores:  numCores,
		headShift: headShift,
	}, nil
}

// NumCores returns the number of cores the translator separates.
func (t *Translator) NumCores() int {
	return t.numCores
}

// VPNToPFN converts a virtual page number of coreID into a physical frame
// number.
func (t *Translator) VPNToPFN(vpn uint64, coreID int) uint64 {
	if coreID < 0 || coreID >= t.numCores {
		log.Panicf("core %d out of range, translator built for %d cores",
			coreID, t.numCores)
	}

	tail := vpn & tailMask
	head := vpn >> tailBits

	return tail + uint64(coreID)<<coreShift + head<<t.headShift
}

// TranslateLine converts a virtual line address of coreID into a physical
// line address.
func (t *Translator) TranslateLine(lineAddr uint64, coreID int) uint64 {
	vpn := lineAddr / PageSize
	offset := lineAddr % PageSize
	pfn := t.VPNToPFN(vpn, coreID)

	return pfn<<12 + offset
}
