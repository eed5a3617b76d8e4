package memsys

import (
	"fmt"
	"io"
)

// AccessType is the kind of a memory system access.
type AccessType int

// Access types.
const (
	AccessIFetch AccessType = iota
	AccessLoad
	AccessStore
)

// String returns the report name of the access type.
func (t AccessType) String() string {
	switch t {
	case AccessIFetch:
		return "IFETCH"
	case AccessLoad:
		return "LOAD"
	case AccessStore:
		return "STORE"
	default:
		return fmt.Sprintf("AccessType(%d)", int(t))
	}
}

// Stats holds per-access-type counts and cumulative delays.
type Stats struct {
	IFetchAccess uint64
	LoadAccess   uint64
	StoreAccess  uint64
	IFetchDelay  uint64
	LoadDelay    uint64
	StoreDelay   uint64
}

func (s *Stats) record(t AccessType, delay uint64) {
	switch t {
	case AccessIFetch:
		s.IFetchAccess++
		s.IFetchDelay += delay
	case AccessLoad:
		s.LoadAccess++
		s.LoadDelay += delay
	case AccessStore:
		s.StoreAccess++
		s.StoreDelay += delay
	}
}

func average(total, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

// AvgIFetchDelay returns the mean instruction fetch latency.
func (s Stats) AvgIFetchDelay() float64 {
	return average(s.IFetchDelay, s.IFetchAccess)
}

// AvgLoadDelay returns the mean load latency.
func (s Stats) AvgLoadDelay() float64 {
	return average(s.LoadDelay, s.LoadAccess)
}

// AvgStoreDelay returns the mean store latency.
func (s Stats) AvgStoreDelay() float64 {
	return average(s.StoreDelay, s.StoreAccess)
}

type statsPrinter interface {
	PrintStats(w io.Writer)
}

// PrintStats writes the memory system counters, followed by the statistics
// of every cache and of the backing store.
func (m *MemorySystem) PrintStats(w io.Writer) {
	const header = "MEMSYS"
	s := m.stats

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "\n%s_IFETCH_ACCESS  \t\t : %10d", header, s.IFetchAccess)
	_, _ = fmt.Fprintf(w, "\n%s_LOAD_ACCESS    \t\t : %10d", header, s.LoadAccess)
	_, _ = fmt.Fprintf(w, "\n%s_STORE_ACCESS   \t\t : %10d", header, s.StoreAccess)
	_, _ = fmt.Fprintf(w, "\n%s_IFETCH_AVGDELAY\t\t : %10.3f", header, s.AvgIFetchDelay())
	_, _ = fmt.Fprintf(w, "\n%s_LOAD_AVGDELAY  \t\t : %10.3f", header, s.AvgLoadDelay())
	_, _ = fmt.Fprintf(w, "\n%s_STORE_AVGDELAY \t\t : %10.3f", header, s.AvgStoreDelay())
	_, _ = fmt.Fprintln(w)

	for _, nc := range m.Caches() {
		nc.Cache.PrintStats(w, nc.Name)
	}

	if p, ok := m.backing.(statsPrinter); ok {
		p.PrintStats(w)
	}
}
