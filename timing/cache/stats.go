package cache

import (
	"fmt"
	"io"
)

// Statistics holds cache performance statistics.
type Statistics struct {
	ReadAccess  uint64
	WriteAccess uint64
	ReadMiss    uint64
	WriteMiss   uint64
	DirtyEvicts uint64
	Evicts      uint64
}

// ReadMissRate returns read misses over read accesses, or 0 without reads.
func (s Statistics) ReadMissRate() float64 {
	if s.ReadAccess == 0 {
		return 0
	}

	return float64(s.ReadMiss) / float64(s.ReadAccess)
}

// WriteMissRate returns write misses over write accesses, or 0 without
// writes.
func (s Statistics) WriteMissRate() float64 {
	if s.WriteAccess == 0 {
		return 0
	}

	return float64(s.WriteMiss) / float64(s.WriteAccess)
}

// PrintStats writes the statistics with every counter prefixed by header.
func (c *Cache) PrintStats(w io.Writer, header string) {
	s := c.stats

	_, _ = fmt.Fprintf(w, "\n%s_READ_ACCESS    \t\t : %10d", header, s.ReadAccess)
	_, _ = fmt.Fprintf(w, "\n%s_WRITE_ACCESS   \t\t : %10d", header, s.WriteAccess)
	_, _ = fmt.Fprintf(w, "\n%s_READ_MISS      \t\t : %10d", header, s.ReadMiss)
	_, _ = fmt.Fprintf(w, "\n%s_WRITE_MISS     \t\t : %10d", header, s.WriteMiss)
	_, _ = fmt.Fprintf(w, "\n%s_READ_MISSPERC  \t\t : %10.3f", header, 100*s.ReadMissRate())
	_, _ = fmt.Fprintf(w, "\n%s_WRITE_MISSPERC \t\t : %10.3f", header, 100*s.WriteMissRate())
	_, _ = fmt.Fprintf(w, "\n%s_DIRTY_EVICTS   \t\t : %10d", header, s.DirtyEvicts)
	_, _ = fmt.Fprintln(w)
}
