// Package dram provides the main memory at the bottom of the hierarchy.
//
// Memory is either a fixed-latency device or a banked DRAM with one row
// buffer per bank, operated with an open-page or close-page policy.
package dram

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/memsim/timing/latency"
)

// ErrInvalidConfig is returned for unusable DRAM configurations.
var ErrInvalidConfig = errors.New("invalid dram config")

// Model selects the timing model.
type Model int

// Timing models.
const (
	ModelFixed Model = iota
	ModelRowBuffer
)

// String returns the name of the model.
func (m Model) String() string {
	if m == ModelRowBuffer {
		return "rowbuffer"
	}
	return "fixed"
}

// MarshalText implements encoding.TextMarshaler.
func (m Model) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts "fixed" or "rowbuffer".
func (m *Model) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "fixed":
		*m = ModelFixed
	case "rowbuffer", "row_buffer":
		*m = ModelRowBuffer
	default:
		return fmt.Errorf("%w: unknown model %q", ErrInvalidConfig, text)
	}
	return nil
}

// PagePolicy decides whether rows stay open after an access.
type PagePolicy int

// Page policies.
const (
	PageOpen PagePolicy = iota
	PageClose
)

// String returns the name of the page policy.
func (p PagePolicy) String() string {
	if p == PageClose {
		return "close"
	}
	return "open"
}

// MarshalText implements encoding.TextMarshaler.
func (p PagePolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts "open" or "close".
func (p *PagePolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "open", "0":
		*p = PageOpen
	case "close", "closed", "1":
		*p = PageClose
	default:
		return fmt.Errorf("%w: unknown page policy %q", ErrInvalidConfig, text)
	}
	return nil
}

// Config holds DRAM organization parameters. Latencies come from the
// latency.TimingConfig passed to New.
type Config struct {
	Model         Model      `json:"model"`
	PagePolicy    PagePolicy `json:"page_policy"`
	LineSize      int        `json:"line_size"`
	RowBufferSize int        `json:"row_buffer_size"`
	NumBanks      int        `json:"num_banks"`
}

// DefaultConfig returns a 16-bank open-page DRAM with 1KB row buffers.
func DefaultConfig() Config {
	return Config{
		Model:         ModelRowBuffer,
		PagePolicy:    PageOpen,
		LineSize:      64,
		RowBufferSize: 1024,
		NumBanks:      16,
	}
}

// Validate checks that the configuration can be built.
func (c Config) Validate() error {
	if c.Model == ModelFixed {
		return nil
	}

	if c.LineSize <= 0 || c.RowBufferSize <= 0 || c.NumBanks <= 0 {
		return fmt.Errorf("%w: line size, row buffer size, and bank count must be > 0",
			ErrInvalidConfig)
	}

	if c.RowBufferSize%c.LineSize != 0 {
		return fmt.Errorf("%w: row buffer of %dB does not hold whole %dB lines",
			ErrInvalidConfig, c.RowBufferSize, c.LineSize)
	}

	return nil
}

// Statistics holds DRAM access statistics.
type Statistics struct {
	ReadAccess   uint64
	WriteAccess  uint64
	ReadDelay    uint64
	WriteDelay   uint64
	RowHits      uint64
	RowEmpty     uint64
	RowConflicts uint64
}

// AvgReadDelay returns the mean read latency.
func (s Statistics) AvgReadDelay() float64 {
	if s.ReadAccess == 0 {
		return 0
	}
	return float64(s.ReadDelay) / float64(s.ReadAccess)
}

// AvgWriteDelay returns the mean write latency.
func (s Statistics) AvgWriteDelay() float64 {
	if s.WriteAccess == 0 {
		return 0
	}
	return float64(s.WriteDelay) / float64(s.WriteAccess)
}

type bank struct {
	open bool
	row  uint64
}

// DRAM is the backing store of the memory system.
type DRAM struct {
	config      Config
	timing      *latency.TimingConfig
	linesPerRow uint64
	banks       []bank
	stats       Statistics
}

// New creates a DRAM. A nil timing uses latency.DefaultTimingConfig.
func New(config Config, timing *latency.TimingConfig) (*DRAM, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if timing == nil {
		timing = latency.DefaultTimingConfig()
	}

	d := &DRAM{
		config: config,
		timing: timing,
	}

	if config.Model == ModelRowBuffer {
		d.linesPerRow = uint64(config.RowBufferSize / config.LineSize)
		d.banks = make([]bank, config.NumBanks)
	}

	return d, nil
}

// Config returns the DRAM configuration.
func (d *DRAM) Config() Config {
	return d.config
}

// Stats returns DRAM statistics.
func (d *DRAM) Stats() Statistics {
	return d.stats
}

// Access performs one line-sized read, or a write when isWriteback is set,
// and returns its latency.
func (d *DRAM) Access(lineAddr uint64, isWriteback bool) uint64 {
	delay := d.timing.MemoryLatency
	if d.config.Model == ModelRowBuffer {
		delay = d.accessRowBuffer(lineAddr)
	}

	if isWriteback {
		d.stats.WriteAccess++
		d.stats.WriteDelay += delay
	} else {
		d.stats.ReadAccess++
		d.stats.ReadDelay += delay
	}

	return delay
}

func (d *DRAM) accessRowBuffer(lineAddr uint64) uint64 {
	t := d.timing
	rowID := lineAddr / d.linesPerRow
	b := &d.banks[rowID%uint64(len(d.banks))]
	row := rowID / uint64(len(d.banks))

	if d.config.PagePolicy == PageClose {
		d.stats.RowEmpty++
		return t.RowActivateLatency + t.ColumnAccessLatency + t.BusLatency
	}

	var delay uint64
	switch {
	case b.open && b.row == row:
		d.stats.RowHits++
		delay = t.ColumnAccessLatency + t.BusLatency
	case b.open:
		d.stats.RowConflicts++
		delay = t.PrechargeLatency + t.RowActivateLatency +
			t.ColumnAccessLatency + t.BusLatency
	default:
		d.stats.RowEmpty++
		delay = t.RowActivateLatency + t.ColumnAccessLatency + t.BusLatency
	}

	b.open = true
	b.row = row

	return delay
}

// Reset closes all rows and clears the statistics.
func (d *DRAM) Reset() {
	for i := range d.banks {
		d.banks[i] = bank{}
	}
	d.stats = Statistics{}
}

// PrintStats writes the DRAM statistics.
func (d *DRAM) PrintStats(w io.Writer) {
	const header = "DRAM"

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "\n%s_READ_ACCESS\t\t : %10d", header, d.stats.ReadAccess)
	_, _ = fmt.Fprintf(w, "\n%s_WRITE_ACCESS\t\t : %10d", header, d.stats.WriteAccess)
	_, _ = fmt.Fprintf(w, "\n%s_READ_DELAY_AVG\t\t : %10.3f", header, d.stats.AvgReadDelay())
	_, _ = fmt.Fprintf(w, "\n%s_WRITE_DELAY_AVG\t\t : %10.3f", header, d.stats.AvgWriteDelay())
	_, _ = fmt.Fprintln(w)
}
