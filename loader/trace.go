// Package loader reads and writes the instruction traces that drive the
// simulated cores.
//
// A trace is a text file with one instruction per line:
//
//	<pc> <op> [<addr>]
//
// pc and addr are hexadecimal, with or without a 0x prefix. op is A for an
// instruction without a data access, L for a load and S for a store; loads
// and stores carry the data address. Blank lines and text after # are
// ignored. Gzip-compressed traces are detected and decompressed.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrMalformedTrace is returned for trace lines that cannot be parsed.
var ErrMalformedTrace = errors.New("malformed trace")

// Op is the kind of an instruction in the trace.
type Op byte

// Trace operations.
const (
	OpALU   Op = 'A'
	OpLoad  Op = 'L'
	OpStore Op = 'S'
)

// String returns the trace letter of the operation.
func (o Op) String() string {
	return string(rune(o))
}

// HasData reports whether the operation accesses data memory.
func (o Op) HasData() bool {
	return o == OpLoad || o == OpStore
}

// Record is one traced instruction.
type Record struct {
	PC   uint64
	Op   Op
	Addr uint64
}

// Source supplies records in program order. Next returns io.EOF after the
// last record.
type Source interface {
	Next() (Record, error)
}

// Trace is a fully loaded trace.
type Trace struct {
	Name    string
	Records []Record
}

// Source returns a Source over the records of the trace.
func (t *Trace) Source() *SliceSource {
	return NewSliceSource(t.Records)
}

// Counts returns the number of ALU, load, and store records.
func (t *Trace) Counts() (alu, loads, stores int) {
	for _, r := range t.Records {
		switch r.Op {
		case OpLoad:
			loads++
		case OpStore:
			stores++
		default:
			alu++
		}
	}

	return alu, loads, stores
}

// Reader parses records from a text trace.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader over r. Gzip input is decompressed.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	var in io.Reader = br
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed trace: %w", err)
		}
		in = zr
	}

	return &Reader{scanner: bufio.NewScanner(in)}, nil
}

// Next returns the next record, or io.EOF at the end of the trace.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++

		text := r.scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}

		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		record, err := parseRecord(fields)
		if err != nil {
			return Record{}, fmt.Errorf("%w: line %d: %w", ErrMalformedTrace, r.line, err)
		}

		return record, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("failed to read trace: %w", err)
	}

	return Record{}, io.EOF
}

func parseRecord(fields []string) (Record, error) {
	if len(fields) < 2 || len(fields) > 3 {
		return Record{}, fmt.Errorf("expected 2 or 3 fields, got %d", len(fields))
	}

	pc, err := parseHex(fields[0])
	if err != nil {
		return Record{}, fmt.Errorf("pc: %w", err)
	}

	if len(fields[1]) != 1 {
		return Record{}, fmt.Errorf("unknown op %q", fields[1])
	}

	record := Record{PC: pc, Op: Op(strings.ToUpper(fields[1])[0])}

	switch record.Op {
	case OpALU:
		if len(fields) != 2 {
			return Record{}, fmt.Errorf("op A takes no address")
		}
	case OpLoad, OpStore:
		if len(fields) != 3 {
			return Record{}, fmt.Errorf("op %s needs an address", record.Op)
		}

		record.Addr, err = parseHex(fields[2])
		if err != nil {
			return Record{}, fmt.Errorf("addr: %w", err)
		}
	default:
		return Record{}, fmt.Errorf("unknown op %q", fields[1])
	}

	return record, nil
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}

// ReadAll reads every record from r.
func ReadAll(r io.Reader) ([]Record, error) {
	reader, err := NewReader(r)
	if err != nil {
		return nil, err
	}

	var records []Record
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}
}

// Load reads a trace file.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Trace{Name: path, Records: records}, nil
}

// Write writes records in the text trace format.
func Write(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)

	for _, r := range records {
		var err error
		if r.Op.HasData() {
			_, err = fmt.Fprintf(bw, "%x %s %x\n", r.PC, r.Op, r.Addr)
		} else {
			_, err = fmt.Fprintf(bw, "%x %s\n", r.PC, r.Op)
		}

		if err != nil {
			return fmt.Errorf("failed to write trace: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}

	return nil
}

// Save writes records to a trace file, compressing it when the path ends in
// .gz.
func Save(path string, records []Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close trace file: %w", cerr)
		}
	}()

	if !strings.HasSuffix(path, ".gz") {
		return Write(f, records)
	}

	zw := gzip.NewWriter(f)
	if err := Write(zw, records); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to compress trace: %w", err)
	}

	return nil
}

// SliceSource is a Source over an in-memory slice of records.
type SliceSource struct {
	records []Record
	next    int
}

// NewSliceSource creates a Source that yields records in order.
func NewSliceSource(records []Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next returns the next record, or io.EOF when all have been returned.
func (s *SliceSource) Next() (Record, error) {
	if s.next >= len(s.records) {
		return Record{}, io.EOF
	}

	r := s.records[s.next]
	s.next++

	return r, nil
}

// Remaining returns the number of records not yet returned.
func (s *SliceSource) Remaining() int {
	return len(s.records) - s.next
}
