package recording

import (
	"github.com/rs/xid"

	"github.com/sarchlab/memsim/timing/memsys"
)

// Table names used by RecordMemsys.
const (
	MemsysTable = "memsys"
	CacheTable  = "cache"
	DRAMTable   = "dram"
)

// MemsysRow is the per-run summary of the memory system.
type MemsysRow struct {
	RunID          string
	Mode           string
	NumCores       int
	IFetchAccess   uint64
	LoadAccess     uint64
	StoreAccess    uint64
	AvgIFetchDelay float64
	AvgLoadDelay   float64
	AvgStoreDelay  float64
}

// CacheRow holds the statistics of one cache.
type CacheRow struct {
	RunID         string
	Name          string
	ReadAccess    uint64
	WriteAccess   uint64
	ReadMiss      uint64
	WriteMiss     uint64
	DirtyEvicts   uint64
	Evicts        uint64
	ReadMissRate  float64
	WriteMissRate float64
}

// DRAMRow holds the statistics of the DRAM.
type DRAMRow struct {
	RunID         string
	ReadAccess    uint64
	WriteAccess   uint64
	RowHits       uint64
	RowEmpty      uint64
	RowConflicts  uint64
	AvgReadDelay  float64
	AvgWriteDelay float64
}

// NewRunID returns a fresh, sortable run identifier.
func NewRunID() string {
	return xid.New().String()
}

func ensureTable(r Recorder, name string, sample any) error {
	for _, t := range r.ListTables() {
		if t == name {
			return nil
		}
	}

	return r.CreateTable(name, sample)
}

// RecordMemsys buffers one row for the memory system, one per cache, and one
// for the DRAM if the system built one. Tables are created on first use.
func RecordMemsys(r Recorder, runID string, sys *memsys.MemorySystem) error {
	if err := ensureTable(r, MemsysTable, MemsysRow{}); err != nil {
		return err
	}

	if err := ensureTable(r, CacheTable, CacheRow{}); err != nil {
		return err
	}

	config := sys.Config()
	stats := sys.Stats()

	err := r.InsertData(MemsysTable, MemsysRow{
		RunID:          runID,
		Mode:           config.Mode.String(),
		NumCores:       config.NumCores,
		IFetchAccess:   stats.IFetchAccess,
		LoadAccess:     stats.LoadAccess,
		StoreAccess:    stats.StoreAccess,
		AvgIFetchDelay: stats.AvgIFetchDelay(),
		AvgLoadDelay:   stats.AvgLoadDelay(),
		AvgStoreDelay:  stats.AvgStoreDelay(),
	})
	if err != nil {
		return err
	}

	for _, nc := range sys.Caches() {
		s := nc.Cache.Stats()

		err := r.InsertData(CacheTable, CacheRow{
			RunID:         runID,
			Name:          nc.Name,
			ReadAccess:    s.ReadAccess,
			WriteAccess:   s.WriteAccess,
			ReadMiss:      s.ReadMiss,
			WriteMiss:     s.WriteMiss,
			DirtyEvicts:   s.DirtyEvicts,
			Evicts:        s.Evicts,
			ReadMissRate:  s.ReadMissRate(),
			WriteMissRate: s.WriteMissRate(),
		})
		if err != nil {
			return err
		}
	}

	d := sys.DRAM()
	if d == nil {
		return nil
	}

	if err := ensureTable(r, DRAMTable, DRAMRow{}); err != nil {
		return err
	}

	s := d.Stats()

	return r.InsertData(DRAMTable, DRAMRow{
		RunID:         runID,
		ReadAccess:    s.ReadAccess,
		WriteAccess:   s.WriteAccess,
		RowHits:       s.RowHits,
		RowEmpty:      s.RowEmpty,
		RowConflicts:  s.RowConflicts,
		AvgReadDelay:  s.AvgReadDelay(),
		AvgWriteDelay: s.AvgWriteDelay(),
	})
}
