package memsys

// BackingStore is the memory below the last cache level.
type BackingStore interface {
	// Access reads one line, or writes it back when isWriteback is set, and
	// returns the latency of the access.
	Access(lineAddr uint64, isWriteback bool) uint64
}
