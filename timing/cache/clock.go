package cache

// Clock provides the timestamps recorded on cache lines for LRU replacement.
type Clock interface {
	Now() uint64
}

// Counter is a monotonic Clock that only moves when told to.
type Counter struct {
	now uint64
}

// Now returns the current timestamp.
func (c *Counter) Now() uint64 {
	return c.now
}

// Tick advances the counter by one.
func (c *Counter) Tick() {
	c.now++
}

// Advance moves the counter forward by n.
func (c *Counter) Advance(n uint64) {
	c.now += n
}
