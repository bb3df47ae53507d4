package stf

// ClockRegistry tracks the named clock domains a trace declares via
// CLOCK_ID header records (spec.md §3 "clock registry"). ID 0 is reserved
// and always resolves to "INVALID" regardless of what (if anything) a
// writer puts on the wire for it.
type ClockRegistry struct {
	names map[uint32]string
}

// NewClockRegistry returns a registry pre-seeded with the reserved
// invalid-clock entry.
func NewClockRegistry() *ClockRegistry {
	return &ClockRegistry{names: map[uint32]string{0: "INVALID"}}
}

// Register records a clock's name, either from a CLOCK_ID header record
// read off a trace or from a writer preparing to emit one. Re-registering
// the same id with the same name is a no-op; re-registering it with a
// different name is a semantic error, since every consumer of the trace
// needs one unambiguous name per id.
func (c *ClockRegistry) Register(id uint32, name string) error {
	if id == 0 {
		return semanticErrorf("clock id 0 is reserved for INVALID")
	}
	if existing, ok := c.names[id]; ok {
		if existing != name {
			return semanticErrorf("clock id %d already registered as %q, cannot re-register as %q", id, existing, name)
		}
		return nil
	}
	c.names[id] = name
	return nil
}

// Name returns the registered name for id, or false if nothing was ever
// registered under it.
func (c *ClockRegistry) Name(id uint32) (string, bool) {
	n, ok := c.names[id]
	return n, ok
}
