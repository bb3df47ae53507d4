package stf

// Item is the common interface BufferedReader's sliding window operates
// on: anything with a stable 1-based sequence index and a flag for
// whether it fell inside a skipped region of the trace (spec.md §4.8's
// user-mode skipping).
type Item interface {
	Index() uint64
	Skipped() bool
}

// itemBase is embedded by Instruction and Transaction to supply the
// common Item bookkeeping.
type itemBase struct {
	index   uint64
	skipped bool
}

func (b itemBase) Index() uint64 { return b.index }
func (b itemBase) Skipped() bool { return b.skipped }
