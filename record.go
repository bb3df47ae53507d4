package stf

import (
	"fmt"
	"io"
)

// RecordContext carries the small amount of cross-record state a record's
// unpack/pack method needs but which isn't itself wire data: the vector
// length currently in effect (set by a VLEN_CONFIG header record) and the
// transaction protocol ID (set by a PROTOCOL_ID header record, needed to
// know which concrete ProtocolData to parse inside a TransactionRecord).
//
// This mirrors how perffile/records.go's Records.parseSample threads
// per-file state (r.f.idToAttr, the sample's own EventAttr.SampleFormat)
// through what would otherwise be a flat field-by-field unpack.
type RecordContext struct {
	Vlen       uint16
	ProtocolID ProtocolID
}

// Record is the common interface implemented by every concrete STF record
// type. A Record is never copied by value once constructed by the factory;
// it is always referenced through a Handle so the pool (C3) can reclaim it.
type Record interface {
	// Descriptor returns this record's dense internal descriptor.
	Descriptor() Descriptor

	// unpack reads this record's fields (everything after the 1-byte
	// descriptor tag) from r, using ctx for any cross-record state the
	// fields depend on.
	unpack(r *fieldReader, ctx *RecordContext)

	// pack writes this record's fields (not including the descriptor
	// tag, which the writer emits separately).
	pack(w *fieldWriter, ctx *RecordContext)

	// Format writes a human-readable rendering of the record, the Go
	// analogue of original_source's ostream ``format`` method.
	Format(w io.Writer)

	// Clone returns a deep copy of the record, independent of any pool
	// or reuse cache the original came from.
	Clone() Record

	// reset restores the record to its zero value so the pool can hand
	// it back out after a round through unpack(). Records with slice
	// fields must truncate them to length 0 rather than discard their
	// backing array, so the pool's reuse benefit (avoiding a fresh
	// allocation) isn't defeated by the very call meant to recycle it.
	reset()
}

// recordBase is embedded by every concrete record type and supplies the
// Descriptor() method, the one piece of the Record interface that every
// type implements identically.
type recordBase struct {
	desc Descriptor
}

func (b recordBase) Descriptor() Descriptor { return b.desc }

// AsRecord attempts to downcast r to type T, the safe-downcast primitive
// spec.md §4.2 requires of the record taxonomy's common base. It is a
// thin wrapper over a Go type assertion so call sites read the same way
// regardless of which concrete record type they're after.
func AsRecord[T Record](r Record) (T, bool) {
	t, ok := r.(T)
	return t, ok
}

func unexpectedDescriptor(d Descriptor) error {
	return formatErrorf("unexpected record %s outside header", d)
}

func fmtHex(w io.Writer, label string, v uint64) {
	fmt.Fprintf(w, "%-20s0x%x\n", label, v)
}

func fmtDec(w io.Writer, label string, v uint64) {
	fmt.Fprintf(w, "%-20s%d\n", label, v)
}

func fmtStr(w io.Writer, label string, v string) {
	fmt.Fprintf(w, "%-20s%s\n", label, v)
}
