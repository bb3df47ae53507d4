package stf

import (
	"fmt"
	"io"
)

// IdentifierRecord is the trace's magic marker, the first record in any
// well-formed stream (spec.md §4.6 step 1). Magic is always the 4 ASCII
// bytes "STF\0" on the wire; unpack/pack carry it through unchanged so a
// byte-identical round-trip is possible even if a future magic value is
// introduced.
type IdentifierRecord struct {
	recordBase
	Magic [4]byte
}

func newIdentifierRecord() Record { return &IdentifierRecord{recordBase: recordBase{DescIdentifier}} }

func (r *IdentifierRecord) unpack(fr *fieldReader, _ *RecordContext) {
	copy(r.Magic[:], fr.bytes(4))
}

func (r *IdentifierRecord) pack(w *fieldWriter, _ *RecordContext) { w.raw(r.Magic[:]) }

func (r *IdentifierRecord) Format(w io.Writer) { fmtStr(w, "MAGIC", string(r.Magic[:])) }

func (r *IdentifierRecord) Clone() Record { c := *r; return &c }

func (r *IdentifierRecord) reset() { r.Magic = [4]byte{} }

// VersionRecord records the major/minor version of the trace format a
// writer used. The base reader accepts it in the header and does not act
// on its value (spec.md §4.6 step 2).
type VersionRecord struct {
	recordBase
	Major uint32
	Minor uint32
}

func newVersionRecord() Record { return &VersionRecord{recordBase: recordBase{DescVersion}} }

func (r *VersionRecord) unpack(fr *fieldReader, _ *RecordContext) {
	r.Major = fr.u32()
	r.Minor = fr.u32()
}

func (r *VersionRecord) pack(w *fieldWriter, _ *RecordContext) {
	w.u32(r.Major)
	w.u32(r.Minor)
}

func (r *VersionRecord) Format(w io.Writer) {
	fmtStr(w, "VERSION", fmt.Sprintf("%d.%d", r.Major, r.Minor))
}

func (r *VersionRecord) Clone() Record { c := *r; return &c }

func (r *VersionRecord) reset() { *r = VersionRecord{recordBase: r.recordBase} }

// CommentRecord is a free-form, order-preserved annotation a writer may
// interleave anywhere in the header. The base reader's header parse
// consumes and discards them, so Next never returns a header comment.
type CommentRecord struct {
	recordBase
	Text string
}

func newCommentRecord() Record { return &CommentRecord{recordBase: recordBase{DescComment}} }

func (r *CommentRecord) unpack(fr *fieldReader, _ *RecordContext) { r.Text = fr.string32() }
func (r *CommentRecord) pack(w *fieldWriter, _ *RecordContext)    { w.string32(r.Text) }
func (r *CommentRecord) Format(w io.Writer)                       { fmtStr(w, "COMMENT", r.Text) }
func (r *CommentRecord) Clone() Record                            { c := *r; return &c }
func (r *CommentRecord) reset()                                   { r.Text = "" }

// ISARecord names the instruction set architecture family the trace was
// captured from (e.g. "rv64gc"); the reader treats it as opaque metadata.
type ISARecord struct {
	recordBase
	Name string
}

func newISARecord() Record { return &ISARecord{recordBase: recordBase{DescISA}} }

func (r *ISARecord) unpack(fr *fieldReader, _ *RecordContext) { r.Name = fr.string32() }
func (r *ISARecord) pack(w *fieldWriter, _ *RecordContext)    { w.string32(r.Name) }
func (r *ISARecord) Format(w io.Writer)                       { fmtStr(w, "ISA", r.Name) }
func (r *ISARecord) Clone() Record                             { c := *r; return &c }
func (r *ISARecord) reset()                                    { r.Name = "" }

// InstIEMRecord records which instruction encoding mode (spec.md GLOSSARY
// "IEM") the instruction stream uses. A header without one leaves the
// base reader's IEM() at IEMInvalid; the reader does not reject that.
type InstIEMRecord struct {
	recordBase
	IEM IEM
}

func newInstIEMRecord() Record { return &InstIEMRecord{recordBase: recordBase{DescInstIEM}} }

func (r *InstIEMRecord) unpack(fr *fieldReader, _ *RecordContext) { r.IEM = IEM(fr.u8()) }
func (r *InstIEMRecord) pack(w *fieldWriter, _ *RecordContext)    { w.u8(uint8(r.IEM)) }
func (r *InstIEMRecord) Format(w io.Writer)                       { fmtStr(w, "IEM", r.IEM.String()) }
func (r *InstIEMRecord) Clone() Record                             { c := *r; return &c }
func (r *InstIEMRecord) reset()                                    { r.IEM = IEMInvalid }

// TraceInfoRecord identifies the tool (and version) that produced the
// trace. A header may carry more than one when a trace was post-processed
// by tools layered on top of the original generator.
type TraceInfoRecord struct {
	recordBase
	Generator  uint32
	Major      uint32
	Minor      uint32
	Minor2     uint32
	Comment    string
}

func newTraceInfoRecord() Record { return &TraceInfoRecord{recordBase: recordBase{DescTraceInfo}} }

func (r *TraceInfoRecord) unpack(fr *fieldReader, _ *RecordContext) {
	r.Generator = fr.u32()
	r.Major = fr.u32()
	r.Minor = fr.u32()
	r.Minor2 = fr.u32()
	r.Comment = fr.string32()
}

func (r *TraceInfoRecord) pack(w *fieldWriter, _ *RecordContext) {
	w.u32(r.Generator)
	w.u32(r.Major)
	w.u32(r.Minor)
	w.u32(r.Minor2)
	w.string32(r.Comment)
}

func (r *TraceInfoRecord) Format(w io.Writer) {
	fmt.Fprintf(w, "%-20sgenerator=%d version=%d.%d.%d %q\n",
		"TRACE_INFO", r.Generator, r.Major, r.Minor, r.Minor2, r.Comment)
}

func (r *TraceInfoRecord) Clone() Record { c := *r; return &c }
func (r *TraceInfoRecord) reset()        { *r = TraceInfoRecord{recordBase: r.recordBase} }

// TraceInfoFeatureRecord carries the trace-feature bitset (spec.md §3
// "trace-feature bitset") that gates whether a reader should expect
// PAGE_TABLE_WALK records, vector register widths, and similar
// conditionally-present content.
type TraceInfoFeatureRecord struct {
	recordBase
	Features TraceFeatures
}

func newTraceInfoFeatureRecord() Record {
	return &TraceInfoFeatureRecord{recordBase: recordBase{DescTraceInfoFeature}}
}

func (r *TraceInfoFeatureRecord) unpack(fr *fieldReader, _ *RecordContext) {
	r.Features = TraceFeatures(fr.u64())
}
func (r *TraceInfoFeatureRecord) pack(w *fieldWriter, _ *RecordContext) {
	w.u64(uint64(r.Features))
}
func (r *TraceInfoFeatureRecord) Format(w io.Writer) {
	fmtHex(w, "TRACE_FEATURES", uint64(r.Features))
}
func (r *TraceInfoFeatureRecord) Clone() Record { c := *r; return &c }
func (r *TraceInfoFeatureRecord) reset()         { r.Features = 0 }

// ProcessIDExtRecord carries a (pid, tgid, asid) triple, used by
// multi-process traces to tell concurrently-interleaved streams apart. The
// readers in this package parse it but do not attach it to instructions.
type ProcessIDExtRecord struct {
	recordBase
	PID  uint32
	TGID uint32
	ASID uint32
}

func newProcessIDExtRecord() Record {
	return &ProcessIDExtRecord{recordBase: recordBase{DescProcessIDExt}}
}

func (r *ProcessIDExtRecord) unpack(fr *fieldReader, _ *RecordContext) {
	r.PID = fr.u32()
	r.TGID = fr.u32()
	r.ASID = fr.u32()
}
func (r *ProcessIDExtRecord) pack(w *fieldWriter, _ *RecordContext) {
	w.u32(r.PID)
	w.u32(r.TGID)
	w.u32(r.ASID)
}
func (r *ProcessIDExtRecord) Format(w io.Writer) {
	fmt.Fprintf(w, "%-20spid=%d tgid=%d asid=%d\n", "PROCESS_ID_EXT", r.PID, r.TGID, r.ASID)
}
func (r *ProcessIDExtRecord) Clone() Record { c := *r; return &c }
func (r *ProcessIDExtRecord) reset()        { *r = ProcessIDExtRecord{recordBase: r.recordBase} }

// ForcePCRecord overrides the base reader's opcode-driven PC advance for
// the instruction that immediately follows it (spec.md §4.6's PC-tracking
// rules); used at trace start and after any discontinuity the writer
// didn't capture as a branch.
type ForcePCRecord struct {
	recordBase
	PC uint64
}

func newForcePCRecord() Record { return &ForcePCRecord{recordBase: recordBase{DescForcePC}} }

func (r *ForcePCRecord) unpack(fr *fieldReader, _ *RecordContext) { r.PC = fr.u64() }
func (r *ForcePCRecord) pack(w *fieldWriter, _ *RecordContext)    { w.u64(r.PC) }
func (r *ForcePCRecord) Format(w io.Writer)                       { fmtHex(w, "FORCE_PC", r.PC) }
func (r *ForcePCRecord) Clone() Record                             { c := *r; return &c }
func (r *ForcePCRecord) reset()                                    { r.PC = 0 }

// VlenConfigRecord sets the vector register length (in bits) in effect
// from this point in the stream onward, consumed by readers that need to
// size vector-tagged INST_REG payloads.
type VlenConfigRecord struct {
	recordBase
	Vlen uint16
}

func newVlenConfigRecord() Record { return &VlenConfigRecord{recordBase: recordBase{DescVlenConfig}} }

func (r *VlenConfigRecord) unpack(fr *fieldReader, _ *RecordContext) { r.Vlen = fr.u16() }
func (r *VlenConfigRecord) pack(w *fieldWriter, _ *RecordContext)    { w.u16(r.Vlen) }
func (r *VlenConfigRecord) Format(w io.Writer)                       { fmtDec(w, "VLEN", uint64(r.Vlen)) }
func (r *VlenConfigRecord) Clone() Record                             { c := *r; return &c }
func (r *VlenConfigRecord) reset()                                    { r.Vlen = 0 }

// ProtocolIDRecord names which ProtocolData variant TRANSACTION records in
// this trace carry (spec.md §3 "ProtocolData"), e.g. TileLink.
type ProtocolIDRecord struct {
	recordBase
	ID ProtocolID
}

func newProtocolIDRecord() Record { return &ProtocolIDRecord{recordBase: recordBase{DescProtocolID}} }

func (r *ProtocolIDRecord) unpack(fr *fieldReader, _ *RecordContext) { r.ID = ProtocolID(fr.u8()) }
func (r *ProtocolIDRecord) pack(w *fieldWriter, _ *RecordContext)    { w.u8(uint8(r.ID)) }
func (r *ProtocolIDRecord) Format(w io.Writer)                       { fmtStr(w, "PROTOCOL_ID", r.ID.String()) }
func (r *ProtocolIDRecord) Clone() Record                             { c := *r; return &c }
func (r *ProtocolIDRecord) reset()                                    { r.ID = ProtocolNone }

// ClockIDRecord registers a named clock domain (spec.md §3 "clock
// registry"); id 0 is reserved and always named "INVALID" regardless of
// what a writer puts on the wire for it.
type ClockIDRecord struct {
	recordBase
	ID   uint32
	Name string
}

func newClockIDRecord() Record { return &ClockIDRecord{recordBase: recordBase{DescClockID}} }

func (r *ClockIDRecord) unpack(fr *fieldReader, ctx *RecordContext) {
	r.ID = fr.u32()
	r.Name = fr.string32()
}
func (r *ClockIDRecord) pack(w *fieldWriter, _ *RecordContext) {
	w.u32(r.ID)
	w.string32(r.Name)
}
func (r *ClockIDRecord) Format(w io.Writer) {
	fmt.Fprintf(w, "%-20sid=%d name=%q\n", "CLOCK_ID", r.ID, r.Name)
}
func (r *ClockIDRecord) Clone() Record { c := *r; return &c }
func (r *ClockIDRecord) reset()        { *r = ClockIDRecord{recordBase: r.recordBase} }

// EndHeaderRecord is the sentinel that closes the header phase (spec.md
// §4.6 step 3); it carries no payload. After reading one, the base reader
// switches to body parsing and begins PC tracking.
type EndHeaderRecord struct {
	recordBase
}

func newEndHeaderRecord() Record { return &EndHeaderRecord{recordBase: recordBase{DescEndHeader}} }

func (r *EndHeaderRecord) unpack(_ *fieldReader, _ *RecordContext) {}
func (r *EndHeaderRecord) pack(_ *fieldWriter, _ *RecordContext)   {}
func (r *EndHeaderRecord) Format(w io.Writer)                      { fmtStr(w, "END_HEADER", "") }
func (r *EndHeaderRecord) Clone() Record                            { c := *r; return &c }
func (r *EndHeaderRecord) reset()                                   {}
