package stf

import "io"

// WriterOptions configures a Writer at construction time.
type WriterOptions struct {
	// ChunkMarkers is the nominal number of marker records per
	// compressed chunk (spec.md §4.5); defaultChunkMarkers if zero.
	ChunkMarkers uint32

	// Compress enables zstd chunk compression. Traces are rarely worth
	// writing uncompressed, but the option exists for tests that want to
	// inspect raw chunk bytes.
	Compress bool

	Version        VersionRecord
	ISA            string
	IEM            IEM
	Vlen           uint16
	ProtocolID     ProtocolID
}

// Writer is the mirror of BaseReader: it builds the header phase, then
// accepts body records one at a time, framing and compressing them into
// chunks behind the scenes (spec.md §6 writer surface).
type Writer struct {
	cw     *chunkWriter
	opt    WriterOptions
	ctx    RecordContext
	clocks *ClockRegistry

	headerFlushed bool
	comments      []string
	traceInfos    []TraceInfoRecord
	extraClocks   []ClockIDRecord
	forcePC       *uint64
}

// NewWriter prepares a Writer over w. Callers configure the header via
// AddComment/AddTraceInfo/AddClock/SetForcePC, then call FlushHeader
// before writing any body record.
func NewWriter(w io.WriteSeeker, opt WriterOptions) (*Writer, error) {
	chunkMarkers := opt.ChunkMarkers
	if chunkMarkers == 0 {
		chunkMarkers = defaultChunkMarkers
	}
	cw, err := newChunkWriter(w, chunkMarkers, opt.Compress)
	if err != nil {
		return nil, err
	}
	return &Writer{
		cw:     cw,
		opt:    opt,
		clocks: NewClockRegistry(),
		ctx:    RecordContext{Vlen: opt.Vlen, ProtocolID: opt.ProtocolID},
	}, nil
}

// AddComment queues a COMMENT header record.
func (w *Writer) AddComment(text string) { w.comments = append(w.comments, text) }

// AddTraceInfo queues a TRACE_INFO header record.
func (w *Writer) AddTraceInfo(t TraceInfoRecord) { w.traceInfos = append(w.traceInfos, t) }

// AddClock registers a named clock domain, both in the writer's own
// registry (which rejects re-registering an id under a different name)
// and as a queued CLOCK_ID header record. WriteRecord does not check the
// clock ids of the records it writes.
func (w *Writer) AddClock(id uint32, name string) error {
	if err := w.clocks.Register(id, name); err != nil {
		return err
	}
	w.extraClocks = append(w.extraClocks, ClockIDRecord{recordBase: recordBase{DescClockID}, ID: id, Name: name})
	return nil
}

// SetForcePC queues a FORCE_PC header record, setting the PC of the
// first instruction in the body.
func (w *Writer) SetForcePC(pc uint64) { w.forcePC = &pc }

func (w *Writer) packAndAppend(rec Record) error {
	fw := &fieldWriter{}
	fw.u8(uint8(rec.Descriptor().encoded()))
	rec.pack(fw, &w.ctx)
	return w.cw.Append(fw.bytes(), rec.Descriptor().isMarker())
}

// FlushHeader emits IDENTIFIER, VERSION, ISA, INST_IEM, VLEN_CONFIG,
// PROTOCOL_ID, every queued TRACE_INFO/COMMENT/CLOCK_ID, an optional
// FORCE_PC, and finally END_HEADER (spec.md §4.6 step 1-3's ordering).
// WriteRecord refuses to accept body records until this has been called.
func (w *Writer) FlushHeader() error {
	if w.headerFlushed {
		return semanticErrorf("header already flushed")
	}

	ident := &IdentifierRecord{recordBase: recordBase{DescIdentifier}, Magic: [4]byte{'S', 'T', 'F', 0}}
	if err := w.packAndAppend(ident); err != nil {
		return err
	}
	if err := w.packAndAppend(&VersionRecord{recordBase: recordBase{DescVersion}, Major: w.opt.Version.Major, Minor: w.opt.Version.Minor}); err != nil {
		return err
	}
	if w.opt.ISA != "" {
		if err := w.packAndAppend(&ISARecord{recordBase: recordBase{DescISA}, Name: w.opt.ISA}); err != nil {
			return err
		}
	}
	if w.opt.IEM != IEMInvalid {
		if err := w.packAndAppend(&InstIEMRecord{recordBase: recordBase{DescInstIEM}, IEM: w.opt.IEM}); err != nil {
			return err
		}
	}
	if w.opt.Vlen != 0 {
		if err := w.packAndAppend(&VlenConfigRecord{recordBase: recordBase{DescVlenConfig}, Vlen: w.opt.Vlen}); err != nil {
			return err
		}
	}
	if w.opt.ProtocolID != ProtocolNone {
		if err := w.packAndAppend(&ProtocolIDRecord{recordBase: recordBase{DescProtocolID}, ID: w.opt.ProtocolID}); err != nil {
			return err
		}
	}
	for _, t := range w.traceInfos {
		rec := t
		rec.recordBase = recordBase{DescTraceInfo}
		if err := w.packAndAppend(&rec); err != nil {
			return err
		}
	}
	for _, c := range w.comments {
		if err := w.packAndAppend(&CommentRecord{recordBase: recordBase{DescComment}, Text: c}); err != nil {
			return err
		}
	}
	for _, c := range w.extraClocks {
		rec := c
		if err := w.packAndAppend(&rec); err != nil {
			return err
		}
	}
	if w.forcePC != nil {
		if err := w.packAndAppend(&ForcePCRecord{recordBase: recordBase{DescForcePC}, PC: *w.forcePC}); err != nil {
			return err
		}
	}
	if err := w.packAndAppend(&EndHeaderRecord{recordBase: recordBase{DescEndHeader}}); err != nil {
		return err
	}

	w.headerFlushed = true
	return nil
}

// WriteRecord packs and appends one body record. It is the writer
// counterpart of BaseReader.Next: the caller is responsible for ordering
// records the same way a reader expects to find them (e.g. an opcode
// record closing out whatever INST_REG/INST_MEM_ACCESS records preceded
// it).
func (w *Writer) WriteRecord(rec Record) error {
	if !w.headerFlushed {
		return semanticErrorf("FlushHeader must be called before writing body records")
	}
	return w.packAndAppend(rec)
}

// Close flushes any partial chunk and writes the container footer/index.
func (w *Writer) Close() error {
	return w.cw.Close()
}
