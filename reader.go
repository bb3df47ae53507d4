package stf

import (
	"io"
)

// chunkSource is the common surface both the synchronous chunkReader and
// the background-goroutine backgroundChunkReader present to the base
// reader, so BaseReader doesn't need to know which decompression mode
// it's running in (spec.md §4.5 / §5).
type chunkSource interface {
	nextChunk() ([]byte, uint64, error)
}

func (c *chunkReader) nextChunk() ([]byte, uint64, error) { return c.next() }
func (b *backgroundChunkReader) nextChunk() ([]byte, uint64, error) { return b.Next() }

// ReaderOptions configures a BaseReader at Open time.
type ReaderOptions struct {
	// MultiThreadedDecompression runs chunk decompression on a background
	// goroutine ahead of consumption (spec.md §4.5, §5's concurrency
	// model), trading memory for throughput. When false, chunks are
	// decompressed synchronously as they're consumed.
	MultiThreadedDecompression bool

	// PrefetchDepth bounds how many decompressed chunks the background
	// goroutine may hold ready ahead of the consumer. Ignored when
	// MultiThreadedDecompression is false.
	PrefetchDepth int

	// Descriptors, when non-empty, restricts the records Next returns to
	// this set; every other descriptor is still parsed (to keep PC and
	// marker tracking correct) but not handed back to the caller.
	Descriptors []Descriptor
}

// BaseReader is the high-throughput record-at-a-time reader every other
// reader in this package (buffered item reader, instruction reader,
// transaction reader) is built on top of (spec.md §4.6, component C6). It
// owns header parsing, PC tracking, and marker counting; callers that
// only need raw records can use it directly.
type BaseReader struct {
	cr  *chunkReader
	bg  *backgroundChunkReader
	opt ReaderOptions

	cur       *fieldReader
	curMarker uint64 // starting marker count of the chunk `cur` was built from
	markerCount uint64

	ctx    RecordContext
	iem    IEM
	clocks *ClockRegistry

	pc         uint64
	pcKnown    bool
	lastInstPC uint64

	pendingTarget    uint64 // INST_PC_TARGET awaiting the opcode it belongs to
	hasPendingTarget bool

	filter [numDescriptors]bool

	headerDone bool
	eof        bool
}

// Open reads a container's fixed header and trace header (the records up
// to and including END_HEADER) and returns a BaseReader positioned at the
// first body record.
func Open(r io.ReadSeeker, opt ReaderOptions) (*BaseReader, error) {
	cr, err := newChunkReader(r, true)
	if err != nil {
		return nil, err
	}

	br := &BaseReader{cr: cr, opt: opt, clocks: NewClockRegistry()}
	if opt.MultiThreadedDecompression {
		depth := opt.PrefetchDepth
		if depth <= 0 {
			depth = 4
		}
		br.bg = newBackgroundChunkReader(cr, depth)
	}
	for _, d := range opt.Descriptors {
		br.filter[d] = true
	}

	if err := br.parseHeader(); err != nil {
		return nil, err
	}
	return br, nil
}

func (br *BaseReader) nextChunk() ([]byte, uint64, error) {
	if br.bg != nil {
		return br.bg.nextChunk()
	}
	return br.cr.nextChunk()
}

// fillBuffer loads the next chunk when the current one is exhausted.
// Returns io.EOF when the container has no more chunks.
func (br *BaseReader) fillBuffer() error {
	for br.cur == nil || len(br.cur.buf) == 0 {
		data, startMarker, err := br.nextChunk()
		if err != nil {
			return err
		}
		br.cur = newFieldReader(data)
		br.curMarker = startMarker
		br.markerCount = startMarker
	}
	return nil
}

// readRaw reads one record's descriptor tag and dispatches to its
// unpack, honoring neither the filter nor PC/marker tracking: callers
// that need those do them on top of readRaw.
func (br *BaseReader) readRaw() (Record, error) {
	if br.eof {
		return nil, io.EOF
	}
	if err := br.fillBuffer(); err != nil {
		if err == io.EOF {
			br.eof = true
		}
		return nil, err
	}

	enc := EncodedDescriptor(br.cur.u8())
	if err := br.cur.err_(); err != nil {
		return nil, err
	}
	d, ok := toInternal(enc)
	if !ok {
		return nil, formatErrorf("unknown descriptor 0x%x", uint8(enc))
	}
	rec, err := constructRecord(d)
	if err != nil {
		return nil, err
	}
	rec.unpack(br.cur, &br.ctx)
	if err := br.cur.err_(); err != nil {
		return nil, err
	}
	return rec, nil
}

// parseHeader consumes IDENTIFIER through END_HEADER, applying each
// header record's effect to reader state (spec.md §4.6 step 1-3).
func (br *BaseReader) parseHeader() error {
	rec, err := br.readRaw()
	if err != nil {
		return err
	}
	ident, ok := AsRecord[*IdentifierRecord](rec)
	if !ok {
		return formatErrorf("trace does not begin with IDENTIFIER, got %s", rec.Descriptor())
	}
	if string(ident.Magic[:]) != "STF\x00" {
		return formatErrorf("bad trace magic %q", ident.Magic[:])
	}

	for {
		rec, err := br.readRaw()
		if err != nil {
			if err == io.EOF {
				return formatErrorf("missing END_HEADER")
			}
			return err
		}
		switch r := rec.(type) {
		case *EndHeaderRecord:
			br.headerDone = true
			return nil
		case *InstIEMRecord:
			br.iem = r.IEM
		case *VlenConfigRecord:
			br.ctx.Vlen = r.Vlen
		case *ProtocolIDRecord:
			br.ctx.ProtocolID = r.ID
		case *ClockIDRecord:
			if err := br.clocks.Register(r.ID, r.Name); err != nil {
				return err
			}
		case *ForcePCRecord:
			br.applyPC(r)
		case *VersionRecord, *CommentRecord, *ISARecord, *TraceInfoRecord,
			*TraceInfoFeatureRecord, *ProcessIDExtRecord:
			// Recognized header metadata with no bearing on reader state.
		default:
			return unexpectedDescriptor(rec.Descriptor())
		}
	}
}

// applyPC updates PC tracking state for one body record, per spec.md
// §4.6's PC-tracking rules: FORCE_PC sets the PC that takes effect for the
// instruction the next opcode record closes out; an opcode record reports
// the instruction at the current PC, then advances PC by its own default
// width, or, when an INST_PC_TARGET record preceded it, moves PC to that
// target instead, so the target applies to the instruction that follows.
func (br *BaseReader) applyPC(rec Record) {
	switch r := rec.(type) {
	case *ForcePCRecord:
		br.pc = r.PC
		br.pcKnown = true
	case *InstPCTargetRecord:
		br.pendingTarget = r.PC
		br.hasPendingTarget = true
	case *InstOpcode16Record:
		br.lastInstPC = br.pc
		br.pc += r.PCAdvance()
		if br.hasPendingTarget {
			br.pc, br.pcKnown, br.hasPendingTarget = br.pendingTarget, true, false
		}
	case *InstOpcode32Record:
		br.lastInstPC = br.pc
		br.pc += r.PCAdvance()
		if br.hasPendingTarget {
			br.pc, br.pcKnown, br.hasPendingTarget = br.pendingTarget, true, false
		}
	}
}

// Next returns the next record not excluded by the reader's descriptor
// filter, updating PC and marker tracking for every record seen
// (including filtered-out ones, so tracking state stays correct
// regardless of what the caller asked to see). The returned Handle owns
// the record: callers must call Release on it once they're done, so the
// per-descriptor reuse cache (C3) actually gets records back. Opcode and
// transaction records are never filtered out (spec.md §4.6: "opcode
// descriptors cannot be filtered"), since every reader built on Next
// needs them to track markers and assemble items regardless of what the
// caller asked to see.
func (br *BaseReader) Next() (Handle[Record], error) {
	for {
		rec, err := br.readRaw()
		if err != nil {
			return Handle[Record]{}, err
		}
		d := rec.Descriptor()
		if d.isMarker() {
			br.markerCount++
		}
		br.applyPC(rec)

		if len(br.opt.Descriptors) > 0 && !br.filter[d] && !d.isMarker() {
			pool.release(rec)
			continue
		}
		return NewHandle[Record](rec), nil
	}
}

// CurrentPC returns the PC the next instruction will execute at, i.e. the
// value an opcode record closing out the instruction under accumulation
// will be assigned. Meaningless before the first FORCE_PC or
// INST_PC_TARGET has been seen.
func (br *BaseReader) CurrentPC() (uint64, bool) { return br.pc, br.pcKnown }

// LastInstructionPC returns the PC that was assigned to the most recent
// opcode record Next returned, i.e. the PC an instruction reader (C8)
// should attach to the instruction it just finished accumulating.
func (br *BaseReader) LastInstructionPC() uint64 { return br.lastInstPC }

// IEM returns the instruction encoding mode declared by the trace's
// header, or IEMInvalid if none was present.
func (br *BaseReader) IEM() IEM { return br.iem }

// NumMarkersRead returns how many marker records (spec.md GLOSSARY) have
// been consumed so far, the unit Seek operates in.
func (br *BaseReader) NumMarkersRead() uint64 { return br.markerCount }

// Clocks returns the clock registry populated from this trace's header.
func (br *BaseReader) Clocks() *ClockRegistry { return br.clocks }

// Seek repositions the reader at the start of the chunk containing
// markerCount, the chunk-granularity fast seek spec.md §4.5 describes.
// Because chunk boundaries rarely land exactly on the requested marker,
// callers land at or before markerCount and must call Next in a loop
// until NumMarkersRead() reaches the target for exact positioning.
//
// Seek returns SkippingError if no chunk index was loaded. Open always
// loads one; InstructionReader.Seek separately refuses to seek while
// user-mode skipping is enabled, since skip state doesn't survive a chunk
// jump.
func (br *BaseReader) Seek(markerCount uint64) error {
	if br.bg != nil {
		br.bg.Stop()
	}
	if err := br.cr.seekToMarker(markerCount); err != nil {
		return err
	}
	br.cur = nil
	br.eof = false
	if br.bg != nil {
		depth := br.opt.PrefetchDepth
		if depth <= 0 {
			depth = 4
		}
		br.bg = newBackgroundChunkReader(br.cr, depth)
	}
	return nil
}

// Close releases the background decompression goroutine, if any. It does
// not close the underlying io.ReadSeeker, which the caller still owns.
func (br *BaseReader) Close() error {
	if br.bg != nil {
		br.bg.Stop()
	}
	return nil
}
