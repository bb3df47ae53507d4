package stf

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Trace container layout (this library's own, since nothing in spec.md's
// testable properties requires byte compatibility with any other STF
// writer — see DESIGN.md's "chunk index layout" decision):
//
//	containerMagic   uint32
//	containerVersion uint32
//	chunkMarkers     uint32  // markers (spec.md GLOSSARY) per chunk, nominal
//	codec            uint8   // 0 = raw, 1 = zstd
//	--- body: a sequence of chunks, each:
//	    compressedLen uint32
//	    rawLen        uint32
//	    startMarker   uint64 // cumulative marker count before this chunk
//	    payload       [compressedLen]byte
//	--- index:
//	    count       uint32 // entry count, written once before the entries
//	    then one entry per chunk, in order:
//	    startMarker uint64
//	    fileOffset  uint64 // offset of that chunk's compressedLen field
//	--- footer (last 12 bytes of the container):
//	    indexOffset uint64 // byte offset of the start of the index above
//	    footerMagic uint32
const (
	containerMagic   uint32 = 0x53544643 // "STFC"
	containerVersion uint32 = 1
	footerMagic      uint32 = 0x53544649 // "STFI"

	codecRaw  uint8 = 0
	codecZstd uint8 = 1

	// defaultChunkMarkers is the nominal number of marker records
	// (spec.md GLOSSARY) a writer accumulates before closing a chunk.
	// Matches the background PTE-prefetch thread's periodic-publish
	// cadence of defaultChunkMarkers/10 (pagetable.go).
	defaultChunkMarkers = 10000
)

// chunkIndexEntry locates one compressed chunk within the container.
type chunkIndexEntry struct {
	startMarker uint64
	fileOffset  uint64
}

// chunkContainerHeader is the fixed-size preamble every container starts
// with, read once when a trace is opened.
type chunkContainerHeader struct {
	version      uint32
	chunkMarkers uint32
	codec        uint8
}

func writeContainerHeader(w io.Writer, h chunkContainerHeader) error {
	var buf [13]byte
	binary.LittleEndian.PutUint32(buf[0:4], containerMagic)
	binary.LittleEndian.PutUint32(buf[4:8], h.version)
	binary.LittleEndian.PutUint32(buf[8:12], h.chunkMarkers)
	buf[12] = h.codec
	_, err := w.Write(buf[:])
	return err
}

func readContainerHeader(r io.Reader) (chunkContainerHeader, error) {
	var buf [13]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return chunkContainerHeader{}, fmt.Errorf("stf: reading container header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != containerMagic {
		return chunkContainerHeader{}, formatErrorf("bad container magic 0x%x", magic)
	}
	return chunkContainerHeader{
		version:      binary.LittleEndian.Uint32(buf[4:8]),
		chunkMarkers: binary.LittleEndian.Uint32(buf[8:12]),
		codec:        buf[12],
	}, nil
}

// chunkWriter accumulates raw record bytes and flushes them as compressed
// chunks once the marker threshold is crossed, maintaining the index the
// footer will later persist.
type chunkWriter struct {
	w             io.WriteSeeker
	chunkMarkers  uint32
	codec         uint8
	enc           *zstd.Encoder
	buf           []byte
	markersInBuf  uint32
	totalMarkers  uint64
	index         []chunkIndexEntry
}

func newChunkWriter(w io.WriteSeeker, chunkMarkers uint32, useCompression bool) (*chunkWriter, error) {
	codec := codecRaw
	var enc *zstd.Encoder
	var err error
	if useCompression {
		codec = codecZstd
		enc, err = zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("stf: creating zstd encoder: %w", err)
		}
	}
	if err := writeContainerHeader(w, chunkContainerHeader{
		version:      containerVersion,
		chunkMarkers: chunkMarkers,
		codec:        codec,
	}); err != nil {
		return nil, err
	}
	return &chunkWriter{w: w, chunkMarkers: chunkMarkers, codec: codec, enc: enc}, nil
}

// Append adds one record's already-packed bytes to the chunk currently
// being built. isMarker indicates whether this record counts toward the
// chunk's marker threshold (spec.md GLOSSARY "Marker record").
func (c *chunkWriter) Append(raw []byte, isMarker bool) error {
	c.buf = append(c.buf, raw...)
	if isMarker {
		c.markersInBuf++
		c.totalMarkers++
		if c.markersInBuf >= c.chunkMarkers {
			return c.flush()
		}
	}
	return nil
}

func (c *chunkWriter) flush() error {
	if len(c.buf) == 0 {
		return nil
	}
	payload := c.buf
	if c.codec == codecZstd {
		payload = c.enc.EncodeAll(c.buf, nil)
	}

	pos, err := c.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("stf: locating chunk offset: %w", err)
	}

	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(c.buf)))
	binary.LittleEndian.PutUint64(hdr[8:16], c.totalMarkers-uint64(c.markersInBuf))
	if _, err := c.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := c.w.Write(payload); err != nil {
		return err
	}

	c.index = append(c.index, chunkIndexEntry{
		startMarker: c.totalMarkers - uint64(c.markersInBuf),
		fileOffset:  uint64(pos),
	})
	c.buf = c.buf[:0]
	c.markersInBuf = 0
	return nil
}

// Close flushes any partial chunk and writes the footer and index.
func (c *chunkWriter) Close() error {
	if err := c.flush(); err != nil {
		return err
	}
	indexOffset, err := c.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(c.index)))
	if _, err := c.w.Write(countBuf[:]); err != nil {
		return err
	}
	for _, e := range c.index {
		var entryBuf [16]byte
		binary.LittleEndian.PutUint64(entryBuf[0:8], e.startMarker)
		binary.LittleEndian.PutUint64(entryBuf[8:16], e.fileOffset)
		if _, err := c.w.Write(entryBuf[:]); err != nil {
			return err
		}
	}

	var footer [12]byte
	binary.LittleEndian.PutUint64(footer[0:8], uint64(indexOffset))
	binary.LittleEndian.PutUint32(footer[8:12], footerMagic)
	if _, err := c.w.Write(footer[:]); err != nil {
		return err
	}
	if c.enc != nil {
		c.enc.Close()
	}
	return nil
}

// chunkReader reads a container sequentially, decompressing chunks on
// demand. When the underlying stream supports seeking, the index loaded
// at Open time lets SeekToMarker jump directly to the chunk containing a
// given marker count instead of decompressing everything before it.
type chunkReader struct {
	r     io.ReadSeeker
	hdr   chunkContainerHeader
	index []chunkIndexEntry // nil if the stream wasn't seekable, or seeking is disabled
	dec   *zstd.Decoder

	cur       []byte // the current chunk's decompressed bytes, not yet consumed
	curMarker uint64 // starting marker count of cur
}

func newChunkReader(r io.ReadSeeker, loadIndex bool) (*chunkReader, error) {
	hdr, err := readContainerHeader(r)
	if err != nil {
		return nil, err
	}
	cr := &chunkReader{r: r, hdr: hdr}
	if hdr.codec == codecZstd {
		cr.dec, err = zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("stf: creating zstd decoder: %w", err)
		}
	}
	if loadIndex {
		if err := cr.loadIndex(); err != nil {
			return nil, err
		}
	}
	return cr, nil
}

func (c *chunkReader) loadIndex() error {
	const footerSize = 12
	end, err := c.r.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if end < footerSize {
		return formatErrorf("container too short to contain a footer")
	}
	if _, err := c.r.Seek(end-footerSize, io.SeekStart); err != nil {
		return err
	}
	var footer [footerSize]byte
	if _, err := io.ReadFull(c.r, footer[:]); err != nil {
		return err
	}
	indexOffset := binary.LittleEndian.Uint64(footer[0:8])
	magic := binary.LittleEndian.Uint32(footer[8:12])
	if magic != footerMagic {
		return formatErrorf("bad footer magic 0x%x", magic)
	}

	if _, err := c.r.Seek(int64(indexOffset), io.SeekStart); err != nil {
		return err
	}
	var countBuf [4]byte
	if _, err := io.ReadFull(c.r, countBuf[:]); err != nil {
		return err
	}
	count := binary.LittleEndian.Uint32(countBuf[:])
	c.index = make([]chunkIndexEntry, count)
	for i := range c.index {
		var entryBuf [16]byte
		if _, err := io.ReadFull(c.r, entryBuf[:]); err != nil {
			return err
		}
		c.index[i] = chunkIndexEntry{
			startMarker: binary.LittleEndian.Uint64(entryBuf[0:8]),
			fileOffset:  binary.LittleEndian.Uint64(entryBuf[8:16]),
		}
	}
	// Rewind to the first chunk so sequential Next() calls work whether
	// or not SeekToMarker is ever used.
	_, err = c.r.Seek(int64(containerHeaderSize), io.SeekStart)
	return err
}

const containerHeaderSize = 13

// next reads and decompresses the next chunk in stream order, used both
// for the first pass over a container and as the fallback when no index
// was loaded.
func (c *chunkReader) next() ([]byte, uint64, error) {
	if c.index != nil {
		// The index and footer follow the last chunk; stop before them.
		pos, err := c.r.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, 0, err
		}
		if len(c.index) == 0 || uint64(pos) > c.index[len(c.index)-1].fileOffset {
			return nil, 0, io.EOF
		}
	}
	var hdr [16]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		return nil, 0, fmt.Errorf("stf: reading chunk header: %w", err)
	}
	compressedLen := binary.LittleEndian.Uint32(hdr[0:4])
	rawLen := binary.LittleEndian.Uint32(hdr[4:8])
	startMarker := binary.LittleEndian.Uint64(hdr[8:16])

	payload := make([]byte, compressedLen)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return nil, 0, fmt.Errorf("stf: reading chunk payload: %w", err)
	}
	if c.hdr.codec == codecRaw {
		return payload, startMarker, nil
	}
	raw, err := c.dec.DecodeAll(payload, make([]byte, 0, rawLen))
	if err != nil {
		return nil, 0, fmt.Errorf("stf: decompressing chunk: %w", err)
	}
	return raw, startMarker, nil
}

// seekToMarker positions the reader so the next chunk returned by next()
// is the one containing markerCount, using the loaded index for an O(log
// n) binary search instead of a linear scan. Returns SkippingError if no
// index was loaded (spec.md §4.5's fast-seek precondition).
func (c *chunkReader) seekToMarker(markerCount uint64) error {
	if c.index == nil {
		return skippingErrorf("fast seek unavailable: no chunk index loaded")
	}
	lo, hi := 0, len(c.index)-1
	best := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if c.index[mid].startMarker <= markerCount {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	_, err := c.r.Seek(int64(c.index[best].fileOffset), io.SeekStart)
	return err
}

// backgroundChunkReader wraps a chunkReader with a goroutine that
// decompresses chunks ahead of consumption into a bounded channel, the
// multi-threaded mode spec.md §4.5 and §5 contrast with chunkReader's
// single-threaded synchronous decompression.
type backgroundChunkReader struct {
	out      chan decodedChunk
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

type decodedChunk struct {
	data        []byte
	startMarker uint64
	err         error
}

// newBackgroundChunkReader launches the producer goroutine. depth bounds
// how many decompressed chunks may sit in the channel ahead of the
// consumer, trading memory for how far decompression can run ahead of
// parsing.
func newBackgroundChunkReader(cr *chunkReader, depth int) *backgroundChunkReader {
	b := &backgroundChunkReader{
		out:    make(chan decodedChunk, depth),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go b.run(cr)
	return b
}

func (b *backgroundChunkReader) run(cr *chunkReader) {
	defer close(b.exited)
	defer close(b.out)
	for {
		data, startMarker, err := cr.next()
		select {
		case b.out <- decodedChunk{data: data, startMarker: startMarker, err: err}:
		case <-b.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// Next blocks until the next decompressed chunk is ready, or returns
// io.EOF once the container is exhausted.
func (b *backgroundChunkReader) Next() ([]byte, uint64, error) {
	c, ok := <-b.out
	if !ok {
		return nil, 0, io.EOF
	}
	return c.data, c.startMarker, c.err
}

// Stop signals the producer goroutine to exit without draining the rest
// of the container and blocks until it has actually exited, used when a
// reader seeks elsewhere or is closed early: the caller is about to reuse
// or discard the underlying chunkReader's io.ReadSeeker, so run's last
// cr.next() call must have returned before Stop does, or a seek and the
// stale goroutine's read race on the same Seeker. Safe to call more than
// once; only the first call has any effect.
func (b *backgroundChunkReader) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		<-b.exited
	})
}
