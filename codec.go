package stf

import (
	"encoding/binary"
	"fmt"
)

// byteOrder is the wire byte order for every multi-byte field in an STF
// trace. The format is host-endian-neutral only in the sense that every
// implementation must agree on one order; this library always writes and
// reads little endian, matching the RISC-V simulators that produce STF
// traces.
var byteOrder = binary.LittleEndian

// fieldReader unpacks trivially-copyable fields out of a flat byte slice
// in declared order, the Go analogue of perffile/bufdecoder.go's
// bufDecoder. Unlike bufDecoder, fieldReader tracks an error
// so a long chain of field reads can be checked once at the end instead of
// after every call, which matters here because record unpack_impl chains
// can be a dozen fields deep.
type fieldReader struct {
	buf []byte
	err error
}

func newFieldReader(buf []byte) *fieldReader {
	return &fieldReader{buf: buf}
}

func (r *fieldReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *fieldReader) need(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf) < n {
		r.fail(fmt.Errorf("stf: short record: need %d bytes, have %d", n, len(r.buf)))
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *fieldReader) u8() uint8 {
	b := r.need(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *fieldReader) u16() uint16 {
	b := r.need(2)
	if b == nil {
		return 0
	}
	return byteOrder.Uint16(b)
}

func (r *fieldReader) u32() uint32 {
	b := r.need(4)
	if b == nil {
		return 0
	}
	return byteOrder.Uint32(b)
}

func (r *fieldReader) u64() uint64 {
	b := r.need(8)
	if b == nil {
		return 0
	}
	return byteOrder.Uint64(b)
}

func (r *fieldReader) i32() int32 { return int32(r.u32()) }

func (r *fieldReader) bytes(n int) []byte {
	b := r.need(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// lenBytes reads a length-prefixed byte vector whose length field is
// widthBytes wide (1, 2, 4, or 8), per spec.md §4.1's "per-field parameter"
// on vector length prefixes.
func (r *fieldReader) lenBytes(widthBytes int) []byte {
	var n uint64
	switch widthBytes {
	case 1:
		n = uint64(r.u8())
	case 2:
		n = uint64(r.u16())
	case 4:
		n = uint64(r.u32())
	case 8:
		n = r.u64()
	default:
		r.fail(fmt.Errorf("stf: invalid length-prefix width %d", widthBytes))
		return nil
	}
	return r.bytes(int(n))
}

// string32 reads a u32-length-prefixed string, the format spec.md §6
// mandates for all strings on the wire.
func (r *fieldReader) string32() string {
	return string(r.lenBytes(4))
}

func (r *fieldReader) err_() error { return r.err }

// fieldWriter appends trivially-copyable fields to a growable byte buffer
// in declared order, the write-side counterpart of fieldReader. It never
// fails; callers own end-to-end flush errors via the underlying io.Writer.
type fieldWriter struct {
	buf []byte
}

func (w *fieldWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *fieldWriter) u16(v uint16) { w.buf = byteOrder.AppendUint16(w.buf, v) }
func (w *fieldWriter) u32(v uint32) { w.buf = byteOrder.AppendUint32(w.buf, v) }
func (w *fieldWriter) u64(v uint64) { w.buf = byteOrder.AppendUint64(w.buf, v) }
func (w *fieldWriter) i32(v int32)  { w.u32(uint32(v)) }
func (w *fieldWriter) raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *fieldWriter) lenBytes(widthBytes int, b []byte) {
	switch widthBytes {
	case 1:
		w.u8(uint8(len(b)))
	case 2:
		w.u16(uint16(len(b)))
	case 4:
		w.u32(uint32(len(b)))
	case 8:
		w.u64(uint64(len(b)))
	default:
		panic(fmt.Sprintf("stf: invalid length-prefix width %d", widthBytes))
	}
	w.raw(b)
}

func (w *fieldWriter) string32(s string) {
	w.lenBytes(4, []byte(s))
}

func (w *fieldWriter) bytes() []byte { return w.buf }

// PackedReader is the exported field-codec surface handed to a
// ProtocolData implementation living outside this package (e.g.
// protocols/tilelink), since fieldReader's own methods are unexported.
// It wraps the same sequential-field-read semantics used internally.
type PackedReader struct{ r *fieldReader }

func (p PackedReader) U8() uint8               { return p.r.u8() }
func (p PackedReader) U16() uint16             { return p.r.u16() }
func (p PackedReader) U32() uint32             { return p.r.u32() }
func (p PackedReader) U64() uint64             { return p.r.u64() }
func (p PackedReader) I32() int32              { return p.r.i32() }
func (p PackedReader) Bytes(n int) []byte      { return p.r.bytes(n) }
func (p PackedReader) LenBytes(width int) []byte { return p.r.lenBytes(width) }
func (p PackedReader) String32() string        { return p.r.string32() }
func (p PackedReader) Err() error              { return p.r.err_() }

// NewPackedReader wraps buf for sequential field reads, the entry point a
// ProtocolData implementation's own tests use to exercise Unpack without
// going through a full TransactionRecord.
func NewPackedReader(buf []byte) PackedReader { return PackedReader{r: newFieldReader(buf)} }

// PackedWriter is PackedReader's write-side counterpart.
type PackedWriter struct{ w *fieldWriter }

func (p PackedWriter) U8(v uint8)   { p.w.u8(v) }
func (p PackedWriter) U16(v uint16) { p.w.u16(v) }
func (p PackedWriter) U32(v uint32) { p.w.u32(v) }
func (p PackedWriter) U64(v uint64) { p.w.u64(v) }
func (p PackedWriter) I32(v int32)  { p.w.i32(v) }
func (p PackedWriter) Raw(b []byte) { p.w.raw(b) }
func (p PackedWriter) LenBytes(width int, b []byte) { p.w.lenBytes(width, b) }
func (p PackedWriter) String32(s string)            { p.w.string32(s) }
func (p PackedWriter) Bytes() []byte                { return p.w.bytes() }

// NewPackedWriter returns a fresh PackedWriter, the write-side counterpart
// of NewPackedReader.
func NewPackedWriter() PackedWriter { return PackedWriter{w: &fieldWriter{}} }
