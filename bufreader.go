package stf

import "io"

// itemSource is what a BufferedReader pulls items from: InstructionReader
// for Instruction items, TransactionReader for Transaction items. It plays
// the role of the CRTP `ReaderType` parameter in
// original_source/stf-inc/stf_buffered_reader.hpp — Go has no template
// base classes, so the buffered reader takes its source as an interface
// value instead of a compile-time-bound subclass.
type itemSource[I Item] interface {
	readNext() (I, error) // io.EOF when the underlying trace is exhausted
}

const defaultBufferSize = 1024

// BufferedReader is a generic sliding-window reader over a stream of
// Items, giving callers bounded lookahead (Peek) without buffering the
// entire trace (spec.md §4.7, component C7). Internally it's a power-of-
// two circular buffer that tops itself back up once it drops to half
// full, the same refill cadence as stf_buffered_reader.hpp's
// STFBufferedReader.
type BufferedReader[I Item] struct {
	src     itemSource[I]
	bufSize int
	bufMask int
	buf     []I
	head    int
	count   int
	eof     bool
}

// newBufferedReader constructs a BufferedReader over src. bufferSize is
// rounded up to the next power of two; defaultBufferSize if zero or
// negative.
func newBufferedReader[I Item](src itemSource[I], bufferSize int) (*BufferedReader[I], error) {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	size := 1
	for size < bufferSize {
		size <<= 1
	}
	r := &BufferedReader[I]{src: src, bufSize: size, bufMask: size - 1, buf: make([]I, size)}
	if err := r.fill(size); err != nil && err != io.EOF {
		return nil, err
	}
	return r, nil
}

// fill reads up to n more items into the buffer, stopping early if the
// buffer fills or the source is exhausted.
func (r *BufferedReader[I]) fill(n int) error {
	for i := 0; i < n && r.count < r.bufSize; i++ {
		if r.eof {
			return io.EOF
		}
		item, err := r.src.readNext()
		if err != nil {
			if err == io.EOF {
				r.eof = true
			}
			return err
		}
		pos := (r.head + r.count) & r.bufMask
		r.buf[pos] = item
		r.count++
	}
	return nil
}

// Next removes and returns the oldest buffered item, topping the buffer
// back up (fillHalfBuffer_ in stf_buffered_reader.hpp) once it's dropped
// to half capacity.
func (r *BufferedReader[I]) Next() (I, error) {
	var zero I
	if r.count == 0 {
		return zero, io.EOF
	}
	item := r.buf[r.head]
	r.head = (r.head + 1) & r.bufMask
	r.count--
	if r.count <= r.bufSize/2 && !r.eof {
		_ = r.fill(r.bufSize / 2) // EOF here just means no more to prefetch; surfaced later by Next itself
	}
	return item, nil
}

// Peek returns the item `offset` positions ahead of the next one Next
// would return, without consuming it. offset 0 is equivalent to what the
// next Next call would return. The second return value is false if fewer
// than offset+1 items remain buffered. Mid-trace the window holds more
// than half the buffer size (it refills once it drains to half), so
// offsets up to half the buffer size succeed until near end of trace;
// larger offsets can fail at any point.
func (r *BufferedReader[I]) Peek(offset int) (I, bool) {
	var zero I
	if offset < 0 || offset >= r.count {
		return zero, false
	}
	pos := (r.head + offset) & r.bufMask
	return r.buf[pos], true
}

// Buffered reports how many items are currently available without
// blocking on the underlying source.
func (r *BufferedReader[I]) Buffered() int { return r.count }
