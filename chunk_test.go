package stf

import (
	"io"
	"testing"
)

// memBuffer is a minimal in-memory io.ReadWriteSeeker for exercising the
// chunk container without touching the filesystem.
type memBuffer struct {
	data []byte
	pos  int64
}

func (m *memBuffer) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memBuffer) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		m.pos = offset
	case io.SeekCurrent:
		m.pos += offset
	case io.SeekEnd:
		m.pos = int64(len(m.data)) + offset
	}
	return m.pos, nil
}

func TestChunkContainerRoundTrip(t *testing.T) {
	buf := &memBuffer{}
	cw, err := newChunkWriter(buf, 2, true)
	if err != nil {
		t.Fatalf("newChunkWriter: %v", err)
	}

	records := [][]byte{
		[]byte("first-record-bytes"),
		[]byte("second-record-bytes"),
		[]byte("third-record-bytes"),
	}
	for i, raw := range records {
		// The first two records count as markers, so the chunk boundary
		// (threshold 2) lands after the second record and the third
		// starts a second chunk.
		if err := cw.Append(raw, i < 2); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	if err := cw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	buf.pos = 0
	cr, err := newChunkReader(buf, true)
	if err != nil {
		t.Fatalf("newChunkReader: %v", err)
	}
	if len(cr.index) == 0 {
		t.Fatal("expected a non-empty chunk index")
	}

	var got []byte
	for {
		data, _, err := cr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next(): %v", err)
		}
		got = append(got, data...)
	}

	var want []byte
	for _, r := range records {
		want = append(want, r...)
	}
	if string(got) != string(want) {
		t.Fatalf("round-tripped bytes = %q, want %q", got, want)
	}
}

func TestChunkSeekToMarker(t *testing.T) {
	buf := &memBuffer{}
	cw, err := newChunkWriter(buf, 1, false)
	if err != nil {
		t.Fatalf("newChunkWriter: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := cw.Append([]byte{byte(i)}, true); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	if err := cw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	buf.pos = 0
	cr, err := newChunkReader(buf, true)
	if err != nil {
		t.Fatalf("newChunkReader: %v", err)
	}
	if err := cr.seekToMarker(2); err != nil {
		t.Fatalf("seekToMarker: %v", err)
	}
	data, startMarker, err := cr.next()
	if err != nil {
		t.Fatalf("next() after seek: %v", err)
	}
	if startMarker != 2 {
		t.Fatalf("startMarker = %d, want 2", startMarker)
	}
	if len(data) != 1 || data[0] != byte(2) {
		t.Fatalf("chunk payload = %v, want [2]", data)
	}
}

func TestChunkSeekWithoutIndexFails(t *testing.T) {
	buf := &memBuffer{}
	cw, _ := newChunkWriter(buf, 1, false)
	_ = cw.Append([]byte{0}, true)
	_ = cw.Close()

	buf.pos = 0
	cr, err := newChunkReader(buf, false)
	if err != nil {
		t.Fatalf("newChunkReader: %v", err)
	}
	if err := cr.seekToMarker(0); err == nil {
		t.Fatal("expected an error seeking without a loaded index")
	}
}
