package stf

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MappedFile is a trace file backed by a memory map rather than read
// syscalls, useful for very large traces a reader will seek around in
// (repeated Seek calls during a page-table lookaheads, or random-access
// tooling built on top of this package) where paging the kernel already
// does is cheaper than copying through a read buffer.
type MappedFile struct {
	f      *os.File
	region mmap.MMap
	r      *bytes.Reader
}

// OpenMapped memory-maps path read-only and returns an io.ReadSeeker
// suitable for passing to Open. Callers must call Close when done to
// unmap the region and close the underlying file descriptor.
func OpenMapped(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stf: opening %s: %w", path, err)
	}
	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stf: mapping %s: %w", path, err)
	}
	return &MappedFile{f: f, region: region, r: bytes.NewReader(region)}, nil
}

func (m *MappedFile) Read(p []byte) (int, error)               { return m.r.Read(p) }
func (m *MappedFile) Seek(offset int64, whence int) (int64, error) { return m.r.Seek(offset, whence) }

var _ io.ReadSeeker = (*MappedFile)(nil)

// Close unmaps the region and closes the underlying file.
func (m *MappedFile) Close() error {
	if err := m.region.Unmap(); err != nil {
		m.f.Close()
		return fmt.Errorf("stf: unmapping: %w", err)
	}
	return m.f.Close()
}
