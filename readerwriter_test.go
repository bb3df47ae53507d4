package stf

import "testing"

// TestWriteThenReadTrace builds a small trace (header + one instruction)
// through Writer, then reads it back through BaseReader, checking that
// header metadata, PC tracking, and record ordering all round-trip.
func TestWriteThenReadTrace(t *testing.T) {
	buf := &memBuffer{}
	w, err := NewWriter(buf, WriterOptions{
		ChunkMarkers: 4,
		Compress:     true,
		Version:      VersionRecord{Major: 1, Minor: 0},
		ISA:          "rv64gc",
		IEM:          IEMRV64,
	})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.AddComment("generated by a round-trip test")
	if err := w.AddClock(1, "core0"); err != nil {
		t.Fatalf("AddClock: %v", err)
	}
	w.SetForcePC(0x80000000)
	if err := w.FlushHeader(); err != nil {
		t.Fatalf("FlushHeader: %v", err)
	}

	reg := &InstRegRecord{
		recordBase:  recordBase{DescInstReg},
		Reg:         10,
		OperandType: RegSource,
		DataType:    RegInt,
		Data:        []byte{1, 2, 3, 4},
	}
	if err := w.WriteRecord(reg); err != nil {
		t.Fatalf("WriteRecord(InstReg): %v", err)
	}
	opcode := &InstOpcode32Record{recordBase: recordBase{DescInstOpcode32}, Opcode: 0x00000013}
	if err := w.WriteRecord(opcode); err != nil {
		t.Fatalf("WriteRecord(opcode): %v", err)
	}

	// A second instruction four bytes further on, closing with a 16-bit
	// opcode, so LastInstructionPC must reflect the first instruction's
	// PC at the moment its own opcode record is read, not the second's.
	opcode2 := &InstOpcode16Record{recordBase: recordBase{DescInstOpcode16}, Opcode: 0x4501}
	if err := w.WriteRecord(opcode2); err != nil {
		t.Fatalf("WriteRecord(opcode2): %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	buf.pos = 0
	br, err := Open(buf, ReaderOptions{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer br.Close()

	if br.IEM() != IEMRV64 {
		t.Fatalf("IEM() = %v, want IEMRV64", br.IEM())
	}
	if name, ok := br.Clocks().Name(1); !ok || name != "core0" {
		t.Fatalf("Clocks().Name(1) = (%q, %v), want (\"core0\", true)", name, ok)
	}

	h, err := br.Next()
	if err != nil {
		t.Fatalf("Next() (InstReg): %v", err)
	}
	gotReg, ok := AsRecord[*InstRegRecord](h.Get())
	if !ok {
		t.Fatalf("expected *InstRegRecord, got %T", h.Get())
	}
	if gotReg.Reg != 10 || string(gotReg.Data) != "\x01\x02\x03\x04" {
		t.Fatalf("unexpected InstRegRecord: %+v", gotReg)
	}
	h.Release()

	h, err = br.Next()
	if err != nil {
		t.Fatalf("Next() (opcode32): %v", err)
	}
	if _, ok := AsRecord[*InstOpcode32Record](h.Get()); !ok {
		t.Fatalf("expected *InstOpcode32Record, got %T", h.Get())
	}
	h.Release()
	if pc := br.LastInstructionPC(); pc != 0x80000000 {
		t.Fatalf("LastInstructionPC() = 0x%x, want 0x80000000", pc)
	}
	if pc, ok := br.CurrentPC(); !ok || pc != 0x80000004 {
		t.Fatalf("CurrentPC() = (0x%x, %v), want (0x80000004, true)", pc, ok)
	}

	h, err = br.Next()
	if err != nil {
		t.Fatalf("Next() (opcode16): %v", err)
	}
	if _, ok := AsRecord[*InstOpcode16Record](h.Get()); !ok {
		t.Fatalf("expected *InstOpcode16Record, got %T", h.Get())
	}
	h.Release()
	if pc := br.LastInstructionPC(); pc != 0x80000004 {
		t.Fatalf("LastInstructionPC() = 0x%x, want 0x80000004", pc)
	}

	if br.NumMarkersRead() != 2 {
		t.Fatalf("NumMarkersRead() = %d, want 2", br.NumMarkersRead())
	}

	if _, err := br.Next(); err != nil {
		// io.EOF is expected once the container is exhausted.
	} else {
		t.Fatal("expected EOF after the last written record")
	}
}

// TestReaderDescriptorFilter checks that Next skips descriptors outside
// the configured filter while still advancing PC/marker tracking.
func TestReaderDescriptorFilter(t *testing.T) {
	buf := &memBuffer{}
	w, err := NewWriter(buf, WriterOptions{ChunkMarkers: 4})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.SetForcePC(0x1000)
	if err := w.FlushHeader(); err != nil {
		t.Fatalf("FlushHeader: %v", err)
	}
	if err := w.WriteRecord(&InstRegRecord{recordBase: recordBase{DescInstReg}, Reg: 1, Data: []byte{9}}); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if err := w.WriteRecord(&InstOpcode32Record{recordBase: recordBase{DescInstOpcode32}, Opcode: 1}); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	buf.pos = 0
	br, err := Open(buf, ReaderOptions{Descriptors: []Descriptor{DescInstOpcode32}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer br.Close()

	h, err := br.Next()
	if err != nil {
		t.Fatalf("Next(): %v", err)
	}
	if _, ok := AsRecord[*InstOpcode32Record](h.Get()); !ok {
		t.Fatalf("expected the filter to skip straight to *InstOpcode32Record, got %T", h.Get())
	}
	h.Release()
}
