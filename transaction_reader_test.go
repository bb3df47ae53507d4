package stf

import (
	"io"
	"testing"
)

// fakeProtocolData is a minimal ProtocolData used only by this package's
// own tests, so TransactionRecord round-trips don't need a real protocol
// package (protocols/tilelink) wired in, which would import this package
// back and create a cycle from an internal test file.
type fakeProtocolData struct {
	channel uint8
	value   uint64
}

func (f *fakeProtocolData) ChannelType() uint8 { return f.channel }
func (f *fakeProtocolData) Unpack(r PackedReader) { f.value = r.U64() }
func (f *fakeProtocolData) Pack(w PackedWriter)   { w.U64(f.value) }
func (f *fakeProtocolData) Format(w io.Writer)    { _, _ = w.Write([]byte("fake\n")) }
func (f *fakeProtocolData) Clone() ProtocolData   { c := *f; return &c }

const testProtocolID ProtocolID = 250

func init() {
	RegisterProtocol(testProtocolID, func(channel uint8) (ProtocolData, error) {
		return &fakeProtocolData{channel: channel}, nil
	})
}

// TestTransactionReaderAttachesTrailingDependencies checks that
// TRANSACTION_DEPENDENCY records, which follow the transaction they refer
// to rather than lead it, end up attached to the correct (preceding)
// transaction, including the last transaction in the stream (flushed on
// EOF rather than by the arrival of a following TRANSACTION record).
func TestTransactionReaderAttachesTrailingDependencies(t *testing.T) {
	buf := &memBuffer{}
	w, err := NewWriter(buf, WriterOptions{ChunkMarkers: 16, ProtocolID: testProtocolID})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.FlushHeader(); err != nil {
		t.Fatalf("FlushHeader: %v", err)
	}

	mustWrite(t, w, &TransactionRecord{
		recordBase: recordBase{DescTransaction},
		ClockID:    1, CycleTime: 100, ChannelType: 0,
		Payload: &fakeProtocolData{channel: 0, value: 111},
	})
	// No dependency record follows transaction 1 before transaction 2
	// arrives.
	mustWrite(t, w, &TransactionRecord{
		recordBase: recordBase{DescTransaction},
		ClockID:    1, CycleTime: 200, ChannelType: 1,
		Payload: &fakeProtocolData{channel: 1, value: 222},
	})
	mustWrite(t, w, &TransactionDependencyRecord{
		recordBase:   recordBase{DescTransactionDependency},
		DependencyID: 1, ClockID: 1, CycleTime: 50,
	})
	mustWrite(t, w, &TransactionDependencyRecord{
		recordBase:   recordBase{DescTransactionDependency},
		DependencyID: 2, ClockID: 1, CycleTime: 60,
	})

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	buf.pos = 0
	br, err := Open(buf, ReaderOptions{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer br.Close()

	tr := NewTransactionReader(br)

	first, err := tr.readNext()
	if err != nil {
		t.Fatalf("readNext() (first): %v", err)
	}
	if len(first.Dependencies) != 0 {
		t.Fatalf("first transaction should have no dependencies, got %d", len(first.Dependencies))
	}
	if first.Record.CycleTime != 100 {
		t.Fatalf("first.Record.CycleTime = %d, want 100", first.Record.CycleTime)
	}

	second, err := tr.readNext()
	if err != nil {
		t.Fatalf("readNext() (second): %v", err)
	}
	if second.Record.CycleTime != 200 {
		t.Fatalf("second.Record.CycleTime = %d, want 200", second.Record.CycleTime)
	}
	if len(second.Dependencies) != 2 {
		t.Fatalf("second transaction should have 2 dependencies, got %d", len(second.Dependencies))
	}
	if second.Dependencies[0].DependencyID != 1 || second.Dependencies[1].DependencyID != 2 {
		t.Fatalf("unexpected dependency ids: %+v", second.Dependencies)
	}
	if second.index != 2 {
		t.Fatalf("second.index = %d, want 2", second.index)
	}

	if _, err := tr.readNext(); err != io.EOF {
		t.Fatalf("readNext() after last transaction = %v, want io.EOF", err)
	}
}
