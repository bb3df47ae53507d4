package stf

import "io"

// Transaction is one on-chip interconnect transaction: the TRANSACTION
// record itself plus every TRANSACTION_DEPENDENCY record that followed
// it before the next TRANSACTION (spec.md §4.9, component C9). The
// consumer is responsible for calling Release once it no longer needs
// the underlying records, returning them to the pool (C3); Transaction
// retains them directly (rather than copying, as Instruction does)
// because Record.Payload is a polymorphic ProtocolData that isn't safe
// to shallow-copy out.
type Transaction struct {
	itemBase

	Record       *TransactionRecord
	Dependencies []*TransactionDependencyRecord

	released bool
}

// TransactionID returns the unique id of this transaction (spec.md §4.9).
func (t *Transaction) TransactionID() uint64 { return t.Record.TransactionID }

// CycleDelta returns the cycle delta since the previous record on this
// transaction's clock domain (spec.md §4.9).
func (t *Transaction) CycleDelta() uint64 { return t.Record.CycleTime }

// ClockID returns the clock domain this transaction is timed against
// (spec.md §4.9).
func (t *Transaction) ClockID() uint32 { return t.Record.ClockID }

// Payload returns this transaction's typed protocol-data view (spec.md
// §4.9's "owned protocol data (typed view)").
func (t *Transaction) Payload() ProtocolData { return t.Record.Payload }

// Release returns this transaction's TransactionRecord and
// TransactionDependencyRecords to the pool. Safe to call more than once;
// only the first call has any effect.
func (t *Transaction) Release() {
	if t.released {
		return
	}
	t.released = true
	pool.release(t.Record)
	for _, d := range t.Dependencies {
		pool.release(d)
	}
}

// TransactionReader accumulates BaseReader's flat record stream into
// Transaction items, the transaction-trace counterpart of
// InstructionReader.
type TransactionReader struct {
	br    *BaseReader
	index uint64

	pending     *TransactionRecord
	pendingDeps []*TransactionDependencyRecord
}

// NewTransactionReader wraps br.
func NewTransactionReader(br *BaseReader) *TransactionReader {
	return &TransactionReader{br: br}
}

// readNext implements itemSource[Transaction] for BufferedReader (C7).
// Because a transaction's dependency records trail it rather than lead
// it, the reader always has to read one record past a transaction before
// it knows that transaction has no more dependencies coming, so it holds
// the not-yet-emitted transaction in `pending` across calls.
func (tr *TransactionReader) readNext() (Transaction, error) {
	for {
		h, err := tr.br.Next()
		if err != nil {
			if err == io.EOF && tr.pending != nil {
				t := tr.finish(tr.pending, tr.pendingDeps)
				tr.pending, tr.pendingDeps = nil, nil
				return t, nil
			}
			return Transaction{}, err
		}

		rec := h.Get()
		switch r := rec.(type) {
		case *TransactionRecord:
			if tr.pending == nil {
				tr.pending = r
				continue
			}
			t := tr.finish(tr.pending, tr.pendingDeps)
			tr.pending, tr.pendingDeps = r, nil
			return t, nil
		case *TransactionDependencyRecord:
			tr.pendingDeps = append(tr.pendingDeps, r)
		default:
			h.Release()
			return Transaction{}, unexpectedDescriptor(rec.Descriptor())
		}
	}
}

func (tr *TransactionReader) finish(rec *TransactionRecord, deps []*TransactionDependencyRecord) Transaction {
	tr.index++
	return Transaction{
		itemBase:     itemBase{index: tr.index},
		Record:       rec,
		Dependencies: deps,
	}
}

var _ itemSource[Transaction] = (*TransactionReader)(nil)
