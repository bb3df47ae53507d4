package stf

import (
	"fmt"
	"io"
)

// ProtocolData is the payload a TransactionRecord carries, specific to
// whichever on-chip interconnect protocol the trace's PROTOCOL_ID header
// record names (spec.md §3 "ProtocolData"). Concrete implementations live
// outside this package (protocols/tilelink) and register themselves with
// RegisterProtocol so a TransactionRecord can construct the right payload
// type purely from the ProtocolID and channel tag on the wire, without
// this package importing any protocol package directly.
type ProtocolData interface {
	ChannelType() uint8
	Unpack(r PackedReader)
	Pack(w PackedWriter)
	Format(w io.Writer)
	Clone() ProtocolData
}

type protocolFactory func(channel uint8) (ProtocolData, error)

var protocolFactories = map[ProtocolID]protocolFactory{}

// RegisterProtocol registers the constructor a TransactionRecord uses to
// build a ProtocolData payload for the given protocol ID and channel tag.
// Protocol packages call this from an init() func, the same registration
// pattern the record factory (C4) uses internally for record types.
func RegisterProtocol(id ProtocolID, factory func(channel uint8) (ProtocolData, error)) {
	protocolFactories[id] = factory
}

// TransactionType classifies a transaction's role in its protocol exchange
// (original_source/stf-inc/stf_transaction_record.hpp's TransactionType),
// the "metadata" field spec.md §3 lists alongside TransactionRecord's other
// fields.
type TransactionType uint8

const (
	TransactionInvalid TransactionType = iota
	TransactionRequest
	TransactionResponse
)

func (t TransactionType) String() string {
	switch t {
	case TransactionRequest:
		return "REQUEST"
	case TransactionResponse:
		return "RESPONSE"
	default:
		return "INVALID"
	}
}

// TransactionRecord is a marker record (spec.md GLOSSARY "Marker record")
// describing one on-chip interconnect transaction (spec.md §3): a unique
// transaction ID, when it happened (cycle delta + clock domain), its
// metadata, the protocol-specific payload for the channel it traveled on,
// and a raw payload blob carried alongside the structured ProtocolData
// (original's payload_data_). Zero or more TransactionDependencyRecord
// values may follow, each naming an earlier transaction this one depends on.
type TransactionRecord struct {
	recordBase
	TransactionID uint64
	ClockID       uint32
	CycleTime     uint64
	Metadata      TransactionType
	ChannelType   uint8
	Payload       ProtocolData
	PayloadData   []byte
}

func newTransactionRecord() Record { return &TransactionRecord{recordBase: recordBase{DescTransaction}} }

func (r *TransactionRecord) unpack(fr *fieldReader, ctx *RecordContext) {
	r.TransactionID = fr.u64()
	r.CycleTime = fr.u64()
	r.ClockID = fr.u32()
	r.Metadata = TransactionType(fr.u8())
	r.ChannelType = fr.u8()

	factory, ok := protocolFactories[ctx.ProtocolID]
	if !ok {
		fr.fail(formatErrorf("no protocol registered for %s", ctx.ProtocolID))
		return
	}
	payload, err := factory(r.ChannelType)
	if err != nil {
		fr.fail(err)
		return
	}
	payload.Unpack(PackedReader{fr})
	r.Payload = payload
	r.PayloadData = fr.lenBytes(8)
}

func (r *TransactionRecord) pack(w *fieldWriter, _ *RecordContext) {
	w.u64(r.TransactionID)
	w.u64(r.CycleTime)
	w.u32(r.ClockID)
	w.u8(uint8(r.Metadata))
	w.u8(r.ChannelType)
	if r.Payload != nil {
		r.Payload.Pack(PackedWriter{w})
	}
	w.lenBytes(8, r.PayloadData)
}

func (r *TransactionRecord) Format(w io.Writer) {
	fmt.Fprintf(w, "%-20sid=%d clock=%d time=%d %s channel=%d\n",
		"TRANSACTION", r.TransactionID, r.ClockID, r.CycleTime, r.Metadata, r.ChannelType)
	if r.Payload != nil {
		r.Payload.Format(w)
	}
}

func (r *TransactionRecord) Clone() Record {
	c := *r
	if r.Payload != nil {
		c.Payload = r.Payload.Clone()
	}
	c.PayloadData = append([]byte(nil), r.PayloadData...)
	return &c
}

func (r *TransactionRecord) reset() {
	*r = TransactionRecord{recordBase: r.recordBase, PayloadData: r.PayloadData[:0]}
}

// TransactionDependencyRecord names an earlier transaction the preceding
// TransactionRecord depends on: its transaction id (original_source's
// STFTransaction::Dependency::getDependencyId()), plus the same cycle-delta
// and clock-id pairing TransactionRecord uses to place an event in time
// (getCycleDelta(), getClockId()) — here, the delta between the dependent
// transaction completing and this dependency being fulfilled.
type TransactionDependencyRecord struct {
	recordBase
	DependencyID uint64
	CycleTime    uint64
	ClockID      uint32
}

func newTransactionDependencyRecord() Record {
	return &TransactionDependencyRecord{recordBase: recordBase{DescTransactionDependency}}
}

func (r *TransactionDependencyRecord) unpack(fr *fieldReader, _ *RecordContext) {
	r.DependencyID = fr.u64()
	r.CycleTime = fr.u64()
	r.ClockID = fr.u32()
}

func (r *TransactionDependencyRecord) pack(w *fieldWriter, _ *RecordContext) {
	w.u64(r.DependencyID)
	w.u64(r.CycleTime)
	w.u32(r.ClockID)
}

func (r *TransactionDependencyRecord) Format(w io.Writer) {
	fmt.Fprintf(w, "%-20sid=%d clock=%d time=%d\n", "TRANSACTION_DEPENDENCY", r.DependencyID, r.ClockID, r.CycleTime)
}

func (r *TransactionDependencyRecord) Clone() Record { c := *r; return &c }
func (r *TransactionDependencyRecord) reset() {
	*r = TransactionDependencyRecord{recordBase: r.recordBase}
}
