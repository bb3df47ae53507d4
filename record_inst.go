package stf

import (
	"fmt"
	"io"
)

// InstPCTargetRecord overrides the PC the base reader will assign to the
// instruction that follows: the actual target of a taken branch or jump
// (spec.md §4.6's PC-tracking rules, case "INST_PC_TARGET"). The branch
// reader (C8) also uses this value to validate a decoded branch's target
// against what the trace itself recorded.
type InstPCTargetRecord struct {
	recordBase
	PC uint64
}

func newInstPCTargetRecord() Record {
	return &InstPCTargetRecord{recordBase: recordBase{DescInstPCTarget}}
}

func (r *InstPCTargetRecord) unpack(fr *fieldReader, _ *RecordContext) { r.PC = fr.u64() }
func (r *InstPCTargetRecord) pack(w *fieldWriter, _ *RecordContext)    { w.u64(r.PC) }
func (r *InstPCTargetRecord) Format(w io.Writer)                       { fmtHex(w, "PC_TARGET", r.PC) }
func (r *InstPCTargetRecord) Clone() Record                             { c := *r; return &c }
func (r *InstPCTargetRecord) reset()                                    { r.PC = 0 }

// InstRegRecord is a single register operand attached to the instruction
// currently being accumulated (spec.md §3 "Register operand record"). Data
// is the register's raw value, u16-length-prefixed on the wire so the same
// record shape covers scalar integer/FP registers and full vector
// registers without a separate encoding.
type InstRegRecord struct {
	recordBase
	Reg         uint32
	OperandType RegOperandType
	DataType    RegDataType
	Data        []byte
}

func newInstRegRecord() Record { return &InstRegRecord{recordBase: recordBase{DescInstReg}} }

func (r *InstRegRecord) unpack(fr *fieldReader, _ *RecordContext) {
	r.Reg = fr.u32()
	r.OperandType = RegOperandType(fr.u8())
	r.DataType = RegDataType(fr.u8())
	r.Data = fr.lenBytes(2)
}

func (r *InstRegRecord) pack(w *fieldWriter, _ *RecordContext) {
	w.u32(r.Reg)
	w.u8(uint8(r.OperandType))
	w.u8(uint8(r.DataType))
	w.lenBytes(2, r.Data)
}

func (r *InstRegRecord) Format(w io.Writer) {
	fmt.Fprintf(w, "%-20sreg=%d %s %s data=%x\n", "INST_REG", r.Reg, r.OperandType, r.DataType, r.Data)
}

func (r *InstRegRecord) Clone() Record {
	c := *r
	c.Data = append([]byte(nil), r.Data...)
	return &c
}

func (r *InstRegRecord) reset() {
	r.Reg, r.OperandType, r.DataType = 0, 0, 0
	r.Data = r.Data[:0]
}

// IsSATP reports whether this operand is the RISC-V supervisor address
// translation and protection register, the one INST_REG payload the
// page-table resolver's background prefetch thread (C10) inspects.
func (r *InstRegRecord) IsSATP() bool { return r.Reg == satpRegisterNumber }

const satpRegisterNumber = 0x180

// InstReadyRegRecord records a register operand that became available
// ("ready") earlier than the instruction that consumes it — out-of-order
// model traces use this to decouple data-ready time from retirement,
// distinct from INST_REG's in-order operand list.
type InstReadyRegRecord struct {
	recordBase
	Reg      uint32
	DataType RegDataType
	Data     []byte
}

func newInstReadyRegRecord() Record {
	return &InstReadyRegRecord{recordBase: recordBase{DescInstReadyReg}}
}

func (r *InstReadyRegRecord) unpack(fr *fieldReader, _ *RecordContext) {
	r.Reg = fr.u32()
	r.DataType = RegDataType(fr.u8())
	r.Data = fr.lenBytes(2)
}

func (r *InstReadyRegRecord) pack(w *fieldWriter, _ *RecordContext) {
	w.u32(r.Reg)
	w.u8(uint8(r.DataType))
	w.lenBytes(2, r.Data)
}

func (r *InstReadyRegRecord) Format(w io.Writer) {
	fmt.Fprintf(w, "%-20sreg=%d %s data=%x\n", "INST_READY_REG", r.Reg, r.DataType, r.Data)
}

func (r *InstReadyRegRecord) Clone() Record {
	c := *r
	c.Data = append([]byte(nil), r.Data...)
	return &c
}

func (r *InstReadyRegRecord) reset() {
	r.Reg, r.DataType = 0, 0
	r.Data = r.Data[:0]
}

// InstMemAccessRecord describes one load or store the instruction
// currently being accumulated performed. A following INST_MEM_CONTENT
// record, when present, carries the bytes actually read or written.
type InstMemAccessRecord struct {
	recordBase
	Address    uint64
	Size       uint16
	AccessType MemAccessType
	Attributes uint8
}

func newInstMemAccessRecord() Record {
	return &InstMemAccessRecord{recordBase: recordBase{DescInstMemAccess}}
}

func (r *InstMemAccessRecord) unpack(fr *fieldReader, _ *RecordContext) {
	r.Address = fr.u64()
	r.Size = fr.u16()
	r.AccessType = MemAccessType(fr.u8())
	r.Attributes = fr.u8()
}

func (r *InstMemAccessRecord) pack(w *fieldWriter, _ *RecordContext) {
	w.u64(r.Address)
	w.u16(r.Size)
	w.u8(uint8(r.AccessType))
	w.u8(r.Attributes)
}

func (r *InstMemAccessRecord) Format(w io.Writer) {
	fmt.Fprintf(w, "%-20saddr=0x%x size=%d %s attrs=0x%x\n",
		"INST_MEM_ACCESS", r.Address, r.Size, r.AccessType, r.Attributes)
}

func (r *InstMemAccessRecord) Clone() Record { c := *r; return &c }
func (r *InstMemAccessRecord) reset()        { *r = InstMemAccessRecord{recordBase: r.recordBase} }

// InstMemContentRecord carries the data bytes for the preceding
// InstMemAccessRecord; the two always travel together and the reader
// pairs them positionally rather than by any shared key.
type InstMemContentRecord struct {
	recordBase
	Data []byte
}

func newInstMemContentRecord() Record {
	return &InstMemContentRecord{recordBase: recordBase{DescInstMemContent}}
}

func (r *InstMemContentRecord) unpack(fr *fieldReader, _ *RecordContext) { r.Data = fr.lenBytes(2) }
func (r *InstMemContentRecord) pack(w *fieldWriter, _ *RecordContext)    { w.lenBytes(2, r.Data) }
func (r *InstMemContentRecord) Format(w io.Writer) {
	fmt.Fprintf(w, "%-20sdata=%x\n", "INST_MEM_CONTENT", r.Data)
}
func (r *InstMemContentRecord) Clone() Record {
	c := *r
	c.Data = append([]byte(nil), r.Data...)
	return &c
}
func (r *InstMemContentRecord) reset() { r.Data = r.Data[:0] }

// BusMasterAccessRecord is INST_MEM_ACCESS's counterpart for accesses
// issued by a bus master other than the traced core itself (e.g. a DMA
// engine), used by traces that model system-level bus traffic.
type BusMasterAccessRecord struct {
	recordBase
	Address    uint64
	Size       uint16
	AccessType MemAccessType
}

func newBusMasterAccessRecord() Record {
	return &BusMasterAccessRecord{recordBase: recordBase{DescBusMasterAccess}}
}

func (r *BusMasterAccessRecord) unpack(fr *fieldReader, _ *RecordContext) {
	r.Address = fr.u64()
	r.Size = fr.u16()
	r.AccessType = MemAccessType(fr.u8())
}

func (r *BusMasterAccessRecord) pack(w *fieldWriter, _ *RecordContext) {
	w.u64(r.Address)
	w.u16(r.Size)
	w.u8(uint8(r.AccessType))
}

func (r *BusMasterAccessRecord) Format(w io.Writer) {
	fmt.Fprintf(w, "%-20saddr=0x%x size=%d %s\n", "BUS_MASTER_ACCESS", r.Address, r.Size, r.AccessType)
}

func (r *BusMasterAccessRecord) Clone() Record { c := *r; return &c }
func (r *BusMasterAccessRecord) reset()        { *r = BusMasterAccessRecord{recordBase: r.recordBase} }

// BusMasterContentRecord carries the data bytes for the preceding
// BusMasterAccessRecord.
type BusMasterContentRecord struct {
	recordBase
	Data []byte
}

func newBusMasterContentRecord() Record {
	return &BusMasterContentRecord{recordBase: recordBase{DescBusMasterContent}}
}

func (r *BusMasterContentRecord) unpack(fr *fieldReader, _ *RecordContext) { r.Data = fr.lenBytes(2) }
func (r *BusMasterContentRecord) pack(w *fieldWriter, _ *RecordContext)    { w.lenBytes(2, r.Data) }
func (r *BusMasterContentRecord) Format(w io.Writer) {
	fmt.Fprintf(w, "%-20sdata=%x\n", "BUS_MASTER_CONTENT", r.Data)
}
func (r *BusMasterContentRecord) Clone() Record {
	c := *r
	c.Data = append([]byte(nil), r.Data...)
	return &c
}
func (r *BusMasterContentRecord) reset() { r.Data = r.Data[:0] }

// EventRecord reports a discontinuity in normal instruction-by-instruction
// execution: a privilege mode change, a fault, an interrupt, or a syscall
// (spec.md §3 "EVENT record"). Data holds the event-type-specific payload;
// for EventModeChange, Data[0] is the ExecutionMode being entered.
type EventRecord struct {
	recordBase
	Type EventType
	Data []uint64
}

func newEventRecord() Record { return &EventRecord{recordBase: recordBase{DescEvent}} }

func (r *EventRecord) unpack(fr *fieldReader, _ *RecordContext) {
	r.Type = EventType(fr.u16())
	n := fr.u8()
	r.Data = make([]uint64, n)
	for i := range r.Data {
		r.Data[i] = fr.u64()
	}
}

func (r *EventRecord) pack(w *fieldWriter, _ *RecordContext) {
	w.u16(uint16(r.Type))
	w.u8(uint8(len(r.Data)))
	for _, v := range r.Data {
		w.u64(v)
	}
}

func (r *EventRecord) Format(w io.Writer) {
	fmt.Fprintf(w, "%-20s%s data=%v\n", "EVENT", r.Type, r.Data)
}

func (r *EventRecord) Clone() Record {
	c := *r
	c.Data = append([]uint64(nil), r.Data...)
	return &c
}

func (r *EventRecord) reset() {
	r.Type = 0
	r.Data = r.Data[:0]
}

// IsModeChange reports whether this event transitions the execution
// privilege level, the one EventRecord kind both the user-mode skipping
// reader (C8) and the page-table resolver's prefetch thread (C10) track.
func (r *EventRecord) IsModeChange() bool { return r.Type == EventModeChange }

// Mode returns the ExecutionMode this event transitions into. It is only
// meaningful when IsModeChange reports true.
func (r *EventRecord) Mode() ExecutionMode {
	if len(r.Data) == 0 {
		return ModeUser
	}
	return ExecutionMode(r.Data[0])
}

// EventPCTargetRecord carries the PC associated with the preceding EVENT
// record: a trap vector for a fault/interrupt, or the return address for
// a syscall return, depending on EventRecord.Type.
type EventPCTargetRecord struct {
	recordBase
	PC uint64
}

func newEventPCTargetRecord() Record {
	return &EventPCTargetRecord{recordBase: recordBase{DescEventPCTarget}}
}

func (r *EventPCTargetRecord) unpack(fr *fieldReader, _ *RecordContext) { r.PC = fr.u64() }
func (r *EventPCTargetRecord) pack(w *fieldWriter, _ *RecordContext)    { w.u64(r.PC) }
func (r *EventPCTargetRecord) Format(w io.Writer)                       { fmtHex(w, "EVENT_PC_TARGET", r.PC) }
func (r *EventPCTargetRecord) Clone() Record                             { c := *r; return &c }
func (r *EventPCTargetRecord) reset()                                    { r.PC = 0 }

// InstMicroOpRecord names one micro-operation a macro-instruction was
// decomposed into, for traces modeling micro-coded or cracked
// instructions. Readers that don't model micro-ops skip these via the
// descriptor filter.
type InstMicroOpRecord struct {
	recordBase
	MicroOp uint32
}

func newInstMicroOpRecord() Record {
	return &InstMicroOpRecord{recordBase: recordBase{DescInstMicroOp}}
}

func (r *InstMicroOpRecord) unpack(fr *fieldReader, _ *RecordContext) { r.MicroOp = fr.u32() }
func (r *InstMicroOpRecord) pack(w *fieldWriter, _ *RecordContext)    { w.u32(r.MicroOp) }
func (r *InstMicroOpRecord) Format(w io.Writer)                       { fmtHex(w, "MICROOP", uint64(r.MicroOp)) }
func (r *InstMicroOpRecord) Clone() Record                             { c := *r; return &c }
func (r *InstMicroOpRecord) reset()                                    { r.MicroOp = 0 }

// InstOpcode16Record is a marker record (spec.md GLOSSARY "Marker
// record") carrying a 16-bit (compressed) RISC-V opcode; it closes out the
// instruction currently being accumulated and, by default, advances the
// tracked PC by 2.
type InstOpcode16Record struct {
	recordBase
	Opcode uint16
}

func newInstOpcode16Record() Record {
	return &InstOpcode16Record{recordBase: recordBase{DescInstOpcode16}}
}

func (r *InstOpcode16Record) unpack(fr *fieldReader, _ *RecordContext) { r.Opcode = fr.u16() }
func (r *InstOpcode16Record) pack(w *fieldWriter, _ *RecordContext)    { w.u16(r.Opcode) }
func (r *InstOpcode16Record) Format(w io.Writer)                       { fmtHex(w, "OPCODE16", uint64(r.Opcode)) }
func (r *InstOpcode16Record) Clone() Record                             { c := *r; return &c }
func (r *InstOpcode16Record) reset()                                    { r.Opcode = 0 }

// PCAdvance is the default PC increment this opcode implies absent a
// FORCE_PC or INST_PC_TARGET override (spec.md §4.6's PC-tracking rules).
func (r *InstOpcode16Record) PCAdvance() uint64 { return 2 }

// InstOpcode32Record is InstOpcode16Record's 32-bit counterpart, the
// marker record for an uncompressed RISC-V instruction; its default PC
// advance is 4.
type InstOpcode32Record struct {
	recordBase
	Opcode uint32
}

func newInstOpcode32Record() Record {
	return &InstOpcode32Record{recordBase: recordBase{DescInstOpcode32}}
}

func (r *InstOpcode32Record) unpack(fr *fieldReader, _ *RecordContext) { r.Opcode = fr.u32() }
func (r *InstOpcode32Record) pack(w *fieldWriter, _ *RecordContext)    { w.u32(r.Opcode) }
func (r *InstOpcode32Record) Format(w io.Writer)                       { fmtHex(w, "OPCODE32", uint64(r.Opcode)) }
func (r *InstOpcode32Record) Clone() Record                             { c := *r; return &c }
func (r *InstOpcode32Record) reset()                                    { r.Opcode = 0 }

// PCAdvance is the default PC increment this opcode implies.
func (r *InstOpcode32Record) PCAdvance() uint64 { return 4 }
