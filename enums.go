package stf

import "fmt"

// IEM is the instruction encoding mode captured by the trace's header
// (spec.md GLOSSARY "IEM"), which selects both the default opcode width
// and the SATP layout used by the page-table resolver (C10).
type IEM uint8

const (
	IEMInvalid IEM = iota
	IEMRV32
	IEMRV64
)

func (m IEM) String() string {
	switch m {
	case IEMRV32:
		return "RV32"
	case IEMRV64:
		return "RV64"
	default:
		return "INVALID"
	}
}

// ExecutionMode is the RISC-V privilege level a mode-change EVENT record
// transitions into, and the level the page-table resolver checks before
// deciding whether to translate at all (spec.md §4.10 step 1).
type ExecutionMode uint8

const (
	ModeUser ExecutionMode = iota
	ModeSupervisor
	ModeMachine
)

func (m ExecutionMode) String() string {
	switch m {
	case ModeUser:
		return "USER"
	case ModeSupervisor:
		return "SUPERVISOR"
	case ModeMachine:
		return "MACHINE"
	default:
		return fmt.Sprintf("ExecutionMode(%d)", uint8(m))
	}
}

// ProtocolID identifies the polymorphic ProtocolData owned by a
// TransactionRecord (spec.md §3 "ProtocolData"). ProtocolNone means the
// trace carries no transaction payload protocol at all (e.g. an
// instruction trace that happens to define TRANSACTION records for some
// other reason never occurs in practice, but the type exists for
// completeness and future protocols).
type ProtocolID uint8

const (
	ProtocolNone ProtocolID = iota
	ProtocolTileLink
)

func (p ProtocolID) String() string {
	switch p {
	case ProtocolNone:
		return "NONE"
	case ProtocolTileLink:
		return "TILELINK"
	default:
		return fmt.Sprintf("ProtocolID(%d)", uint8(p))
	}
}

// RegOperandType distinguishes the three roles an INST_REG record's
// register can play (spec.md §3 "Register operand record").
type RegOperandType uint8

const (
	RegSource RegOperandType = iota
	RegDest
	RegState
)

func (t RegOperandType) String() string {
	switch t {
	case RegSource:
		return "SOURCE"
	case RegDest:
		return "DEST"
	case RegState:
		return "STATE"
	default:
		return fmt.Sprintf("RegOperandType(%d)", uint8(t))
	}
}

// RegDataType tags whether an operand's data is an integer scalar, a
// floating-point scalar, or a vector (spec.md §3 "int/fp/vector tag").
type RegDataType uint8

const (
	RegInt RegDataType = iota
	RegFP
	RegVector
)

func (t RegDataType) String() string {
	switch t {
	case RegInt:
		return "INT"
	case RegFP:
		return "FP"
	case RegVector:
		return "VECTOR"
	default:
		return fmt.Sprintf("RegDataType(%d)", uint8(t))
	}
}

// MemAccessType distinguishes a load from a store in an INST_MEM_ACCESS
// (or BUS_MASTER_ACCESS) record.
type MemAccessType uint8

const (
	MemRead MemAccessType = iota
	MemWrite
)

func (t MemAccessType) String() string {
	if t == MemWrite {
		return "WRITE"
	}
	return "READ"
}

// EventType enumerates the EVENT record kinds spec.md §3 names: mode
// changes, faults, interrupts, and syscalls. Reserved values beyond these
// are preserved on round-trip via their raw numeric code, matching the
// original descriptor table's "ALLOW_UNKNOWN" policy.
type EventType uint16

const (
	EventModeChange EventType = iota
	EventFault
	EventInterrupt
	EventSyscall
)

func (t EventType) String() string {
	switch t {
	case EventModeChange:
		return "MODE_CHANGE"
	case EventFault:
		return "FAULT"
	case EventInterrupt:
		return "INTERRUPT"
	case EventSyscall:
		return "SYSCALL"
	default:
		return fmt.Sprintf("EventType(%d)", uint16(t))
	}
}

// TraceFeatures is the bitset captured from a TRACE_INFO_FEATURE header
// record (spec.md §3 "trace-feature bitset").
type TraceFeatures uint64

const (
	FeaturePTE        TraceFeatures = 1 << 0
	FeaturePTEOnly    TraceFeatures = 1 << 1
	FeaturePTEHwAD    TraceFeatures = 1 << 2
	FeatureVector     TraceFeatures = 1 << 3
	FeatureMultiCore  TraceFeatures = 1 << 4
	FeaturePhysicalVA TraceFeatures = 1 << 5
)

// HasAny reports whether any of the given feature bits are set, the Go
// equivalent of stf_pte_reader.hpp's hasAnyFeatures call.
func (f TraceFeatures) HasAny(bits ...TraceFeatures) bool {
	for _, b := range bits {
		if f&b != 0 {
			return true
		}
	}
	return false
}
