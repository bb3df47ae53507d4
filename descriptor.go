package stf

import "fmt"

// EncodedDescriptor is the 8-bit tag a record carries on the wire. The
// numeric space is sparse and was assigned for forward/backward
// compatibility; new record kinds get a value from an unused range rather
// than reusing or compacting old ones. Values not named below are
// reserved.
//
// See original_source/stf-inc/stf_descriptor.hpp, which this table
// reproduces verbatim for byte-exact compatibility (spec.md §6).
type EncodedDescriptor uint8

const (
	EncReserved              EncodedDescriptor = 0
	EncIdentifier            EncodedDescriptor = 1
	EncVersion               EncodedDescriptor = 2
	EncComment               EncodedDescriptor = 3
	EncISA                   EncodedDescriptor = 4
	EncInstIEM               EncodedDescriptor = 5
	EncTraceInfo             EncodedDescriptor = 6
	EncTraceInfoFeature      EncodedDescriptor = 7
	EncProcessIDExt          EncodedDescriptor = 8
	EncForcePC               EncodedDescriptor = 9
	EncVlenConfig            EncodedDescriptor = 10
	EncProtocolID            EncodedDescriptor = 11
	EncClockID               EncodedDescriptor = 12
	EncEndHeader             EncodedDescriptor = 19
	EncInstPCTarget          EncodedDescriptor = 31
	EncInstReg               EncodedDescriptor = 40
	EncInstReadyReg          EncodedDescriptor = 41
	EncPageTableWalk         EncodedDescriptor = 50
	EncInstMemAccess         EncodedDescriptor = 60
	EncInstMemContent        EncodedDescriptor = 61
	EncBusMasterAccess       EncodedDescriptor = 62
	EncBusMasterContent      EncodedDescriptor = 63
	EncEvent                 EncodedDescriptor = 100
	EncEventPCTarget         EncodedDescriptor = 101
	EncInstMicroOp           EncodedDescriptor = 230
	EncInstOpcode32          EncodedDescriptor = 240
	EncInstOpcode16          EncodedDescriptor = 241
	EncTransaction           EncodedDescriptor = 250
	EncTransactionDependency EncodedDescriptor = 251
)

// Descriptor is the dense, contiguous internal index used by every
// per-type array in this library: the record pool's freelists and reuse
// caches, the factory's callback table, and filter bitsets. Converting an
// EncodedDescriptor to a Descriptor is a single table lookup
// (descEncodedToInternal); it never allocates and never branches on
// anything but the table.
type Descriptor int

const (
	DescReserved Descriptor = iota
	DescIdentifier
	DescVersion
	DescComment
	DescISA
	DescInstIEM
	DescTraceInfo
	DescTraceInfoFeature
	DescProcessIDExt
	DescForcePC
	DescVlenConfig
	DescProtocolID
	DescClockID
	DescEndHeader
	DescInstPCTarget
	DescInstReg
	DescInstReadyReg
	DescPageTableWalk
	DescInstMemAccess
	DescInstMemContent
	DescBusMasterAccess
	DescBusMasterContent
	DescEvent
	DescEventPCTarget
	DescInstMicroOp
	DescInstOpcode32
	DescInstOpcode16
	DescTransaction
	DescTransactionDependency

	numDescriptors // sentinel: array size for every dense, descriptor-indexed table
)

func (d Descriptor) String() string {
	if s, ok := descriptorNames[d]; ok {
		return s
	}
	return fmt.Sprintf("Descriptor(%d)", int(d))
}

var descriptorNames = map[Descriptor]string{
	DescReserved:              "RESERVED",
	DescIdentifier:            "IDENTIFIER",
	DescVersion:               "VERSION",
	DescComment:               "COMMENT",
	DescISA:                   "ISA",
	DescInstIEM:               "INST_IEM",
	DescTraceInfo:             "TRACE_INFO",
	DescTraceInfoFeature:      "TRACE_INFO_FEATURE",
	DescProcessIDExt:          "PROCESS_ID_EXT",
	DescForcePC:               "FORCE_PC",
	DescVlenConfig:            "VLEN_CONFIG",
	DescProtocolID:            "PROTOCOL_ID",
	DescClockID:               "CLOCK_ID",
	DescEndHeader:             "END_HEADER",
	DescInstPCTarget:          "INST_PC_TARGET",
	DescInstReg:               "INST_REG",
	DescInstReadyReg:          "INST_READY_REG",
	DescPageTableWalk:         "PAGE_TABLE_WALK",
	DescInstMemAccess:         "INST_MEM_ACCESS",
	DescInstMemContent:        "INST_MEM_CONTENT",
	DescBusMasterAccess:       "BUS_MASTER_ACCESS",
	DescBusMasterContent:      "BUS_MASTER_CONTENT",
	DescEvent:                 "EVENT",
	DescEventPCTarget:         "EVENT_PC_TARGET",
	DescInstMicroOp:           "INST_MICROOP",
	DescInstOpcode32:          "INST_OPCODE32",
	DescInstOpcode16:          "INST_OPCODE16",
	DescTransaction:           "TRANSACTION",
	DescTransactionDependency: "TRANSACTION_DEPENDENCY",
}

// descEncodedToInternal maps the sparse on-wire values to the dense
// internal indices. It is built once at init time rather than hand-indexed
// by encoded value, so adding a new descriptor only means adding one
// table row, not resizing a sparse array.
var descEncodedToInternal map[EncodedDescriptor]Descriptor
var descInternalToEncoded [numDescriptors]EncodedDescriptor

func registerDescriptor(enc EncodedDescriptor, internal Descriptor) {
	if descEncodedToInternal == nil {
		descEncodedToInternal = make(map[EncodedDescriptor]Descriptor)
	}
	descEncodedToInternal[enc] = internal
	descInternalToEncoded[internal] = enc
}

func init() {
	registerDescriptor(EncReserved, DescReserved)
	registerDescriptor(EncIdentifier, DescIdentifier)
	registerDescriptor(EncVersion, DescVersion)
	registerDescriptor(EncComment, DescComment)
	registerDescriptor(EncISA, DescISA)
	registerDescriptor(EncInstIEM, DescInstIEM)
	registerDescriptor(EncTraceInfo, DescTraceInfo)
	registerDescriptor(EncTraceInfoFeature, DescTraceInfoFeature)
	registerDescriptor(EncProcessIDExt, DescProcessIDExt)
	registerDescriptor(EncForcePC, DescForcePC)
	registerDescriptor(EncVlenConfig, DescVlenConfig)
	registerDescriptor(EncProtocolID, DescProtocolID)
	registerDescriptor(EncClockID, DescClockID)
	registerDescriptor(EncEndHeader, DescEndHeader)
	registerDescriptor(EncInstPCTarget, DescInstPCTarget)
	registerDescriptor(EncInstReg, DescInstReg)
	registerDescriptor(EncInstReadyReg, DescInstReadyReg)
	registerDescriptor(EncPageTableWalk, DescPageTableWalk)
	registerDescriptor(EncInstMemAccess, DescInstMemAccess)
	registerDescriptor(EncInstMemContent, DescInstMemContent)
	registerDescriptor(EncBusMasterAccess, DescBusMasterAccess)
	registerDescriptor(EncBusMasterContent, DescBusMasterContent)
	registerDescriptor(EncEvent, DescEvent)
	registerDescriptor(EncEventPCTarget, DescEventPCTarget)
	registerDescriptor(EncInstMicroOp, DescInstMicroOp)
	registerDescriptor(EncInstOpcode32, DescInstOpcode32)
	registerDescriptor(EncInstOpcode16, DescInstOpcode16)
	registerDescriptor(EncTransaction, DescTransaction)
	registerDescriptor(EncTransactionDependency, DescTransactionDependency)
}

// toInternal converts an on-wire descriptor to its dense internal form.
// The second return value is false for "unknown descriptor" (not present
// in the encoded table at all) per spec.md §4.4.
func toInternal(enc EncodedDescriptor) (Descriptor, bool) {
	d, ok := descEncodedToInternal[enc]
	return d, ok
}

func (d Descriptor) encoded() EncodedDescriptor {
	return descInternalToEncoded[d]
}

// isMarker reports whether a descriptor counts toward the marker count
// used by Seek: opcode records for instruction traces, transaction records
// for transaction traces (spec.md GLOSSARY "Marker record").
func (d Descriptor) isMarker() bool {
	return d == DescInstOpcode16 || d == DescInstOpcode32 || d == DescTransaction
}
