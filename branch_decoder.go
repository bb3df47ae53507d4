package stf

// BranchDecoder extracts the control-flow shape of an instruction from its
// raw opcode bits alone — the bit-field-extraction collaborator spec.md's
// OVERVIEW lists as an external interface contract rather than something
// this package owns the semantics of. The default implementation mirrors
// original_source/stf-inc/stf_branch_decoder.hpp's decodeBranch16_ and
// decodeBranch32_: a branch reader (C8) depends on this interface, never
// on the concrete decoder, so a trace tool targeting a different ISA can
// supply its own.
type BranchDecoder interface {
	// Decode reports whether the instruction at pc with the given opcode
	// is a recognized control-flow transfer, and if so its shape. iem
	// disambiguates encodings, like compressed JAL, that only exist on
	// one base ISA width. opcode16 selects the compressed decode path.
	Decode(iem IEM, pc uint64, opcode uint32, opcode16 bool) (BranchDecode, bool)
}

// BranchDecode is one BranchDecoder.Decode outcome. Conditional, Call,
// Return, and Indirect are independent flags, not a single classification:
// `jalr x0, x1, 0` (a return) is simultaneously Indirect and Return, and a
// taken unconditional jump is neither conditional nor indirect.
// Target is only meaningful when Indirect is false; an indirect branch's
// destination is never encoded in the opcode, only in the trace's own
// INST_PC_TARGET record.
type BranchDecode struct {
	Target      uint64
	Conditional bool
	Call        bool
	Return      bool
	Indirect    bool
}

// defaultBranchDecoder is the RISC-V decoder every BranchReader uses
// unless told otherwise.
var defaultBranchDecoder BranchDecoder = riscvBranchDecoder{}

// riscvBranchDecoder implements BranchDecoder for the standard RISC-V "C"
// and base integer control-transfer instructions: JAL, JALR, and the Bxx
// conditional branches, plus their compressed (16-bit) equivalents C.J,
// C.JAL (RV32 only), C.BEQZ/C.BNEZ, and C.JR/C.JALR.
type riscvBranchDecoder struct{}

func (riscvBranchDecoder) Decode(iem IEM, pc uint64, opcode uint32, opcode16 bool) (BranchDecode, bool) {
	if opcode16 {
		return decodeBranch16(iem, pc, uint16(opcode))
	}
	return decodeBranch32(pc, opcode)
}

func bitAt(v uint32, n uint) uint32 { return (v >> n) & 1 }

func bitRange(v uint32, hi, lo uint) uint32 {
	return (v >> lo) & ((1 << (hi - lo + 1)) - 1)
}

// signExtend sign-extends the low `width` bits of v to an int64.
func signExtend(v uint32, width uint) int64 {
	shift := 32 - width
	return int64(int32(v<<shift) >> shift)
}

// decodeBranch32 decodes a standard (32-bit) RISC-V opcode. Grounded on
// stf_branch_decoder.hpp's decodeBranch32_: opcode bits[6:5] must read
// 0b11 (the marker shared by JAL/JALR/Bxx's 5-bit major opcode), and
// bits[4:2] select which of the three this is.
func decodeBranch32(pc uint64, opcode uint32) (BranchDecode, bool) {
	if bitRange(opcode, 6, 5) != 0b11 {
		return BranchDecode{}, false
	}
	switch bitRange(opcode, 4, 2) {
	case 0b000: // Bxx: conditional branch, B-type immediate
		imm := (bitAt(opcode, 31) << 12) | (bitAt(opcode, 7) << 11) |
			(bitRange(opcode, 30, 25) << 5) | (bitRange(opcode, 11, 8) << 1)
		target := uint64(int64(pc) + signExtend(imm, 13))
		return BranchDecode{Target: target, Conditional: true}, true
	case 0b001: // JALR: indirect; rd==x0 marks a plain indirect jump/return
		rd := bitRange(opcode, 11, 7)
		rs1 := bitRange(opcode, 19, 15)
		return BranchDecode{
			Call:     rd != 0,
			Return:   rd == 0 && rs1 == 1,
			Indirect: true,
		}, true
	case 0b011: // JAL: direct call/jump, J-type immediate
		imm := (bitAt(opcode, 31) << 20) | (bitRange(opcode, 19, 12) << 12) |
			(bitAt(opcode, 20) << 11) | (bitRange(opcode, 30, 21) << 1)
		target := uint64(int64(pc) + signExtend(imm, 21))
		rd := bitRange(opcode, 11, 7)
		return BranchDecode{Target: target, Call: rd != 0}, true
	default:
		return BranchDecode{}, false
	}
}

// decodeBranch16 decodes a compressed (16-bit) RISC-V opcode. Grounded on
// stf_branch_decoder.hpp's decodeBranch16_.
func decodeBranch16(iem IEM, pc uint64, opcode uint16) (BranchDecode, bool) {
	o := uint32(opcode)
	top := bitRange(o, 15, 13)
	bottom := bitRange(o, 1, 0)

	switch top {
	case 0b001: // C.JAL, RV32 only
		if bottom != 0b01 || iem != IEMRV32 {
			return BranchDecode{}, false
		}
		target := uint64(int64(pc) + cjImm(o))
		return BranchDecode{Target: target, Call: true}, true
	case 0b110, 0b111: // C.BEQZ, C.BNEZ
		if bottom != 0b01 {
			return BranchDecode{}, false
		}
		target := uint64(int64(pc) + cbImm(o))
		return BranchDecode{Target: target, Conditional: true}, true
	case 0b100: // C.JR / C.JALR
		rs1 := bitRange(o, 11, 7)
		rs2 := bitRange(o, 6, 2)
		if bottom != 0b10 || rs1 == 0 || rs2 != 0 {
			return BranchDecode{}, false
		}
		call := bitAt(o, 12) != 0
		return BranchDecode{
			Call:     call,
			Return:   !call && rs1 == 1,
			Indirect: true,
		}, true
	case 0b101: // C.J: plain unconditional jump, no call/return/indirect flag
		if bottom != 0b01 {
			return BranchDecode{}, false
		}
		target := uint64(int64(pc) + cjImm(o))
		return BranchDecode{Target: target}, true
	default:
		return BranchDecode{}, false
	}
}

// cjImm extracts the CJ-type immediate C.J and C.JAL share:
// imm[11|4|9:8|10|6|7|3:1|5], implicit imm[0]=0.
func cjImm(o uint32) int64 {
	raw := (bitAt(o, 12) << 11) | (bitAt(o, 8) << 10) | (bitAt(o, 10) << 9) | (bitAt(o, 9) << 8) |
		(bitAt(o, 6) << 7) | (bitAt(o, 7) << 6) | (bitAt(o, 2) << 5) | (bitAt(o, 11) << 4) |
		(bitRange(o, 5, 3) << 1)
	return signExtend(raw, 12)
}

// cbImm extracts the CB-type immediate C.BEQZ and C.BNEZ share:
// imm[8|4:3|7:6|2:1|5], implicit imm[0]=0.
func cbImm(o uint32) int64 {
	raw := (bitAt(o, 12) << 8) | (bitAt(o, 6) << 7) | (bitAt(o, 5) << 6) | (bitAt(o, 2) << 5) |
		(bitRange(o, 11, 10) << 3) | (bitRange(o, 4, 3) << 1)
	return signExtend(raw, 9)
}
