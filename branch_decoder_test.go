package stf

import "testing"

// TestRISCVBranchDecoderJALCall is the literal "JAL x1,+8" scenario: a
// destination register and zero source operands, which a source-operand-
// count heuristic would misclassify as conditional. The decoder must
// recognize it purely from the opcode bits as a call.
func TestRISCVBranchDecoderJALCall(t *testing.T) {
	const opcode = 0x8000EF // jal x1, 8
	d, ok := defaultBranchDecoder.Decode(IEMRV64, 0x1000, opcode, false)
	if !ok {
		t.Fatal("expected JAL to decode as a branch")
	}
	if !d.Call || d.Conditional || d.Return || d.Indirect {
		t.Fatalf("unexpected decode: %+v", d)
	}
	if d.Target != 0x1008 {
		t.Fatalf("Target = 0x%x, want 0x1008", d.Target)
	}
}

// TestRISCVBranchDecoderJALRReturn is the literal "JALR x0,x1,0" scenario:
// one source operand, which a source-operand-count heuristic would
// misclassify as a call. The decoder must report it as both Indirect and
// Return simultaneously — a single BranchKind enum cannot represent this.
func TestRISCVBranchDecoderJALRReturn(t *testing.T) {
	const opcode = 0x8067 // jalr x0, x1, 0
	d, ok := defaultBranchDecoder.Decode(IEMRV64, 0x2000, opcode, false)
	if !ok {
		t.Fatal("expected JALR to decode as a branch")
	}
	if !d.Indirect || !d.Return || d.Call || d.Conditional {
		t.Fatalf("unexpected decode: %+v", d)
	}
}

func TestRISCVBranchDecoderConditional(t *testing.T) {
	const opcode = 0x463 // beq x0, x0, 8
	d, ok := defaultBranchDecoder.Decode(IEMRV64, 0x1000, opcode, false)
	if !ok {
		t.Fatal("expected BEQ to decode as a branch")
	}
	if !d.Conditional || d.Call || d.Return || d.Indirect {
		t.Fatalf("unexpected decode: %+v", d)
	}
	if d.Target != 0x1008 {
		t.Fatalf("Target = 0x%x, want 0x1008", d.Target)
	}
}

func TestRISCVBranchDecoderNotABranch(t *testing.T) {
	const opcode = 0x00000013 // addi x0, x0, 0
	if _, ok := defaultBranchDecoder.Decode(IEMRV64, 0x1000, opcode, false); ok {
		t.Fatal("ADDI should not decode as a branch")
	}
}

// TestRISCVBranchDecoderCJALRV32Only checks that C.JAL, which reuses
// C.ADDIW's encoding on RV64, is only recognized as a branch under RV32.
func TestRISCVBranchDecoderCJALRV32Only(t *testing.T) {
	const opcode = 0x2005 // c.jal +32 (RV32 only)
	if _, ok := defaultBranchDecoder.Decode(IEMRV64, 0x1000, opcode, true); ok {
		t.Fatal("C.JAL should not decode as a branch under RV64")
	}
	d, ok := defaultBranchDecoder.Decode(IEMRV32, 0x1000, opcode, true)
	if !ok {
		t.Fatal("expected C.JAL to decode as a branch under RV32")
	}
	if !d.Call || d.Conditional || d.Return || d.Indirect {
		t.Fatalf("unexpected decode: %+v", d)
	}
}

func TestRISCVBranchDecoderCJR(t *testing.T) {
	const opcode = 0x8082 // c.jr x1 (ret)
	d, ok := defaultBranchDecoder.Decode(IEMRV64, 0x3000, opcode, true)
	if !ok {
		t.Fatal("expected C.JR to decode as a branch")
	}
	if !d.Indirect || !d.Return || d.Call {
		t.Fatalf("unexpected decode: %+v", d)
	}
}
