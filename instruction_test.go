package stf

import "testing"

// fakeBranchDecoder lets decodeBranch's own validation logic (memory
// access / FP operand / too-many-sources rejection, target-law checking)
// be tested independently of riscvBranchDecoder's actual RISC-V bit
// extraction, which branch_decoder_test.go covers on its own.
type fakeBranchDecoder struct {
	decoded BranchDecode
	isBranch bool
}

func (f fakeBranchDecoder) Decode(IEM, uint64, uint32, bool) (BranchDecode, bool) {
	return f.decoded, f.isBranch
}

func TestDecodeBranchConditional(t *testing.T) {
	inst := &Instruction{PC: 0x1000, PCTarget: 0x1010, HasPCTarget: true}
	decoder := fakeBranchDecoder{isBranch: true, decoded: BranchDecode{Target: 0x1010, Conditional: true}}
	b, ok, err := decodeBranch(inst, decoder)
	if err != nil {
		t.Fatalf("decodeBranch: %v", err)
	}
	if !ok {
		t.Fatal("expected a decodable branch")
	}
	if !b.Conditional || !b.Taken || b.HasRS1 || b.HasRS2 {
		t.Fatalf("unexpected branch: %+v", b)
	}
}

func TestDecodeBranchCall(t *testing.T) {
	inst := &Instruction{
		PC: 0x2000, PCTarget: 0x3000, HasPCTarget: true,
		Regs: []RegOperand{
			{Reg: 1, OperandType: RegSource, DataType: RegInt},
		},
	}
	decoder := fakeBranchDecoder{isBranch: true, decoded: BranchDecode{Target: 0x3000, Call: true}}
	b, ok, err := decodeBranch(inst, decoder)
	if err != nil {
		t.Fatalf("decodeBranch: %v", err)
	}
	if !ok || !b.Call || !b.HasRS1 || b.HasRS2 || b.RS1 != 1 {
		t.Fatalf("unexpected branch: %+v", b)
	}
}

// TestDecodeBranchIndirectReturn exercises the scenario a single
// BranchKind enum could never represent: a `jalr x0, x1, 0` return is
// simultaneously Indirect and Return.
func TestDecodeBranchIndirectReturn(t *testing.T) {
	inst := &Instruction{
		PC: 0x2000, PCTarget: 0x2000, HasPCTarget: true,
		Regs: []RegOperand{
			{Reg: 1, OperandType: RegSource, DataType: RegInt},
		},
	}
	decoder := fakeBranchDecoder{isBranch: true, decoded: BranchDecode{Indirect: true, Return: true}}
	b, ok, err := decodeBranch(inst, decoder)
	if err != nil {
		t.Fatalf("decodeBranch: %v", err)
	}
	if !ok || !b.Indirect || !b.Return || b.Call {
		t.Fatalf("unexpected branch: %+v", b)
	}
}

func TestDecodeBranchIndirectRequiresTraceTarget(t *testing.T) {
	inst := &Instruction{PC: 0x2000}
	decoder := fakeBranchDecoder{isBranch: true, decoded: BranchDecode{Indirect: true}}
	if _, _, err := decodeBranch(inst, decoder); err == nil {
		t.Fatal("expected an error for an indirect branch with no trace target")
	}
}

func TestDecodeBranchTargetMismatch(t *testing.T) {
	inst := &Instruction{PC: 0x1000, PCTarget: 0x1010, HasPCTarget: true}
	decoder := fakeBranchDecoder{isBranch: true, decoded: BranchDecode{Target: 0x2000, Conditional: true}}
	if _, _, err := decodeBranch(inst, decoder); err == nil {
		t.Fatal("expected an error when the decoded target disagrees with the trace's")
	}
}

func TestDecodeBranchRejectsMemAccess(t *testing.T) {
	inst := &Instruction{
		PC: 0x1000, PCTarget: 0x1010, HasPCTarget: true,
		MemAccesses: []MemAccess{{Address: 0x4000}},
	}
	decoder := fakeBranchDecoder{isBranch: true, decoded: BranchDecode{Target: 0x1010, Conditional: true}}
	if _, _, err := decodeBranch(inst, decoder); err == nil {
		t.Fatal("expected an error for a branch instruction with a memory access")
	}
}

func TestDecodeBranchRejectsFPOperand(t *testing.T) {
	inst := &Instruction{
		PC: 0x1000, PCTarget: 0x1010, HasPCTarget: true,
		Regs: []RegOperand{{Reg: 5, OperandType: RegSource, DataType: RegFP}},
	}
	decoder := fakeBranchDecoder{isBranch: true, decoded: BranchDecode{Target: 0x1010, Conditional: true}}
	if _, _, err := decodeBranch(inst, decoder); err == nil {
		t.Fatal("expected an error for a branch instruction with an FP source operand")
	}
}

func TestDecodeBranchRejectsThreeIntSources(t *testing.T) {
	inst := &Instruction{
		PC: 0x1000, PCTarget: 0x1010, HasPCTarget: true,
		Regs: []RegOperand{
			{Reg: 1, OperandType: RegSource, DataType: RegInt},
			{Reg: 2, OperandType: RegSource, DataType: RegInt},
			{Reg: 3, OperandType: RegSource, DataType: RegInt},
		},
	}
	decoder := fakeBranchDecoder{isBranch: true, decoded: BranchDecode{Target: 0x1010, Conditional: true}}
	if _, _, err := decodeBranch(inst, decoder); err == nil {
		t.Fatal("expected an error for more than two integer source operands")
	}
}

func TestDecodeBranchNotABranch(t *testing.T) {
	inst := &Instruction{PC: 0x1000}
	_, ok, err := decodeBranch(inst, fakeBranchDecoder{isBranch: false})
	if err != nil {
		t.Fatalf("decodeBranch: %v", err)
	}
	if ok {
		t.Fatal("an opcode the decoder doesn't recognize should not decode as a branch")
	}
}

// TestInstructionReaderUserModeSkipping exercises the full write->read
// pipeline: an instruction that changes mode away from USER starts a
// skipped region immediately; the instruction whose event returns to USER
// is still marked skipped, and only the one after it is not.
func TestInstructionReaderUserModeSkipping(t *testing.T) {
	buf := &memBuffer{}
	w, err := NewWriter(buf, WriterOptions{ChunkMarkers: 16})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.SetForcePC(0x1000)
	if err := w.FlushHeader(); err != nil {
		t.Fatalf("FlushHeader: %v", err)
	}

	// inst 1: plain, still in USER mode.
	mustWrite(t, w, &InstOpcode32Record{recordBase: recordBase{DescInstOpcode32}, Opcode: 1})
	// inst 2: traps into machine mode -- this instruction and everything
	// after it should be marked skipped immediately.
	mustWrite(t, w, &EventRecord{recordBase: recordBase{DescEvent}, Type: EventModeChange, Data: []uint64{uint64(ModeMachine)}})
	mustWrite(t, w, &InstOpcode32Record{recordBase: recordBase{DescInstOpcode32}, Opcode: 2})
	// inst 3: still skipped.
	mustWrite(t, w, &InstOpcode32Record{recordBase: recordBase{DescInstOpcode32}, Opcode: 3})
	// inst 4: the event returning to USER mode lands here -- still skipped,
	// since the transition happens inside this instruction.
	mustWrite(t, w, &EventRecord{recordBase: recordBase{DescEvent}, Type: EventModeChange, Data: []uint64{uint64(ModeUser)}})
	mustWrite(t, w, &InstOpcode32Record{recordBase: recordBase{DescInstOpcode32}, Opcode: 4})
	// inst 5: first instruction strictly after the return -- not skipped.
	mustWrite(t, w, &InstOpcode32Record{recordBase: recordBase{DescInstOpcode32}, Opcode: 5})

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	buf.pos = 0
	br, err := Open(buf, ReaderOptions{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer br.Close()

	ir := NewInstructionReader(br, true)
	wantSkipped := []bool{false, true, true, true, false}
	for i, want := range wantSkipped {
		inst, err := ir.readNext()
		if err != nil {
			t.Fatalf("readNext(%d): %v", i, err)
		}
		if inst.Opcode != uint32(i+1) {
			t.Fatalf("inst %d: Opcode = %d, want %d", i, inst.Opcode, i+1)
		}
		if inst.Skipped() != want {
			t.Fatalf("inst %d (opcode %d): Skipped() = %v, want %v", i, inst.Opcode, inst.Skipped(), want)
		}
	}
}

func mustWrite(t *testing.T, w *Writer, rec Record) {
	t.Helper()
	if err := w.WriteRecord(rec); err != nil {
		t.Fatalf("WriteRecord(%T): %v", rec, err)
	}
}
