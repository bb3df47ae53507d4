package stf

// RegOperand is a value-copy snapshot of an InstRegRecord, taken so the
// underlying record can be released back to the pool (C3) the moment its
// fields are read rather than staying retained for the Instruction's
// entire lifetime.
type RegOperand struct {
	Reg         uint32
	OperandType RegOperandType
	DataType    RegDataType
	Data        []byte
}

// ReadyRegOperand is InstReadyRegRecord's value-copy counterpart.
type ReadyRegOperand struct {
	Reg      uint32
	DataType RegDataType
	Data     []byte
}

// MemAccess is a value-copy snapshot of an InstMemAccessRecord, with any
// following InstMemContentRecord's bytes folded into Content (nil if none
// followed).
type MemAccess struct {
	Address    uint64
	Size       uint16
	AccessType MemAccessType
	Attributes uint8
	Content    []byte
}

// InstEvent is a value-copy snapshot of an EventRecord, with any following
// EventPCTargetRecord's PC folded into Target/HasTarget.
type InstEvent struct {
	Type      EventType
	Data      []uint64
	Target    uint64
	HasTarget bool
}

// Instruction is one fully-accumulated instruction: the opcode record
// that closed it out, plus every INST_REG/INST_MEM_ACCESS/EVENT/etc.
// record that preceded it since the last opcode (spec.md §4.8,
// component C8). Every record consumed while accumulating it has already
// been released back to the pool by the time readNext returns one.
type Instruction struct {
	itemBase

	PC       uint64
	Opcode   uint32
	Opcode16 bool
	IEM      IEM

	Regs        []RegOperand
	ReadyRegs   []ReadyRegOperand
	MemAccesses []MemAccess

	Events []InstEvent

	MicroOps []uint32

	// PCTarget is the branch/jump target an INST_PC_TARGET record
	// assigned to this instruction, if any.
	PCTarget    uint64
	HasPCTarget bool
}

// IsOpcode16 reports whether this instruction used the compressed 16-bit
// encoding.
func (i *Instruction) IsOpcode16() bool { return i.Opcode16 }

// InstructionReader accumulates BaseReader's flat record stream into
// Instruction items and implements user-mode skipping (spec.md §4.8):
// once a mode-change EVENT leaves USER mode, every subsequent instruction
// is marked Skipped until a mode-change EVENT returns to USER mode — and
// even then, the instruction containing that return event is still
// marked skipped, since it straddles the transition; only instructions
// strictly after it are unskipped.
type InstructionReader struct {
	br    *BaseReader
	index uint64

	skipUserMode  bool
	skipping      bool
	pendingUnskip bool
}

// NewInstructionReader wraps br. When skipUserMode is true, instructions
// executed outside USER mode are marked Skipped rather than omitted —
// callers that want them physically excluded should check Instruction.Skipped()
// themselves, since omitting them here would break PC continuity for
// anything downstream that expects every instruction index to appear.
func NewInstructionReader(br *BaseReader, skipUserMode bool) *InstructionReader {
	return &InstructionReader{br: br, skipUserMode: skipUserMode}
}

// readNext implements itemSource[Instruction] for BufferedReader (C7).
func (ir *InstructionReader) readNext() (Instruction, error) {
	var inst Instruction
	for {
		h, err := ir.br.Next()
		if err != nil {
			return Instruction{}, err
		}
		rec := h.Get()
		switch r := rec.(type) {
		case *InstRegRecord:
			inst.Regs = append(inst.Regs, RegOperand{
				Reg: r.Reg, OperandType: r.OperandType, DataType: r.DataType, Data: r.Data,
			})
			h.Release()
		case *InstReadyRegRecord:
			inst.ReadyRegs = append(inst.ReadyRegs, ReadyRegOperand{
				Reg: r.Reg, DataType: r.DataType, Data: r.Data,
			})
			h.Release()
		case *InstMemAccessRecord:
			inst.MemAccesses = append(inst.MemAccesses, MemAccess{
				Address: r.Address, Size: r.Size, AccessType: r.AccessType, Attributes: r.Attributes,
			})
			h.Release()
		case *InstMemContentRecord:
			if n := len(inst.MemAccesses); n > 0 {
				inst.MemAccesses[n-1].Content = r.Data
			}
			h.Release()
		case *InstMicroOpRecord:
			inst.MicroOps = append(inst.MicroOps, r.MicroOp)
			h.Release()
		case *InstPCTargetRecord:
			inst.PCTarget = r.PC
			inst.HasPCTarget = true
			h.Release()
		case *EventRecord:
			inst.Events = append(inst.Events, InstEvent{Type: r.Type, Data: r.Data})
			if ir.skipUserMode && r.IsModeChange() {
				if r.Mode() != ModeUser {
					ir.skipping = true
				} else {
					ir.pendingUnskip = true
				}
			}
			h.Release()
		case *EventPCTargetRecord:
			if n := len(inst.Events); n > 0 {
				inst.Events[n-1].Target = r.PC
				inst.Events[n-1].HasTarget = true
			}
			h.Release()
		case *InstOpcode16Record:
			inst.PC = ir.br.LastInstructionPC()
			inst.Opcode = uint32(r.Opcode)
			inst.Opcode16 = true
			inst.IEM = ir.br.IEM()
			h.Release()
			return ir.finish(inst), nil
		case *InstOpcode32Record:
			inst.PC = ir.br.LastInstructionPC()
			inst.Opcode = r.Opcode
			inst.Opcode16 = false
			inst.IEM = ir.br.IEM()
			h.Release()
			return ir.finish(inst), nil
		default:
			h.Release()
		}
	}
}

func (ir *InstructionReader) finish(inst Instruction) Instruction {
	ir.index++
	inst.index = ir.index
	inst.skipped = ir.skipping
	if ir.pendingUnskip {
		ir.skipping = false
		ir.pendingUnskip = false
	}
	return inst
}

// Skipping reports whether the reader is currently inside a skipped
// (non-USER-mode) region.
func (ir *InstructionReader) Skipping() bool { return ir.skipping }

// Seek delegates to the underlying BaseReader's chunk-granularity seek,
// refusing to do so whenever user-mode skipping is enabled (spec.md §4.8's
// fast-seek restriction): chunk boundaries carry no skip state, so a jump
// would lose track of which instructions to skip.
func (ir *InstructionReader) Seek(markerCount uint64) error {
	if ir.skipUserMode {
		return skippingErrorf("cannot fast-seek while user-mode skipping is enabled")
	}
	return ir.br.Seek(markerCount)
}

// Branch is a restricted view over an Instruction: only instructions
// recognized as control-flow transfers reach a BranchReader's readNext,
// and only their source/target/operand registers are exposed. Conditional,
// Call, Return, and Indirect are independent, not mutually exclusive: a
// `jalr x0, x1, 0` return is both Indirect and Return.
type Branch struct {
	itemBase

	PC     uint64
	Target uint64
	Taken  bool

	Conditional bool
	Call        bool
	Return      bool
	Indirect    bool

	RS1    uint32
	RS2    uint32
	HasRS1 bool
	HasRS2 bool
}

// BranchReader sits on top of InstructionReader and narrows its output to
// decodable branches, validating each one's decoded target against the
// trace's own INST_PC_TARGET record and rejecting instructions a branch
// can't be built from cleanly: any with a memory access, a
// floating-point-tagged register operand, or more than two integer
// source operands (spec.md §4.8).
type BranchReader struct {
	inst    *InstructionReader
	decoder BranchDecoder
}

// NewBranchReader wraps an InstructionReader, which BranchReader
// consumes exclusively: nothing else should call its readNext once a
// BranchReader owns it. Branches are classified with the default RISC-V
// decoder; use NewBranchReaderWithDecoder to supply another.
func NewBranchReader(inst *InstructionReader) *BranchReader {
	return NewBranchReaderWithDecoder(inst, defaultBranchDecoder)
}

// NewBranchReaderWithDecoder is NewBranchReader, but with an explicit
// BranchDecoder — the interface instruction.go depends on rather than any
// concrete decoding logic, so a trace tool for a non-RISC-V target can
// supply its own field-extraction rules.
func NewBranchReaderWithDecoder(inst *InstructionReader, decoder BranchDecoder) *BranchReader {
	return &BranchReader{inst: inst, decoder: decoder}
}

// readNext implements itemSource[Branch] for BufferedReader (C7). It
// loops past non-branch instructions until it finds (or fails to
// validate) one that decodes as a branch.
func (br *BranchReader) readNext() (Branch, error) {
	for {
		inst, err := br.inst.readNext()
		if err != nil {
			return Branch{}, err
		}
		b, ok, err := decodeBranch(&inst, br.decoder)
		if err != nil {
			return Branch{}, err
		}
		if !ok {
			continue
		}
		b.itemBase = inst.itemBase
		return b, nil
	}
}

// decodeBranch attempts to classify inst as a branch. The second return
// value is false (with a nil error) for instructions the decoder doesn't
// recognize as control-flow transfers at all; it returns an error when
// inst decodes as a branch but violates one of BranchReader's
// restrictions, or fails the branch-target law (spec.md §4.8, §7, §8):
// a non-indirect branch's decoded target must equal the trace's own
// INST_PC_TARGET whenever one is present, and an indirect branch must
// have one.
func decodeBranch(inst *Instruction, decoder BranchDecoder) (Branch, bool, error) {
	decoded, ok := decoder.Decode(inst.IEM, inst.PC, inst.Opcode, inst.Opcode16)
	if !ok {
		return Branch{}, false, nil
	}

	if len(inst.MemAccesses) > 0 {
		return Branch{}, false, semanticErrorf("instruction at pc 0x%x has a branch target and a memory access", inst.PC)
	}

	var rs1, rs2 uint32
	var hasRS1, hasRS2 bool
	intSources := 0
	for _, reg := range inst.Regs {
		if reg.OperandType != RegSource {
			continue
		}
		if reg.DataType == RegFP {
			return Branch{}, false, semanticErrorf("instruction at pc 0x%x has a branch target and a floating-point operand", inst.PC)
		}
		intSources++
		if intSources > 2 {
			return Branch{}, false, semanticErrorf("instruction at pc 0x%x has more than two integer source operands", inst.PC)
		}
		if !hasRS1 {
			rs1, hasRS1 = reg.Reg, true
		} else {
			rs2, hasRS2 = reg.Reg, true
		}
	}

	if decoded.Indirect {
		if !inst.HasPCTarget {
			return Branch{}, false, semanticErrorf("indirect branch at pc 0x%x has no trace target", inst.PC)
		}
	} else if inst.HasPCTarget && inst.PCTarget != decoded.Target {
		return Branch{}, false, mismatchErrorf(
			"decoded branch target 0x%x for instruction at pc 0x%x does not match trace target 0x%x",
			decoded.Target, inst.PC, inst.PCTarget)
	}

	target := decoded.Target
	if inst.HasPCTarget {
		target = inst.PCTarget
	}

	return Branch{
		PC:          inst.PC,
		Target:      target,
		Taken:       inst.HasPCTarget && inst.PCTarget != inst.PC,
		Conditional: decoded.Conditional,
		Call:        decoded.Call,
		Return:      decoded.Return,
		Indirect:    decoded.Indirect,
		RS1:         rs1,
		RS2:         rs2,
		HasRS1:      hasRS1,
		HasRS2:      hasRS2,
	}, true, nil
}

var _ itemSource[Instruction] = (*InstructionReader)(nil)
var _ itemSource[Branch] = (*BranchReader)(nil)
