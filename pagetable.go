package stf

import (
	"encoding/binary"
	"io"
	"sort"
	"sync"
)

// VAMode is the virtual-address translation scheme an SATP value selects
// (original_source/stf-inc/stf_virt_addr_modes.hpp).
type VAMode uint8

const (
	NoTranslation VAMode = iota
	SV32
	SV39
	SV48
	SV57
)

func (m VAMode) String() string {
	switch m {
	case SV32:
		return "SV32"
	case SV39:
		return "SV39"
	case SV48:
		return "SV48"
	case SV57:
		return "SV57"
	default:
		return "NO_TRANSLATION"
	}
}

// vaProperties gives the per-mode constants the translation walk needs:
// how many levels of page table to walk and how wide each level's VPN
// field and PTE pointer are (stf_virt_addr_modes.hpp's VAProperties
// template specializations).
type vaProperties struct {
	virtAddrSize int
	vpnBits      int
	pteShift     int // log2 of PTE size in bytes (2 => 4-byte PTEs, 3 => 8-byte PTEs)
}

var vaPropsTable = map[VAMode]vaProperties{
	SV32: {virtAddrSize: 32, vpnBits: 10, pteShift: 2},
	SV39: {virtAddrSize: 39, vpnBits: 9, pteShift: 3},
	SV48: {virtAddrSize: 48, vpnBits: 9, pteShift: 3},
	SV57: {virtAddrSize: 57, vpnBits: 9, pteShift: 3},
}

const pageOffsetBits = 12

func (p vaProperties) levels() int { return (p.virtAddrSize - pageOffsetBits) / p.vpnBits }

// decodeSATP extracts the translation mode and page-table base address
// from a raw SATP register value, per stf_satp_decoder.hpp's RV32/RV64
// bit layouts.
func decodeSATP(iem IEM, satp uint64) (VAMode, uint64, error) {
	switch iem {
	case IEMRV32:
		const ppnMask = uint64(1)<<22 - 1
		mode := (satp >> 31) & 0x1
		base := (satp & ppnMask) << 12
		switch mode {
		case 0:
			return NoTranslation, 0, nil
		case 1:
			return SV32, base, nil
		default:
			return 0, 0, formatErrorf("invalid rv32 satp mode bit %d", mode)
		}
	case IEMRV64:
		const ppnMask = uint64(1)<<44 - 1
		mode := (satp >> 60) & 0xF
		base := (satp & ppnMask) << 12
		switch mode {
		case 0:
			return NoTranslation, 0, nil
		case 8:
			return SV39, base, nil
		case 9:
			return SV48, base, nil
		case 10:
			return SV57, base, nil
		default:
			return 0, 0, formatErrorf("invalid rv64 satp mode bits %d", mode)
		}
	default:
		return 0, 0, formatErrorf("cannot decode satp without a known IEM")
	}
}

// pteAddrFromValue extracts the physical address a PTE value points to
// (its PPN field, shifted back up to a page-aligned address), per
// stf_page_table.hpp's getAddr_.
func pteAddrFromValue(pteValue uint64) uint64 {
	return ((pteValue >> 10) << 12) & physAddrMask
}

// pteIsLeaf reports whether a PTE value terminates the walk (R or X set),
// stf_page_table.hpp's getLeaf_.
func pteIsLeaf(pteValue uint64) bool { return pteValue&0xA != 0 }

type indexedU64 struct {
	index uint64
	value uint64
}

type indexedMode struct {
	index uint64
	mode  ExecutionMode
}

// PageTable is the address-translation resolver spec.md §4.10 (component
// C10) describes: a version history of every PTE value ever observed at
// each physical address, and of the active SATP and privilege mode over
// time, so Translate(va, index) can answer "what was mapped at this VA as
// of this instruction" for any index in the trace, not just the most
// recent one.
type PageTable struct {
	mu sync.Mutex

	iem IEM

	satpHistory []indexedU64         // ascending by index
	modeHistory []indexedMode        // ascending by index; seeded with {0, MACHINE}
	pte         map[uint64][]indexedU64 // PA -> ascending-by-index PTE value history

	lastValidInsts uint64
	doneReading    bool
	cond           *sync.Cond
}

// NewPageTable returns a resolver for a trace using the given instruction
// encoding mode, seeded with the architectural reset state: machine mode
// from instruction 0 onward until a mode-change EVENT says otherwise.
func NewPageTable(iem IEM) *PageTable {
	pt := &PageTable{
		iem:         iem,
		modeHistory: []indexedMode{{index: 0, mode: ModeMachine}},
		pte:         make(map[uint64][]indexedU64),
	}
	pt.cond = sync.NewCond(&pt.mu)
	return pt
}

func (pt *PageTable) updateSATP(value, index uint64) {
	pt.mu.Lock()
	pt.satpHistory = append(pt.satpHistory, indexedU64{index: index, value: value})
	pt.mu.Unlock()
}

func (pt *PageTable) updateMode(mode ExecutionMode, index uint64) {
	pt.mu.Lock()
	pt.modeHistory = append(pt.modeHistory, indexedMode{index: index, mode: mode})
	pt.mu.Unlock()
}

func (pt *PageTable) updatePTE(pa, value, index uint64) {
	pt.mu.Lock()
	pt.pte[pa] = append(pt.pte[pa], indexedU64{index: index, value: value})
	pt.mu.Unlock()
}

// publish advances the "safe to translate up to" watermark and wakes any
// Translate call waiting on it.
func (pt *PageTable) publish(lastValidInsts uint64) {
	pt.mu.Lock()
	if lastValidInsts > pt.lastValidInsts {
		pt.lastValidInsts = lastValidInsts
	}
	pt.cond.Broadcast()
	pt.mu.Unlock()
}

func (pt *PageTable) markDone() {
	pt.mu.Lock()
	pt.doneReading = true
	pt.cond.Broadcast()
	pt.mu.Unlock()
}

func latestAtOrBefore(history []indexedU64, index uint64) (indexedU64, bool) {
	i := sort.Search(len(history), func(i int) bool { return history[i].index > index })
	if i == 0 {
		return indexedU64{}, false
	}
	return history[i-1], true
}

func latestModeAtOrBefore(history []indexedMode, index uint64) (indexedMode, bool) {
	i := sort.Search(len(history), func(i int) bool { return history[i].index > index })
	if i == 0 {
		return indexedMode{}, false
	}
	return history[i-1], true
}

// Translate resolves va as it would have been mapped at the given
// instruction index, blocking until the background prefetch thread has
// read far enough ahead to answer authoritatively (spec.md §4.10, §5's
// consumer/producer synchronization).
func (pt *PageTable) Translate(va, index uint64) (uint64, error) {
	pt.mu.Lock()
	for !(index <= pt.lastValidInsts || pt.doneReading) {
		pt.cond.Wait()
	}
	defer pt.mu.Unlock()

	mode, ok := latestModeAtOrBefore(pt.modeHistory, index)
	if !ok || mode.mode == ModeMachine {
		return va, nil
	}

	satp, ok := latestAtOrBefore(pt.satpHistory, index)
	if !ok {
		return 0, &TranslationError{VA: va, Index: index}
	}
	vaMode, base, err := decodeSATP(pt.iem, satp.value)
	if err != nil {
		return 0, err
	}
	if vaMode == NoTranslation {
		return va, nil
	}

	props := vaPropsTable[vaMode]
	vpnMask := uint64(1)<<props.vpnBits - 1

	for level := props.levels() - 1; level >= 0; level-- {
		shift := pageOffsetBits + level*props.vpnBits
		vpn := (va >> shift) & vpnMask
		pteAddr := base + (vpn << props.pteShift)

		versions, ok := pt.pte[pteAddr]
		if !ok {
			return 0, &TranslationError{VA: va, Index: index}
		}
		entry, ok := latestAtOrBefore(versions, index)
		if !ok {
			return 0, &TranslationError{VA: va, Index: index}
		}
		if pteIsLeaf(entry.value) {
			physBase := pteAddrFromValue(entry.value)
			offsetMask := uint64(1)<<shift - 1
			return physBase | (va & offsetMask), nil
		}
		base = pteAddrFromValue(entry.value)
	}
	return 0, &TranslationError{VA: va, Index: index}
}

// PTEPrefetcher runs a dedicated BaseReader over the same trace ahead of
// (or independent from) whatever reader the caller is driving, feeding a
// PageTable as it goes (original_source/stf-inc/stf_pte_reader.hpp). It
// owns its BaseReader exclusively; nothing else should call Next on it.
type PTEPrefetcher struct {
	br   *BaseReader
	pt   *PageTable
	stop chan struct{}
	done chan struct{}
}

// NewPTEPrefetcher constructs a prefetcher over br, publishing to pt. Call
// Start to launch its goroutine.
func NewPTEPrefetcher(br *BaseReader, pt *PageTable) *PTEPrefetcher {
	return &PTEPrefetcher{br: br, pt: pt, stop: make(chan struct{}), done: make(chan struct{})}
}

// Start launches the background goroutine. It returns immediately;
// callers that need to know when it's finished (or force it to stop
// early) use Wait/Stop.
func (p *PTEPrefetcher) Start() {
	go p.run()
}

// publishEvery is how many opcode records pass between watermark
// publications, bounding how long a Translate call can block waiting for
// the prefetcher to catch up (original code: DEFAULT_CHUNK_SIZE/10).
const publishEvery = defaultChunkMarkers / 10

func (p *PTEPrefetcher) run() {
	defer close(p.done)
	defer p.pt.markDone()

	var numInstsRead uint64
	var sinceLastPublish int

	for {
		select {
		case <-p.stop:
			return
		default:
		}

		h, err := p.br.Next()
		if err != nil {
			if err != io.EOF {
				_ = err // nothing to surface this error to; EOF and hard errors both end the prefetch pass
			}
			return
		}

		switch r := h.Get().(type) {
		case *PageTableWalkRecord:
			p.pt.updatePTE(r.PA, r.PTEValue, numInstsRead)
		case *InstRegRecord:
			if r.IsSATP() && (r.OperandType == RegState || r.OperandType == RegDest) {
				satpValue := uint64(0)
				if len(r.Data) >= 8 {
					satpValue = binary.LittleEndian.Uint64(r.Data[:8])
				}
				effIndex := numInstsRead
				if r.OperandType == RegDest {
					effIndex += 2
				}
				p.pt.updateSATP(satpValue, effIndex)
			}
		case *EventRecord:
			if r.IsModeChange() {
				idx := numInstsRead
				if idx != 0 {
					idx += 2
				}
				p.pt.updateMode(r.Mode(), idx)
			}
		case *InstOpcode16Record, *InstOpcode32Record:
			numInstsRead = p.br.NumMarkersRead()
			sinceLastPublish++
			if sinceLastPublish >= publishEvery {
				p.pt.publish(numInstsRead)
				sinceLastPublish = 0
			}
		}
		h.Release()
	}
}

// Stop asks the prefetch goroutine to exit at its next opportunity and
// waits for it to do so.
func (p *PTEPrefetcher) Stop() {
	close(p.stop)
	<-p.done
}

// Wait blocks until the prefetch goroutine has run to completion on its
// own (trace exhausted), without requesting early termination.
func (p *PTEPrefetcher) Wait() { <-p.done }
