package stf

import (
	"fmt"
	"io"
)

// PageTableWalkRecord reports one observed page-table-entry value at a
// given physical address, the raw material the page-table resolver (C10)
// builds its per-SATP, per-PA version history from (spec.md §4.10). A
// single walk (one VA lookup) typically produces several of these, one per
// level visited.
type PageTableWalkRecord struct {
	recordBase
	PA       uint64
	PTEValue uint64
}

func newPageTableWalkRecord() Record {
	return &PageTableWalkRecord{recordBase: recordBase{DescPageTableWalk}}
}

func (r *PageTableWalkRecord) unpack(fr *fieldReader, _ *RecordContext) {
	r.PA = fr.u64()
	r.PTEValue = fr.u64()
}

func (r *PageTableWalkRecord) pack(w *fieldWriter, _ *RecordContext) {
	w.u64(r.PA)
	w.u64(r.PTEValue)
}

func (r *PageTableWalkRecord) Format(w io.Writer) {
	fmt.Fprintf(w, "%-20spa=0x%x pte=0x%x\n", "PAGE_TABLE_WALK", r.PA, r.PTEValue)
}

func (r *PageTableWalkRecord) Clone() Record { c := *r; return &c }
func (r *PageTableWalkRecord) reset()        { *r = PageTableWalkRecord{recordBase: r.recordBase} }

// The physical address and leaf bit math this record's PTEValue encodes
// (pteAddrFromValue/pteIsLeaf, pagetable.go) is shared with PageTable's
// translation walk, so it lives there rather than being duplicated here.

const physAddrMask = (uint64(1) << 56) - 1
