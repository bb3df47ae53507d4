package stf

import "testing"

// TestPageTableTranslateSV39 walks a synthetic three-level SV39 page table
// built directly via PageTable's update methods (bypassing PTEPrefetcher,
// which only wires the same calls to a live record stream) and checks the
// resolved physical address of a 4 KiB leaf at the last level.
func TestPageTableTranslateSV39(t *testing.T) {
	pt := NewPageTable(IEMRV64)

	const (
		satpValue = uint64(8)<<60 | 1 // mode=SV39 (8), PPN=1 -> root at PA 0x1000
		rootPA    = 0x1000
		midPA     = 0x2000
		leafTable = 0x3000
		leafEntry = 0x3008 // leafTable + vpn0(=1)*8
		physFrame = 0x9000
	)

	// non-leaf PTEs point at the next table: value = (nextPA>>12)<<10.
	rootEntry := uint64(midPA>>12) << 10
	midEntry := uint64(leafTable>>12) << 10
	// leaf PTE: R and X bits set (mask 0xA) so pteIsLeaf is true.
	leafVal := uint64(physFrame>>12)<<10 | 0xA

	pt.updateMode(ModeUser, 0)
	pt.updateSATP(satpValue, 0)
	pt.updatePTE(rootPA, rootEntry, 0)
	pt.updatePTE(midPA, midEntry, 0)
	pt.updatePTE(leafEntry, leafVal, 0)
	pt.publish(0)
	pt.markDone()

	const va = 0x1234 // vpn2=0, vpn1=0, vpn0=1, offset=0x234
	pa, err := pt.Translate(va, 0)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if want := uint64(physFrame | 0x234); pa != want {
		t.Fatalf("Translate(0x%x) = 0x%x, want 0x%x", va, pa, want)
	}
}

func TestPageTableTranslateMachineModeIsIdentity(t *testing.T) {
	pt := NewPageTable(IEMRV64)
	pt.publish(0)
	pt.markDone()

	const va = 0xdeadbeef
	pa, err := pt.Translate(va, 0)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if pa != va {
		t.Fatalf("Translate in machine mode = 0x%x, want identity 0x%x", pa, va)
	}
}

func TestPageTableTranslateMissingPTEFails(t *testing.T) {
	pt := NewPageTable(IEMRV64)
	const satpValue = uint64(8)<<60 | 1
	pt.updateMode(ModeUser, 0)
	pt.updateSATP(satpValue, 0)
	pt.publish(0)
	pt.markDone()

	if _, err := pt.Translate(0x1234, 0); err == nil {
		t.Fatal("expected a translation error when no PTE chain was ever recorded")
	}
}

func TestDecodeSATP(t *testing.T) {
	mode, base, err := decodeSATP(IEMRV64, uint64(8)<<60|1)
	if err != nil {
		t.Fatalf("decodeSATP: %v", err)
	}
	if mode != SV39 || base != 0x1000 {
		t.Fatalf("decodeSATP = (%v, 0x%x), want (SV39, 0x1000)", mode, base)
	}

	mode, _, err = decodeSATP(IEMRV64, 0)
	if err != nil {
		t.Fatalf("decodeSATP: %v", err)
	}
	if mode != NoTranslation {
		t.Fatalf("decodeSATP(0) = %v, want NoTranslation", mode)
	}
}
