package stf

import (
	"bytes"
	"testing"
)

func TestFieldCodecRoundTrip(t *testing.T) {
	w := &fieldWriter{}
	w.u8(0x12)
	w.u16(0x3456)
	w.u32(0x789abcde)
	w.u64(0x0102030405060708)
	w.lenBytes(2, []byte("hello"))
	w.string32("world")

	r := newFieldReader(w.bytes())
	if got := r.u8(); got != 0x12 {
		t.Fatalf("u8 = 0x%x, want 0x12", got)
	}
	if got := r.u16(); got != 0x3456 {
		t.Fatalf("u16 = 0x%x, want 0x3456", got)
	}
	if got := r.u32(); got != 0x789abcde {
		t.Fatalf("u32 = 0x%x, want 0x789abcde", got)
	}
	if got := r.u64(); got != 0x0102030405060708 {
		t.Fatalf("u64 = 0x%x, want 0x0102030405060708", got)
	}
	if got := r.lenBytes(2); !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("lenBytes = %q, want %q", got, "hello")
	}
	if got := r.string32(); got != "world" {
		t.Fatalf("string32 = %q, want %q", got, "world")
	}
	if err := r.err_(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFieldReaderShortRecord(t *testing.T) {
	r := newFieldReader([]byte{0x01, 0x02})
	_ = r.u32()
	if r.err_() == nil {
		t.Fatal("expected a short-record error reading a u32 out of 2 bytes")
	}
	// Further reads must not panic once the reader has failed.
	_ = r.u64()
	_ = r.string32()
}
