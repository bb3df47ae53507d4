package stf

import "testing"

func TestPoolReusesReleasedRecord(t *testing.T) {
	r1 := pool.take(DescComment)
	c1, ok := AsRecord[*CommentRecord](r1)
	if !ok {
		t.Fatalf("expected *CommentRecord, got %T", r1)
	}
	c1.Text = "leftover text that reset must clear"

	h := NewHandle[*CommentRecord](c1)
	h.Release()
	if h.Valid() {
		t.Fatal("handle should be invalid after Release")
	}
	if c1.Text != "" {
		t.Fatalf("reset did not clear Text, got %q", c1.Text)
	}

	r2 := pool.take(DescComment)
	if r2 != Record(c1) {
		t.Fatalf("expected take() to hand back the released record")
	}
}

func TestHandleReleaseIsIdempotent(t *testing.T) {
	rec := pool.take(DescVersion).(*VersionRecord)
	h := NewHandle[*VersionRecord](rec)
	h.Release()
	h.Release() // must not double-free or panic
}

func TestPoolHonorsHighWaterMark(t *testing.T) {
	// Draining and releasing more than poolMaxSize records of one
	// descriptor must not grow the cache beyond the bound.
	var released []*ISARecord
	for i := 0; i < poolMaxSize+10; i++ {
		r := pool.take(DescISA).(*ISARecord)
		released = append(released, r)
	}
	for _, r := range released {
		pool.release(r)
	}
	pool.mu.Lock()
	n := len(pool.caches[DescISA])
	pool.mu.Unlock()
	if n > poolMaxSize {
		t.Fatalf("cache grew to %d, want <= %d", n, poolMaxSize)
	}
}
