package input

import "testing"

func TestScancodeRingRoundTrip(t *testing.T) {
	r, err := NewScancodeRing(8)
	if err != nil {
		t.Fatalf("NewScancodeRing: %v", err)
	}
	want := []ScancodeEntry{{0x1E, true}, {0x1E, false}, {0x2A, true}}
	for _, e := range want {
		if !r.Push(e) {
			t.Fatalf("Push(%+v) dropped, ring should not be full", e)
		}
	}
	for i, w := range want {
		got, ok := r.Pop()
		if !ok {
			t.Fatalf("Pop() %d: empty, want %+v", i, w)
		}
		if got != w {
			t.Fatalf("Pop() %d = %+v, want %+v", i, got, w)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Fatalf("Pop() on drained ring should report empty")
	}
}

func TestScancodeRingDropsWhenFull(t *testing.T) {
	r, err := NewScancodeRing(2)
	if err != nil {
		t.Fatalf("NewScancodeRing: %v", err)
	}
	if !r.Push(ScancodeEntry{Code: 1}) {
		t.Fatalf("first push should succeed")
	}
	if !r.Push(ScancodeEntry{Code: 2}) {
		t.Fatalf("second push should succeed")
	}
	if r.Push(ScancodeEntry{Code: 3}) {
		t.Fatalf("push into full ring should drop (return false)")
	}
	got, ok := r.Pop()
	if !ok || got.Code != 1 {
		t.Fatalf("Pop() = %+v, %v, want {Code:1}, true", got, ok)
	}
}

func TestNewScancodeRingRejectsNonPowerOfTwo(t *testing.T) {
	if _, err := NewScancodeRing(3); err == nil {
		t.Fatalf("NewScancodeRing(3) should fail")
	}
}

func TestScancodeRingLen(t *testing.T) {
	r, _ := NewScancodeRing(4)
	r.Push(ScancodeEntry{Code: 1})
	r.Push(ScancodeEntry{Code: 2})
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	r.Pop()
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}
