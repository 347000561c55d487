package paging

import (
	"errors"
	"testing"

	"github.com/rgudkoff/rodnix/kernel/arch"
	"github.com/rgudkoff/rodnix/kernel/errs"
	"github.com/rgudkoff/rodnix/kernel/mem/pmm"
)

func newTestMapper(t *testing.T, pages int) *Mapper {
	t.Helper()
	size := pages * pmm.PageSize
	mem, err := arch.NewPhysMem(0x100000, size)
	if err != nil {
		t.Fatalf("NewPhysMem: %v", err)
	}
	t.Cleanup(func() { mem.Close() })
	alloc, err := pmm.New(mem, 0x100000, 0x100000+uintptr(size))
	if err != nil {
		t.Fatalf("pmm.New: %v", err)
	}
	m, err := New(mem, alloc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestMap4KRoundTrip(t *testing.T) {
	m := newTestMapper(t, 64)

	const va = uintptr(0x0000_1000_0000)
	const pa = uintptr(0x1000)

	if err := m.Map4K(va, pa, Writable); err != nil {
		t.Fatalf("Map4K: %v", err)
	}
	got, err := m.Translate(va)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != pa {
		t.Fatalf("Translate = 0x%x, want 0x%x", got, pa)
	}

	if err := m.Unmap(va); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if _, err := m.Translate(va); !errors.Is(err, errs.NotPresent) {
		t.Fatalf("Translate after unmap = %v, want errs.NotPresent", err)
	}
}

func TestMap2MSpansWholeRegion(t *testing.T) {
	m := newTestMapper(t, 64)

	const va = uintptr(0x0000_2000_0000)
	const pa = uintptr(0x0000_0020_0000) // 2 MiB aligned

	if err := m.Map2M(va, pa, Writable); err != nil {
		t.Fatalf("Map2M: %v", err)
	}

	for _, k := range []uintptr{0, 0x1000, 0x1FFFFF} {
		got, err := m.Translate(va + k)
		if err != nil {
			t.Fatalf("Translate(va+0x%x): %v", k, err)
		}
		if got != pa+k {
			t.Fatalf("Translate(va+0x%x) = 0x%x, want 0x%x", k, got, pa+k)
		}
	}
}

func TestMap4KInsideExisting2MRegionIsPolicyViolation(t *testing.T) {
	m := newTestMapper(t, 64)

	const va2m = uintptr(0x0000_3000_0000)
	if err := m.Map2M(va2m, 0x400000, Writable); err != nil {
		t.Fatalf("Map2M: %v", err)
	}

	if err := m.Map4K(va2m+0x1000, 0x401000, Writable); !errors.Is(err, errs.InvalidArg) {
		t.Fatalf("Map4K inside 2M region error = %v, want errs.InvalidArg", err)
	}
}

func TestUnmapRetainsIntermediateTables(t *testing.T) {
	m := newTestMapper(t, 64)

	const va = uintptr(0x0000_4000_0000)
	if err := m.Map4K(va, 0x5000, Writable); err != nil {
		t.Fatalf("Map4K: %v", err)
	}
	if err := m.Unmap(va); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	// Round trip: map again at same VA must succeed without re-walking
	// differently, proving intermediate tables survived.
	if err := m.Map4K(va, 0x6000, Writable); err != nil {
		t.Fatalf("remap after unmap: %v", err)
	}
	got, err := m.Translate(va)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != 0x6000 {
		t.Fatalf("Translate = 0x%x, want 0x6000", got)
	}
}

func TestEveryMapAndUnmapInvalidatesTLB(t *testing.T) {
	m := newTestMapper(t, 64)
	const va = uintptr(0x0000_5000_0000)

	before := m.TLBShootdowns
	if err := m.Map4K(va, 0x7000, Writable); err != nil {
		t.Fatalf("Map4K: %v", err)
	}
	if m.TLBShootdowns != before+1 {
		t.Fatalf("TLBShootdowns after map = %d, want %d", m.TLBShootdowns, before+1)
	}
	if err := m.Unmap(va); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if m.TLBShootdowns != before+2 {
		t.Fatalf("TLBShootdowns after unmap = %d, want %d", m.TLBShootdowns, before+2)
	}
}

func TestTranslateMissingReturnsNotPresent(t *testing.T) {
	m := newTestMapper(t, 64)
	if _, err := m.Translate(0x0000_9000_0000); !errors.Is(err, errs.NotPresent) {
		t.Fatalf("Translate of unmapped va error = %v, want errs.NotPresent", err)
	}
}
