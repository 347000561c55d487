// Package paging implements the x86_64 4-level paging layer (PML4 ->
// PDPT -> PD -> PT), supporting 4 KiB and 2 MiB leaf mappings. Every
// intermediate table is itself a page frame obtained from the PMM and
// zero-initialised.
package paging

import (
	"fmt"

	"github.com/rgudkoff/rodnix/kernel/arch"
	"github.com/rgudkoff/rodnix/kernel/errs"
	"github.com/rgudkoff/rodnix/kernel/mem/pmm"
)

// Flags are the PTE/PDE bits: PRESENT / WRITABLE / USER / NX / PCD /
// PAT / GLOBAL / SIZE.
type Flags uint64

const (
	Present  Flags = 1 << 0
	Writable Flags = 1 << 1
	User     Flags = 1 << 2
	PCD      Flags = 1 << 4 // cache disable, used for MMIO
	PAT      Flags = 1 << 7 // 4 KiB leaf PAT bit
	Size2M   Flags = 1 << 7 // PD entry page-size bit; same bit position as PAT, different level
	Global   Flags = 1 << 8
	NX       Flags = 1 << 63
)

const (
	entryCount   = 512
	tableBytes   = entryCount * 8
	pml4Shift    = 39
	pdptShift    = 30
	pdShift      = 21
	ptShift      = 12
	idxMask      = 0x1FF
	frameMask4K  = ^uintptr(0xFFF)
	frameMask2M  = ^uintptr(0x1FFFFF)
	page2MAlign  = 0x200000
	page4KAlign  = 0x1000
	offsetMask4K = uintptr(0xFFF)
	offsetMask2M = uintptr(0x1FFFFF)
)

// Mapper owns one PML4 root and maps/unmaps/translates against it.
type Mapper struct {
	mem  *arch.PhysMem
	pmm  *pmm.Allocator
	pml4 uintptr

	// TLBShootdowns counts single-page invalidations issued by
	// successful Map/Unmap calls; tests assert against it instead of
	// real INVLPG. Invalidate, if set, is also called with the VA.
	TLBShootdowns int
	Invalidate    func(va uintptr)
}

// New allocates a fresh, zeroed PML4 from alloc and returns a Mapper
// rooted at it.
func New(mem *arch.PhysMem, alloc *pmm.Allocator) (*Mapper, error) {
	root, err := alloc.AllocPage()
	if err != nil {
		return nil, fmt.Errorf("paging: allocate PML4: %w", err)
	}
	return &Mapper{mem: mem, pmm: alloc, pml4: root}, nil
}

// Root returns the physical address of the PML4 table, for loading into
// CR3 at bring-up.
func (m *Mapper) Root() uintptr { return m.pml4 }

func index(va uintptr, shift uint) int { return int((va >> shift) & idxMask) }

func (m *Mapper) entry(table uintptr, i int) uint64 {
	return m.mem.ReadU64(table + uintptr(i*8))
}

func (m *Mapper) setEntry(table uintptr, i int, v uint64) {
	m.mem.WriteU64(table+uintptr(i*8), v)
}

// walkOrCreate returns the physical address of the next-level table
// referenced by entry i of table, allocating and zeroing a fresh table
// if the entry isn't present yet. The new entry is installed with
// PRESENT|WRITABLE so a narrower leaf flag set can still be installed
// underneath it.
func (m *Mapper) walkOrCreate(table uintptr, i int) (uintptr, error) {
	e := m.entry(table, i)
	if e&uint64(Present) != 0 {
		return uintptr(e) & uint64frameMask(), nil
	}
	child, err := m.pmm.AllocPage()
	if err != nil {
		return 0, fmt.Errorf("paging: allocate intermediate table: %w", err)
	}
	m.setEntry(table, i, uint64(child)|uint64(Present|Writable))
	return child, nil
}

func uint64frameMask() uint64 { return uint64(frameMask4K) }

func (m *Mapper) invalidate(va uintptr) {
	m.TLBShootdowns++
	if m.Invalidate != nil {
		m.Invalidate(va)
	}
}

// Map4K maps one 4 KiB page at va to pa with the given leaf flags.
// PRESENT is always added to the leaf regardless of flags. va and pa
// must both be 4 KiB aligned.
func (m *Mapper) Map4K(va, pa uintptr, flags Flags) error {
	if va%page4KAlign != 0 || pa%page4KAlign != 0 {
		return fmt.Errorf("paging: map4k va=0x%x pa=0x%x not 4K aligned: %w", va, pa, errs.InvalidArg)
	}
	pdpt, err := m.walkOrCreate(m.pml4, index(va, pml4Shift))
	if err != nil {
		return err
	}
	pd, err := m.walkOrCreate(pdpt, index(va, pdptShift))
	if err != nil {
		return err
	}
	pdIdx := index(va, pdShift)
	if m.entry(pd, pdIdx)&uint64(Present|Size2M) == uint64(Present|Size2M) {
		return fmt.Errorf("paging: va=0x%x falls inside an existing 2 MiB mapping: %w", va, errs.InvalidArg)
	}
	pt, err := m.walkOrCreate(pd, pdIdx)
	if err != nil {
		return err
	}
	ptIdx := index(va, ptShift)
	m.setEntry(pt, ptIdx, uint64(pa)|uint64(flags|Present))
	m.invalidate(va)
	return nil
}

// Map2M maps one 2 MiB page at va to pa with the given leaf flags, set
// directly on the PD entry with the SIZE bit. va and pa must both be
// 2 MiB aligned.
func (m *Mapper) Map2M(va, pa uintptr, flags Flags) error {
	if va%page2MAlign != 0 || pa%page2MAlign != 0 {
		return fmt.Errorf("paging: map2m va=0x%x pa=0x%x not 2M aligned: %w", va, pa, errs.InvalidArg)
	}
	pdpt, err := m.walkOrCreate(m.pml4, index(va, pml4Shift))
	if err != nil {
		return err
	}
	pd, err := m.walkOrCreate(pdpt, index(va, pdptShift))
	if err != nil {
		return err
	}
	pdIdx := index(va, pdShift)
	m.setEntry(pd, pdIdx, uint64(pa)|uint64(flags|Present|Size2M))
	m.invalidate(va)
	return nil
}

// MapMMIO is a convenience wrapper mapping a 4 KiB uncached register
// window: PRESENT | WRITABLE | PCD.
func (m *Mapper) MapMMIO(va, pa uintptr) error {
	return m.Map4K(va, pa, Writable|PCD)
}

// Unmap clears the leaf entry for va only; intermediate tables are
// retained, by deliberate choice -- no reference counting in this
// design. Returns errs.NotPresent if va has no mapping.
func (m *Mapper) Unmap(va uintptr) error {
	pml4Idx := index(va, pml4Shift)
	if m.entry(m.pml4, pml4Idx)&uint64(Present) == 0 {
		return fmt.Errorf("paging: unmap 0x%x: %w", va, errs.NotPresent)
	}
	pdpt := uintptr(m.entry(m.pml4, pml4Idx)) & uint64frameMask()

	pdptIdx := index(va, pdptShift)
	if m.entry(pdpt, pdptIdx)&uint64(Present) == 0 {
		return fmt.Errorf("paging: unmap 0x%x: %w", va, errs.NotPresent)
	}
	pd := uintptr(m.entry(pdpt, pdptIdx)) & uint64frameMask()

	pdIdx := index(va, pdShift)
	pdEntry := m.entry(pd, pdIdx)
	if pdEntry&uint64(Present) == 0 {
		return fmt.Errorf("paging: unmap 0x%x: %w", va, errs.NotPresent)
	}
	if pdEntry&uint64(Size2M) != 0 {
		m.setEntry(pd, pdIdx, 0)
		m.invalidate(va)
		return nil
	}
	pt := uintptr(pdEntry) & uint64frameMask()
	ptIdx := index(va, ptShift)
	if m.entry(pt, ptIdx)&uint64(Present) == 0 {
		return fmt.Errorf("paging: unmap 0x%x: %w", va, errs.NotPresent)
	}
	m.setEntry(pt, ptIdx, 0)
	m.invalidate(va)
	return nil
}

// Translate walks PML4->PDPT->PD[->PT] and returns the physical address
// va maps to, or errs.NotPresent if any level is missing PRESENT.
func (m *Mapper) Translate(va uintptr) (uintptr, error) {
	pml4Idx := index(va, pml4Shift)
	e := m.entry(m.pml4, pml4Idx)
	if e&uint64(Present) == 0 {
		return 0, fmt.Errorf("paging: translate 0x%x: %w", va, errs.NotPresent)
	}
	pdpt := uintptr(e) & uint64frameMask()

	pdptIdx := index(va, pdptShift)
	e = m.entry(pdpt, pdptIdx)
	if e&uint64(Present) == 0 {
		return 0, fmt.Errorf("paging: translate 0x%x: %w", va, errs.NotPresent)
	}
	pd := uintptr(e) & uint64frameMask()

	pdIdx := index(va, pdShift)
	e = m.entry(pd, pdIdx)
	if e&uint64(Present) == 0 {
		return 0, fmt.Errorf("paging: translate 0x%x: %w", va, errs.NotPresent)
	}
	if e&uint64(Size2M) != 0 {
		return (uintptr(e) & frameMask2M) | (va & offsetMask2M), nil
	}
	pt := uintptr(e) & uint64frameMask()
	ptIdx := index(va, ptShift)
	e = m.entry(pt, ptIdx)
	if e&uint64(Present) == 0 {
		return 0, fmt.Errorf("paging: translate 0x%x: %w", va, errs.NotPresent)
	}
	return (uintptr(e) & frameMask4K) | (va & offsetMask4K), nil
}
