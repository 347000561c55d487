// Package pmm implements the physical memory manager: a bitmap
// first-fit allocator over a contiguous page range.
//
// Earlier bare-metal PMMs of this shape hard-code their boundaries
// (e.g. a 0x100000-0x4000000 window); Allocator instead takes an
// explicit [start, end) range so callers can size it to whatever RAM
// is actually present.
package pmm

import (
	"fmt"

	"github.com/rgudkoff/rodnix/kernel/arch"
	"github.com/rgudkoff/rodnix/kernel/errs"
)

// PageSize is the frame size the bitmap allocator works in.
const PageSize = 4096

// Allocator is a bitmap allocator over [start, end) physical addresses,
// backed by a simulated physical address space.
type Allocator struct {
	mem        *arch.PhysMem
	start, end uintptr
	totalPages int
	bitmap     []byte // one bit per page, 0=free, 1=used
	freeCount  int
}

// New builds an Allocator managing every page-aligned frame in
// [start, end). end-start must be a multiple of PageSize. The bitmap
// itself lives on the Go heap (it is allocator metadata, not a managed
// page frame).
func New(mem *arch.PhysMem, start, end uintptr) (*Allocator, error) {
	if start >= end {
		return nil, fmt.Errorf("pmm: empty range [0x%x,0x%x): %w", start, end, errs.InvalidArg)
	}
	if start%PageSize != 0 || end%PageSize != 0 {
		return nil, fmt.Errorf("pmm: range [0x%x,0x%x) not page aligned: %w", start, end, errs.InvalidArg)
	}
	if !mem.Contains(start, int(end-start)) {
		return nil, fmt.Errorf("pmm: range [0x%x,0x%x) outside physical memory: %w", start, end, errs.InvalidArg)
	}
	total := int(end-start) / PageSize
	nbytes := (total + 7) / 8
	a := &Allocator{
		mem:        mem,
		start:      start,
		end:        end,
		totalPages: total,
		bitmap:     make([]byte, nbytes),
		freeCount:  total,
	}
	return a, nil
}

// TotalPages returns the number of managed frames.
func (a *Allocator) TotalPages() int { return a.totalPages }

// FreeCount returns the number of currently unallocated frames.
func (a *Allocator) FreeCount() int { return a.freeCount }

// UsedCount returns the number of currently allocated frames.
func (a *Allocator) UsedCount() int { return a.totalPages - a.freeCount }

func (a *Allocator) bitSet(i int) bool { return a.bitmap[i/8]&(1<<(uint(i)%8)) != 0 }

func (a *Allocator) setBit(i int)   { a.bitmap[i/8] |= 1 << (uint(i) % 8) }
func (a *Allocator) clearBit(i int) { a.bitmap[i/8] &^= 1 << (uint(i) % 8) }

func (a *Allocator) pageAddr(i int) uintptr { return a.start + uintptr(i)*PageSize }

func (a *Allocator) indexOf(pa uintptr) (int, bool) {
	if pa < a.start || pa >= a.end || pa%PageSize != 0 {
		return 0, false
	}
	return int((pa - a.start) / PageSize), true
}

// AllocPage finds the first free frame, marks it used, zeroes it, and
// returns its physical address. Returns errs.OutOfMemory when no frame
// is free.
func (a *Allocator) AllocPage() (uintptr, error) {
	for i := 0; i < a.totalPages; i++ {
		if !a.bitSet(i) {
			a.setBit(i)
			a.freeCount--
			pa := a.pageAddr(i)
			a.mem.Zero(pa, PageSize)
			return pa, nil
		}
	}
	return 0, fmt.Errorf("pmm: %w", errs.OutOfMemory)
}

// FreePage clears the bit for pa. Double-free on an already-free page
// is a silent no-op.
func (a *Allocator) FreePage(pa uintptr) error {
	i, ok := a.indexOf(pa)
	if !ok {
		return fmt.Errorf("pmm: free of out-of-range page 0x%x: %w", pa, errs.InvalidArg)
	}
	if !a.bitSet(i) {
		return nil // double-free: silent no-op
	}
	a.clearBit(i)
	a.freeCount++
	return nil
}

// AllocPages finds the first run of n contiguous free frames, marks and
// zeroes them all, and returns the base physical address. On failure the
// bitmap is left unchanged.
func (a *Allocator) AllocPages(n int) (uintptr, error) {
	if n <= 0 {
		return 0, fmt.Errorf("pmm: alloc of %d pages: %w", n, errs.InvalidArg)
	}
	run := 0
	for i := 0; i <= a.totalPages-n; {
		if a.bitSet(i) {
			i++
			continue
		}
		run = 1
		j := i + 1
		for j < a.totalPages && run < n && !a.bitSet(j) {
			run++
			j++
		}
		if run == n {
			for k := i; k < i+n; k++ {
				a.setBit(k)
			}
			a.freeCount -= n
			pa := a.pageAddr(i)
			a.mem.Zero(pa, n*PageSize)
			return pa, nil
		}
		i = j
	}
	return 0, fmt.Errorf("pmm: alloc of %d contiguous pages: %w", n, errs.OutOfMemory)
}

// FreePages frees n pages starting at pa by calling FreePage n times.
func (a *Allocator) FreePages(pa uintptr, n int) error {
	for i := 0; i < n; i++ {
		if err := a.FreePage(pa + uintptr(i)*PageSize); err != nil {
			return err
		}
	}
	return nil
}
