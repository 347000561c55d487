// Package arch holds the architecture-neutral primitives the rest of the
// kernel builds on: a simulated physical address space, MMIO register
// windows, and the interrupt context layout. Port I/O is not here: each
// device package declares its own narrow Ports interface. Real ring-0
// code would walk a linear physical address space directly; this
// package gives the Go code the same shape of API (read/write a
// physical byte range, read/write an MMIO register) backed by an
// anonymously-mmapped host
// region, the same mmap-the-RAM pattern a KVM host uses for guest
// memory, one layer further down the stack.
package arch

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// PhysMem is a contiguous simulated physical address range
// [Base, Base+len(bytes)). The PMM and paging packages never allocate
// Go heap memory for page frames or page tables; they all carve out of
// this one mmap-backed region, the same way real physical RAM is one
// contiguous resource carved up by a bitmap allocator.
type PhysMem struct {
	Base  uintptr
	bytes []byte
}

// NewPhysMem mmaps an anonymous, zeroed region of size bytes to stand in
// for the physical address range starting at base. The mapping is
// PROT_READ|PROT_WRITE, MAP_PRIVATE|MAP_ANONYMOUS, the same protection
// and sharing flags a hypervisor uses to back guest RAM.
func NewPhysMem(base uintptr, size int) (*PhysMem, error) {
	if size <= 0 {
		return nil, fmt.Errorf("arch: physmem size %d invalid", size)
	}
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("arch: mmap physmem: %w", err)
	}
	return &PhysMem{Base: base, bytes: b}, nil
}

// Close unmaps the backing region.
func (p *PhysMem) Close() error {
	if p.bytes == nil {
		return nil
	}
	err := unix.Munmap(p.bytes)
	p.bytes = nil
	return err
}

// Size returns the number of bytes in the region.
func (p *PhysMem) Size() int { return len(p.bytes) }

// End returns the exclusive upper bound of the region, Base+Size().
func (p *PhysMem) End() uintptr { return p.Base + uintptr(len(p.bytes)) }

// Contains reports whether [pa, pa+n) lies fully inside the region.
func (p *PhysMem) Contains(pa uintptr, n int) bool {
	if pa < p.Base {
		return false
	}
	off := pa - p.Base
	return off <= uintptr(len(p.bytes)) && uintptr(n) <= uintptr(len(p.bytes))-off
}

func (p *PhysMem) off(pa uintptr) int { return int(pa - p.Base) }

// Slice returns a []byte view of [pa, pa+n) for zero-copy access by the
// paging and PMM packages. Callers must have already range-checked with
// Contains.
func (p *PhysMem) Slice(pa uintptr, n int) []byte {
	o := p.off(pa)
	return p.bytes[o : o+n]
}

// Zero clears n bytes starting at pa. The PMM contract requires every
// freshly allocated page to be zeroed before it is handed out.
func (p *PhysMem) Zero(pa uintptr, n int) {
	s := p.Slice(pa, n)
	for i := range s {
		s[i] = 0
	}
}

// ReadU64 reads a little-endian uint64 at physical address pa.
func (p *PhysMem) ReadU64(pa uintptr) uint64 {
	s := p.Slice(pa, 8)
	return uint64(s[0]) | uint64(s[1])<<8 | uint64(s[2])<<16 | uint64(s[3])<<24 |
		uint64(s[4])<<32 | uint64(s[5])<<40 | uint64(s[6])<<48 | uint64(s[7])<<56
}

// WriteU64 writes a little-endian uint64 at physical address pa.
func (p *PhysMem) WriteU64(pa uintptr, v uint64) {
	s := p.Slice(pa, 8)
	s[0] = byte(v)
	s[1] = byte(v >> 8)
	s[2] = byte(v >> 16)
	s[3] = byte(v >> 24)
	s[4] = byte(v >> 32)
	s[5] = byte(v >> 40)
	s[6] = byte(v >> 48)
	s[7] = byte(v >> 56)
}
