// Package acpi locates the MADT (Multiple APIC Description Table) by
// walking the RSDP -> RSDT/XSDT -> SDT chain over a simulated physical
// address space, and extracts the IO-APIC record(s) it carries.
// Grounded on the same register-map-as-data-file pattern used for
// ioctl-filled hypervisor register structs, generalized from
// ioctl-filled structs to BIOS-region memory scans.
package acpi

import (
	"fmt"

	"github.com/rgudkoff/rodnix/kernel/arch"
	"github.com/rgudkoff/rodnix/kernel/errs"
)

const (
	biosScanStart = 0xE0000
	biosScanEnd   = 0x100000
	scanStep      = 16

	rsdpSignature = "RSD PTR "

	rsdpRevisionOffset = 15
	rsdtPtrOffset      = 16 // 32-bit
	xsdtPtrOffset      = 24 // 64-bit

	sdtHeaderLen    = 36
	sdtEntrySize32  = 4
	sdtEntrySize64  = 8
	maxSDTEntries   = 32

	madtSignature = "APIC"

	madtRecordsOffset = 44 // sizeof MADT-specific header (sdtHeaderLen + local APIC addr (4) + flags (4))

	madtEntryTypeIOAPIC = 1
)

// IOAPICRecord is a MADT type-1 entry: an IO-APIC record carrying an
// ID, physical address, and global system interrupt base.
type IOAPICRecord struct {
	ID       uint8
	PhysAddr uint32
	GSIBase  uint32
}

// FindRSDP searches [0xE0000, 0x100000) on 16-byte boundaries for the
// 8-byte signature "RSD PTR ". Returns the physical address of the
// RSDP, or errs.NotPresent if none is found.
func FindRSDP(mem *arch.PhysMem) (uintptr, error) {
	for pa := uintptr(biosScanStart); pa < biosScanEnd; pa += scanStep {
		if !mem.Contains(pa, len(rsdpSignature)) {
			continue
		}
		if string(mem.Slice(pa, len(rsdpSignature))) == rsdpSignature {
			return pa, nil
		}
	}
	return 0, fmt.Errorf("acpi: rsdp: %w", errs.NotPresent)
}

// rootSDTAddr reads the revision byte at RSDP+15 and returns the
// pointer to the root SDT: XSDT at +24 (64-bit) when revision >= 2,
// else RSDT at +16 (32-bit).
func rootSDTAddr(mem *arch.PhysMem, rsdp uintptr) uintptr {
	revision := mem.Slice(rsdp+rsdpRevisionOffset, 1)[0]
	if revision >= 2 {
		return uintptr(mem.ReadU64(rsdp + xsdtPtrOffset))
	}
	return uintptr(readU32(mem, rsdp+rsdtPtrOffset))
}

func readU32(mem *arch.PhysMem, pa uintptr) uint32 {
	s := mem.Slice(pa, 4)
	return uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16 | uint32(s[3])<<24
}

// sdtLength reads the Length field (bytes 4..8) of an SDT header.
func sdtLength(mem *arch.PhysMem, sdt uintptr) uint32 {
	return readU32(mem, sdt+4)
}

// FindMADT walks the root SDT's entry pointers (capped at 32 per spec
// §6) looking for a child whose 4-byte signature is "APIC". The root
// SDT's own entry width (32-bit for RSDT, 64-bit for XSDT) is
// determined by is64 as returned from the RSDP's revision.
func FindMADT(mem *arch.PhysMem, rsdp uintptr) (uintptr, error) {
	revision := mem.Slice(rsdp+rsdpRevisionOffset, 1)[0]
	is64 := revision >= 2
	root := rootSDTAddr(mem, rsdp)

	length := sdtLength(mem, root)
	entrySize := uintptr(sdtEntrySize32)
	if is64 {
		entrySize = sdtEntrySize64
	}
	count := (uintptr(length) - sdtHeaderLen) / entrySize
	if count > maxSDTEntries {
		count = maxSDTEntries
	}

	for i := uintptr(0); i < count; i++ {
		entryAddr := root + sdtHeaderLen + i*entrySize
		var child uintptr
		if is64 {
			child = uintptr(mem.ReadU64(entryAddr))
		} else {
			child = uintptr(readU32(mem, entryAddr))
		}
		if string(mem.Slice(child, 4)) == madtSignature {
			return child, nil
		}
	}
	return 0, fmt.Errorf("acpi: madt: %w", errs.NotPresent)
}

// ParseMADTIOAPICs walks the MADT's variable-length entries starting
// at byte sizeof(header) and returns every type-1 (IO-APIC) record.
func ParseMADTIOAPICs(mem *arch.PhysMem, madt uintptr) []IOAPICRecord {
	length := sdtLength(mem, madt)
	var recs []IOAPICRecord

	off := uintptr(madtRecordsOffset)
	for off < uintptr(length) {
		entryType := mem.Slice(madt+off, 1)[0]
		entryLen := mem.Slice(madt+off+1, 1)[0]
		if entryLen == 0 {
			break
		}
		if entryType == madtEntryTypeIOAPIC {
			recs = append(recs, IOAPICRecord{
				ID:       mem.Slice(madt+off+2, 1)[0],
				PhysAddr: readU32(mem, madt+off+4),
				GSIBase:  readU32(mem, madt+off+8),
			})
		}
		off += uintptr(entryLen)
	}
	return recs
}

// FindIOAPICFromMADT is the end-to-end convenience lookup: RSDP ->
// root SDT -> MADT -> first IO-APIC record's
// physical address. Returns errs.NotPresent if any step fails to find
// its target, so callers can fall back to apic.DefaultBase().
func FindIOAPICFromMADT(mem *arch.PhysMem) (uintptr, error) {
	rsdp, err := FindRSDP(mem)
	if err != nil {
		return 0, err
	}
	madt, err := FindMADT(mem, rsdp)
	if err != nil {
		return 0, err
	}
	recs := ParseMADTIOAPICs(mem, madt)
	if len(recs) == 0 {
		return 0, fmt.Errorf("acpi: ioapic record: %w", errs.NotPresent)
	}
	return uintptr(recs[0].PhysAddr), nil
}
