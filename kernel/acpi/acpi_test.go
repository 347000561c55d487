package acpi

import (
	"errors"
	"testing"

	"github.com/rgudkoff/rodnix/kernel/arch"
	"github.com/rgudkoff/rodnix/kernel/errs"
)

const (
	testRSDPAddr = 0xE0000
	testXSDTAddr = 0xE1000
	testMADTAddr = 0xE2000
)

func writeU32At(mem *arch.PhysMem, pa uintptr, v uint32) {
	s := mem.Slice(pa, 4)
	s[0] = byte(v)
	s[1] = byte(v >> 8)
	s[2] = byte(v >> 16)
	s[3] = byte(v >> 24)
}

// newSyntheticMADTFixture builds a synthetic firmware table fixture: an
// RSDP at 0xE0000 pointing to an XSDT with one MADT entry containing
// one IO-APIC record at 0xFEC00000.
func newSyntheticMADTFixture(t *testing.T) *arch.PhysMem {
	t.Helper()
	mem, err := arch.NewPhysMem(0, 0x300000)
	if err != nil {
		t.Fatalf("NewPhysMem: %v", err)
	}
	t.Cleanup(func() { mem.Close() })

	copy(mem.Slice(testRSDPAddr, 8), rsdpSignature)
	mem.Slice(testRSDPAddr+rsdpRevisionOffset, 1)[0] = 2
	mem.WriteU64(testRSDPAddr+xsdtPtrOffset, uint64(testXSDTAddr))

	copy(mem.Slice(testXSDTAddr, 4), "XSDT")
	writeU32At(mem, testXSDTAddr+4, sdtHeaderLen+sdtEntrySize64) // one 64-bit entry
	mem.WriteU64(testXSDTAddr+sdtHeaderLen, uint64(testMADTAddr))

	copy(mem.Slice(testMADTAddr, 4), madtSignature)
	writeU32At(mem, testMADTAddr+4, madtRecordsOffset+12) // one 12-byte IO-APIC record
	rec := mem.Slice(testMADTAddr+madtRecordsOffset, 12)
	rec[0] = madtEntryTypeIOAPIC
	rec[1] = 12
	rec[2] = 0 // IO-APIC id
	rec[3] = 0 // reserved
	writeU32At(mem, testMADTAddr+madtRecordsOffset+4, 0xFEC00000)
	writeU32At(mem, testMADTAddr+madtRecordsOffset+8, 0)

	return mem
}

func TestFindRSDPLocatesSignature(t *testing.T) {
	mem := newSyntheticMADTFixture(t)
	pa, err := FindRSDP(mem)
	if err != nil {
		t.Fatalf("FindRSDP: %v", err)
	}
	if pa != testRSDPAddr {
		t.Fatalf("FindRSDP() = %#x, want %#x", pa, testRSDPAddr)
	}
}

func TestFindRSDPAbsent(t *testing.T) {
	mem, err := arch.NewPhysMem(0, 0x200000)
	if err != nil {
		t.Fatalf("NewPhysMem: %v", err)
	}
	defer mem.Close()

	_, err = FindRSDP(mem)
	if !errors.Is(err, errs.NotPresent) {
		t.Fatalf("FindRSDP() err = %v, want NotPresent", err)
	}
}

func TestFindMADTWalksXSDT(t *testing.T) {
	mem := newSyntheticMADTFixture(t)
	madt, err := FindMADT(mem, testRSDPAddr)
	if err != nil {
		t.Fatalf("FindMADT: %v", err)
	}
	if madt != testMADTAddr {
		t.Fatalf("FindMADT() = %#x, want %#x", madt, testMADTAddr)
	}
}

func TestParseMADTIOAPICsFindsRecord(t *testing.T) {
	mem := newSyntheticMADTFixture(t)
	recs := ParseMADTIOAPICs(mem, testMADTAddr)
	if len(recs) != 1 {
		t.Fatalf("got %d IO-APIC records, want 1", len(recs))
	}
	if recs[0].PhysAddr != 0xFEC00000 {
		t.Fatalf("record.PhysAddr = %#x, want 0xFEC00000", recs[0].PhysAddr)
	}
}

func TestFindIOAPICFromMADTEndToEnd(t *testing.T) {
	mem := newSyntheticMADTFixture(t)
	addr, err := FindIOAPICFromMADT(mem)
	if err != nil {
		t.Fatalf("FindIOAPICFromMADT: %v", err)
	}
	if addr != 0xFEC00000 {
		t.Fatalf("FindIOAPICFromMADT() = %#x, want 0xFEC00000", addr)
	}
}

func TestFindIOAPICFromMADTNoRSDPReturnsNotPresent(t *testing.T) {
	mem, err := arch.NewPhysMem(0, 0x200000)
	if err != nil {
		t.Fatalf("NewPhysMem: %v", err)
	}
	defer mem.Close()

	_, err = FindIOAPICFromMADT(mem)
	if !errors.Is(err, errs.NotPresent) {
		t.Fatalf("FindIOAPICFromMADT() err = %v, want NotPresent", err)
	}
}
