package apic

import (
	"fmt"

	"github.com/rgudkoff/rodnix/kernel/arch"
	"github.com/rgudkoff/rodnix/kernel/errs"
)

// IOAPIC models the I/O APIC: indirect register access through
// IOREGSEL/IOWIN, and the redirection table.
type IOAPIC struct {
	mmio   *arch.MMIOWindow
	lapicID func() uint8
}

// NewIOAPIC maps the IO-APIC's MMIO window at base (discovered via
// MADT parsing, or defaulting to 0xFEC00000) and confirms presence by
// reading the VER register: 0xFFFFFFFF or 0 aborts init with
// errs.HardwareAbsent.
func NewIOAPIC(mapMMIO MapMMIOFn, base uintptr, lapicID func() uint8) (*IOAPIC, error) {
	win, err := mapMMIO(base)
	if err != nil {
		return nil, fmt.Errorf("apic: ioapic: map mmio at 0x%x: %w", base, err)
	}
	d := &IOAPIC{mmio: win, lapicID: lapicID}
	ver := d.readReg(ioapicRegVersion)
	if ver == 0xFFFFFFFF || ver == 0 {
		return nil, fmt.Errorf("apic: ioapic: version register reads 0x%x: %w", ver, errs.HardwareAbsent)
	}
	return d, nil
}

// DefaultBase returns the well-known fallback address when MADT
// parsing finds no IO-APIC record.
func DefaultBase() uintptr { return defaultIOAPICBase }

func (d *IOAPIC) readReg(index uint8) uint32 {
	d.mmio.Write32(ioregselOffset, uint32(index))
	return d.mmio.Read32(iowinOffset)
}

func (d *IOAPIC) writeReg(index uint8, val uint32) {
	d.mmio.Write32(ioregselOffset, uint32(index))
	d.mmio.Write32(iowinOffset, val)
}

func redtblIndex(irq uint8) (lo, hi uint8) {
	lo = ioapicRedtblBase + 2*irq
	hi = lo + 1
	return
}

// EnableIRQ programs irq's RTE to {vector=irq+32, FIXED, PHYSICAL,
// HIGH, EDGE, mask=clear, dest=current LAPIC ID}.
func (d *IOAPIC) EnableIRQ(irq uint8) error {
	lo, hi := redtblIndex(irq)
	vector := uint32(irq) + 32
	low := vector | rteDeliveryFixed | rteDestPhysical | rtePolarityHigh | rteTriggerEdge
	d.writeReg(hi, uint32(d.lapicID())<<24)
	d.writeReg(lo, low)
	return nil
}

// DisableIRQ sets the RTE's mask bit.
func (d *IOAPIC) DisableIRQ(irq uint8) error {
	lo, _ := redtblIndex(irq)
	cur := d.readReg(lo)
	d.writeReg(lo, cur|rteMaskBit)
	return nil
}

// ID returns the IO-APIC's ID register value.
func (d *IOAPIC) ID() uint32 { return d.readReg(ioapicRegID) }
