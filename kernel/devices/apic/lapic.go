package apic

import (
	"fmt"

	"github.com/rgudkoff/rodnix/kernel/arch"
	"github.com/rgudkoff/rodnix/kernel/errs"
)

// LAPIC models the local APIC: MSR-based base discovery, an MMIO
// register window, and the one-shot-calibrated timer.
type LAPIC struct {
	// ReadMSR/WriteMSR abstract RDMSR/WRMSR on IA32_APIC_BASE. HasSupport
	// abstracts CPUID leaf 1, EDX bit 9. Real boot code wires these to
	// the actual instructions; tests wire in fakes.
	ReadMSR    func(reg uint32) uint64
	WriteMSR   func(reg uint32, val uint64)
	HasSupport func() bool

	mmio        *arch.MMIOWindow
	ticksPerMs  uint32
}

// New returns an uninitialised LAPIC.
func New(readMSR func(uint32) uint64, writeMSR func(uint32, uint64), hasSupport func() bool) *LAPIC {
	return &LAPIC{ReadMSR: readMSR, WriteMSR: writeMSR, HasSupport: hasSupport}
}

// MapMMIOFn maps a page uncached at the given physical address and
// returns a window over it, so that LAPIC doesn't need to import the
// paging package directly.
type MapMMIOFn func(pa uintptr) (*arch.MMIOWindow, error)

// Init verifies CPUID support, reads the MMIO base from the
// IA32_APIC_BASE MSR, sets the enable bit, maps the MMIO page via
// mapMMIO, and programs the spurious-vector register to
// (enable | 0xFF).
func (l *LAPIC) Init(mapMMIO MapMMIOFn) error {
	if !l.HasSupport() {
		return fmt.Errorf("apic: lapic: %w", errs.HardwareAbsent)
	}
	base := l.ReadMSR(msrAPICBase)
	phys := uintptr(base & apicBasePhysMask)
	base |= apicBaseEnableBit
	l.WriteMSR(msrAPICBase, base)

	win, err := mapMMIO(phys)
	if err != nil {
		return fmt.Errorf("apic: lapic: map mmio at 0x%x: %w", phys, err)
	}
	l.mmio = win
	l.mmio.Write32(regSVR, svrEnableBit|svrSpuriousVec)
	return nil
}

// ID returns the LAPIC ID register, used as the IO-APIC RTE destination.
func (l *LAPIC) ID() uint8 {
	return uint8(l.mmio.Read32(regID) >> 24)
}

// SendEOI writes 0 to the EOI register.
func (l *LAPIC) SendEOI() {
	l.mmio.Write32(regEOI, 0)
}

// calibrateTicksPerMs computes ticks_per_ms ≈ (start − end) × 102 / 1024,
// a division-free stand-in for dividing a 10 ms count by 10. When the
// result is zero it returns defaultTicksPerMs (10 000); any non-zero
// result, however small, is returned as is. Split out as a pure
// function so the formula can be tested without real PIT timing.
func calibrateTicksPerMs(start, end uint32) uint32 {
	delta := uint64(start - end)
	ticks := uint32((delta * 102) / 1024)
	if ticks == 0 {
		return defaultTicksPerMs
	}
	return ticks
}

// Calibrate programs the LAPIC timer one-shot with divide-by-16 and
// initial count 0xFFFFFFFF, invokes waitOnePITTick (expected to block for
// exactly one 10ms PIT tick at 100Hz), and derives ticks-per-ms from the
// remaining count.
func (l *LAPIC) Calibrate(waitOnePITTick func()) uint32 {
	const start = uint32(0xFFFFFFFF)

	l.mmio.Write32(regTimerDiv, timerDivBy16)
	l.mmio.Write32(regLVTTimer, timerModeMasked) // masked one-shot during calibration
	l.mmio.Write32(regTimerInit, start)

	waitOnePITTick()

	end := l.mmio.Read32(regTimerCurr)
	l.ticksPerMs = calibrateTicksPerMs(start, end)
	return l.ticksPerMs
}

// TicksPerMs returns the last calibrated value, or the fallback default
// if Calibrate has not run.
func (l *LAPIC) TicksPerMs() uint32 {
	if l.ticksPerMs == 0 {
		return defaultTicksPerMs
	}
	return l.ticksPerMs
}

// StartPeriodic programs the LVT as periodic at vector, ticking at
// freqHz.
func (l *LAPIC) StartPeriodic(vector uint8, freqHz uint32) {
	initCount := l.TicksPerMs() * (1000 / freqHz)
	l.mmio.Write32(regTimerDiv, timerDivBy16)
	l.mmio.Write32(regLVTTimer, timerModePeriodic|uint32(vector))
	l.mmio.Write32(regTimerInit, initCount)
}
