package apic

import (
	"errors"
	"testing"

	"github.com/rgudkoff/rodnix/kernel/arch"
	"github.com/rgudkoff/rodnix/kernel/errs"
)

func newTestWindow(t *testing.T) (*arch.MMIOWindow, *arch.PhysMem) {
	t.Helper()
	mem, err := arch.NewPhysMem(0xFEE00000, 0x1000)
	if err != nil {
		t.Fatalf("NewPhysMem: %v", err)
	}
	t.Cleanup(func() { mem.Close() })
	return arch.NewMMIOWindow(mem, 0xFEE00000, 0x1000), mem
}

func TestLAPICInitAbsentCPUIDSupport(t *testing.T) {
	l := New(
		func(uint32) uint64 { return 0 },
		func(uint32, uint64) {},
		func() bool { return false },
	)
	err := l.Init(func(uintptr) (*arch.MMIOWindow, error) { return nil, nil })
	if !errors.Is(err, errs.HardwareAbsent) {
		t.Fatalf("Init() err = %v, want HardwareAbsent", err)
	}
}

func TestLAPICInitEnablesAndProgramsSVR(t *testing.T) {
	win, _ := newTestWindow(t)
	var written uint64
	l := New(
		func(uint32) uint64 { return 0xFEE00000 },
		func(_ uint32, v uint64) { written = v },
		func() bool { return true },
	)
	err := l.Init(func(pa uintptr) (*arch.MMIOWindow, error) {
		if pa != 0xFEE00000 {
			t.Fatalf("mapMMIO called with pa=0x%x, want 0xFEE00000", pa)
		}
		return win, nil
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if written&apicBaseEnableBit == 0 {
		t.Fatalf("WriteMSR value %#x missing enable bit", written)
	}
	if got := win.Read32(regSVR); got != svrEnableBit|svrSpuriousVec {
		t.Fatalf("SVR = %#x, want %#x", got, svrEnableBit|svrSpuriousVec)
	}
}

func TestLAPICSendEOIWritesZero(t *testing.T) {
	win, _ := newTestWindow(t)
	win.Write32(regEOI, 0xAA)
	l := &LAPIC{mmio: win}
	l.SendEOI()
	if got := win.Read32(regEOI); got != 0 {
		t.Fatalf("EOI register = %#x, want 0", got)
	}
}

func TestLAPICIDReadsTopByte(t *testing.T) {
	win, _ := newTestWindow(t)
	win.Write32(regID, 0x03<<24)
	l := &LAPIC{mmio: win}
	if got := l.ID(); got != 3 {
		t.Fatalf("ID() = %d, want 3", got)
	}
}

func TestCalibrateTicksPerMsFormula(t *testing.T) {
	// start - end = 0xFFFFFFFF - 0xFFFF5E00 = 0xA1FF = 41471 ticks elapsed
	got := calibrateTicksPerMs(0xFFFFFFFF, 0xFFFF5E00)
	want := uint32((uint64(41471) * 102) / 1024)
	if got != want {
		t.Fatalf("calibrateTicksPerMs = %d, want %d", got, want)
	}
}

func TestCalibrateTicksPerMsFloorsToDefault(t *testing.T) {
	// start == end: zero elapsed ticks, formula yields 0, floored to default.
	if got := calibrateTicksPerMs(100, 100); got != defaultTicksPerMs {
		t.Fatalf("calibrateTicksPerMs(equal) = %d, want default %d", got, defaultTicksPerMs)
	}
}

func TestCalibrateProgramsOneShotAndReadsRemaining(t *testing.T) {
	win, _ := newTestWindow(t)
	win.Write32(regTimerCurr, 0xFFFF5E00)
	l := &LAPIC{mmio: win}

	waited := false
	got := l.Calibrate(func() { waited = true })

	if !waited {
		t.Fatalf("Calibrate did not invoke waitOnePITTick")
	}
	if div := win.Read32(regTimerDiv); div != timerDivBy16 {
		t.Fatalf("timer divide = %#x, want %#x", div, timerDivBy16)
	}
	if lvt := win.Read32(regLVTTimer); lvt != timerModeMasked {
		t.Fatalf("LVT during calibration = %#x, want masked one-shot", lvt)
	}
	if got == 0 {
		t.Fatalf("Calibrate returned 0")
	}
	if l.TicksPerMs() != got {
		t.Fatalf("TicksPerMs() = %d, want %d", l.TicksPerMs(), got)
	}
}

func TestTicksPerMsDefaultsBeforeCalibration(t *testing.T) {
	l := &LAPIC{}
	if got := l.TicksPerMs(); got != defaultTicksPerMs {
		t.Fatalf("TicksPerMs() before calibration = %d, want default %d", got, defaultTicksPerMs)
	}
}

func TestStartPeriodicProgramsLVTAndInitCount(t *testing.T) {
	win, _ := newTestWindow(t)
	l := &LAPIC{mmio: win, ticksPerMs: 1000}

	l.StartPeriodic(32, 100)

	if lvt := win.Read32(regLVTTimer); lvt != timerModePeriodic|32 {
		t.Fatalf("LVT = %#x, want periodic|32", lvt)
	}
	if div := win.Read32(regTimerDiv); div != timerDivBy16 {
		t.Fatalf("divide = %#x, want %#x", div, timerDivBy16)
	}
	if init := win.Read32(regTimerInit); init != 1000*(1000/100) {
		t.Fatalf("init count = %d, want %d", init, 1000*(1000/100))
	}
}
