// Package kernel wires the interrupt subsystem, PIC/LAPIC/IO-APIC, the
// physical memory manager, paging, the Fabric registry, and the input
// pipeline into one boot sequence: exceptions/IRQ init -> LAPIC init ->
// IO-APIC init (via MADT) -> PMM init -> paging init -> timer init ->
// Fabric init -> bus enumeration -> driver registration -> matcher
// attach -> interrupts globally enabled -> idle loop consumes queued
// input. Grounded on a VM model that plays the same "owns every
// device, wires them together in one constructor" role for a
// hypervisor guest; here the devices are driven directly instead of
// trapped through a hypervisor.
package kernel

import (
	"fmt"

	"github.com/rgudkoff/rodnix/kernel/acpi"
	"github.com/rgudkoff/rodnix/kernel/arch"
	"github.com/rgudkoff/rodnix/kernel/devices/apic"
	"github.com/rgudkoff/rodnix/kernel/devices/isa"
	"github.com/rgudkoff/rodnix/kernel/devices/nic"
	"github.com/rgudkoff/rodnix/kernel/devices/pic"
	"github.com/rgudkoff/rodnix/kernel/devices/pit"
	"github.com/rgudkoff/rodnix/kernel/devices/ps2"
	"github.com/rgudkoff/rodnix/kernel/devices/rtc"
	"github.com/rgudkoff/rodnix/kernel/devices/serial"
	"github.com/rgudkoff/rodnix/kernel/errs"
	"github.com/rgudkoff/rodnix/kernel/fabric"
	"github.com/rgudkoff/rodnix/kernel/input"
	"github.com/rgudkoff/rodnix/kernel/interrupts"
	"github.com/rgudkoff/rodnix/kernel/klog"
	"github.com/rgudkoff/rodnix/kernel/mem/paging"
	"github.com/rgudkoff/rodnix/kernel/mem/pmm"
	"github.com/rgudkoff/rodnix/kernel/pci"
)

// timerFreqHz is the PIT periodic rate used only to mint one
// calibration tick for the LAPIC timer.
const timerFreqHz = 100

// defaultPMMStart/defaultPMMEnd are the default PMM boundaries, kept
// configurable rather than hard-coded; Config.PMMStart/PMMEnd override
// them.
const (
	defaultPMMStart = 0x100000
	defaultPMMEnd   = 0x4000000
)

// Ports is every port-I/O primitive the kernel's device packages need
// injected: byte-grained Outb/Inb (PIC, PIT, PS/2, serial, RTC, NIC)
// plus PCI's dword-grained Outl/Inl.
type Ports interface {
	ps2.Ports
	pci.Ports
}

// Config bundles every platform primitive the Kernel needs injected.
// Real boot code wires these to actual CPU instructions and physical
// RAM; cmd/rodnixctl and tests wire in simulated or fake equivalents,
// the same dependency-injection shape every device package in this
// module already uses.
type Config struct {
	Mem *arch.PhysMem

	PMMStart, PMMEnd uintptr

	Ports Ports

	ReadMSR    func(uint32) uint64
	WriteMSR   func(uint32, uint64)
	HasLAPIC   func() bool
	MapMMIO    func(pa uintptr, size int) (*arch.MMIOWindow, error)

	EnableHW  func()
	DisableHW func()
	HaltCPU   func()

	WaitOnePITTick func()

	HandlerAddr   uint64
	CodeSelector  uint16

	Log *klog.Logger
}

// Kernel owns every subsystem and the boot sequence that assembles
// them.
type Kernel struct {
	cfg Config

	PMM     *pmm.Allocator
	Paging  *paging.Mapper
	PIC     *pic.Device
	LAPIC   *apic.LAPIC
	IOAPIC  *apic.IOAPIC
	PIT     *pit.Device
	Irq     *interrupts.Controller
	Fabric  *fabric.Registry
	Input   *input.Pipeline

	hasIOAPIC bool
}

// New validates cfg and returns an unbooted Kernel. Call Boot to run
// the bring-up sequence.
func New(cfg Config) (*Kernel, error) {
	if cfg.Mem == nil || cfg.Ports == nil {
		return nil, fmt.Errorf("kernel: Mem and Ports are required: %w", errs.InvalidArg)
	}
	if cfg.PMMStart == 0 && cfg.PMMEnd == 0 {
		cfg.PMMStart, cfg.PMMEnd = defaultPMMStart, defaultPMMEnd
	}
	if cfg.Log == nil {
		cfg.Log = klog.New("kernel", false)
	}
	if cfg.EnableHW == nil {
		cfg.EnableHW = func() {}
	}
	if cfg.DisableHW == nil {
		cfg.DisableHW = func() {}
	}
	if cfg.HaltCPU == nil {
		cfg.HaltCPU = func() {}
	}
	if cfg.WaitOnePITTick == nil {
		cfg.WaitOnePITTick = func() {}
	}
	return &Kernel{cfg: cfg}, nil
}

// Boot runs the bring-up control flow: PIC init -> LAPIC init ->
// IO-APIC init (via MADT, falling back to the architectural default
// base when no MADT is found) -> IDT/dispatcher init -> PMM init ->
// paging init -> timer init -> Fabric init, then brings up the PS/2
// controller and the input pipeline. Bus enumeration, driver
// registration and matcher attach are the caller's job (via k.Fabric
// or RegisterStandardDevices, after Boot returns), and EnableInterrupts
// is the last step; Boot leaves interrupts disabled.
func (k *Kernel) Boot() error {
	cfg := &k.cfg

	picDev := pic.New(cfg.Ports)
	picDev.Init()
	k.PIC = picDev

	lapicDev := apic.New(cfg.ReadMSR, cfg.WriteMSR, cfg.HasLAPIC)
	hasLAPIC := true
	if err := lapicDev.Init(func(pa uintptr) (*arch.MMIOWindow, error) { return cfg.MapMMIO(pa, 0x400) }); err != nil {
		cfg.Log.Warnf("lapic init: %v (falling back to PIC-only EOI policy)", err)
		hasLAPIC = false
		lapicDev = nil
	}
	k.LAPIC = lapicDev

	if hasLAPIC {
		if ioapicBase, err := acpi.FindIOAPICFromMADT(cfg.Mem); err == nil {
			k.setupIOAPIC(ioapicBase, lapicDev)
		} else {
			cfg.Log.Infof("no MADT found (%v), using default IO-APIC base", err)
			k.setupIOAPIC(apic.DefaultBase(), lapicDev)
		}
	}

	k.Irq = interrupts.New(picDev, ifaceOrNil(lapicDev), hasLAPIC, k.hasIOAPIC, cfg.Log)
	k.Irq.Init(cfg.HandlerAddr, cfg.CodeSelector)
	k.Irq.EnableHW = cfg.EnableHW
	k.Irq.DisableHW = cfg.DisableHW
	k.Irq.HaltCPU = cfg.HaltCPU

	pmmAlloc, err := pmm.New(cfg.Mem, cfg.PMMStart, cfg.PMMEnd)
	if err != nil {
		return fmt.Errorf("kernel: pmm init: %w", err)
	}
	k.PMM = pmmAlloc

	mapper, err := paging.New(cfg.Mem, pmmAlloc)
	if err != nil {
		return fmt.Errorf("kernel: paging init: %w", err)
	}
	k.Paging = mapper

	k.PIT = pit.New(cfg.Ports)
	if _, err := k.PIT.ProgramRateHz(timerFreqHz); err != nil {
		return fmt.Errorf("kernel: pit init: %w", err)
	}
	if hasLAPIC {
		lapicDev.Calibrate(cfg.WaitOnePITTick)
	}

	k.Fabric = fabric.New(func(vector int) {
		k.Irq.Register(vector, func(ctx *arch.InterruptContext) { k.Fabric.Dispatch(ctx) })
	})

	ps2Dev := ps2.New(cfg.Ports)
	ps2Dev.Init()
	pipeline, err := input.NewPipeline(256, 256, cfg.HaltCPU)
	if err != nil {
		return fmt.Errorf("kernel: input pipeline init: %w", err)
	}
	k.Input = pipeline

	return nil
}

// RegisterStandardDevices registers the ISA bus (COM1 serial, CMOS
// RTC) and the PCI bus against k.Fabric, then registers the serial,
// RTC, and NE2000 NIC drivers so each attaches to whatever its bus
// publishes. This is the concrete, end-to-end exercise of spec §4.5's
// publish/probe/attach contract (PublishService, RequestIRQ); callers
// that want a different device set can skip this and drive k.Fabric
// directly instead. nicMAC is the station address programmed into any
// matching NE2000-compatible PCI function found; tap may be nil to
// leave the NIC attached with no host-network bridge.
func (k *Kernel) RegisterStandardDevices(nicMAC [6]byte, tap nic.Tap) error {
	cfg := &k.cfg

	if err := k.Fabric.RegisterBus(fabric.Bus{Name: "isa", Enumerate: isa.New().Enumerate}); err != nil {
		return fmt.Errorf("kernel: isa bus: %w", err)
	}
	if err := k.Fabric.RegisterDriver(serial.NewDriver(k.Fabric, cfg.Ports, serial.Divisor38400).Fabric()); err != nil {
		return fmt.Errorf("kernel: serial driver: %w", err)
	}
	if err := k.Fabric.RegisterDriver(rtc.NewDriver(k.Fabric, cfg.Ports).Fabric()); err != nil {
		return fmt.Errorf("kernel: rtc driver: %w", err)
	}

	pciBus := pci.New(cfg.Ports)
	if err := k.Fabric.RegisterBus(fabric.Bus{Name: "pci", Enumerate: pciBus.Enumerate}); err != nil {
		return fmt.Errorf("kernel: pci bus: %w", err)
	}
	if err := k.Fabric.RegisterDriver(nic.NewDriver(k.Fabric, cfg.Ports, nicMAC, tap).Fabric()); err != nil {
		return fmt.Errorf("kernel: nic driver: %w", err)
	}
	return nil
}

func ifaceOrNil(l *apic.LAPIC) interrupts.LAPIC {
	if l == nil {
		return nil
	}
	return l
}

func (k *Kernel) setupIOAPIC(base uintptr, lapicDev *apic.LAPIC) {
	cfg := &k.cfg
	ioapicDev, err := apic.NewIOAPIC(func(pa uintptr) (*arch.MMIOWindow, error) { return cfg.MapMMIO(pa, 0x40) }, base, lapicDev.ID)
	if err != nil {
		cfg.Log.Warnf("ioapic init: %v (IRQs stay routed through the PIC)", err)
		return
	}
	k.IOAPIC = ioapicDev
	k.hasIOAPIC = true
}

// EnableInterrupts turns on hardware interrupts, the last boot step:
// interrupts are globally enabled. Call it only after every driver
// that will ever call RequestIRQ has registered.
func (k *Kernel) EnableInterrupts() {
	k.Irq.Enable()
}

// Idle runs the idle loop: halt until an interrupt arrives, then drain
// whatever the input pipeline has buffered. It
// returns whenever consume returns false, so callers can implement
// "run forever" or "run until a condition" with the same loop.
func (k *Kernel) Idle(consume func(line string) bool) {
	buf := make([]byte, 256)
	for {
		k.Irq.Wait()
		if !k.Input.HasChar() {
			continue
		}
		n := k.Input.ReadLine(buf, nil)
		if !consume(string(buf[:n])) {
			return
		}
	}
}
