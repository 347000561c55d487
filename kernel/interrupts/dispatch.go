// Package interrupts implements the interrupt subsystem: IDT
// installation, the exception/IRQ dispatcher, PIC/LAPIC/IO-APIC EOI
// routing, and IRQL-based masking.
package interrupts

import (
	"fmt"

	"github.com/rgudkoff/rodnix/kernel/arch"
	"github.com/rgudkoff/rodnix/kernel/errs"
	"github.com/rgudkoff/rodnix/kernel/klog"
)

// HandlerFunc is a per-vector callback. For IRQs, ctx.Vector-32 is the
// IRQ line; for exceptions, ctx.Vector is the exception number.
type HandlerFunc func(ctx *arch.InterruptContext)

// PIC is the subset of the 8259A pair's contract the dispatcher needs:
// masking a noisy line and sending EOI.
type PIC interface {
	EnableIRQ(irq uint8) error
	DisableIRQ(irq uint8) error
	SendEOI(irq uint8) error
}

// LAPIC is the subset of the local APIC's contract the dispatcher
// needs: acknowledging service of the current interrupt.
type LAPIC interface {
	SendEOI()
}

// Controller owns the IDT, the handler table, and the EOI policy
// matrix. It is built once at boot and is the sole place IRQL lives,
// since this is a single-CPU design with process-wide interrupt state.
type Controller struct {
	idt      *IDT
	handlers [numVectors]HandlerFunc
	active   [numVectors]bool

	pic        PIC
	lapic      LAPIC
	hasLAPIC   bool
	hasIOAPIC  bool
	irql       IRQL
	log        *klog.Logger

	// EnableHW/DisableHW/HaltCPU abstract STI/CLI/HLT, which this
	// package cannot issue itself without inline assembly. The boot
	// path wires these to the real instructions; tests supply stubs.
	EnableHW  func()
	DisableHW func()
	HaltCPU   func()

	// OnFatalException is invoked for an unhandled, non-silenced
	// exception. It receives a fixed diagnostic and
	// is expected not to return; the zero-value Controller panics.
	OnFatalException func(d FaultDiagnostic)

	// ReadCR2 returns the current CR2 value; only called for vector 14
	// (page fault). Defaults to a stub returning 0.
	ReadCR2 arch.CR2Reader
}

// FaultDiagnostic is the fixed panic-frame content: name, error code,
// PC, SP, RFLAGS, and CR2 when the fault is a page fault.
type FaultDiagnostic struct {
	Vector    uint8
	Name      string
	ErrorCode uint64
	RIP       uint64
	RSP       uint64
	RFLAGS    uint64
	CR2       uint64
	HasCR2    bool
}

func (d FaultDiagnostic) String() string {
	s := fmt.Sprintf("unhandled exception %d (%s): error_code=0x%x rip=0x%x rsp=0x%x rflags=0x%x",
		d.Vector, d.Name, d.ErrorCode, d.RIP, d.RSP, d.RFLAGS)
	if d.HasCR2 {
		s += fmt.Sprintf(" cr2=0x%x", d.CR2)
	}
	return s
}

// New builds a Controller. pic must not be nil: init always remaps and
// masks the legacy PIC regardless of LAPIC/IO-APIC presence.
// hasLAPIC/hasIOAPIC select which row of the EOI matrix applies.
func New(pic PIC, lapic LAPIC, hasLAPIC, hasIOAPIC bool, log *klog.Logger) *Controller {
	c := &Controller{
		pic:       pic,
		lapic:     lapic,
		hasLAPIC:  hasLAPIC,
		hasIOAPIC: hasIOAPIC,
		irql:      High, // disabled until Enable() is called
		log:       log,
		EnableHW:  func() {},
		DisableHW: func() {},
		HaltCPU:   func() {},
		ReadCR2:   func() uint64 { return 0 },
	}
	return c
}

// Init installs the IDT at handlerAddr/codeSelector, remasks every PIC
// line, and leaves interrupts disabled.
func (c *Controller) Init(handlerAddr uint64, codeSelector uint16) {
	c.idt = NewIDT(handlerAddr, codeSelector)
	for irq := uint8(0); irq < irqVectorCount; irq++ {
		_ = c.pic.DisableIRQ(irq)
	}
	c.irql = High
	c.DisableHW()
}

// IDTEntries exposes the installed table for the arch bring-up code
// that loads IDTR; nil before Init.
func (c *Controller) IDTEntries() *IDT { return c.idt }

// Register installs handler for vector, replacing any previous one.
func (c *Controller) Register(vector int, handler HandlerFunc) error {
	if vector < 0 || vector >= numVectors {
		return fmt.Errorf("interrupts: register vector %d: %w", vector, errs.InvalidArg)
	}
	c.handlers[vector] = handler
	c.active[vector] = true
	return nil
}

// Unregister removes the handler for vector, if any.
func (c *Controller) Unregister(vector int) error {
	if vector < 0 || vector >= numVectors {
		return fmt.Errorf("interrupts: unregister vector %d: %w", vector, errs.InvalidArg)
	}
	c.handlers[vector] = nil
	c.active[vector] = false
	return nil
}

// Enable sets IRQL to Passive and turns hardware interrupts on.
func (c *Controller) Enable() {
	c.irql = Passive
	c.EnableHW()
}

// Disable sets IRQL to High and turns hardware interrupts off.
func (c *Controller) Disable() {
	c.irql = High
	c.DisableHW()
}

// IRQL returns the current interrupt request level.
func (c *Controller) IRQL() IRQL { return c.irql }

// SetIRQL raises or lowers the mask level, returning the prior level.
// Raising disables hardware interrupts; lowering to Passive re-enables
// them.
func (c *Controller) SetIRQL(level IRQL) IRQL {
	prev := c.irql
	c.irql = level
	if level > prev {
		c.DisableHW()
	} else if level == Passive {
		c.EnableHW()
	}
	return prev
}

// Wait idles the CPU until the next interrupt.
func (c *Controller) Wait() { c.HaltCPU() }

var exceptionNames = [32]string{
	0: "divide-by-zero", 1: "debug", 2: "nmi", 3: "breakpoint",
	4: "overflow", 5: "bound-range", 6: "invalid-opcode", 7: "device-not-available",
	8: "double-fault", 9: "coprocessor-segment-overrun", 10: "invalid-tss", 11: "segment-not-present",
	12: "stack-segment-fault", 13: "general-protection-fault", 14: "page-fault", 15: "reserved-15",
	16: "x87-fpu-error", 17: "alignment-check", 18: "machine-check", 19: "simd-fp-exception",
	20: "virtualization-exception", 21: "reserved-21",
	22: "reserved-22", 23: "reserved-23", 24: "reserved-24", 25: "reserved-25",
	26: "reserved-26", 27: "reserved-27", 28: "hypervisor-injection", 29: "vmm-communication",
	30: "security-exception", 31: "reserved-31",
}

func isSilencedException(vector uint8) bool {
	if vector == 7 || vector == 15 || vector == 21 {
		return true
	}
	return vector >= 22 && vector <= 31
}

// Dispatch extracts vector/IRQ, routes to IRQ or exception handling,
// and applies the EOI policy.
func (c *Controller) Dispatch(ctx *arch.InterruptContext) {
	v := ctx.Vector

	switch {
	case v >= irqVectorBase && v < irqVectorBase+16:
		c.dispatchIRQ(ctx, v-irqVectorBase)
	case v < 32:
		c.dispatchException(ctx)
	default:
		// vectors >= 48 return silently.
	}
}

func (c *Controller) dispatchIRQ(ctx *arch.InterruptContext, irq uint8) {
	if irq > 15 {
		c.sendEOI(irq)
		return
	}
	if h := c.handlers[ctx.Vector]; h != nil {
		h(ctx)
	} else if c.pic != nil {
		if err := c.pic.DisableIRQ(irq); err != nil {
			c.log.Warnf("failed to mask unhandled irq %d: %v", irq, err)
		}
	}
	c.sendEOI(irq)
}

// sendEOI implements the EOI policy matrix:
//
//	LAPIC yes, IOAPIC yes -> LAPIC only
//	LAPIC yes, IOAPIC no  -> PIC and LAPIC (both)
//	LAPIC no              -> PIC only
func (c *Controller) sendEOI(irq uint8) {
	switch {
	case c.hasLAPIC && c.hasIOAPIC:
		c.lapic.SendEOI()
	case c.hasLAPIC && !c.hasIOAPIC:
		if c.pic != nil {
			if err := c.pic.SendEOI(irq); err != nil {
				c.log.Warnf("PIC EOI for irq %d: %v", irq, err)
			}
		}
		c.lapic.SendEOI()
	default:
		if c.pic != nil {
			if err := c.pic.SendEOI(irq); err != nil {
				c.log.Warnf("PIC EOI for irq %d: %v", irq, err)
			}
		}
	}
}

func (c *Controller) dispatchException(ctx *arch.InterruptContext) {
	if h := c.handlers[ctx.Vector]; h != nil {
		h(ctx)
		return
	}
	if isSilencedException(ctx.Vector) {
		return
	}
	d := FaultDiagnostic{
		Vector:    ctx.Vector,
		Name:      exceptionNames[ctx.Vector],
		ErrorCode: ctx.ErrorCode,
		RIP:       ctx.RIP,
		RSP:       ctx.RSP,
		RFLAGS:    ctx.RFLAGS,
	}
	if ctx.Vector == 14 {
		d.HasCR2 = true
		if c.ReadCR2 != nil {
			d.CR2 = c.ReadCR2()
		}
	}
	if c.OnFatalException != nil {
		c.OnFatalException(d)
		return
	}
	panic(d.String())
}
