package interrupts

// Entry is one IDT slot: a 64-bit handler address, a code selector, an
// IST index (0 = main stack), and an attribute byte (Present + DPL +
// gate type). Slots 0-31 are exception gates (DPL=0); slots 32-47 are
// IRQ gates mapping PIC/IO-APIC IRQ n to vector 32+n.
type Entry struct {
	Handler  uint64
	Selector uint16
	IST      uint8
	Attr     uint8
}

const (
	attrPresent    = 1 << 7
	attrDPL0       = 0 << 5
	gateInterrupt  = 0xE
	numVectors     = 256
	irqVectorBase  = 32
	irqVectorCount = 16
)

// IRQVectorBase is the exported form of irqVectorBase: IRQ line n is
// delivered on vector IRQVectorBase+n, the number every Fabric driver
// needs to turn its PIC/IO-APIC IRQ line into a RequestIRQ vector.
const IRQVectorBase = irqVectorBase

// IDT is the 256-slot interrupt descriptor table: exception gates in
// 0-31, IRQ gates in 32-47, everything else unused until a driver
// registers it.
type IDT [numVectors]Entry

// NewIDT builds an IDT with every exception gate (0-31) and IRQ gate
// (32-47) initialised to point at handlerAddr with DPL=0, IST=0, and
// the rest of the slots left absent. handlerAddr is the address of the
// single low-level dispatch trampoline every vector's stub funnels
// into: a stub per vector that pushes its frame and calls one shared
// dispatcher.
func NewIDT(handlerAddr uint64, codeSelector uint16) *IDT {
	var idt IDT
	for v := 0; v < numVectors; v++ {
		if v < 32 || (v >= irqVectorBase && v < irqVectorBase+irqVectorCount) {
			idt[v] = Entry{
				Handler:  handlerAddr,
				Selector: codeSelector,
				IST:      0,
				Attr:     attrPresent | attrDPL0 | gateInterrupt,
			}
		}
	}
	return &idt
}
