// Package pic implements the 8259A Programmable Interrupt Controller
// pair (master + slave): standard ICW1-ICW4 sequence, edge-triggered,
// cascade on line 2, 8086 mode. Models the same ICW/OCW state machine
// a virtualized PIC models from the host side of a trap; here the
// Device issues the writes itself, since rodnix is the guest, not a
// VMM watching a guest issue them.
package pic

import (
	"fmt"

	"github.com/rgudkoff/rodnix/kernel/errs"
)

const (
	masterCmdPort  = 0x20
	masterDataPort = 0x21
	slaveCmdPort   = 0xA0
	slaveDataPort  = 0xA1

	icw1Init = 0x11 // ICW1: edge-triggered, cascade, ICW4 needed
	icw4Mode = 0x01 // ICW4: 8086/88 mode
	icw3Master = 0x04 // slave attached on IRQ2
	icw3Slave  = 0x02 // slave's cascade identity

	eoiCmd = 0x20

	masterOffset = 32 // vector base for IRQ0-7: master -> 32..39
	slaveOffset  = 40 // vector base for IRQ8-15: slave -> 40..47

	cascadeLine = 2
)

// PortWriter is the one primitive the PIC needs from the platform: a
// single-byte OUT instruction. Real boot code wires this to the actual
// x86 OUT; tests wire it to a recorder.
type PortWriter interface {
	Outb(port uint16, val byte)
}

// Device models one 8259A master/slave pair as a unit. IRQ n routes
// to vector 32+n via this remapping.
type Device struct {
	ports             PortWriter
	masterIMR, slaveIMR byte
}

// New returns a Device that has not yet been initialised; call Init
// before using it.
func New(ports PortWriter) *Device {
	return &Device{ports: ports, masterIMR: 0xFF, slaveIMR: 0xFF}
}

// Init runs the ICW1-ICW4 sequence on both chips, remapping master to
// vectors 32-39 and slave to 40-47, then masks every line.
func (d *Device) Init() {
	d.ports.Outb(masterCmdPort, icw1Init)
	d.ports.Outb(slaveCmdPort, icw1Init)

	d.ports.Outb(masterDataPort, masterOffset)
	d.ports.Outb(slaveDataPort, slaveOffset)

	d.ports.Outb(masterDataPort, icw3Master)
	d.ports.Outb(slaveDataPort, icw3Slave)

	d.ports.Outb(masterDataPort, icw4Mode)
	d.ports.Outb(slaveDataPort, icw4Mode)

	d.masterIMR = 0xFF
	d.slaveIMR = 0xFF
	d.ports.Outb(masterDataPort, d.masterIMR)
	d.ports.Outb(slaveDataPort, d.slaveIMR)
}

// EnableIRQ unmasks irq (0-15).
func (d *Device) EnableIRQ(irq uint8) error {
	if irq > 15 {
		return fmt.Errorf("pic: irq %d out of range: %w", irq, errs.InvalidArg)
	}
	if irq < 8 {
		d.masterIMR &^= 1 << irq
		d.ports.Outb(masterDataPort, d.masterIMR)
	} else {
		d.slaveIMR &^= 1 << (irq - 8)
		d.ports.Outb(slaveDataPort, d.slaveIMR)
		// Unmasking a slave line requires the cascade line unmasked too.
		d.masterIMR &^= 1 << cascadeLine
		d.ports.Outb(masterDataPort, d.masterIMR)
	}
	return nil
}

// DisableIRQ masks irq (0-15).
func (d *Device) DisableIRQ(irq uint8) error {
	if irq > 15 {
		return fmt.Errorf("pic: irq %d out of range: %w", irq, errs.InvalidArg)
	}
	if irq < 8 {
		d.masterIMR |= 1 << irq
		d.ports.Outb(masterDataPort, d.masterIMR)
	} else {
		d.slaveIMR |= 1 << (irq - 8)
		d.ports.Outb(slaveDataPort, d.slaveIMR)
	}
	return nil
}

// SendEOI acknowledges irq: 0x20 to the slave first when irq>=8, then
// always to the master.
func (d *Device) SendEOI(irq uint8) error {
	if irq > 15 {
		return fmt.Errorf("pic: irq %d out of range: %w", irq, errs.InvalidArg)
	}
	if irq >= 8 {
		d.ports.Outb(slaveCmdPort, eoiCmd)
	}
	d.ports.Outb(masterCmdPort, eoiCmd)
	return nil
}

// IsMasked reports whether irq is currently masked, for tests and
// diagnostics.
func (d *Device) IsMasked(irq uint8) bool {
	if irq < 8 {
		return d.masterIMR&(1<<irq) != 0
	}
	return d.slaveIMR&(1<<(irq-8)) != 0
}
