package serial

import (
	"fmt"

	"github.com/rgudkoff/rodnix/kernel/fabric"
	"github.com/rgudkoff/rodnix/kernel/interrupts"
)

// Divisor38400 is the standard 38400 baud divisor against the 16550A's
// 1.8432 MHz reference clock, the divisor Init's doc comment names.
const Divisor38400 = 3

// Driver is the Fabric driver for the COM1 UART published by
// kernel/devices/isa.Bus: it probes for isa.DeviceCOM1, and on attach
// programs the line, publishes the "console" service, and claims
// COM1's IRQ line.
type Driver struct {
	reg     *fabric.Registry
	ports   Ports
	divisor uint16

	dev *Device
}

// NewDriver returns a Driver that publishes services and claims IRQs
// against reg when it attaches.
func NewDriver(reg *fabric.Registry, ports Ports, divisor uint16) *Driver {
	return &Driver{reg: reg, ports: ports, divisor: divisor}
}

// Fabric returns the fabric.Driver record to pass to
// Registry.RegisterDriver.
func (d *Driver) Fabric() fabric.Driver {
	return fabric.Driver{
		Name:   "serial-16550",
		Probe:  d.probe,
		Attach: d.attach,
		Detach: d.detach,
	}
}

func (d *Driver) probe(dev *fabric.Device) bool {
	return dev.Name == "isa:com1"
}

// attach programs the UART, publishes the "console" service, and
// requests COM1's IRQ vector, per spec §4.5's attach contract: "attach
// may itself register IRQ handlers, publish services, and initialise
// hardware."
func (d *Driver) attach(dev *fabric.Device) error {
	uart := New(d.ports)
	uart.Init(d.divisor)

	if err := d.reg.PublishService(fabric.Service{Name: "console", Ops: uart.ServiceOps()}); err != nil {
		return fmt.Errorf("serial: publish console service: %w", err)
	}

	vector := interrupts.IRQVectorBase + int(IRQLine())
	if err := d.reg.RequestIRQ(vector, d.handleIRQ, nil); err != nil {
		return fmt.Errorf("serial: request irq: %w", err)
	}

	d.dev = uart
	dev.BusPrivate = uart
	return nil
}

func (d *Driver) detach(dev *fabric.Device) {
	if d.dev == nil {
		return
	}
	_ = d.reg.FreeIRQ(interrupts.IRQVectorBase+int(IRQLine()), d.handleIRQ)
	d.dev = nil
}

// handleIRQ drains whatever byte the UART's RX-available interrupt
// signals are ready. Nothing in this module reads from "console" yet,
// so this currently just keeps LSR from backing up under load; future
// callers can read through the published service instead of here.
func (d *Driver) handleIRQ(vector int, arg any) {
	if d.dev == nil {
		return
	}
	for d.dev.HasData() {
		d.dev.ReadByte()
	}
}
