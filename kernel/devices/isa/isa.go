// Package isa publishes the fixed-function legacy devices every PC
// motherboard carries at well-known ports (the COM1 UART, the CMOS
// RTC) as Fabric devices. Unlike PCI, ISA devices have no vendor/device
// ID or config-space probe of their own, so Bus.Enumerate publishes
// each by a well-known name and Fabric drivers match on that name
// instead of a register-read probe.
package isa

import "github.com/rgudkoff/rodnix/kernel/fabric"

// Well-known device names this bus publishes; serial.Driver and
// rtc.Driver probe against these.
const (
	DeviceCOM1 = "isa:com1"
	DeviceRTC  = "isa:rtc"
)

// Bus is a fabric.Bus.Enumerate source for the ISA devices rodnix
// drives: one COM1 UART and one CMOS RTC. Real hardware has no
// enumeration protocol for these; every PC has them at fixed addresses,
// so Enumerate just publishes them.
type Bus struct{}

// New returns a Bus.
func New() *Bus { return &Bus{} }

// Enumerate publishes the fixed ISA device set, per spec §4.5's "if
// the bus supplies an enumerate callback, invokes it immediately."
func (b *Bus) Enumerate(r *fabric.Registry) {
	r.PublishDevice(fabric.Device{Name: DeviceCOM1})
	r.PublishDevice(fabric.Device{Name: DeviceRTC})
}
