// Package pci enumerates PCI configuration space over the legacy
// CF8/CFC address/data port pair and publishes what it finds as
// Fabric devices. The same index/data register-pair device shape the
// CMOS RTC uses, generalized from a single register file to the
// 256-byte config space of every (bus, device, function).
package pci

import (
	"fmt"

	"github.com/rgudkoff/rodnix/kernel/fabric"
)

const (
	addressPort = 0xCF8
	dataPort    = 0xCFC

	vendorAbsent = 0xFFFF

	maxBus  = 256
	maxDev  = 32
	maxFunc = 8
)

// Ports is the 32-bit-grained I/O primitive PCI config access needs.
type Ports interface {
	Outl(port uint16, val uint32)
	Inl(port uint16) uint32
}

// Bus drives config-space access and enumeration.
type Bus struct {
	ports Ports
}

// New returns a Bus over ports.
func New(ports Ports) *Bus {
	return &Bus{ports: ports}
}

// configAddress builds the CF8 address word:
// (1<<31) | (bus<<16) | (dev<<11) | (fn<<8) | (offset & ~3).
func configAddress(bus, dev, fn uint8, offset uint8) uint32 {
	return (1 << 31) | uint32(bus)<<16 | uint32(dev)<<11 | uint32(fn)<<8 | uint32(offset&0xFC)
}

// ReadConfig32 reads a 32-bit config-space dword at offset.
func (b *Bus) ReadConfig32(bus, dev, fn, offset uint8) uint32 {
	b.ports.Outl(addressPort, configAddress(bus, dev, fn, offset))
	return b.ports.Inl(dataPort)
}

// Function is one decoded PCI config-space header's identifying
// fields, the same shape Fabric publishes as a Device.
type Function struct {
	Bus, Dev, Fn             uint8
	VendorID, DeviceID       uint16
	ClassCode, Subclass, PI  uint8
}

func decodeFunction(bus, dev, fn uint8, id, classReg uint32) Function {
	return Function{
		Bus: bus, Dev: dev, Fn: fn,
		VendorID: uint16(id & 0xFFFF),
		DeviceID: uint16(id >> 16),
		PI:       uint8(classReg >> 8),
		Subclass: uint8(classReg >> 16),
		ClassCode: uint8(classReg >> 24),
	}
}

// Scan walks every (bus, device, function) slot and returns the
// present functions (VendorID != 0xFFFF).
func (b *Bus) Scan() []Function {
	var found []Function
	for bus := 0; bus < maxBus; bus++ {
		for dev := 0; dev < maxDev; dev++ {
			for fn := 0; fn < maxFunc; fn++ {
				id := b.ReadConfig32(uint8(bus), uint8(dev), uint8(fn), 0x00)
				if uint16(id&0xFFFF) == vendorAbsent {
					if fn == 0 {
						break // no function 0 => no device here at all
					}
					continue
				}
				classReg := b.ReadConfig32(uint8(bus), uint8(dev), uint8(fn), 0x08)
				found = append(found, decodeFunction(uint8(bus), uint8(dev), uint8(fn), id, classReg))
				if fn == 0 {
					header := b.ReadConfig32(uint8(bus), uint8(dev), uint8(fn), 0x0C)
					if uint8(header>>16)&0x80 == 0 {
						break // not a multi-function device
					}
				}
			}
		}
	}
	return found
}

// Enumerate is a fabric.Bus.Enumerate callback: it scans config space
// and publishes every present function as a Fabric device, per spec
// §4.5's "if the bus supplies an enumerate callback, invokes it
// immediately. Enumeration publishes devices synchronously."
func (b *Bus) Enumerate(r *fabric.Registry) {
	for _, f := range b.Scan() {
		r.PublishDevice(fabric.Device{
			Name:        fmt.Sprintf("pci:%02x:%02x.%x", f.Bus, f.Dev, f.Fn),
			VendorID:    f.VendorID,
			DeviceID:    f.DeviceID,
			ClassCode:   f.ClassCode,
			Subclass:    f.Subclass,
			ProgIF:      f.PI,
			BusPrivate:  f,
		})
	}
}
