package main

import "sync"

// simNICVendorID/simNICDeviceID are the identity simPorts hands back
// for PCI bus 0 device 0 function 0, so kernel/pci's enumeration finds
// one NE2000-compatible function for kernel/devices/nic.Driver to
// probe and attach to, the same Realtek RTL8029AS clone ID real
// NE2000-compatible PCI cards carry.
const (
	simNICVendorID = 0x10EC
	simNICDeviceID = 0x8029
	simNICClass    = 0x02 // network controller
)

// simPorts is an in-memory stand-in for the x86 I/O port space: every
// byte-grained device package in kernel/devices needs only Outb/Inb,
// so one flat byte-indexed register file satisfies the PIC, PIT,
// PS/2, serial, RTC, and NIC Ports interfaces at once in this
// userspace simulation. Outl/Inl additionally simulate the CF8/CFC
// config-space pair for kernel/pci, with one fixed NE2000-compatible
// function at (bus=0, dev=0, fn=0) and nothing at any other slot.
type simPorts struct {
	mu      sync.Mutex
	regs    map[uint16]byte
	pciAddr uint32
}

func newSimPorts() *simPorts {
	return &simPorts{regs: map[uint16]byte{}}
}

func (p *simPorts) Outb(port uint16, val byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regs[port] = val
}

func (p *simPorts) Inb(port uint16) byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regs[port]
}

func (p *simPorts) Outl(port uint16, val uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if port == 0xCF8 {
		p.pciAddr = val
	}
}

func (p *simPorts) Inl(port uint16) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if port != 0xCFC {
		return 0
	}

	bus := uint8(p.pciAddr >> 16)
	dev := uint8(p.pciAddr>>11) & 0x1F
	fn := uint8(p.pciAddr>>8) & 0x07
	offset := uint8(p.pciAddr) & 0xFC

	if bus != 0 || dev != 0 || fn != 0 {
		return 0xFFFFFFFF // vendor absent: no function at this slot
	}
	switch offset {
	case 0x00:
		return uint32(simNICDeviceID)<<16 | uint32(simNICVendorID)
	case 0x08:
		return uint32(simNICClass) << 24
	default:
		return 0
	}
}
