package nic

import (
	"fmt"

	"github.com/rgudkoff/rodnix/kernel/fabric"
	"github.com/rgudkoff/rodnix/kernel/interrupts"
)

// Common NE2000-compatible PCI identification: the Realtek RTL8029AS,
// the clone most commonly emulated/sold as "NE2000-compatible" on a
// PCI bus rather than the original ISA card.
const (
	VendorRealtek = 0x10EC
	DeviceRTL8029 = 0x8029
)

// maxFrameLen bounds the frames Driver bridges to/from Tap: large
// enough for a standard Ethernet MTU frame plus header.
const maxFrameLen = 1536

// Tap is the subset of hostnet.TapDevice the driver needs to bridge
// frames between this adapter and the host network. A nil Tap leaves
// the adapter attached with no host-network bridge: SendFrame/
// TryReceiveFrame still work against the card's own ring buffer, just
// with nothing pumping frames in or out on the host side.
type Tap interface {
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
}

// Driver is the Fabric driver for an NE2000-compatible PCI function. It
// probes for VendorRealtek/DeviceRTL8029 the way the PCI bus (spec §6)
// publishes it, and on attach programs the card, publishes the "net"
// service, claims the adapter's IRQ line, and - if a Tap backend was
// supplied - pumps frames between the card's ring buffer and the host
// TAP interface.
type Driver struct {
	reg   *fabric.Registry
	ports Ports
	mac   [6]byte
	tap   Tap

	dev    *Device
	stopRX chan struct{}
}

// NewDriver returns a Driver that installs mac as the station address
// and bridges frames through tap (nil disables the host-network
// bridge).
func NewDriver(reg *fabric.Registry, ports Ports, mac [6]byte, tap Tap) *Driver {
	return &Driver{reg: reg, ports: ports, mac: mac, tap: tap}
}

// Fabric returns the fabric.Driver record to pass to
// Registry.RegisterDriver.
func (d *Driver) Fabric() fabric.Driver {
	return fabric.Driver{
		Name:   "ne2000",
		Probe:  d.probe,
		Attach: d.attach,
		Detach: d.detach,
	}
}

func (d *Driver) probe(dev *fabric.Device) bool {
	return dev.VendorID == VendorRealtek && dev.DeviceID == DeviceRTL8029
}

// attach resets and programs the adapter, publishes the "net" service,
// claims the adapter's IRQ vector, and - if a Tap backend is
// configured - starts the host-bridge pump goroutine. Per spec §4.5,
// a failing attach must leave the device unbound but the system live;
// RequestIRQ failure does exactly that here.
func (d *Driver) attach(dev *fabric.Device) error {
	adapter := New(d.ports)
	adapter.Reset()
	adapter.Init(d.mac)

	if err := d.reg.PublishService(fabric.Service{Name: "net", Ops: adapter.ServiceOps()}); err != nil {
		return fmt.Errorf("nic: publish net service: %w", err)
	}

	vector := interrupts.IRQVectorBase + int(IRQLine())
	if err := d.reg.RequestIRQ(vector, d.handleIRQ, nil); err != nil {
		return fmt.Errorf("nic: request irq: %w", err)
	}

	d.dev = adapter
	dev.BusPrivate = adapter

	if d.tap != nil {
		d.stopRX = make(chan struct{})
		go d.pumpFromTap(d.stopRX)
	}
	return nil
}

func (d *Driver) detach(dev *fabric.Device) {
	if d.dev == nil {
		return
	}
	if d.stopRX != nil {
		close(d.stopRX)
		d.stopRX = nil
	}
	_ = d.reg.FreeIRQ(interrupts.IRQVectorBase+int(IRQLine()), d.handleIRQ)
	d.dev = nil
}

// handleIRQ drains one received frame from the adapter's ring buffer
// and forwards it to the TAP backend, the adapter-to-host direction of
// the bridge; the host-to-adapter direction runs in pumpFromTap.
func (d *Driver) handleIRQ(vector int, arg any) {
	if d.dev == nil {
		return
	}
	frame, ok := d.dev.TryReceiveFrame(maxFrameLen)
	if !ok || d.tap == nil {
		return
	}
	_ = d.tap.WriteFrame(frame)
}

// pumpFromTap blocks reading frames from the host TAP interface and
// hands each to the adapter's transmit path, until stop is closed by
// detach.
func (d *Driver) pumpFromTap(stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		frame, err := d.tap.ReadFrame()
		if err != nil {
			return
		}
		if frame == nil {
			continue
		}
		_ = d.dev.SendFrame(frame)
	}
}
