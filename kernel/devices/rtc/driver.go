package rtc

import (
	"fmt"

	"github.com/rgudkoff/rodnix/kernel/fabric"
)

// Driver is the Fabric driver for the CMOS RTC published by
// kernel/devices/isa.Bus: it probes for isa.DeviceRTC and, on attach,
// publishes the "rtc" service. The RTC has no interrupt line this
// module drives (reads are polled), so attach has no RequestIRQ call,
// unlike serial.Driver and nic.Driver.
type Driver struct {
	reg   *fabric.Registry
	ports Ports

	dev *Device
}

// NewDriver returns a Driver that publishes the "rtc" service against
// reg when it attaches.
func NewDriver(reg *fabric.Registry, ports Ports) *Driver {
	return &Driver{reg: reg, ports: ports}
}

// Fabric returns the fabric.Driver record to pass to
// Registry.RegisterDriver.
func (d *Driver) Fabric() fabric.Driver {
	return fabric.Driver{
		Name:   "cmos-rtc",
		Probe:  d.probe,
		Attach: d.attach,
		Detach: d.detach,
	}
}

func (d *Driver) probe(dev *fabric.Device) bool {
	return dev.Name == "isa:rtc"
}

func (d *Driver) attach(dev *fabric.Device) error {
	clock := New(d.ports)
	if err := d.reg.PublishService(fabric.Service{Name: "rtc", Ops: clock.ServiceOps()}); err != nil {
		return fmt.Errorf("rtc: publish rtc service: %w", err)
	}
	d.dev = clock
	dev.BusPrivate = clock
	return nil
}

func (d *Driver) detach(dev *fabric.Device) {
	d.dev = nil
}
