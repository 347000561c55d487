// Package fabric implements the bus/driver/device/service registry:
// fixed-capacity tables, probe/attach matching, and an IRQ-handler
// multiplexer bridging the interrupt subsystem to driver callbacks.
// Grounded on a VM model's device-registry shape (a fixed set of
// devices dispatched by port/address match), generalized from static
// wiring at construction time to a dynamic publish/probe/attach
// lifecycle.
package fabric

import (
	"fmt"
	"sync"

	"github.com/rgudkoff/rodnix/kernel/errs"
)

const (
	maxBuses        = 16
	maxDrivers      = 64
	maxDevices      = 256
	maxServices     = 64
	maxIRQHandlers  = 64
)

// Device is a Fabric device record: name, vendor/device ID, class
// code, subclass, prog-if, a bus-private payload, and driver state.
type Device struct {
	Name       string
	VendorID   uint16
	DeviceID   uint16
	ClassCode  uint8
	Subclass   uint8
	ProgIF     uint8
	BusPrivate any

	driverState *Driver // nil => unbound
}

// Bound reports whether a driver has successfully attached to this
// device.
func (d *Device) Bound() bool { return d.driverState != nil }

// Driver is a Fabric driver record: name plus probe/attach/detach/
// suspend/resume callbacks. Probe must be pure (no side effects);
// Attach must be reversible by Detach.
type Driver struct {
	Name    string
	Probe   func(dev *Device) bool
	Attach  func(dev *Device) error
	Detach  func(dev *Device)
	Suspend func(dev *Device)
	Resume  func(dev *Device)
}

// Bus is a Fabric bus record. Enumerate, if non-nil, is invoked once at
// RegisterBus time and is expected to call PublishDevice for every
// device it discovers.
type Bus struct {
	Name      string
	Enumerate func(r *Registry)
}

// Service is a Fabric service record: name, an opaque ops table, and
// an opaque context value.
type Service struct {
	Name    string
	Ops     any
	Context any
}

type irqHandlerSlot struct {
	vector  int
	handler func(vector int, arg any)
	arg     any
	active  bool
}

// Registry holds the fixed-capacity Fabric tables. A single mutex
// protects the bus/driver/device/service tables; a distinct mutex
// protects the IRQ-handler table. The tables are fixed-size arrays,
// not slices: once a Device or Driver has a slot, that slot's address
// is stable for the Registry's lifetime, so the *Device returned by
// PublishDevice and the *Driver recorded in driverState never dangle
// across a later publish the way a pointer into a growing/reallocating
// slice would.
type Registry struct {
	mu sync.Mutex

	buses        [maxBuses]Bus
	busCount     int
	drivers      [maxDrivers]Driver
	driverCount  int
	devices      [maxDevices]Device
	deviceCount  int
	services     [maxServices]Service
	serviceCount int

	irqMu    sync.Mutex
	irqSlots [maxIRQHandlers]irqHandlerSlot
	irqCount int

	installTrampoline func(vector int)
}

// New returns an empty Registry. installTrampoline is called each time
// RequestIRQ claims a slot for a vector that has no other active slot
// (once per vector, unless every handler for it was freed); real
// boot code wires it to register the multiplexer's Dispatch method with
// the interrupt controller, tests wire in a recording stub.
func New(installTrampoline func(vector int)) *Registry {
	if installTrampoline == nil {
		installTrampoline = func(int) {}
	}
	return &Registry{installTrampoline: installTrampoline}
}

// RegisterBus appends bus to the table and, if it supplies an
// Enumerate callback, invokes it immediately.
func (r *Registry) RegisterBus(bus Bus) error {
	r.mu.Lock()
	if r.busCount >= maxBuses {
		r.mu.Unlock()
		return fmt.Errorf("fabric: bus table full: %w", errs.Resource)
	}
	r.buses[r.busCount] = bus
	r.busCount++
	r.mu.Unlock()

	if bus.Enumerate != nil {
		bus.Enumerate(r)
	}
	return nil
}

// PublishDevice appends dev with driver_state = none, then walks
// drivers looking for the first whose Probe returns true and whose
// Attach succeeds. Lock discipline: take lock, snapshot index, drop
// lock, call probe/attach, take lock, advance.
func (r *Registry) PublishDevice(dev Device) (*Device, error) {
	r.mu.Lock()
	if r.deviceCount >= maxDevices {
		r.mu.Unlock()
		return nil, fmt.Errorf("fabric: device table full: %w", errs.Resource)
	}
	dev.driverState = nil
	idx := r.deviceCount
	r.devices[idx] = dev
	r.deviceCount++
	r.mu.Unlock()

	r.matchDeviceAgainstDrivers(idx)

	r.mu.Lock()
	defer r.mu.Unlock()
	return &r.devices[idx], nil
}

// matchDeviceAgainstDrivers walks the driver table, probing each
// against devices[devIdx] with the registry lock dropped, and records
// the first successful attach.
func (r *Registry) matchDeviceAgainstDrivers(devIdx int) {
	i := 0
	for {
		r.mu.Lock()
		if devIdx >= r.deviceCount || i >= r.driverCount {
			r.mu.Unlock()
			return
		}
		if r.devices[devIdx].driverState != nil {
			r.mu.Unlock()
			return
		}
		drv := r.drivers[i]
		dev := &r.devices[devIdx]
		r.mu.Unlock()

		if drv.Probe != nil && drv.Probe(dev) {
			if drv.Attach == nil || drv.Attach(dev) == nil {
				r.mu.Lock()
				if devIdx < r.deviceCount && r.devices[devIdx].driverState == nil {
					r.devices[devIdx].driverState = &r.drivers[i]
				}
				r.mu.Unlock()
				return
			}
		}
		i++
	}
}

// RegisterDriver appends driver, then walks already-published devices
// looking for a match, symmetric with PublishDevice.
func (r *Registry) RegisterDriver(driver Driver) error {
	r.mu.Lock()
	if r.driverCount >= maxDrivers {
		r.mu.Unlock()
		return fmt.Errorf("fabric: driver table full: %w", errs.Resource)
	}
	driverIdx := r.driverCount
	r.drivers[driverIdx] = driver
	r.driverCount++
	deviceCount := r.deviceCount
	r.mu.Unlock()

	for devIdx := 0; devIdx < deviceCount; devIdx++ {
		r.mu.Lock()
		if devIdx >= r.deviceCount || r.devices[devIdx].driverState != nil {
			r.mu.Unlock()
			continue
		}
		drv := r.drivers[driverIdx]
		dev := &r.devices[devIdx]
		r.mu.Unlock()

		if drv.Probe != nil && drv.Probe(dev) {
			if drv.Attach == nil || drv.Attach(dev) == nil {
				r.mu.Lock()
				if devIdx < r.deviceCount && r.devices[devIdx].driverState == nil {
					r.devices[devIdx].driverState = &r.drivers[driverIdx]
				}
				r.mu.Unlock()
			}
		}
	}
	return nil
}

// PublishService appends service to the table.
func (r *Registry) PublishService(svc Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.serviceCount >= maxServices {
		return fmt.Errorf("fabric: service table full: %w", errs.Resource)
	}
	r.services[r.serviceCount] = svc
	r.serviceCount++
	return nil
}

// LookupService does a linear name-equality search; first match wins.
func (r *Registry) LookupService(name string) (*Service, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < r.serviceCount; i++ {
		if r.services[i].Name == name {
			return &r.services[i], true
		}
	}
	return nil, false
}

// Devices returns a snapshot slice of every published device, for
// diagnostics and tests.
func (r *Registry) Devices() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Device, r.deviceCount)
	copy(out, r.devices[:r.deviceCount])
	return out
}
