// Package ps2 drives the PS/2 keyboard controller: data port 0x60,
// status/command port 0x64, scanning enabled with command 0xF4. It is
// the platform side of the input pipeline's IRQ producer step;
// kernel/input does the scancode-to-character translation. Generalized
// from a pre-populated read-only scancode buffer, the shape a
// virtualized keyboard device exposes, to a real controller the kernel
// programs and reads.
package ps2

const (
	dataPort    = 0x60
	statusPort  = 0x64
	commandPort = 0x64

	cmdEnableScanning = 0xF4

	statusOutputFull = 1 << 0
)

// Ports is the byte-grained port I/O primitive the controller needs.
type Ports interface {
	Outb(port uint16, val byte)
	Inb(port uint16) byte
}

// Controller models the PS/2 keyboard controller.
type Controller struct {
	ports Ports
}

// New returns an uninitialised Controller.
func New(ports Ports) *Controller {
	return &Controller{ports: ports}
}

// Init sends the enable-scanning command to the keyboard device itself,
// over the data port; 0xF4 is a device command, not a controller
// command, so it does not go to the command port like the controller's
// own commands do.
func (c *Controller) Init() {
	c.ports.Outb(dataPort, cmdEnableScanning)
}

// HasData reports whether the output-buffer-full bit is set in the
// status register.
func (c *Controller) HasData() bool {
	return c.ports.Inb(statusPort)&statusOutputFull != 0
}

// ReadByte reads one byte from the data port, satisfying
// input.DataReader so the IRQ handler can call pipeline.OnIRQ(ctrl)
// directly.
func (c *Controller) ReadByte() byte {
	return c.ports.Inb(dataPort)
}
