// Package hostnet backs the nic package's simulation harness with a
// real Linux TUN/TAP device, so a running rodnix instance under
// development can exchange Ethernet frames with the host network the
// same way a real PC's NIC would exchange them with a wire, using
// golang.org/x/sys/unix for the Open/ioctl/Read/Write/Close calls.
package hostnet

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// TapDevice is a Linux TUN/TAP character device configured in TAP
// (Ethernet frame) mode with no extra packet-info header.
type TapDevice struct {
	fd   int
	name string
}

type ifReq struct {
	name  [16]byte
	flags uint16
	_     [22]byte // pad ifreq to the kernel's expected size
}

// NewTapDevice opens /dev/net/tun and binds it to the named interface
// via the TUNSETIFF ioctl, in IFF_TAP|IFF_NO_PI mode.
func NewTapDevice(name string) (*TapDevice, error) {
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("hostnet: open /dev/net/tun: %w", err)
	}

	var req ifReq
	copy(req.name[:], name)
	req.flags = unix.IFF_TAP | unix.IFF_NO_PI

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.TUNSETIFF), uintptr(unsafe.Pointer(&req))); errno != 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("hostnet: TUNSETIFF for %s: %w", name, errno)
	}

	return &TapDevice{fd: fd, name: name}, nil
}

// ReadFrame reads one Ethernet frame. A would-block read (the fd is
// expected to be opened blocking by default; callers needing
// non-blocking behavior set O_NONBLOCK before calling this) returns a
// nil slice and nil error rather than treating EAGAIN as fatal.
func (t *TapDevice) ReadFrame() ([]byte, error) {
	buf := make([]byte, 2048)
	n, err := unix.Read(t.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, nil
		}
		return nil, fmt.Errorf("hostnet: read %s: %w", t.name, err)
	}
	return buf[:n], nil
}

// WriteFrame writes one Ethernet frame.
func (t *TapDevice) WriteFrame(frame []byte) error {
	if _, err := unix.Write(t.fd, frame); err != nil {
		return fmt.Errorf("hostnet: write %s: %w", t.name, err)
	}
	return nil
}

// Close releases the device file descriptor.
func (t *TapDevice) Close() error {
	return unix.Close(t.fd)
}

// Name returns the interface name this device is bound to.
func (t *TapDevice) Name() string { return t.name }
