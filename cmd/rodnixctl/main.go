// Command rodnixctl is a local simulation/demo harness: it boots a
// kernel.Kernel instance against simulated physical memory and bridges
// real host keystrokes into the PS/2 scancode pipeline, the same
// "run the core against a real terminal" role a hypervisor's run loop
// plays for a guest, generalized from a kernel-guest run loop to
// driving rodnix's input pipeline directly.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/eiannone/keyboard"
	"golang.org/x/term"

	"github.com/rgudkoff/rodnix/kernel"
	"github.com/rgudkoff/rodnix/kernel/arch"
	"github.com/rgudkoff/rodnix/kernel/devices/nic"
	"github.com/rgudkoff/rodnix/kernel/devices/nic/hostnet"
	"github.com/rgudkoff/rodnix/kernel/vga"
)

var (
	memSizeMB = flag.Int("mem-mb", 64, "simulated physical memory size, in MiB")
	tapName   = flag.String("tap", "", "bridge the simulated NIC to this host TAP interface (requires CAP_NET_ADMIN); empty disables the bridge")
)

// simNICMAC is the station address RegisterStandardDevices programs
// into the NE2000-compatible PCI function simPorts simulates.
var simNICMAC = [6]byte{0x52, 0x54, 0x00, 0x12, 0x34, 0x56}

func main() {
	flag.Parse()

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		if cols, rows, err := term.GetSize(fd); err == nil {
			fmt.Printf("rodnixctl: host terminal is %dx%d\n", cols, rows)
		}
		prev, err := term.MakeRaw(fd)
		if err != nil {
			log.Fatalf("rodnixctl: put terminal in raw mode: %v", err)
		}
		defer term.Restore(fd, prev)
	}

	mem, err := arch.NewPhysMem(0, *memSizeMB*1024*1024)
	if err != nil {
		log.Fatalf("rodnixctl: allocate simulated memory: %v", err)
	}
	defer mem.Close()

	ports := newSimPorts()
	console := vga.New(func(addr uintptr, val byte) {
		if addr == vga.TextBufferAddr {
			fmt.Printf("%c", val)
		}
	})

	cfg := kernel.Config{
		Mem:      mem,
		Ports:    ports,
		HasLAPIC: func() bool { return false },
		ReadMSR:  func(uint32) uint64 { return 0 },
		WriteMSR: func(uint32, uint64) {},
		MapMMIO: func(pa uintptr, size int) (*arch.MMIOWindow, error) {
			return arch.NewMMIOWindow(mem, pa, size), nil
		},
		HandlerAddr:  0,
		CodeSelector: 0x08,
		HaltCPU:      func() { time.Sleep(10 * time.Millisecond) },
	}

	k, err := kernel.New(cfg)
	if err != nil {
		log.Fatalf("rodnixctl: %v", err)
	}
	if err := k.Boot(); err != nil {
		log.Fatalf("rodnixctl: boot: %v", err)
	}

	var tap nic.Tap
	if *tapName != "" {
		dev, err := hostnet.NewTapDevice(*tapName)
		if err != nil {
			log.Fatalf("rodnixctl: open tap %s: %v", *tapName, err)
		}
		defer dev.Close()
		tap = dev
	}
	if err := k.RegisterStandardDevices(simNICMAC, tap); err != nil {
		log.Fatalf("rodnixctl: register standard devices: %v", err)
	}

	if err := k.PIC.EnableIRQ(0); err != nil {
		log.Fatalf("rodnixctl: enable timer irq: %v", err)
	}
	k.EnableInterrupts()

	console.WriteString("rodnix simulation console ready (Ctrl+C to quit)\n")

	if err := keyboard.Open(); err != nil {
		log.Fatalf("rodnixctl: open keyboard: %v", err)
	}
	defer keyboard.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			ch, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			if key == keyboard.KeyCtrlC {
				return
			}
			code, ok := hostKeyToScancode(ch, key)
			if !ok {
				continue
			}
			k.Input.OnIRQ(byteOnce(code))
			k.Input.OnIRQ(byteOnce(code | 0x80))
		}
	}()

	k.Idle(func(line string) bool {
		console.WriteString(line + "\n")
		select {
		case <-done:
			return false
		default:
			return true
		}
	})
}

// byteOnce adapts a single scancode byte to the input.DataReader the
// pipeline's producer step expects: one read per simulated IRQ.
type byteOnce byte

func (b byteOnce) ReadByte() byte { return byte(b) }
