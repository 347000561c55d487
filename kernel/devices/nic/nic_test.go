package nic

import "testing"

type fakeAdapterPorts struct {
	regs map[uint16]byte
	isrWaits int
}

func newFakeAdapter() *fakeAdapterPorts {
	return &fakeAdapterPorts{regs: map[uint16]byte{}}
}

func (f *fakeAdapterPorts) off(port uint16) uint16 { return port - basePort }

// key maps a port to a register slot. Offsets below the ASIC ports are
// banked by CR's page-select bits (7:6), so page-1 registers such as
// PAR0-5 do not alias the page-0 registers at the same offsets.
func (f *fakeAdapterPorts) key(port uint16) uint16 {
	off := f.off(port)
	if off != regCR && off < asicData {
		off |= uint16(f.regs[regCR]>>6) << 8
	}
	return off
}

func (f *fakeAdapterPorts) Outb(port uint16, val byte) {
	f.regs[f.key(port)] = val
}

func (f *fakeAdapterPorts) Inb(port uint16) byte {
	off := f.off(port)
	if off == regISR {
		// Satisfy the first few busy-wait polls, then report completion.
		if f.isrWaits < 2 {
			f.isrWaits++
			return 0
		}
		return isrRST | isrRDC | isrPTX | isrPRX
	}
	return f.regs[f.key(port)]
}

func TestResetWaitsForRSTBitThenClearsIt(t *testing.T) {
	f := newFakeAdapter()
	d := New(f)
	d.Reset()
	if f.regs[regISR] != isrRST {
		t.Fatalf("ISR after Reset = %#x, want ack-write of isrRST", f.regs[regISR])
	}
}

func TestInitProgramsMACIntoPAR(t *testing.T) {
	f := newFakeAdapter()
	d := New(f)
	mac := [6]byte{0x52, 0x54, 0x00, 0x12, 0x34, 0x56}
	d.Init(mac)

	if d.MAC() != mac {
		t.Fatalf("MAC() = %v, want %v", d.MAC(), mac)
	}
	for i, b := range mac {
		if got := f.regs[0x100|(regPAR0+uint16(i))]; got != b {
			t.Fatalf("PAR%d = %#x, want %#x", i, got, b)
		}
	}
	if f.regs[regPSTART] != rxPageStart || f.regs[regPSTOP] != rxPageStop {
		t.Fatalf("ring boundaries not programmed: PSTART=%#x PSTOP=%#x", f.regs[regPSTART], f.regs[regPSTOP])
	}
}

func TestSendFrameProgramsByteCountAndSetsTXP(t *testing.T) {
	f := newFakeAdapter()
	d := New(f)
	frame := []byte{1, 2, 3, 4}

	if err := d.SendFrame(frame); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}
	if f.regs[regTBCR0] != byte(len(frame)) {
		t.Fatalf("TBCR0 = %d, want %d", f.regs[regTBCR0], len(frame))
	}
	if f.regs[regCR]&crTXP == 0 {
		t.Fatalf("CR after SendFrame missing TXP bit: %#x", f.regs[regCR])
	}
}

func TestSendFrameRejectsEmpty(t *testing.T) {
	d := New(newFakeAdapter())
	if err := d.SendFrame(nil); err == nil {
		t.Fatalf("SendFrame(nil) should fail")
	}
}

type staticISRPorts struct {
	isr byte
}

func (s *staticISRPorts) Outb(port uint16, val byte) {}
func (s *staticISRPorts) Inb(port uint16) byte {
	if port-basePort == regISR {
		return s.isr
	}
	return 0
}

func TestTryReceiveFrameReportsAbsentWithoutPRX(t *testing.T) {
	d := New(&staticISRPorts{isr: 0})
	if _, ok := d.TryReceiveFrame(60); ok {
		t.Fatalf("TryReceiveFrame() with PRX clear should report no frame available")
	}
}

func TestTryReceiveFrameReadsFrameWhenPRXSet(t *testing.T) {
	d := New(&staticISRPorts{isr: isrPRX | isrRDC})
	buf, ok := d.TryReceiveFrame(4)
	if !ok {
		t.Fatalf("TryReceiveFrame() with PRX set should report a frame")
	}
	if len(buf) != 4 {
		t.Fatalf("TryReceiveFrame() returned %d bytes, want 4", len(buf))
	}
}

func TestIRQLineMatchesNE2000Default(t *testing.T) {
	if IRQLine() != 9 {
		t.Fatalf("IRQLine() = %d, want 9", IRQLine())
	}
}
