package serial

import "testing"

type fakeUARTPorts struct {
	writes []byte
	wPorts []uint16
	rx     []byte
	lsr    byte
}

func (f *fakeUARTPorts) Outb(port uint16, val byte) {
	f.wPorts = append(f.wPorts, port)
	f.writes = append(f.writes, val)
}

func (f *fakeUARTPorts) Inb(port uint16) byte {
	switch port {
	case regLSR:
		return f.lsr
	case regData:
		if len(f.rx) == 0 {
			return 0
		}
		b := f.rx[0]
		f.rx = f.rx[1:]
		return b
	}
	return 0
}

func TestInitProgramsDivisorAndLineControl(t *testing.T) {
	f := &fakeUARTPorts{}
	d := New(f)
	d.Init(3) // 38400 baud divisor

	if len(f.writes) == 0 {
		t.Fatalf("Init issued no writes")
	}
	// LCR must be written with DLAB set at some point and with 8N1 at
	// some point; the order of the writes is not checked here.
	var sawDLAB, saw8N1 bool
	for i, port := range f.wPorts {
		if port == regLCR && f.writes[i] == lcrDLAB {
			sawDLAB = true
		}
		if port == regLCR && f.writes[i] == lcr8N1 {
			saw8N1 = true
		}
	}
	if !sawDLAB || !saw8N1 {
		t.Fatalf("Init did not toggle DLAB then program 8N1, writes=%v ports=%v", f.writes, f.wPorts)
	}
}

func TestWriteByteWaitsForTHREThenWrites(t *testing.T) {
	f := &fakeUARTPorts{lsr: lsrTHRE}
	d := New(f)
	d.WriteByte('A')

	if len(f.writes) == 0 || f.writes[len(f.writes)-1] != 'A' || f.wPorts[len(f.wPorts)-1] != regData {
		t.Fatalf("WriteByte did not write 'A' to the data register")
	}
}

func TestHasDataAndReadByte(t *testing.T) {
	f := &fakeUARTPorts{lsr: lsrDataReady, rx: []byte{'z'}}
	d := New(f)
	if !d.HasData() {
		t.Fatalf("HasData() false with DR bit set")
	}
	if got := d.ReadByte(); got != 'z' {
		t.Fatalf("ReadByte() = %q, want 'z'", got)
	}
}

func TestServiceOpsWritesAndReads(t *testing.T) {
	f := &fakeUARTPorts{lsr: lsrTHRE | lsrDataReady, rx: []byte{'q'}}
	d := New(f)
	ops := d.ServiceOps()

	ops.Write("hi")
	if string(f.writes[len(f.writes)-2:]) != "hi" {
		t.Fatalf("ServiceOps.Write did not emit \"hi\"")
	}

	c, ok := ops.Read()
	if !ok || c != 'q' {
		t.Fatalf("ServiceOps.Read() = %q, %v, want 'q', true", c, ok)
	}
}

func TestIRQLineMatchesCOM1(t *testing.T) {
	if IRQLine() != 4 {
		t.Fatalf("IRQLine() = %d, want 4", IRQLine())
	}
}
