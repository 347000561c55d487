package rtc

import "testing"

type fakeCMOS struct {
	selected byte
	regs     [128]byte
}

func (f *fakeCMOS) Outb(port uint16, val byte) {
	if port == indexPort {
		f.selected = val
	}
}

func (f *fakeCMOS) Inb(port uint16) byte {
	if port == dataPort {
		return f.regs[f.selected]
	}
	return 0
}

func TestReadBinary24HourMode(t *testing.T) {
	f := &fakeCMOS{}
	f.regs[regB] = regBBinaryMode | regB24HourMode
	f.regs[regSeconds] = 45
	f.regs[regMinutes] = 30
	f.regs[regHours] = 14
	f.regs[regDayOfMon] = 15
	f.regs[regMonth] = 7
	f.regs[regYear] = 26

	got := New(f).Read()
	want := Time{Second: 45, Minute: 30, Hour: 14, Day: 15, Month: 7, Year: 2026}
	if got != want {
		t.Fatalf("Read() = %+v, want %+v", got, want)
	}
}

func TestReadBCD12HourPM(t *testing.T) {
	f := &fakeCMOS{}
	f.regs[regB] = 0 // BCD mode, 12-hour mode
	f.regs[regSeconds] = 0x45 // BCD 45
	f.regs[regMinutes] = 0x30 // BCD 30
	f.regs[regHours] = 0x02 | regBPM // 2 PM
	f.regs[regDayOfMon] = 0x15
	f.regs[regMonth] = 0x07
	f.regs[regYear] = 0x26

	got := New(f).Read()
	want := Time{Second: 45, Minute: 30, Hour: 14, Day: 15, Month: 7, Year: 2026}
	if got != want {
		t.Fatalf("Read() = %+v, want %+v", got, want)
	}
}

func TestReadBCD12HourMidnight(t *testing.T) {
	f := &fakeCMOS{}
	f.regs[regB] = 0
	f.regs[regHours] = 0x12 // 12 AM, BCD

	got := New(f).Read()
	if got.Hour != 0 {
		t.Fatalf("Read().Hour = %d, want 0 for 12 AM", got.Hour)
	}
}

func TestServiceOpsNow(t *testing.T) {
	f := &fakeCMOS{}
	f.regs[regB] = regBBinaryMode | regB24HourMode
	d := New(f)
	ops := d.ServiceOps()
	if ops.Now() != d.Read() {
		t.Fatalf("ServiceOps().Now() did not delegate to Read()")
	}
}
