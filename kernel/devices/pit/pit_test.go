package pit

import "testing"

type write struct {
	port uint16
	val  byte
}

type recorder struct{ writes []write }

func (r *recorder) Outb(port uint16, val byte) {
	r.writes = append(r.writes, write{port, val})
}

func TestProgramRateHzWritesCommandThenLOHIDivisor(t *testing.T) {
	rec := &recorder{}
	d := New(rec)

	divisor, err := d.ProgramRateHz(100)
	if err != nil {
		t.Fatalf("ProgramRateHz: %v", err)
	}
	wantDivisor := uint16(baseFrequencyHz / 100)
	if divisor != wantDivisor {
		t.Fatalf("divisor = %d, want %d", divisor, wantDivisor)
	}

	want := []write{
		{commandPort, modeWord},
		{counter0Port, byte(wantDivisor)},
		{counter0Port, byte(wantDivisor >> 8)},
	}
	if len(rec.writes) != len(want) {
		t.Fatalf("got %d writes, want %d: %+v", len(rec.writes), len(want), rec.writes)
	}
	for i, w := range want {
		if rec.writes[i] != w {
			t.Fatalf("write %d = %+v, want %+v", i, rec.writes[i], w)
		}
	}
}

func TestProgramRateHzRejectsOutOfRange(t *testing.T) {
	d := New(&recorder{})
	if _, err := d.ProgramRateHz(0); err == nil {
		t.Fatalf("ProgramRateHz(0) should fail")
	}
	if _, err := d.ProgramRateHz(baseFrequencyHz + 1); err == nil {
		t.Fatalf("ProgramRateHz(>base) should fail")
	}
}

func TestProgramRateHzFloorsDivisorToOne(t *testing.T) {
	rec := &recorder{}
	d := New(rec)
	divisor, err := d.ProgramRateHz(baseFrequencyHz)
	if err != nil {
		t.Fatalf("ProgramRateHz: %v", err)
	}
	if divisor != 1 {
		t.Fatalf("divisor = %d, want 1 at max frequency", divisor)
	}
}
