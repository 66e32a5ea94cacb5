package actuator

import (
	"math"
	"testing"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestDutyFromFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want uint16
	}{
		{307, 307},
		{306.5, 307},
		{306.49, 306},
		{-0.4, 0},
		{-0.5, 0},
		{-12, 0},
		{4094.6, 4095},
		{1e9, 4095},
		{math.Inf(-1), 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := DutyFromFloat(tt.in); got != tt.want {
			t.Errorf("DutyFromFloat(%g) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPrescaleFrequency(t *testing.T) {
	if f := PrescaleFrequency(127); math.Abs(f-47.68) > 0.01 {
		t.Errorf("PrescaleFrequency(127) = %.3f, want ~47.68", f)
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	if err := r.SetPrescale(127); err != nil {
		t.Fatal(err)
	}
	if err := r.Enable(); err != nil {
		t.Fatal(err)
	}
	if err := r.SetChannel(C13, 5000); err != nil {
		t.Fatal(err)
	}
	if err := r.SetChannel(C2, 300); err != nil {
		t.Fatal(err)
	}
	if err := r.SetChannel(Channel(16), 1); err == nil {
		t.Error("SetChannel accepted channel 16")
	}

	if !r.Enabled() || r.Prescale() != 127 {
		t.Errorf("enabled=%v prescale=%d", r.Enabled(), r.Prescale())
	}
	if r.Duty(C13) != MaxDuty {
		t.Errorf("C13 = %d, want clamped %d", r.Duty(C13), MaxDuty)
	}
	want := []Write{{C13, MaxDuty}, {C2, 300}}
	got := r.Writes()
	if len(got) != len(want) {
		t.Fatalf("writes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWritePrescaleSequence(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: 0x40, W: []byte{regMode1}, R: []byte{0x21}}, // AI | ALLCALL
		{Addr: 0x40, W: []byte{regMode1, 0x31}},
		{Addr: 0x40, W: []byte{regPrescale, 127}},
		{Addr: 0x40, W: []byte{regMode1, 0x21}},
	}}
	if err := writePrescale(&i2c.Dev{Bus: bus, Addr: 0x40}, 127); err != nil {
		t.Fatalf("writePrescale failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Error(err)
	}
}

func TestWritePrescaleRejectsLowValue(t *testing.T) {
	bus := &i2ctest.Playback{}
	if err := writePrescale(&i2c.Dev{Bus: bus, Addr: 0x40}, 2); err == nil {
		t.Fatal("writePrescale accepted 2")
	}
}

func TestWakeClearsSleep(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: 0x40, W: []byte{regMode1}, R: []byte{0xB1}}, // RESTART | AI | SLEEP | ALLCALL
		{Addr: 0x40, W: []byte{regMode1, 0x21}},
	}}
	if err := wake(&i2c.Dev{Bus: bus, Addr: 0x40}); err != nil {
		t.Fatalf("wake failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Error(err)
	}
}

func TestRecorderKeepsLatestWrites(t *testing.T) {
	r := NewRecorder()
	total := 5*MaxRecordedWrites + 7
	for i := 0; i < total; i++ {
		if err := r.SetChannel(C0, uint16(i%(int(MaxDuty)+1))); err != nil {
			t.Fatal(err)
		}
	}

	got := r.Writes()
	if len(got) != MaxRecordedWrites {
		t.Fatalf("kept %d writes, want %d", len(got), MaxRecordedWrites)
	}
	r.mu.Lock()
	held := len(r.writes)
	r.mu.Unlock()
	if held >= 2*MaxRecordedWrites {
		t.Errorf("recorder holds %d writes", held)
	}
	for i, w := range got {
		want := uint16((total - MaxRecordedWrites + i) % (int(MaxDuty) + 1))
		if w.Duty != want {
			t.Fatalf("write %d duty = %d, want %d", i, w.Duty, want)
		}
	}
	if last := uint16((total - 1) % (int(MaxDuty) + 1)); r.Duty(C0) != last {
		t.Errorf("C0 = %d, want %d", r.Duty(C0), last)
	}
}
