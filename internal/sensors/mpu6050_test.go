package sensors

import (
	"math"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/relabs-tech/teleop_rover/internal/imu"
)

func initOps(addr uint16, whoAmI byte) []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: addr, W: []byte{regWhoAmI}, R: []byte{whoAmI}},
		{Addr: addr, W: []byte{regPwrMgmt1, 0x00}},
		{Addr: addr, W: []byte{regAccelConfig, 0x00}},
		{Addr: addr, W: []byte{regGyroConfig, 0x00}},
	}
}

func TestMPU6050Next(t *testing.T) {
	ops := initOps(0x68, 0x68)
	// ax = 0, ay = +16384 (1g), az = 0 -> rolled 90° right
	ops = append(ops, i2ctest.IO{Addr: 0x68, W: []byte{regAccelXOutH}, R: []byte{0x00, 0x00, 0x40, 0x00, 0x00, 0x00}})
	bus := &i2ctest.Playback{Ops: ops}

	m, err := NewMPU6050(bus, 0x68)
	if err != nil {
		t.Fatalf("NewMPU6050 failed: %v", err)
	}

	s, err := m.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if math.Abs(s.Roll-90) > 1e-6 || math.Abs(s.Pitch) > 1e-6 {
		t.Errorf("sample = %+v, want roll 90 pitch 0", s)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("unconsumed I2C operations: %v", err)
	}
}

func TestMPU6050ReadAccelRawSigned(t *testing.T) {
	ops := initOps(0x69, 0x68)
	ops = append(ops, i2ctest.IO{Addr: 0x69, W: []byte{regAccelXOutH}, R: []byte{0xC0, 0x00, 0x00, 0x10, 0x7F, 0xFF}})
	bus := &i2ctest.Playback{Ops: ops}

	m, err := NewMPU6050(bus, 0x69)
	if err != nil {
		t.Fatalf("NewMPU6050 failed: %v", err)
	}
	var src imu.AccelRawSource = m
	raw, err := src.ReadAccelRaw()
	if err != nil {
		t.Fatalf("ReadAccelRaw failed: %v", err)
	}
	if raw.Ax != -16384 || raw.Ay != 16 || raw.Az != 32767 {
		t.Errorf("raw = %+v, want ax=-16384 ay=16 az=32767", raw)
	}
}

func TestMPU6050NoDevice(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: 0x68, W: []byte{regWhoAmI}, R: []byte{0xFF}},
	}}
	if _, err := NewMPU6050(bus, 0x68); err == nil {
		t.Fatal("NewMPU6050 accepted WHO_AM_I 0xFF")
	}
}
