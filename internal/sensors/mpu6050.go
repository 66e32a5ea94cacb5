// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/teleop_rover/internal/imu"
	"github.com/relabs-tech/teleop_rover/internal/orientation"
)

// MPU6050 register map, see RM-MPU-6000A rev 4.2.
const (
	MPU6050DefaultAddr uint16 = 0x68

	regGyroConfig  = 0x1B
	regAccelConfig = 0x1C
	regAccelXOutH  = 0x3B
	regPwrMgmt1    = 0x6B
	regWhoAmI      = 0x75

	whoAmIValue = 0x68
)

// MPU6050 reads acceleration angles from an InvenSense MPU6050 over I2C.
type MPU6050 struct {
	name string
	dev  *i2c.Dev
	bus  i2c.BusCloser // non-nil when OpenMPU6050 opened the bus
}

var (
	_ orientation.Source = (*MPU6050)(nil)
	_ imu.AccelRawSource = (*MPU6050)(nil)
)

// OpenMPU6050 initializes the periph host, opens the named I2C bus and
// wakes the sensor found at addr.
func OpenMPU6050(busName string, addr uint16) (*MPU6050, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("MPU6050: periph host init: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("MPU6050: open I2C bus %q: %w", busName, err)
	}

	m, err := NewMPU6050(bus, addr)
	if err != nil {
		bus.Close()
		return nil, err
	}
	m.name = busName
	m.bus = bus
	return m, nil
}

// NewMPU6050 wakes the sensor at addr on an already opened bus and selects
// the ±2g accelerometer and ±250°/s gyroscope ranges.
func NewMPU6050(bus i2c.Bus, addr uint16) (*MPU6050, error) {
	if addr == 0 {
		addr = MPU6050DefaultAddr
	}
	m := &MPU6050{name: bus.String(), dev: &i2c.Dev{Bus: bus, Addr: addr}}

	var id [1]byte
	if err := m.dev.Tx([]byte{regWhoAmI}, id[:]); err != nil {
		return nil, fmt.Errorf("MPU6050: read WHO_AM_I: %w", err)
	}
	switch id[0] {
	case whoAmIValue:
	case 0x00, 0xFF:
		return nil, fmt.Errorf("MPU6050: no device at 0x%02X (WHO_AM_I = 0x%02X)", addr, id[0])
	default:
		log.Warnf("MPU6050: unexpected WHO_AM_I 0x%02X at 0x%02X, continuing", id[0], addr)
	}

	// Wake device up: clear SLEEP, internal 8MHz oscillator.
	if err := m.writeReg(regPwrMgmt1, 0x00); err != nil {
		return nil, fmt.Errorf("MPU6050: wake: %w", err)
	}
	if err := m.writeReg(regAccelConfig, 0x00); err != nil {
		return nil, fmt.Errorf("MPU6050: set accel range: %w", err)
	}
	if err := m.writeReg(regGyroConfig, 0x00); err != nil {
		return nil, fmt.Errorf("MPU6050: set gyro range: %w", err)
	}

	log.Infof("MPU6050: initialized at 0x%02X on %s", addr, m.name)
	return m, nil
}

func (m *MPU6050) writeReg(reg, value byte) error {
	_, err := m.dev.Write([]byte{reg, value})
	return err
}

// ReadAccelRaw reads the three accelerometer axes in one burst.
func (m *MPU6050) ReadAccelRaw() (imu.AccelRaw, error) {
	var buf [6]byte
	if err := m.dev.Tx([]byte{regAccelXOutH}, buf[:]); err != nil {
		return imu.AccelRaw{}, fmt.Errorf("MPU6050 accel read: %w", err)
	}
	return imu.AccelRaw{
		Source: m.name,
		Ax:     int16(binary.BigEndian.Uint16(buf[0:2])),
		Ay:     int16(binary.BigEndian.Uint16(buf[2:4])),
		Az:     int16(binary.BigEndian.Uint16(buf[4:6])),
	}, nil
}

// ReadAccelAngles returns roll and pitch in radians computed from gravity.
func (m *MPU6050) ReadAccelAngles() (roll, pitch float64, err error) {
	raw, err := m.ReadAccelRaw()
	if err != nil {
		return 0, 0, err
	}
	roll, pitch = orientation.AccelAngles(float64(raw.Ax), float64(raw.Ay), float64(raw.Az))
	return roll, pitch, nil
}

// Next implements orientation.Source.
func (m *MPU6050) Next() (orientation.Sample, error) {
	roll, pitch, err := m.ReadAccelAngles()
	if err != nil {
		return orientation.Sample{}, err
	}
	return orientation.SampleFromRadians(roll, pitch), nil
}

// Close puts the sensor back to sleep and releases the bus if it was opened here.
func (m *MPU6050) Close() error {
	err := m.writeReg(regPwrMgmt1, 0x40)
	if m.bus != nil {
		if cerr := m.bus.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
