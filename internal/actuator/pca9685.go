// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package actuator

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"
)

const (
	regMode1    = 0x00
	regPrescale = 0xFE

	mode1Restart = 0x80
	mode1Sleep   = 0x10
)

// PCA9685 drives the servo outputs through a PCA9685 on I2C.
type PCA9685 struct {
	mu   sync.Mutex
	pwm  *pca9685.Dev
	regs *i2c.Dev
	bus  i2c.BusCloser
}

// OpenPCA9685 initializes the periph host and opens the controller at addr
// on the named bus.
func OpenPCA9685(busName string, addr uint16) (*PCA9685, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("PCA9685: periph host init: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("PCA9685: open I2C bus %q: %w", busName, err)
	}

	pwm, err := pca9685.NewI2C(bus, addr)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("PCA9685: init at 0x%02X: %w", addr, err)
	}

	log.Infof("PCA9685: initialized at 0x%02X on %s", addr, busName)
	return &PCA9685{
		pwm:  pwm,
		regs: &i2c.Dev{Bus: bus, Addr: addr},
		bus:  bus,
	}, nil
}

// SetChannel implements Driver.
func (p *PCA9685) SetChannel(ch Channel, duty uint16) error {
	if !ch.Valid() {
		return fmt.Errorf("PCA9685: invalid channel %d", ch)
	}
	if duty > MaxDuty {
		duty = MaxDuty
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.pwm.SetPwm(int(ch), 0, gpio.Duty(duty)); err != nil {
		return fmt.Errorf("PCA9685: set %s to %d: %w", ch, duty, err)
	}
	return nil
}

// Enable implements Driver.
func (p *PCA9685) Enable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return wake(p.regs)
}

// SetPrescale implements Driver.
func (p *PCA9685) SetPrescale(prescale uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := writePrescale(p.regs, prescale); err != nil {
		return err
	}
	log.Infof("PCA9685: prescale %d (%.2f Hz)", prescale, PrescaleFrequency(prescale))
	return nil
}

// Close releases the I2C bus. Outputs keep their last value.
func (p *PCA9685) Close() error {
	return p.bus.Close()
}

func readMode1(dev *i2c.Dev) (byte, error) {
	var mode [1]byte
	if err := dev.Tx([]byte{regMode1}, mode[:]); err != nil {
		return 0, fmt.Errorf("PCA9685: read MODE1: %w", err)
	}
	return mode[0], nil
}

// writePrescale puts the oscillator to sleep, writes PRE_SCALE and restores
// MODE1. The chip ignores PRE_SCALE writes while awake.
func writePrescale(dev *i2c.Dev, prescale uint8) error {
	if prescale < 3 {
		return fmt.Errorf("PCA9685: prescale %d below hardware minimum 3", prescale)
	}
	mode, err := readMode1(dev)
	if err != nil {
		return err
	}
	if _, err := dev.Write([]byte{regMode1, (mode &^ mode1Restart) | mode1Sleep}); err != nil {
		return fmt.Errorf("PCA9685: sleep: %w", err)
	}
	if _, err := dev.Write([]byte{regPrescale, prescale}); err != nil {
		return fmt.Errorf("PCA9685: write PRE_SCALE: %w", err)
	}
	if _, err := dev.Write([]byte{regMode1, mode &^ mode1Restart}); err != nil {
		return fmt.Errorf("PCA9685: restore MODE1: %w", err)
	}
	return nil
}

// wake clears the SLEEP bit and waits for the oscillator to settle.
func wake(dev *i2c.Dev) error {
	mode, err := readMode1(dev)
	if err != nil {
		return err
	}
	if _, err := dev.Write([]byte{regMode1, mode &^ (mode1Sleep | mode1Restart)}); err != nil {
		return fmt.Errorf("PCA9685: wake: %w", err)
	}
	time.Sleep(500 * time.Microsecond)
	return nil
}
