// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package actuator

import (
	"fmt"
	"math"
)

// Channel is one of the 16 PWM outputs of the servo controller.
type Channel uint8

const (
	C0 Channel = iota
	C1
	C2
	C3
	C4
	C5
	C6
	C7
	C8
	C9
	C10
	C11
	C12
	C13
	C14
	C15
)

// NumChannels is the number of PWM outputs on a PCA9685.
const NumChannels = 16

// MaxDuty is the largest off-count a 12-bit channel accepts.
const MaxDuty uint16 = 4095

func (c Channel) String() string { return fmt.Sprintf("C%d", uint8(c)) }

// Valid reports whether c addresses an existing output.
func (c Channel) Valid() bool { return c < NumChannels }

// Driver is the actuator hardware seen by the command channel.
type Driver interface {
	// SetChannel sets the off-count of ch with the on-count fixed at 0.
	SetChannel(ch Channel, duty uint16) error
	// Enable takes the controller out of sleep so outputs become active.
	Enable() error
	// SetPrescale writes the PWM frequency prescaler.
	SetPrescale(prescale uint8) error
}

// DutyFromFloat rounds v half away from zero and clamps it to [0, MaxDuty].
func DutyFromFloat(v float64) uint16 {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	if r <= 0 {
		return 0
	}
	if r >= float64(MaxDuty) {
		return MaxDuty
	}
	return uint16(r)
}

// PrescaleFrequency returns the PWM frequency in Hz produced by prescale
// on the internal 25 MHz oscillator.
func PrescaleFrequency(prescale uint8) float64 {
	return 25e6 / (4096 * (float64(prescale) + 1))
}
